package capabilities

import (
	"context"
	"net/http"
	"time"
)

// Facade composes a Provider from independent capability
// implementations. The runtime builds one from its connected backends;
// tests build one from fakes.
type Facade struct {
	Config    Config
	HTTP      HttpRequest
	Publisher Publisher
	Store     StateStore
	Identity  Identity
}

func (f *Facade) Get(ctx context.Context, key string) (string, error) {
	return f.Config.Get(ctx, key)
}

func (f *Facade) Fetch(ctx context.Context, req *http.Request) (*http.Response, error) {
	return f.HTTP.Fetch(ctx, req)
}

func (f *Facade) Send(ctx context.Context, topic string, msg Message) error {
	return f.Publisher.Send(ctx, topic, msg)
}

func (f *Facade) State() StateStore {
	return f.Store
}

func (f *Facade) AccessToken(ctx context.Context, identity string) (string, error) {
	return f.Identity.AccessToken(ctx, identity)
}

// PublisherFunc adapts a function to the Publisher interface.
type PublisherFunc func(ctx context.Context, topic string, msg Message) error

func (f PublisherFunc) Send(ctx context.Context, topic string, msg Message) error {
	return f(ctx, topic, msg)
}

// nopStore is the state store used when a facade is assembled without a
// KV backend.
type nopStore struct{}

func (nopStore) Get(context.Context, string) ([]byte, bool, error)        { return nil, false, nil }
func (nopStore) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (nopStore) Delete(context.Context, string) error                     { return nil }

// NopStore returns a state store that stores nothing and never fails.
func NopStore() StateStore { return nopStore{} }
