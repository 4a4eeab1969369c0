// Package capabilities defines the narrow client trait surface guests and
// hosts both implement: configuration, outbound HTTP, publishing, state
// storage, and identity. The host-side implementations live with their
// capability hosts and talk to backends directly; the guest-side
// implementations (package guest) forward through the component import
// surface and route outbound HTTP through the response cache. Both sides
// must provide identical semantics and are run under one conformance suite.
package capabilities

import (
	"context"
	"net/http"
	"time"
)

// Config provides read access to configuration settings.
type Config interface {
	// Get returns the configuration value for key. Fails if key is unknown.
	Get(ctx context.Context, key string) (string, error)
}

// HttpRequest defines the behavior for fetching data from a source.
// The returned response carries a fully-collected body.
type HttpRequest interface {
	Fetch(ctx context.Context, req *http.Request) (*http.Response, error)
}

// Message represents a message to be published.
type Message struct {
	Payload []byte
	Headers map[string]string
}

// NewMessage creates a message with a copied payload and empty headers.
func NewMessage(payload []byte) Message {
	return Message{
		Payload: append([]byte(nil), payload...),
		Headers: make(map[string]string),
	}
}

// Publisher defines the message publishing behavior.
type Publisher interface {
	// Send publishes a message to a topic. Sends beyond the backend's
	// capacity block rather than fail.
	Send(ctx context.Context, topic string, msg Message) error
}

// StateStore defines the behavior for storing and retrieving state.
type StateStore interface {
	// Get retrieves a previously stored value. The second return is false
	// on miss.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value. ttl of zero means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value. Idempotent.
	Delete(ctx context.Context, key string) error
}

// Identity defines behaviors for interacting with identity providers.
type Identity interface {
	// AccessToken returns an access token for the named identity. Fails on
	// unknown identity or token acquisition failure.
	AccessToken(ctx context.Context, identity string) (string, error)
}

// Provider is the capability facade a guest names once and passes to
// every handler. State is an accessor rather than an embedding because
// its Get would collide with Config's.
type Provider interface {
	Config
	HttpRequest
	Publisher
	Identity

	// State returns the guest's state store.
	State() StateStore
}
