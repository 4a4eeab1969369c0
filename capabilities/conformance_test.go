package capabilities_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/augentic/yetti/capabilities"
	"github.com/augentic/yetti/guest"
	"github.com/augentic/yetti/wasi/config"
	wasihttp "github.com/augentic/yetti/wasi/http"
	"github.com/augentic/yetti/wasi/identity"
	"github.com/augentic/yetti/wasi/keyvalue"
	"github.com/augentic/yetti/wasi/messaging"
)

// The conformance suite runs the same property checks against the
// host-side facade and the guest-side cached provider. Both must expose
// identical semantics.

func hostProvider(t *testing.T, broker *messaging.MemoryBroker) capabilities.Provider {
	t.Helper()
	vars := config.NewVars(map[string]string{"region": "eu-central"})
	registry := identity.NewRegistry(map[string]identity.Entry{
		"detector": {Subject: "svc:detector", TTL: time.Minute},
	}, "secret", "yetti")

	return &capabilities.Facade{
		Config: vars,
		HTTP:   wasihttp.NewProxy(wasihttp.ProxyOptions{}),
		Publisher: capabilities.PublisherFunc(func(ctx context.Context, topic string, msg capabilities.Message) error {
			return broker.Publish(ctx, topic, msg)
		}),
		Store:    keyvalue.NewMemoryStore(),
		Identity: registry,
	}
}

func providers(t *testing.T, broker *messaging.MemoryBroker) map[string]capabilities.Provider {
	host := hostProvider(t, broker)
	return map[string]capabilities.Provider{
		"host":  host,
		"guest": guest.WithCache(host),
	}
}

func TestConformanceConfig(t *testing.T) {
	broker := messaging.NewMemoryBroker()
	defer broker.Close()

	for name, p := range providers(t, broker) {
		t.Run(name, func(t *testing.T) {
			got, err := p.Get(context.Background(), "region")
			if err != nil {
				t.Fatalf("Get(region) error = %v", err)
			}
			if got != "eu-central" {
				t.Errorf("Get(region) = %q", got)
			}
			if _, err := p.Get(context.Background(), "unknown"); err == nil {
				t.Error("unknown key must fail")
			}
		})
	}
}

func TestConformanceStateStore(t *testing.T) {
	broker := messaging.NewMemoryBroker()
	defer broker.Close()

	for name, p := range providers(t, broker) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := p.State()

			if err := store.Set(ctx, "k", []byte("v"), 0); err != nil {
				t.Fatalf("Set() error = %v", err)
			}
			got, found, err := store.Get(ctx, "k")
			if err != nil || !found {
				t.Fatalf("Get() = %v, %v, %v", got, found, err)
			}
			if string(got) != "v" {
				t.Errorf("Get() = %q", got)
			}

			if _, found, _ := store.Get(ctx, "absent"); found {
				t.Error("miss must report found=false")
			}
			if err := store.Delete(ctx, "k"); err != nil {
				t.Errorf("Delete() error = %v", err)
			}
			if err := store.Delete(ctx, "k"); err != nil {
				t.Errorf("repeat Delete() error = %v", err)
			}
		})
	}
}

func TestConformancePublisher(t *testing.T) {
	broker := messaging.NewMemoryBroker()
	defer broker.Close()

	got := make(chan string, 2)
	cancel, err := broker.Subscribe(context.Background(), func(_ context.Context, topic string, msg capabilities.Message) {
		got <- topic + ":" + string(msg.Payload)
	})
	if err != nil {
		t.Fatal(err)
	}
	defer cancel()

	for name, p := range providers(t, broker) {
		t.Run(name, func(t *testing.T) {
			if err := p.Send(context.Background(), "events", capabilities.NewMessage([]byte(name))); err != nil {
				t.Fatalf("Send() error = %v", err)
			}
			select {
			case v := <-got:
				if v != "events:"+name {
					t.Errorf("delivery = %q", v)
				}
			case <-time.After(time.Second):
				t.Fatal("no delivery")
			}
		})
	}
}

func TestConformanceIdentity(t *testing.T) {
	broker := messaging.NewMemoryBroker()
	defer broker.Close()

	for name, p := range providers(t, broker) {
		t.Run(name, func(t *testing.T) {
			token, err := p.AccessToken(context.Background(), "detector")
			if err != nil {
				t.Fatalf("AccessToken() error = %v", err)
			}
			if token == "" {
				t.Error("empty token")
			}
			if _, err := p.AccessToken(context.Background(), "ghost"); err == nil {
				t.Error("unknown identity must fail")
			}
		})
	}
}

func TestConformanceFetch(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("pong"))
	}))
	defer upstream.Close()

	broker := messaging.NewMemoryBroker()
	defer broker.Close()

	for name, p := range providers(t, broker) {
		t.Run(name, func(t *testing.T) {
			req, _ := http.NewRequest(http.MethodGet, upstream.URL, nil)
			resp, err := p.Fetch(context.Background(), req)
			if err != nil {
				t.Fatalf("Fetch() error = %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				t.Errorf("status = %d", resp.StatusCode)
			}
		})
	}
}

func TestGuestFetchCaches(t *testing.T) {
	calls := 0
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte("pong"))
	}))
	defer upstream.Close()

	broker := messaging.NewMemoryBroker()
	defer broker.Close()
	p := guest.WithCache(hostProvider(t, broker))

	for i := 0; i < 2; i++ {
		req, _ := http.NewRequest(http.MethodGet, upstream.URL, nil)
		req.Header.Set("Cache-Control", "max-age=60")
		resp, err := p.Fetch(context.Background(), req)
		if err != nil {
			t.Fatalf("Fetch() error = %v", err)
		}
		resp.Body.Close()
	}
	if calls != 1 {
		t.Errorf("upstream calls = %d, want 1", calls)
	}
}
