package runtime

import (
	"context"
	"fmt"

	"github.com/augentic/yetti/errors"
	"github.com/augentic/yetti/host"
	"github.com/augentic/yetti/wasi/blobstore"
	"github.com/augentic/yetti/wasi/config"
	wasihttp "github.com/augentic/yetti/wasi/http"
	"github.com/augentic/yetti/wasi/identity"
	"github.com/augentic/yetti/wasi/keyvalue"
	"github.com/augentic/yetti/wasi/messaging"
	"github.com/augentic/yetti/wasi/otel"
	"github.com/augentic/yetti/wasi/sql"
	"github.com/augentic/yetti/wasi/vault"
	"github.com/augentic/yetti/wasi/websockets"
)

// Bindings maps the manifest's host list onto concrete bindings. Every
// backend connects from the environment; unknown host names fail so a
// typo in the manifest is caught at startup.
func Bindings(m *Manifest) ([]Binding, error) {
	known := map[string]func(ctx context.Context) (host.Host, error){
		"http": func(ctx context.Context) (host.Host, error) {
			proxy, err := wasihttp.ConnectProxy(ctx)
			if err != nil {
				return nil, err
			}
			opts, err := wasihttp.ServerOptionsFromEnv()
			if err != nil {
				return nil, err
			}
			if m.HTTPAddr != "" {
				opts.Addr = m.HTTPAddr
			}
			return wasihttp.NewHost(proxy, opts), nil
		},
		"keyvalue": func(ctx context.Context) (host.Host, error) {
			store, err := keyvalue.Connect(ctx)
			if err != nil {
				return nil, err
			}
			return keyvalue.NewHost(store), nil
		},
		"messaging": func(ctx context.Context) (host.Host, error) {
			broker, err := messaging.Connect(ctx)
			if err != nil {
				return nil, err
			}
			return messaging.NewHost(broker), nil
		},
		"config": func(ctx context.Context) (host.Host, error) {
			vars, err := config.Connect(ctx)
			if err != nil {
				return nil, err
			}
			return config.NewHost(vars), nil
		},
		"identity": func(ctx context.Context) (host.Host, error) {
			registry, err := identity.Connect(ctx)
			if err != nil {
				return nil, err
			}
			return identity.NewHost(registry), nil
		},
		"vault": func(ctx context.Context) (host.Host, error) {
			v, err := vault.Connect(ctx)
			if err != nil {
				return nil, err
			}
			return vault.NewHost(v), nil
		},
		"blobstore": func(ctx context.Context) (host.Host, error) {
			store, err := blobstore.Connect(ctx)
			if err != nil {
				return nil, err
			}
			return blobstore.NewHost(store), nil
		},
		"sql": func(ctx context.Context) (host.Host, error) {
			db, err := sql.Connect(ctx)
			if err != nil {
				return nil, err
			}
			return sql.NewHost(db), nil
		},
		"otel": func(ctx context.Context) (host.Host, error) {
			provider, err := otel.Connect(ctx)
			if err != nil {
				return nil, err
			}
			return otel.NewHost(provider), nil
		},
		"websockets": func(ctx context.Context) (host.Host, error) {
			opts, err := websockets.OptionsFromEnv()
			if err != nil {
				return nil, err
			}
			if m.WSAddr != "" {
				opts.Addr = m.WSAddr
			}
			return websockets.NewHost(websockets.NewHub(), opts), nil
		},
	}

	bindings := make([]Binding, 0, len(m.Hosts))
	for _, name := range m.Hosts {
		connect, ok := known[name]
		if !ok {
			return nil, errors.Internal(errors.PhaseStartup,
				fmt.Sprintf("unknown host %q in manifest", name), nil)
		}
		bindings = append(bindings, Binding{Name: name, Connect: connect})
	}
	return bindings, nil
}
