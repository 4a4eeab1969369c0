// Package config implements the configuration capability: an immutable
// key/value snapshot taken at connect time and exposed to guests.
package config

import (
	"context"
	"os"
	"strings"

	"github.com/tetratelabs/wazero/api"

	"github.com/augentic/yetti/env"
	"github.com/augentic/yetti/errors"
	"github.com/augentic/yetti/host"
	"github.com/augentic/yetti/link"
	"github.com/augentic/yetti/wasi/abi"
)

// Name is the capability name.
const Name = "wasi:config/store"

// Options configures the snapshot source.
type Options struct {
	// Prefix selects which environment variables are exposed to guests.
	// "CFG_API_KEY" becomes the guest-visible key "api_key".
	Prefix string `env:"CFG_PREFIX" default:"CFG_"`
}

// Vars is the immutable configuration snapshot.
type Vars struct {
	values map[string]string
}

// NewVars builds a snapshot from explicit values.
func NewVars(values map[string]string) *Vars {
	copied := make(map[string]string, len(values))
	for k, v := range values {
		copied[k] = v
	}
	return &Vars{values: copied}
}

// Get returns the value for key. Unknown keys fail.
func (v *Vars) Get(_ context.Context, key string) (string, error) {
	val, ok := v.values[key]
	if !ok {
		return "", errors.NotFound(Name, "configuration key", key)
	}
	return val, nil
}

// Keys returns the snapshot's keys.
func (v *Vars) Keys() []string {
	out := make([]string, 0, len(v.values))
	for k := range v.values {
		out = append(out, k)
	}
	return out
}

// Connect builds the snapshot from prefixed environment variables.
func Connect(ctx context.Context) (*Vars, error) {
	var opts Options
	if err := env.Bind(&opts); err != nil {
		return nil, err
	}
	return ConnectWith(ctx, opts)
}

// ConnectWith builds the snapshot using opts.
func ConnectWith(_ context.Context, opts Options) (*Vars, error) {
	values := make(map[string]string)
	for _, kv := range os.Environ() {
		name, val, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, opts.Prefix) {
			continue
		}
		key := strings.ToLower(strings.TrimPrefix(name, opts.Prefix))
		values[key] = val
	}
	return &Vars{values: values}, nil
}

// Ctx is the per-request view for this capability.
type Ctx struct {
	Vars *Vars
}

// CtxKey is the typed store-context slot for this capability.
var CtxKey = host.NewKey[*Ctx](Name)

// Config is the configuration capability host.
type Config struct {
	vars *Vars
}

// NewHost creates the config host over a snapshot.
func NewHost(vars *Vars) *Config {
	return &Config{vars: vars}
}

// Name returns the capability name.
func (h *Config) Name() string { return Name }

// Data returns the slot accessor handed to Link.
func (h *Config) Data() host.DataFunc { return host.Data(CtxKey) }

// Fill returns the store-context filler for this host.
func (h *Config) Fill() host.Filler {
	return func(sc *host.StoreContext) {
		host.Put(sc, CtxKey, &Ctx{Vars: h.vars})
	}
}

// Link wires the get function into the shared linker.
func (h *Config) Link(l *link.Linker, data host.DataFunc) error {
	params, results := abi.Sig(4)
	return l.DefineFunc(Name, link.Func{
		Name:    "get",
		Params:  params,
		Results: results,
		Call: api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
			sc, _ := link.StoreFrom(ctx).(*host.StoreContext)
			if sc == nil {
				abi.Return(stack, abi.StatusError)
				return
			}
			c, _ := data(sc).(*Ctx)
			key, ok := abi.ReadString(mod, abi.I32(stack, 0), abi.I32(stack, 1))
			if c == nil || !ok {
				abi.Return(stack, abi.StatusError)
				return
			}
			val, err := c.Vars.Get(ctx, key)
			if err != nil {
				abi.Return(stack, abi.StatusMiss)
				return
			}
			abi.Return(stack, abi.WriteResult(mod, abi.I32(stack, 2), abi.I32(stack, 3), []byte(val)))
		}),
	})
}
