package keyvalue

import (
	"context"
	"fmt"
	"strings"

	"github.com/augentic/yetti/env"
	"github.com/augentic/yetti/errors"
)

// Options configures the key-value backend.
type Options struct {
	// URL selects the backing store. "mem:" (the default) is the
	// in-process store; external stores plug in through ConnectWith.
	URL string `env:"REDIS_URL" default:"mem:"`
}

// OptionsFromEnv populates Options from the process environment.
func OptionsFromEnv() (Options, error) {
	var opts Options
	err := env.Bind(&opts)
	return opts, err
}

// Connect connects using options from the environment.
func Connect(ctx context.Context) (Store, error) {
	opts, err := OptionsFromEnv()
	if err != nil {
		return nil, err
	}
	return ConnectWith(ctx, opts)
}

// ConnectWith connects to the store selected by opts.
func ConnectWith(_ context.Context, opts Options) (Store, error) {
	switch {
	case opts.URL == "" || strings.HasPrefix(opts.URL, "mem:"):
		return NewMemoryStore(), nil
	default:
		return nil, errors.BackendUnavailable(Name,
			fmt.Errorf("no driver linked for %q", opts.URL))
	}
}
