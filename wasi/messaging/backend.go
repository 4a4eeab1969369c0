package messaging

import (
	"context"
	"fmt"
	"strings"

	"github.com/augentic/yetti/env"
	"github.com/augentic/yetti/errors"
)

// Options configures the messaging backend.
type Options struct {
	// URL selects the broker. "mem:" (the default) is the in-process
	// broker; external brokers plug in through ConnectWith.
	URL string `env:"NATS_URL" default:"mem:"`
}

// OptionsFromEnv populates Options from the process environment.
func OptionsFromEnv() (Options, error) {
	var opts Options
	err := env.Bind(&opts)
	return opts, err
}

// Connect connects using options from the environment.
func Connect(ctx context.Context) (Broker, error) {
	opts, err := OptionsFromEnv()
	if err != nil {
		return nil, err
	}
	return ConnectWith(ctx, opts)
}

// ConnectWith connects to the broker selected by opts.
func ConnectWith(_ context.Context, opts Options) (Broker, error) {
	switch {
	case opts.URL == "" || strings.HasPrefix(opts.URL, "mem:"):
		return NewMemoryBroker(), nil
	default:
		return nil, errors.BackendUnavailable(Name,
			fmt.Errorf("no driver linked for %q", opts.URL))
	}
}
