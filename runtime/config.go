package runtime

import (
	"context"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/augentic/yetti/errors"
	"github.com/augentic/yetti/host"
	"github.com/augentic/yetti/link"
)

// Binding declares one capability host for assembly. Connect builds the
// host, including its backend connection; bindings connect concurrently
// but link in declaration order.
type Binding struct {
	Name    string
	Connect func(ctx context.Context) (host.Host, error)
}

// Config declares a complete runtime: the component and its capability
// hosts.
type Config struct {
	// Main marks the program entry configuration: Run exits when the
	// first Server host stops instead of treating it as recoverable.
	Main bool

	Component *link.Component

	Hosts []Binding
}

// Manifest is the YAML runtime manifest read by cmd/yetti. It selects
// which capability hosts to enable and where they listen.
type Manifest struct {
	Component string   `yaml:"component"`
	Hosts     []string `yaml:"hosts"`
	HTTPAddr  string   `yaml:"http_addr"`
	WSAddr    string   `yaml:"ws_addr"`
	EnvPrefix string   `yaml:"env_prefix"`
}

// LoadConfig reads a YAML runtime manifest.
func LoadConfig(path string) (*Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Internal(errors.PhaseStartup, "read manifest "+path, err)
	}
	var m Manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, errors.Internal(errors.PhaseStartup, "parse manifest "+path, err)
	}
	return &m, nil
}
