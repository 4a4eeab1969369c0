// Package vault implements the vault capability: resolving secret
// references to secret values. Values are never logged; log lines carry
// only the reference.
package vault

import (
	"context"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/augentic/yetti/env"
	"github.com/augentic/yetti/errors"
)

// Name is the capability name.
const Name = "wasi:vault/secrets"

// Options configures the vault backend.
type Options struct {
	// File is a YAML file of secret entries, used by file: references
	// that omit their own path.
	File string `env:"VAULT_FILE"`
}

// Vault resolves secret references. A reference is one of:
//
//	env:NAME        value of the environment variable NAME
//	file:path#key   entry key in the YAML file at path
//	file:#key       entry key in the configured default file
//
// Safe for concurrent use; file contents are cached per path.
type Vault struct {
	defaultFile string

	mu    sync.Mutex
	files map[string]map[string]string
}

// New creates a vault with the given default file. The file is read
// lazily on first use.
func New(defaultFile string) *Vault {
	return &Vault{
		defaultFile: defaultFile,
		files:       make(map[string]map[string]string),
	}
}

// Connect loads the vault from the environment.
func Connect(ctx context.Context) (*Vault, error) {
	var opts Options
	if err := env.Bind(&opts); err != nil {
		return nil, err
	}
	return ConnectWith(ctx, opts)
}

// ConnectWith builds the vault using opts.
func ConnectWith(_ context.Context, opts Options) (*Vault, error) {
	return New(opts.File), nil
}

// Resolve returns the secret value for ref.
func (v *Vault) Resolve(_ context.Context, ref string) (string, error) {
	scheme, rest, ok := strings.Cut(ref, ":")
	if !ok {
		return "", errors.Decode("secret reference "+ref, nil)
	}
	switch scheme {
	case "env":
		value, found := os.LookupEnv(rest)
		if !found {
			return "", errors.NotFound(Name, "secret", ref)
		}
		return value, nil
	case "file":
		path, key, ok := strings.Cut(rest, "#")
		if !ok || key == "" {
			return "", errors.Decode("secret reference "+ref, nil)
		}
		if path == "" {
			path = v.defaultFile
		}
		if path == "" {
			return "", errors.NotFound(Name, "secret", ref)
		}
		entries, err := v.load(path)
		if err != nil {
			return "", err
		}
		value, found := entries[key]
		if !found {
			return "", errors.NotFound(Name, "secret", ref)
		}
		return value, nil
	default:
		return "", errors.Decode("secret reference "+ref, nil)
	}
}

func (v *Vault) load(path string) (map[string]string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if entries, ok := v.files[path]; ok {
		return entries, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.BackendUnavailable(Name, err)
	}
	entries := make(map[string]string)
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return nil, errors.BackendUnavailable(Name, err)
	}
	v.files[path] = entries
	return entries, nil
}
