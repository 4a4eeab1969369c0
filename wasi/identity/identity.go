// Package identity implements the identity capability: named credential
// entries resolved to signed access tokens on demand.
package identity

import (
	"context"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"gopkg.in/yaml.v3"

	"github.com/augentic/yetti/env"
	"github.com/augentic/yetti/errors"
)

// Name is the capability name.
const Name = "wasi:identity/credentials"

// Options configures the identity backend.
type Options struct {
	// File is a YAML manifest of identity entries.
	File string `env:"IDENTITY_FILE"`

	// SigningKey signs issued tokens. Required when any entry omits its
	// own secret.
	SigningKey string `env:"IDENTITY_SIGNING_KEY"`

	Issuer string `env:"IDENTITY_ISSUER" default:"yetti"`
}

// Entry describes one identity the registry can issue tokens for.
type Entry struct {
	Subject string        `yaml:"subject"`
	Scopes  []string      `yaml:"scopes"`
	Secret  string        `yaml:"secret"`
	TTL     time.Duration `yaml:"ttl"`
}

// Registry resolves identities to access tokens. Safe for concurrent use
// once built; entries are immutable after connect.
type Registry struct {
	entries map[string]Entry
	signing []byte
	issuer  string
	now     func() time.Time
}

// NewRegistry builds a registry from explicit entries.
func NewRegistry(entries map[string]Entry, signingKey, issuer string) *Registry {
	copied := make(map[string]Entry, len(entries))
	for k, v := range entries {
		copied[k] = v
	}
	return &Registry{
		entries: copied,
		signing: []byte(signingKey),
		issuer:  issuer,
		now:     time.Now,
	}
}

// Connect loads the registry from the environment.
func Connect(ctx context.Context) (*Registry, error) {
	var opts Options
	if err := env.Bind(&opts); err != nil {
		return nil, err
	}
	return ConnectWith(ctx, opts)
}

// ConnectWith loads the registry using opts.
func ConnectWith(_ context.Context, opts Options) (*Registry, error) {
	entries := make(map[string]Entry)
	if opts.File != "" {
		raw, err := os.ReadFile(opts.File)
		if err != nil {
			return nil, errors.BackendUnavailable(Name, err)
		}
		if err := yaml.Unmarshal(raw, &entries); err != nil {
			return nil, errors.BackendUnavailable(Name, err)
		}
	}
	return NewRegistry(entries, opts.SigningKey, opts.Issuer), nil
}

// AccessToken returns a signed token for the named identity. Fails on
// unknown identity or when no signing secret is available.
func (r *Registry) AccessToken(_ context.Context, identity string) (string, error) {
	entry, ok := r.entries[identity]
	if !ok {
		return "", errors.NotFound(Name, "identity", identity)
	}

	secret := r.signing
	if entry.Secret != "" {
		secret = []byte(entry.Secret)
	}
	if len(secret) == 0 {
		return "", errors.Internal(errors.PhaseDispatch,
			"no signing secret for identity "+identity, nil)
	}

	ttl := entry.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}

	now := r.now()
	claims := jwt.MapClaims{
		"iss": r.issuer,
		"sub": entry.Subject,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	if len(entry.Scopes) > 0 {
		claims["scope"] = entry.Scopes
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", errors.Internal(errors.PhaseDispatch, "sign access token", err)
	}
	return signed, nil
}

// Identities returns the registered identity names.
func (r *Registry) Identities() []string {
	out := make([]string, 0, len(r.entries))
	for k := range r.entries {
		out = append(out, k)
	}
	return out
}
