package identity

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/augentic/yetti/errors"
)

func testRegistry() *Registry {
	r := NewRegistry(map[string]Entry{
		"detector": {
			Subject: "svc:detector",
			Scopes:  []string{"jobs:read", "jobs:write"},
			TTL:     30 * time.Minute,
		},
		"scoped": {
			Subject: "svc:scoped",
			Secret:  "entry-secret",
		},
	}, "registry-secret", "yetti")
	r.now = func() time.Time { return time.Unix(1700000000, 0) }
	return r
}

func TestAccessToken(t *testing.T) {
	r := testRegistry()

	signed, err := r.AccessToken(context.Background(), "detector")
	if err != nil {
		t.Fatalf("AccessToken() error = %v", err)
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(signed, claims, func(*jwt.Token) (any, error) {
		return []byte("registry-secret"), nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithTimeFunc(func() time.Time {
		return time.Unix(1700000000, 0)
	}))
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if !token.Valid {
		t.Fatal("token not valid")
	}
	if got := claims["sub"]; got != "svc:detector" {
		t.Errorf("sub = %v, want svc:detector", got)
	}
	if got := claims["iss"]; got != "yetti" {
		t.Errorf("iss = %v, want yetti", got)
	}
	exp, _ := claims["exp"].(float64)
	iat, _ := claims["iat"].(float64)
	if exp-iat != (30 * time.Minute).Seconds() {
		t.Errorf("token lifetime = %vs, want 1800s", exp-iat)
	}
}

func TestAccessTokenEntrySecret(t *testing.T) {
	r := testRegistry()

	signed, err := r.AccessToken(context.Background(), "scoped")
	if err != nil {
		t.Fatalf("AccessToken() error = %v", err)
	}

	// The entry's own secret wins over the registry signing key.
	_, err = jwt.Parse(signed, func(*jwt.Token) (any, error) {
		return []byte("entry-secret"), nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithTimeFunc(func() time.Time {
		return time.Unix(1700000000, 0)
	}))
	if err != nil {
		t.Fatalf("parse with entry secret: %v", err)
	}
}

func TestAccessTokenUnknownIdentity(t *testing.T) {
	r := testRegistry()

	_, err := r.AccessToken(context.Background(), "missing")
	if err == nil {
		t.Fatal("expected error for unknown identity")
	}
	var e *errors.Error
	if !stderrors.As(err, &e) || e.Kind != errors.KindNotFound {
		t.Errorf("error = %v, want kind %q", err, errors.KindNotFound)
	}
}

func TestAccessTokenNoSecret(t *testing.T) {
	r := NewRegistry(map[string]Entry{
		"bare": {Subject: "svc:bare"},
	}, "", "yetti")

	if _, err := r.AccessToken(context.Background(), "bare"); err == nil {
		t.Fatal("expected error when no signing secret is available")
	}
}
