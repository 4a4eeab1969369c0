package vault

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/augentic/yetti/errors"
)

func writeSecrets(t *testing.T, name string, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestResolveEnv(t *testing.T) {
	t.Setenv("VAULT_TEST_TOKEN", "s3cret")
	v := New("")

	got, err := v.Resolve(context.Background(), "env:VAULT_TEST_TOKEN")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got != "s3cret" {
		t.Errorf("Resolve() = %q, want %q", got, "s3cret")
	}

	if _, err := v.Resolve(context.Background(), "env:VAULT_TEST_UNSET"); err == nil {
		t.Error("expected error for unset variable")
	}
}

func TestResolveFile(t *testing.T) {
	path := writeSecrets(t, "secrets.yaml", "api-key: abc123\ndb-pass: hunter2\n")
	v := New(path)

	got, err := v.Resolve(context.Background(), "file:#api-key")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got != "abc123" {
		t.Errorf("Resolve() = %q, want %q", got, "abc123")
	}

	// Explicit path beats the default file.
	other := writeSecrets(t, "other.yaml", "api-key: xyz789\n")
	got, err = v.Resolve(context.Background(), "file:"+other+"#api-key")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got != "xyz789" {
		t.Errorf("Resolve() = %q, want %q", got, "xyz789")
	}
}

func TestResolveMissingKey(t *testing.T) {
	path := writeSecrets(t, "secrets.yaml", "api-key: abc123\n")
	v := New(path)

	_, err := v.Resolve(context.Background(), "file:#missing")
	var e *errors.Error
	if !stderrors.As(err, &e) || e.Kind != errors.KindNotFound {
		t.Errorf("error = %v, want kind %q", err, errors.KindNotFound)
	}
}

func TestResolveMalformedRef(t *testing.T) {
	v := New("")
	for _, ref := range []string{"plain", "s3:bucket/key", "file:path-without-key"} {
		if _, err := v.Resolve(context.Background(), ref); err == nil {
			t.Errorf("Resolve(%q) succeeded, want error", ref)
		}
	}
}
