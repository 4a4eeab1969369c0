package otel

import (
	"context"
	"testing"
)

func TestConnectStdoutFallback(t *testing.T) {
	p, err := ConnectWith(context.Background(), Options{ServiceName: "yetti-test"})
	if err != nil {
		t.Fatalf("ConnectWith() error = %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestHostName(t *testing.T) {
	h := NewHost(nil)
	if h.Name() != Name {
		t.Errorf("Name() = %q, want %q", h.Name(), Name)
	}
}
