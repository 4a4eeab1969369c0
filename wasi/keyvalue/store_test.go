package keyvalue

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if err := s.Set(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, ok, err := s.Get(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("Get = %v, %v, %v", got, ok, err)
	}
	if string(got) != "v" {
		t.Errorf("Get = %q, want %q", got, "v")
	}

	_, ok, _ = s.Get(ctx, "absent")
	if ok {
		t.Error("Get on absent key should miss")
	}
}

func TestMemoryStoreTTL(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Now()
	s.now = func() time.Time { return now }

	if err := s.Set(ctx, "k", []byte("v"), 60*time.Second); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if _, ok, _ := s.Get(ctx, "k"); !ok {
		t.Fatal("entry should be live before expiry")
	}

	now = now.Add(61 * time.Second)
	if _, ok, _ := s.Get(ctx, "k"); ok {
		t.Error("entry should be evicted after TTL")
	}
	if s.Len() != 0 {
		t.Error("expired entry should be dropped on read")
	}
}

func TestMemoryStoreDeleteIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	s.Set(ctx, "k", []byte("v"), 0)

	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := s.Delete(ctx, "k"); err != nil {
		t.Errorf("second Delete should be a no-op, got %v", err)
	}
}

func TestMemoryStoreCopiesValues(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	buf := []byte("original")
	s.Set(ctx, "k", buf, 0)
	buf[0] = 'X'

	got, _, _ := s.Get(ctx, "k")
	if string(got) != "original" {
		t.Error("store must not alias caller buffers")
	}

	got[0] = 'Y'
	again, _, _ := s.Get(ctx, "k")
	if string(again) != "original" {
		t.Error("Get must not alias stored bytes")
	}
}

func TestConnectWithSelectsBackend(t *testing.T) {
	ctx := context.Background()

	if _, err := ConnectWith(ctx, Options{URL: "mem:"}); err != nil {
		t.Errorf("mem: should connect, got %v", err)
	}
	if _, err := ConnectWith(ctx, Options{URL: "redis://localhost:6379"}); err == nil {
		t.Error("unlinked driver should fail to connect")
	}
}
