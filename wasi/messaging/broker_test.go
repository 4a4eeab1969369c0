package messaging

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/augentic/yetti/capabilities"
)

func TestPublishSubscribe(t *testing.T) {
	b := NewMemoryBroker()
	defer b.Close()

	got := make(chan string, 4)
	cancel, err := b.Subscribe(context.Background(), func(_ context.Context, topic string, msg capabilities.Message) {
		got <- topic + ":" + string(msg.Payload)
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	defer cancel()

	if err := b.Publish(context.Background(), "realtime-r9k.v1", capabilities.NewMessage([]byte("hi"))); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case v := <-got:
		if v != "realtime-r9k.v1:hi" {
			t.Errorf("delivery = %q", v)
		}
	case <-time.After(time.Second):
		t.Fatal("no delivery")
	}
}

func TestDeliveryOrder(t *testing.T) {
	b := NewMemoryBroker()
	defer b.Close()

	var mu sync.Mutex
	var order []string
	done := make(chan struct{})
	cancel, err := b.Subscribe(context.Background(), func(_ context.Context, topic string, _ capabilities.Message) {
		mu.Lock()
		order = append(order, topic)
		n := len(order)
		mu.Unlock()
		if n == 3 {
			close(done)
		}
	})
	if err != nil {
		t.Fatal(err)
	}
	defer cancel()

	for _, topic := range []string{"a", "b", "c"} {
		if err := b.Publish(context.Background(), topic, capabilities.NewMessage(nil)); err != nil {
			t.Fatal(err)
		}
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("deliveries incomplete")
	}
	mu.Lock()
	defer mu.Unlock()
	for i, want := range []string{"a", "b", "c"} {
		if order[i] != want {
			t.Errorf("order[%d] = %q, want %q", i, order[i], want)
		}
	}
}

func TestCancelStopsDelivery(t *testing.T) {
	b := NewMemoryBroker()
	defer b.Close()

	got := make(chan struct{}, 1)
	cancel, err := b.Subscribe(context.Background(), func(context.Context, string, capabilities.Message) {
		got <- struct{}{}
	})
	if err != nil {
		t.Fatal(err)
	}
	cancel()
	cancel() // idempotent

	if err := b.Publish(context.Background(), "t", capabilities.NewMessage(nil)); err != nil {
		t.Fatal(err)
	}
	select {
	case <-got:
		t.Error("delivery after cancel")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublishBackpressureDoesNotBlockBroker(t *testing.T) {
	b := NewMemoryBroker()
	defer b.Close()

	release := make(chan struct{})
	cancel, err := b.Subscribe(context.Background(), func(context.Context, string, capabilities.Message) {
		<-release
	})
	if err != nil {
		t.Fatal(err)
	}
	defer close(release)

	// one delivery stuck in the handler plus a full queue behind it
	for i := 0; i < 65; i++ {
		if err := b.Publish(context.Background(), "t", capabilities.NewMessage(nil)); err != nil {
			t.Fatal(err)
		}
	}

	published := make(chan error, 1)
	go func() {
		published <- b.Publish(context.Background(), "t", capabilities.NewMessage(nil))
	}()

	// the broker must stay usable while that publish is suspended
	cancelled := make(chan struct{})
	go func() {
		cancel()
		close(cancelled)
	}()
	select {
	case <-cancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("cancel blocked behind a suspended publish")
	}

	got := make(chan struct{}, 1)
	cancel2, err := b.Subscribe(context.Background(), func(context.Context, string, capabilities.Message) {
		got <- struct{}{}
	})
	if err != nil {
		t.Fatal(err)
	}
	defer cancel2()

	select {
	case err := <-published:
		if err != nil {
			t.Errorf("suspended Publish() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("publish still suspended after its subscriber was cancelled")
	}

	if err := b.Publish(context.Background(), "after", capabilities.NewMessage(nil)); err != nil {
		t.Fatal(err)
	}
	select {
	case <-got:
	case <-time.After(time.Second):
		t.Fatal("no delivery to the new subscriber")
	}
}

func TestPublishHonorsContext(t *testing.T) {
	b := NewMemoryBroker()
	defer b.Close()

	release := make(chan struct{})
	cancel, err := b.Subscribe(context.Background(), func(context.Context, string, capabilities.Message) {
		<-release
	})
	if err != nil {
		t.Fatal(err)
	}
	defer cancel()
	defer close(release)

	for i := 0; i < 65; i++ {
		if err := b.Publish(context.Background(), "t", capabilities.NewMessage(nil)); err != nil {
			t.Fatal(err)
		}
	}

	ctx, stop := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer stop()
	if err := b.Publish(ctx, "t", capabilities.NewMessage(nil)); err != context.DeadlineExceeded {
		t.Errorf("Publish() error = %v, want context.DeadlineExceeded", err)
	}
}

func TestConnectWithSelectsBroker(t *testing.T) {
	if _, err := ConnectWith(context.Background(), Options{URL: "mem:"}); err != nil {
		t.Errorf("mem broker: %v", err)
	}
	if _, err := ConnectWith(context.Background(), Options{URL: "nats://localhost:4222"}); err == nil {
		t.Error("expected error for unlinked driver")
	}
}

func TestReplyError(t *testing.T) {
	cases := map[string]string{
		`{"error":"unhandled topic: billing.v2"}`: "unhandled topic: billing.v2",
		`{"error":""}`: "",
		`{}`:           "",
		`not json`:     "",
		``:             "",
	}
	for reply, want := range cases {
		if got := ReplyError([]byte(reply)); got != want {
			t.Errorf("ReplyError(%q) = %q, want %q", reply, got, want)
		}
	}
}
