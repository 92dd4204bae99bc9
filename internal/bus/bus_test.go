package bus

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestPublishConsumeRoundTrip(t *testing.T) {
	b := NewMessageBus(10)

	in := InboundMessage{Channel: "cli", SenderID: "user", ChatID: "default", Content: "hello"}
	if !b.PublishInbound(in) {
		t.Fatal("publish on empty queue should not drop")
	}

	got, ok := b.ConsumeInbound(context.Background())
	if !ok {
		t.Fatal("consume should return the published message")
	}
	if got.Content != "hello" || got.Channel != "cli" {
		t.Errorf("got %+v, want the published message", got)
	}
	if got.SessionKey() != "cli:default" {
		t.Errorf("SessionKey() = %q, want %q", got.SessionKey(), "cli:default")
	}
}

func TestOverflowDropsAndCounts(t *testing.T) {
	b := NewMessageBus(2)

	for i := 0; i < 2; i++ {
		if !b.PublishInbound(InboundMessage{Channel: "cli", ChatID: "default", Content: "m"}) {
			t.Fatalf("publish %d dropped below capacity", i)
		}
	}
	if b.PublishInbound(InboundMessage{Channel: "cli", ChatID: "default", Content: "overflow"}) {
		t.Error("third publish should be dropped on a capacity-2 queue")
	}

	dropped, _ := b.Dropped()
	if dropped != 1 {
		t.Errorf("inbound dropped = %d, want 1", dropped)
	}
	if b.InboundSize() > 2 {
		t.Errorf("queue size %d exceeds capacity", b.InboundSize())
	}
}

// Every accepted message is received by exactly one consumer.
func TestConservationAcrossConsumers(t *testing.T) {
	b := NewMessageBus(100)

	const total = 100
	for i := 0; i < total; i++ {
		if !b.PublishInbound(InboundMessage{Channel: "cli", ChatID: "default", Content: "x"}) {
			t.Fatalf("unexpected drop at %d", i)
		}
	}

	var mu sync.Mutex
	received := 0
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				_, ok := b.ConsumeInboundTimeout(50 * time.Millisecond)
				if !ok {
					return
				}
				mu.Lock()
				received++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if received != total {
		t.Errorf("received %d messages, want %d (no loss, no duplication)", received, total)
	}
}

func TestConsumeRespectsContext(t *testing.T) {
	b := NewMessageBus(1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, ok := b.ConsumeInbound(ctx)
	if ok {
		t.Error("consume on empty queue should fail after ctx timeout")
	}
	if time.Since(start) > time.Second {
		t.Error("consume did not observe context cancellation promptly")
	}
}

func TestOutboundQueue(t *testing.T) {
	b := NewMessageBus(2)
	b.PublishOutbound(OutboundMessage{Channel: "cli", ChatID: "default", Content: "reply"})

	msg, ok := b.SubscribeOutboundTimeout(50 * time.Millisecond)
	if !ok || msg.Content != "reply" {
		t.Fatalf("SubscribeOutbound = %+v, %v", msg, ok)
	}
}
