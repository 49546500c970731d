package memory

import (
	"context"
	"encoding/json"
	"testing"

	"parley/internal/infra/bus"
)

type sink struct {
	events []bus.Event
}

func (s *sink) Deliver(ev bus.Event) { s.events = append(s.events, ev) }

func TestPublishDeliversInOrder(t *testing.T) {
	b := NewBus()
	received := &sink{}
	b.Attach(received)

	ctx := context.Background()
	if err := b.Publish(ctx, "user:alice:conversations", "new", map[string]string{"id": "c1"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := b.Publish(ctx, "conversation:c1", "update", map[string]string{"id": "m1"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if len(received.events) != 2 {
		t.Fatalf("delivered %d events, want 2", len(received.events))
	}
	first := received.events[0]
	if first.Channel != "user:alice:conversations" || first.Event != "new" {
		t.Fatalf("first event = %+v", first)
	}
	var payload map[string]string
	if err := json.Unmarshal(first.Payload, &payload); err != nil {
		t.Fatalf("payload unmarshal: %v", err)
	}
	if payload["id"] != "c1" {
		t.Fatalf("payload = %v", payload)
	}
	if received.events[1].Event != "update" {
		t.Fatalf("events out of order: %+v", received.events)
	}
}

func TestPublishReachesAllHandlers(t *testing.T) {
	b := NewBus()
	a, c := &sink{}, &sink{}
	b.Attach(a)
	b.Attach(c)
	b.Attach(nil) // ignored

	if err := b.Publish(context.Background(), "conversation:c1", "new", "payload"); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(a.events) != 1 || len(c.events) != 1 {
		t.Fatalf("handlers got %d and %d events, want 1 each", len(a.events), len(c.events))
	}
}

func TestPublishRejectsUnmarshalablePayload(t *testing.T) {
	b := NewBus()
	received := &sink{}
	b.Attach(received)

	if err := b.Publish(context.Background(), "conversation:c1", "new", func() {}); err == nil {
		t.Fatalf("expected marshal error for func payload")
	}
	if len(received.events) != 0 {
		t.Fatalf("failed publish still delivered %d events", len(received.events))
	}
}
