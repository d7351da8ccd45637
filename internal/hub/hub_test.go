package hub

import (
	"testing"
	"time"
)

func TestRegistry_Create(t *testing.T) {
	registry := NewRegistry()

	conn := registry.Create("analyze", "u1", "")
	if conn.ID == "" || conn.SessionID == "" {
		t.Errorf("Expected issued ids, got %+v", conn)
	}

	bound := registry.Create("analyze", "u1", "existing-session")
	if bound.SessionID != "existing-session" {
		t.Errorf("Expected the given session id, got %s", bound.SessionID)
	}
	if bound.ID == conn.ID {
		t.Error("Expected a fresh connection id")
	}

	if got := registry.Get(conn.ID); got != conn {
		t.Error("Get did not return the created connection")
	}
	if got := registry.Get("missing"); got != nil {
		t.Errorf("Expected nil for an unknown id, got %+v", got)
	}
}

func TestRegistry_CountByUser(t *testing.T) {
	registry := NewRegistry()
	registry.Create("analyze", "u1", "")
	registry.Create("summary", "u1", "")
	registry.Create("analyze", "u2", "")

	if got := registry.CountByUser("u1"); got != 2 {
		t.Errorf("Expected 2 for u1, got %d", got)
	}
	if got := registry.CountByUser("u3"); got != 0 {
		t.Errorf("Expected 0 for u3, got %d", got)
	}
}

func TestConnection_PublishSubscribe(t *testing.T) {
	registry := NewRegistry()
	conn := registry.Create("analyze", "u1", "")

	first := conn.Subscribe()
	second := conn.Subscribe()

	conn.Publish("hello")
	for i, ch := range []chan string{first, second} {
		select {
		case msg := <-ch:
			if msg != "hello" {
				t.Errorf("Subscriber %d: unexpected message %q", i, msg)
			}
		case <-time.After(time.Second):
			t.Fatalf("Subscriber %d never received the message", i)
		}
	}

	conn.Unsubscribe(first)
	if _, ok := <-first; ok {
		t.Error("Expected the unsubscribed channel closed")
	}

	conn.Publish("again")
	select {
	case msg := <-second:
		if msg != "again" {
			t.Errorf("Unexpected message %q", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("Remaining subscriber never received the message")
	}
}

func TestConnection_SlowSubscriberDrops(t *testing.T) {
	registry := NewRegistry()
	conn := registry.Create("analyze", "u1", "")

	ch := conn.Subscribe()
	// Fill the buffer and keep publishing; the publisher must not block.
	for i := 0; i < 200; i++ {
		conn.Publish("burst")
	}

	drained := 0
	for {
		select {
		case <-ch:
			drained++
			continue
		default:
		}
		break
	}
	if drained == 0 || drained >= 200 {
		t.Errorf("Expected a bounded number of buffered messages, got %d", drained)
	}
}

func TestRegistry_Remove(t *testing.T) {
	registry := NewRegistry()
	conn := registry.Create("analyze", "u1", "")
	ch := conn.Subscribe()

	registry.Remove(conn.ID)

	if registry.Get(conn.ID) != nil {
		t.Error("Expected the connection forgotten")
	}
	if _, ok := <-ch; ok {
		t.Error("Expected subscriber channels closed on remove")
	}

	// Subscribing after close returns a closed channel.
	late := conn.Subscribe()
	if _, ok := <-late; ok {
		t.Error("Expected a closed channel from a removed connection")
	}

	// Removing twice is harmless.
	registry.Remove(conn.ID)
}

func TestRegistry_Close(t *testing.T) {
	registry := NewRegistry()
	a := registry.Create("analyze", "u1", "")
	b := registry.Create("analyze", "u2", "")
	chA := a.Subscribe()
	chB := b.Subscribe()

	registry.Close()

	if registry.Get(a.ID) != nil || registry.Get(b.ID) != nil {
		t.Error("Expected all connections forgotten")
	}
	if _, ok := <-chA; ok {
		t.Error("Expected subscriber A closed")
	}
	if _, ok := <-chB; ok {
		t.Error("Expected subscriber B closed")
	}
}
