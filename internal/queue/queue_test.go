package queue

import (
	"context"
	"testing"
	"time"
)

func TestSerializeRoundTrip(t *testing.T) {
	msg := Message{Type: TypeAttendance, Body: []byte("att-123")}
	got, err := deserialize(serialize(msg))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Type != msg.Type || string(got.Body) != string(msg.Body) {
		t.Errorf("round trip = %+v, want %+v", got, msg)
	}
}

func TestDeserializeBodyWithSeparator(t *testing.T) {
	// Only the first separator splits; the body may contain more.
	got, err := deserialize("attendance|a|b|c")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Type != "attendance" || string(got.Body) != "a|b|c" {
		t.Errorf("got %+v", got)
	}
}

func TestDeserializeWithoutType(t *testing.T) {
	got, err := deserialize("raw-payload")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Type != "" || string(got.Body) != "raw-payload" {
		t.Errorf("got %+v", got)
	}
}

func TestInMemoryPublishConsume(t *testing.T) {
	q := NewInMemory(2)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := q.Publish(ctx, Message{Type: TypeAttendance, Body: []byte("att-1")}); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	msgs, err := q.Consume(ctx)
	if err != nil {
		t.Fatalf("consume failed: %v", err)
	}
	select {
	case msg := <-msgs:
		if string(msg.Body) != "att-1" {
			t.Errorf("body = %q", msg.Body)
		}
	case <-time.After(time.Second):
		t.Fatal("expected a message")
	}
}

func TestInMemoryPublishHonorsContext(t *testing.T) {
	q := NewInMemory(0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := q.Publish(ctx, Message{Type: TypeAttendance}); err == nil {
		t.Error("publish on canceled context should fail")
	}
}
