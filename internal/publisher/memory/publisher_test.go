package memory

import (
	"context"
	"errors"
	"testing"
)

func TestPublisherStoresMessages(t *testing.T) {
	t.Parallel()

	pub := New()
	id1, err := pub.Publish(context.Background(), "profiles", map[string]string{"name": "Virat Kohli"})
	if err != nil || id1 != "memory-1" {
		t.Fatalf("unexpected publish result id=%s err=%v", id1, err)
	}
	id2, err := pub.Publish(context.Background(), "runs", "done")
	if err != nil || id2 != "memory-2" {
		t.Fatalf("unexpected publish result id=%s err=%v", id2, err)
	}

	msgs := pub.Messages()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Topic != "profiles" || msgs[1].Topic != "runs" {
		t.Fatalf("topics not recorded correctly: %+v", msgs)
	}
	if string(msgs[0].Data) != `{"name":"Virat Kohli"}` {
		t.Fatalf("unexpected encoded payload %s", msgs[0].Data)
	}

	msgs[0].Topic = "modified"
	if pub.Messages()[0].Topic == "modified" {
		t.Fatal("expected Messages() to return a copy")
	}
}

func TestPublisherFailures(t *testing.T) {
	t.Parallel()

	pub := New()
	if _, err := pub.Publish(context.Background(), "t", func() {}); err == nil {
		t.Fatal("expected unencodable payload to fail")
	}
	boom := errors.New("broker down")
	pub.FailWith(boom)
	if _, err := pub.Publish(context.Background(), "t", "x"); !errors.Is(err, boom) {
		t.Fatalf("expected injected error, got %v", err)
	}
	if len(pub.Messages()) != 0 {
		t.Fatal("failed publishes must not be recorded")
	}
}
