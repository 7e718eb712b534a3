package memory

import (
	"bytes"
	"context"
	"testing"
)

func TestBlobStorePutObjectCopiesData(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	payload := []byte("%PDF-1.3")
	uri, err := store.PutObject(context.Background(), "Virat_Kohli.pdf", "application/pdf", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("PutObject() error = %v", err)
	}
	if uri != "memory://Virat_Kohli.pdf" {
		t.Fatalf("unexpected uri %s", uri)
	}
	payload[0] = 'X'
	obj, ok := store.Get("Virat_Kohli.pdf")
	if !ok {
		t.Fatal("object not stored")
	}
	if string(obj.Data) != "%PDF-1.3" {
		t.Fatalf("expected stored copy to be immutable, got %q", obj.Data)
	}
	if obj.ContentType != "application/pdf" {
		t.Fatalf("unexpected content type %q", obj.ContentType)
	}
}

func TestBlobStorePaths(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	for _, p := range []string{"images/b.jpg", "a.pdf"} {
		if _, err := store.PutObject(context.Background(), p, "", bytes.NewReader(nil)); err != nil {
			t.Fatalf("PutObject(%s) error = %v", p, err)
		}
	}
	got := store.Paths()
	if len(got) != 2 || got[0] != "a.pdf" || got[1] != "images/b.jpg" {
		t.Fatalf("unexpected paths %v", got)
	}
}
