package dossier

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"time"
)

// Fetcher retrieves a document body through the shared throttled client.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string, params url.Values) ([]byte, error)
}

// FetchJSON fetches rawURL through f and decodes the body into out. Fetch
// errors are returned unchanged; a body that does not decode is an
// ExtractionMismatch attributed to source.
func FetchJSON(ctx context.Context, f Fetcher, source, rawURL string, params url.Values, out any) error {
	body, err := f.Fetch(ctx, rawURL, params)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &ExtractionMismatch{Source: source, Reason: fmt.Sprintf("decode %s: %v", rawURL, err)}
	}
	return nil
}

// Transport performs a single outbound request with no retry or throttling.
type Transport interface {
	Get(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// HeadlessDetector decides whether a plain response should be re-fetched
// with a browser.
type HeadlessDetector interface {
	ShouldPromote(resp FetchResponse) bool
}

// BlobStore writes artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Publisher pushes completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// MetadataStore persists the name-keyed metadata snapshot.
type MetadataStore interface {
	Load(ctx context.Context) (map[string]Record, error)
	Upsert(ctx context.Context, records []Record) error
}

// Hasher computes digests for artifacts.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
