// Package docsource feeds documents and their metadata to the map engine
// from a SQLite table or a JSON-lines file.
package docsource

import (
	"context"
	"encoding/json"

	"github.com/cryguy/mapengine/internal/core"
)

// Document is one mutation to map: its metadata and JSON body.
type Document struct {
	Meta core.Metadata   `json:"meta"`
	Body json.RawMessage `json:"doc"`
}

// Source yields documents in change order.
type Source interface {
	// Each calls fn for every document until fn returns an error, the
	// context is done or the source is exhausted.
	Each(ctx context.Context, fn func(Document) error) error
	Close() error
}
