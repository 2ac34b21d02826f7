package docsource

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/cryguy/mapengine/internal/source"
)

// maxLineBytes bounds one JSON-lines record.
const maxLineBytes = 16 << 20

// JSONLines reads one {"meta": {...}, "doc": {...}} record per line.
// Blank lines are skipped.
type JSONLines struct {
	r io.ReadCloser
}

var _ Source = (*JSONLines)(nil)

// OpenJSONLines opens a JSON-lines file; names ending in .br are brotli
// compressed.
func OpenJSONLines(path string) (*JSONLines, error) {
	rc, err := source.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	return &JSONLines{r: rc}, nil
}

// NewJSONLines reads records from r.
func NewJSONLines(r io.Reader) *JSONLines {
	return &JSONLines{r: io.NopCloser(r)}
}

// Each decodes records in file order.
func (j *JSONLines) Each(ctx context.Context, fn func(Document) error) error {
	sc := bufio.NewScanner(j.r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	line := 0
	for sc.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return err
		}
		text := sc.Bytes()
		if len(bytes.TrimSpace(text)) == 0 {
			continue
		}
		var d Document
		if err := json.Unmarshal(text, &d); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		if len(d.Body) == 0 {
			return fmt.Errorf("line %d: missing doc", line)
		}
		if err := fn(d); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("reading line %d: %w", line+1, err)
	}
	return nil
}

// Close closes the underlying reader.
func (j *JSONLines) Close() error { return j.r.Close() }
