package docsource

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/cryguy/mapengine/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, s Source) []Document {
	t.Helper()
	var out []Document
	require.NoError(t, s.Each(context.Background(), func(d Document) error {
		out = append(out, d)
		return nil
	}))
	return out
}

func TestSQLiteOrderAndMetadata(t *testing.T) {
	s, err := OpenSQLiteMemory()
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.Put(ctx, Document{
		Meta: core.Metadata{ID: "b", Cas: 1 << 40, BySeqno: 2, RevSeqno: 3, Flags: 9, Expiration: 10, Nru: -1, LockTime: 4},
		Body: []byte(`{"value": 2}`),
	}))
	require.NoError(t, s.Put(ctx, Document{Meta: core.Metadata{ID: "a", BySeqno: 1}, Body: []byte(`{"value": 1}`)}))

	docs := collect(t, s)
	require.Len(t, docs, 2)
	assert.Equal(t, "a", docs[0].Meta.ID)
	assert.Equal(t, core.Metadata{ID: "b", Cas: 1 << 40, BySeqno: 2, RevSeqno: 3, Flags: 9, Expiration: 10, Nru: -1, LockTime: 4}, docs[1].Meta)
	assert.JSONEq(t, `{"value": 2}`, string(docs[1].Body))
}

func TestSQLitePutReplaces(t *testing.T) {
	s, err := OpenSQLiteMemory()
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.Put(ctx, Document{Meta: core.Metadata{ID: "a"}, Body: []byte(`1`)}))
	require.NoError(t, s.Put(ctx, Document{Meta: core.Metadata{ID: "a", RevSeqno: 2}, Body: []byte(`2`)}))

	docs := collect(t, s)
	require.Len(t, docs, 1)
	assert.Equal(t, "2", string(docs[0].Body))
}

func TestSQLiteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docs.db")
	s, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, s.Put(context.Background(), Document{Meta: core.Metadata{ID: "x"}, Body: []byte(`{}`)}))
	require.NoError(t, s.Close())

	s, err = OpenSQLite(path)
	require.NoError(t, err)
	defer s.Close()
	assert.Len(t, collect(t, s), 1)
}

func TestEachStopsOnCallbackError(t *testing.T) {
	s, err := OpenSQLiteMemory()
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.Put(ctx, Document{Meta: core.Metadata{ID: id}, Body: []byte(`{}`)}))
	}

	stop := errors.New("stop")
	seen := 0
	err = s.Each(ctx, func(Document) error {
		seen++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, seen)
}

func TestJSONLines(t *testing.T) {
	input := `{"meta": {"id": "doc1", "cas": 5}, "doc": {"value": 42}}

{"meta": {"id": "doc2"}, "doc": [1, 2]}
`
	docs := collect(t, NewJSONLines(strings.NewReader(input)))
	require.Len(t, docs, 2)
	assert.Equal(t, "doc1", docs[0].Meta.ID)
	assert.Equal(t, uint64(5), docs[0].Meta.Cas)
	assert.JSONEq(t, `{"value": 42}`, string(docs[0].Body))
	assert.JSONEq(t, `[1, 2]`, string(docs[1].Body))
}

func TestJSONLinesErrors(t *testing.T) {
	err := NewJSONLines(strings.NewReader("{\"meta\": {}, \"doc\": 1}\nnot json\n")).Each(context.Background(), func(Document) error { return nil })
	assert.ErrorContains(t, err, "line 2")

	err = NewJSONLines(strings.NewReader(`{"meta": {"id": "x"}}`)).Each(context.Background(), func(Document) error { return nil })
	assert.ErrorContains(t, err, "missing doc")
}

func TestJSONLinesBrotliFile(t *testing.T) {
	var buf bytes.Buffer
	w := brotli.NewWriter(&buf)
	_, err := w.Write([]byte(`{"meta": {"id": "z"}, "doc": {"a": true}}` + "\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	path := filepath.Join(t.TempDir(), "docs.jsonl.br")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	j, err := OpenJSONLines(path)
	require.NoError(t, err)
	defer j.Close()
	docs := collect(t, j)
	require.Len(t, docs, 1)
	assert.Equal(t, "z", docs[0].Meta.ID)
}

func TestJSONLinesContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewJSONLines(strings.NewReader(`{"meta": {}, "doc": 1}`)).Each(ctx, func(Document) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}
