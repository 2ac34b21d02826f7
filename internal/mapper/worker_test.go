package mapper

import (
	"strings"
	"testing"

	"github.com/cryguy/mapengine/internal/core"
	"github.com/cryguy/mapengine/internal/gojaengine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestWorker(t *testing.T, capacity int) *Worker {
	t.Helper()
	rt, err := gojaengine.New()
	require.NoError(t, err)
	w, err := NewWorker(5, rt, capacity, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })
	return w
}

func TestWorkerQuotedPathAndDocument(t *testing.T) {
	w := newTestWorker(t, 0)
	path := `views/"odd" path\n.js`

	ok, err := w.LoadScript(path, `function OnMap(meta, doc) { emit(doc.s); }`)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, w.Registered(path))
	assert.False(t, w.Registered("other.js"))

	want := "quote\" backslash\\ line sep </script>"
	res := w.Invoke(core.Metadata{ID: "d"}, []byte(`{"s": "quote\" backslash\\ line sep </script>"}`), path)
	require.NoError(t, res.Err)
	assert.Equal(t, 5, res.Worker)
	assert.Equal(t, path, res.Path)
	got, err := res.String(0)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestWorkerEmitAccumulatesAcrossCalls(t *testing.T) {
	w := newTestWorker(t, 0)
	_, err := w.LoadScript("v.js", `function OnMap(meta, doc) { emit("a"); emit(1, 2); emit(); }`)
	require.NoError(t, err)

	res := w.Invoke(core.Metadata{}, []byte(`{}`), "v.js")
	require.NoError(t, res.Err)
	assert.Equal(t, 3, res.Len())
}

func TestWorkerCaughtOverflowStillFlagged(t *testing.T) {
	w := newTestWorker(t, 2)
	_, err := w.LoadScript("v.js", `function OnMap(meta, doc) {
		try { emit(1, 2, 3); } catch (e) {}
		emit("after");
	}`)
	require.NoError(t, err)

	res := w.Invoke(core.Metadata{}, []byte(`{}`), "v.js")
	require.ErrorIs(t, res.Err, core.ErrCapacityExceeded)
	assert.Equal(t, 2, res.Len())
}

func TestWorkerTopLevelThrowIsCompileError(t *testing.T) {
	w := newTestWorker(t, 0)
	ok, err := w.LoadScript("v.js", `function OnMap(meta, doc) {} throw new Error("top level");`)
	assert.False(t, ok)
	var ce *core.CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, 5, ce.Worker)
	assert.True(t, strings.Contains(err.Error(), "top level"))
	assert.False(t, w.Registered("v.js"))
}
