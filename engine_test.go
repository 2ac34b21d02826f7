package mapengine

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cryguy/mapengine/internal/metrics"
)

const byIDScript = `function OnMap(meta, doc) { emit(meta.id, doc.value); }`

func TestCreateEngineIsSingleton(t *testing.T) {
	scripts := StaticScripts{"by_id.js": byIDScript}

	first, err := CreateEngine(2, WithScriptLoader(scripts), WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	second, err := CreateEngine(7)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 2, second.Workers())

	// An invalid count after the first call is ignored too.
	third, err := CreateEngine(0)
	require.NoError(t, err)
	assert.Same(t, first, third)

	report := first.LoadScript("by_id.js")
	require.NoError(t, report.Err())
	assert.Equal(t, 2, report.Registered)

	for i := 0; i < 2; i++ {
		res := first.Route(Metadata{ID: "doc1"}, []byte(`{"value": 42}`), "by_id.js")
		require.NoError(t, res.Err)
		assert.Equal(t, i, res.Worker)
		assert.Equal(t, []TokenKind{String, IntNumber}, res.Tokens())
		id, err := res.String(0)
		require.NoError(t, err)
		assert.Equal(t, "doc1", id)
		v, err := res.Int(1)
		require.NoError(t, err)
		assert.Equal(t, int64(42), v)
	}
}

func TestNewEngineOptions(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	e, err := New(EngineConfig{Workers: 3}, StaticScripts{"v.js": `function OnMap(m, d) { emit(d.a, d.b, d.c); }`},
		WithBackend("goja"),
		WithResultCapacity(2),
		WithMetrics(m),
		WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	defer e.Close()
	assert.Equal(t, "goja", e.Backend())
	assert.Equal(t, 3, e.Workers())
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Workers))

	require.NoError(t, e.LoadScript("v.js").Err())
	res := e.Route(Metadata{}, []byte(`{"a": 1, "b": 2, "c": 3}`), "v.js")
	assert.True(t, errors.Is(res.Err, ErrCapacityExceeded))
	assert.Equal(t, 2, res.Len())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RoutesTotal.WithLabelValues("0", metrics.OutcomeOverflow)))
}

func TestNewEngineErrors(t *testing.T) {
	_, err := New(EngineConfig{Workers: MaxWorkers + 1}, StaticScripts{})
	assert.ErrorIs(t, err, ErrEngineInit)

	_, err = New(EngineConfig{Workers: 1, Backend: "nope"}, StaticScripts{})
	assert.ErrorIs(t, err, ErrEngineInit)
}

func TestResultAccessors(t *testing.T) {
	e, err := New(EngineConfig{Workers: 1}, StaticScripts{
		"v.js": `function OnMap(meta, doc) { emit(true, 1.5, {k: "v"}, null); }`,
	})
	require.NoError(t, err)
	defer e.Close()
	require.NoError(t, e.LoadScript("v.js").Err())

	res := e.Route(Metadata{}, []byte(`{}`), "v.js")
	require.NoError(t, res.Err)
	require.Equal(t, 4, res.Len())

	b, err := res.Bool(0)
	require.NoError(t, err)
	assert.True(t, b)
	f, err := res.Float(1)
	require.NoError(t, err)
	assert.Equal(t, 1.5, f)
	j, err := res.JSON(2)
	require.NoError(t, err)
	assert.Equal(t, `{"k":"v"}`, j)
	k, err := res.Kind(3)
	require.NoError(t, err)
	assert.Equal(t, Undefined, k)

	_, err = res.String(0)
	assert.ErrorIs(t, err, ErrKindMismatch)
	_, err = res.Int(4)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)

	// TokenKind values are part of the boundary contract.
	assert.Equal(t, 0, int(String))
	assert.Equal(t, 10, int(JSONString))
}
