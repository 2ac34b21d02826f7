//go:build v8

package v8engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEval(t *testing.T) {
	rt, err := New()
	require.NoError(t, err)
	defer rt.Close()

	require.NoError(t, rt.Eval(`globalThis.x = 40 + 2;`))
	s, err := rt.EvalString(`String(x)`)
	require.NoError(t, err)
	assert.Equal(t, "42", s)

	b, err := rt.EvalBool(`x === 42`)
	require.NoError(t, err)
	assert.True(t, b)

	assert.Error(t, rt.Eval(`throw new Error("nope")`))
	assert.Error(t, rt.Eval(`function (`))
}

func TestRegisterFunc(t *testing.T) {
	rt, err := New()
	require.NoError(t, err)
	defer rt.Close()

	var got []string
	require.NoError(t, rt.RegisterFunc("record", func(s string) (string, error) {
		if s == "bad" {
			return "", errors.New("rejected")
		}
		got = append(got, s)
		return "ok:" + s, nil
	}))

	s, err := rt.EvalString(`record("a")`)
	require.NoError(t, err)
	assert.Equal(t, "ok:a", s)
	assert.Equal(t, []string{"a"}, got)

	caught, err := rt.EvalBool(`(function() {
		try { record("bad"); return false; } catch (e) { return e instanceof TypeError; }
	})()`)
	require.NoError(t, err)
	assert.True(t, caught)
	assert.Equal(t, []string{"a"}, got)
}
