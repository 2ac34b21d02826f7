package emit

import (
	"encoding/json"
	"fmt"
	"math"
)

// RawJSON is the serialized text of a plain object emitted by a script.
type RawJSON string

// MarshalJSON embeds the text as is when it is valid JSON and as a JSON
// string otherwise (JSON.stringify yields "undefined" for functions).
func (r RawJSON) MarshalJSON() ([]byte, error) {
	if json.Valid([]byte(r)) {
		return []byte(r), nil
	}
	return json.Marshal(string(r))
}

// MapEntry is one key/value pair of a decoded script Map.
type MapEntry struct {
	Key   any `json:"key"`
	Value any `json:"value"`
}

// MapValue is a decoded script Map in insertion order.
type MapValue struct {
	Coercion int64      `json:"coercion"`
	Entries  []MapEntry `json:"entries"`
}

// Decode rebuilds the emitted values from the token stream. Strings decode
// to string, IntNumber to int64, FloatNumber to float64, booleans to bool,
// Undefined to nil, arrays to []any, maps to *MapValue and objects to
// RawJSON. A result truncated by a capacity overflow decodes as far as its
// brackets allow and returns an error for the unterminated tail.
func (r Result) Decode() ([]any, error) {
	d := decoder{r: r}
	var out []any
	for d.pos < len(r.tokens) {
		v, err := d.next()
		if err != nil {
			if v != nil {
				out = append(out, v)
			}
			return out, err
		}
		out = append(out, v)
	}
	return out, nil
}

type decoder struct {
	r   Result
	pos int
}

func (d *decoder) next() (any, error) {
	if d.pos >= len(d.r.tokens) {
		return nil, fmt.Errorf("decode: unexpected end of tokens")
	}
	i := d.pos
	k := d.r.tokens[i]
	d.pos++

	switch k {
	case String:
		return d.r.slots[d.r.index[i]].Str, nil
	case IntNumber:
		return d.r.slots[d.r.index[i]].Int, nil
	case FloatNumber:
		return d.r.slots[d.r.index[i]].Float, nil
	case BoolTrue:
		return true, nil
	case BoolFalse:
		return false, nil
	case Undefined:
		return nil, nil
	case JSONString:
		return RawJSON(d.r.slots[d.r.index[i]].Str), nil
	case ArrayStart:
		arr := []any{}
		for {
			if d.pos >= len(d.r.tokens) {
				return arr, fmt.Errorf("decode: unterminated array at token %d", i)
			}
			if d.r.tokens[d.pos] == ArrayEnd {
				d.pos++
				return arr, nil
			}
			v, err := d.next()
			if err != nil {
				if v != nil {
					arr = append(arr, v)
				}
				return arr, err
			}
			arr = append(arr, v)
		}
	case MapStart:
		m := &MapValue{Coercion: d.r.slots[d.r.index[i]].Int}
		var pending []any
		for {
			if d.pos >= len(d.r.tokens) {
				return m, fmt.Errorf("decode: unterminated map at token %d", i)
			}
			if d.r.tokens[d.pos] == MapEnd {
				d.pos++
				if len(pending) != 0 {
					return m, fmt.Errorf("decode: map at token %d has a key without a value", i)
				}
				return m, nil
			}
			v, err := d.next()
			if err != nil {
				return m, err
			}
			pending = append(pending, v)
			if len(pending) == 2 {
				m.Entries = append(m.Entries, MapEntry{Key: pending[0], Value: pending[1]})
				pending = pending[:0]
			}
		}
	}
	return nil, fmt.Errorf("decode: unexpected %s at token %d", k, i)
}

// JSONSafe returns a decoded value that encoding/json can marshal: NaN and
// infinite floats are replaced by their text form, recursively.
func JSONSafe(v any) any {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return fmt.Sprint(x)
		}
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = JSONSafe(e)
		}
		return out
	case *MapValue:
		out := &MapValue{Coercion: x.Coercion, Entries: make([]MapEntry, len(x.Entries))}
		for i, e := range x.Entries {
			out.Entries[i] = MapEntry{Key: JSONSafe(e.Key), Value: JSONSafe(e.Value)}
		}
		return out
	}
	return v
}
