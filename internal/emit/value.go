package emit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ValueKind is the closed set of script value shapes the flattener visits.
type ValueKind int

const (
	KindString ValueKind = iota
	KindInt
	KindFloat
	KindBool
	KindArray
	KindMap
	KindUndefined
	KindObject    // any other object, carried as its JSON text
	KindTruncated // the script side stopped describing: capacity is already exhausted
)

// Value is one emitted script value decoded from its descriptor.
type Value struct {
	Kind  ValueKind
	Str   string  // KindString; JSON text for KindObject
	Int   int64   // KindInt; numeric coercion for KindMap
	Float float64 // KindFloat
	Bool  bool    // KindBool
	Elems []Value // KindArray elements; KindMap keys and values, alternating
}

// Str returns a string value.
func Str(s string) Value { return Value{Kind: KindString, Str: s} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// Null returns the value emitted for null and undefined.
func Null() Value { return Value{Kind: KindUndefined} }

// Array returns an array value.
func Array(elems ...Value) Value { return Value{Kind: KindArray, Elems: elems} }

// Object returns a plain-object value carried as JSON text.
func Object(jsonText string) Value { return Value{Kind: KindObject, Str: jsonText} }

// Map returns a map value. kv alternates keys and values.
func Map(coercion int64, kv ...Value) Value {
	return Value{Kind: KindMap, Int: coercion, Elems: kv}
}

// Descriptor tags written by the bootstrap script.
const (
	tagString    = "s"
	tagInt       = "i"
	tagFloat     = "f"
	tagBool      = "b"
	tagArray     = "a"
	tagMap       = "m"
	tagUndefined = "u"
	tagObject    = "o"
	tagTruncated = "t"
)

// DecodeArgs decodes the descriptor list sent by one emit call: a JSON
// array with one descriptor per argument.
func DecodeArgs(data []byte) ([]Value, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decoding emit arguments: %w", err)
	}
	out := make([]Value, 0, len(raw))
	for i, r := range raw {
		v, err := decodeDescriptor(r)
		if err != nil {
			return nil, fmt.Errorf("emit argument %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func decodeDescriptor(data json.RawMessage) (Value, error) {
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return Value{}, fmt.Errorf("descriptor %s: %w", abbreviate(data), err)
	}
	if len(parts) == 0 {
		return Value{}, fmt.Errorf("empty descriptor")
	}
	var tag string
	if err := json.Unmarshal(parts[0], &tag); err != nil {
		return Value{}, fmt.Errorf("descriptor tag: %w", err)
	}

	switch tag {
	case tagString, tagObject:
		if len(parts) != 2 {
			return Value{}, fmt.Errorf("descriptor %q: want 2 parts, got %d", tag, len(parts))
		}
		var s string
		if err := json.Unmarshal(parts[1], &s); err != nil {
			return Value{}, fmt.Errorf("descriptor %q payload: %w", tag, err)
		}
		if tag == tagObject {
			return Object(s), nil
		}
		return Str(s), nil

	case tagInt:
		if len(parts) != 2 {
			return Value{}, fmt.Errorf("descriptor %q: want 2 parts, got %d", tag, len(parts))
		}
		n, err := strconv.ParseInt(string(bytes.TrimSpace(parts[1])), 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("descriptor %q payload: %w", tag, err)
		}
		return Value{Kind: KindInt, Int: n}, nil

	case tagFloat:
		if len(parts) != 2 {
			return Value{}, fmt.Errorf("descriptor %q: want 2 parts, got %d", tag, len(parts))
		}
		f, err := decodeFloat(parts[1])
		if err != nil {
			return Value{}, fmt.Errorf("descriptor %q payload: %w", tag, err)
		}
		return Value{Kind: KindFloat, Float: f}, nil

	case tagBool:
		if len(parts) != 2 {
			return Value{}, fmt.Errorf("descriptor %q: want 2 parts, got %d", tag, len(parts))
		}
		var b bool
		if err := json.Unmarshal(parts[1], &b); err != nil {
			return Value{}, fmt.Errorf("descriptor %q payload: %w", tag, err)
		}
		return Bool(b), nil

	case tagArray:
		if len(parts) != 2 {
			return Value{}, fmt.Errorf("descriptor %q: want 2 parts, got %d", tag, len(parts))
		}
		elems, err := decodeList(parts[1])
		if err != nil {
			return Value{}, err
		}
		return Array(elems...), nil

	case tagMap:
		if len(parts) != 3 {
			return Value{}, fmt.Errorf("descriptor %q: want 3 parts, got %d", tag, len(parts))
		}
		n, err := strconv.ParseInt(string(bytes.TrimSpace(parts[1])), 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("descriptor %q coercion: %w", tag, err)
		}
		elems, err := decodeList(parts[2])
		if err != nil {
			return Value{}, err
		}
		return Map(n, elems...), nil

	case tagUndefined:
		return Null(), nil

	case tagTruncated:
		return Value{Kind: KindTruncated}, nil
	}
	return Value{}, fmt.Errorf("unknown descriptor tag %q", tag)
}

func decodeList(data json.RawMessage) ([]Value, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("descriptor list %s: %w", abbreviate(data), err)
	}
	out := make([]Value, 0, len(raw))
	for _, r := range raw {
		v, err := decodeDescriptor(r)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// decodeFloat accepts a JSON number or the text forms the bootstrap uses
// for values JSON cannot carry (NaN, Infinity, -Infinity, -0).
func decodeFloat(data json.RawMessage) (float64, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return 0, err
		}
		return strconv.ParseFloat(s, 64)
	}
	return strconv.ParseFloat(string(data), 64)
}

func abbreviate(data []byte) string {
	const max = 64
	if len(data) > max {
		return string(data[:max]) + "..."
	}
	return string(data)
}
