// Package emit implements the flat, type-tagged token stream that carries
// values emitted by mapping scripts across the engine boundary.
package emit

import "strconv"

// TokenKind tags one entry of the token stream. The numeric values are part
// of the boundary contract and must not be reordered.
type TokenKind int

const (
	String TokenKind = iota
	IntNumber
	FloatNumber
	BoolTrue
	BoolFalse
	ArrayStart
	ArrayEnd
	MapStart
	MapEnd
	Undefined
	JSONString
)

var kindNames = [...]string{
	String:      "String",
	IntNumber:   "IntNumber",
	FloatNumber: "FloatNumber",
	BoolTrue:    "BoolTrue",
	BoolFalse:   "BoolFalse",
	ArrayStart:  "ArrayStart",
	ArrayEnd:    "ArrayEnd",
	MapStart:    "MapStart",
	MapEnd:      "MapEnd",
	Undefined:   "Undefined",
	JSONString:  "JSONString",
}

func (k TokenKind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "TokenKind(" + strconv.Itoa(int(k)) + ")"
}

// HasSlot reports whether a token of this kind consumes a value slot.
// MapStart carries the map's numeric coercion in its slot.
func (k TokenKind) HasSlot() bool {
	switch k {
	case String, IntNumber, FloatNumber, JSONString, MapStart:
		return true
	}
	return false
}

// Slot is the payload of a slot-consuming token. Only the field matching
// Kind is meaningful.
type Slot struct {
	Kind  TokenKind `json:"kind"`
	Int   int64     `json:"int,omitempty"`
	Float float64   `json:"float,omitempty"`
	Str   string    `json:"str,omitempty"`
}
