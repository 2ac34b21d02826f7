package emit

import (
	"fmt"

	"github.com/cryguy/mapengine/internal/core"
)

// Result is an owned copy of one invocation's token stream. It stays valid
// after the worker that produced it runs again.
type Result struct {
	Worker int    // index of the worker that ran the invocation
	Path   string // script path that was routed
	Err    error  // script exception or capacity overflow; tokens before it are kept

	tokens []TokenKind
	slots  []Slot
	index  []int // token index -> slot index, -1 for slot-free tokens
}

// Len returns the number of tokens.
func (r Result) Len() int { return len(r.tokens) }

// SlotLen returns the number of filled value slots.
func (r Result) SlotLen() int { return len(r.slots) }

// Tokens returns a copy of the token kinds.
func (r Result) Tokens() []TokenKind {
	out := make([]TokenKind, len(r.tokens))
	copy(out, r.tokens)
	return out
}

// Slots returns a copy of the value slots in fill order.
func (r Result) Slots() []Slot {
	out := make([]Slot, len(r.slots))
	copy(out, r.slots)
	return out
}

// Kind returns the token kind at index i.
func (r Result) Kind(i int) (TokenKind, error) {
	if i < 0 || i >= len(r.tokens) {
		return 0, fmt.Errorf("%w: %d (len %d)", core.ErrIndexOutOfRange, i, len(r.tokens))
	}
	return r.tokens[i], nil
}

// slot returns the slot of token i after checking its kind against want.
func (r Result) slot(i int, want ...TokenKind) (Slot, error) {
	k, err := r.Kind(i)
	if err != nil {
		return Slot{}, err
	}
	for _, w := range want {
		if k == w {
			return r.slots[r.index[i]], nil
		}
	}
	return Slot{}, fmt.Errorf("%w: token %d is %s, want %v", core.ErrKindMismatch, i, k, want)
}

// String returns the payload of a String token.
func (r Result) String(i int) (string, error) {
	s, err := r.slot(i, String)
	return s.Str, err
}

// JSON returns the serialized object text of a JSONString token.
func (r Result) JSON(i int) (string, error) {
	s, err := r.slot(i, JSONString)
	return s.Str, err
}

// Int returns the payload of an IntNumber token, or the numeric coercion
// stored with a MapStart token.
func (r Result) Int(i int) (int64, error) {
	s, err := r.slot(i, IntNumber, MapStart)
	return s.Int, err
}

// Float returns the payload of a FloatNumber token.
func (r Result) Float(i int) (float64, error) {
	s, err := r.slot(i, FloatNumber)
	return s.Float, err
}

// Bool returns the truth value encoded in a BoolTrue or BoolFalse token.
func (r Result) Bool(i int) (bool, error) {
	k, err := r.Kind(i)
	if err != nil {
		return false, err
	}
	switch k {
	case BoolTrue:
		return true, nil
	case BoolFalse:
		return false, nil
	}
	return false, fmt.Errorf("%w: token %d is %s, want BoolTrue or BoolFalse", core.ErrKindMismatch, i, k)
}
