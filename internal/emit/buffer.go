package emit

import (
	"fmt"

	"github.com/cryguy/mapengine/internal/core"
)

// Buffer is the fixed-capacity token/slot store owned by one worker. It is
// reset at the start of every invocation and never grows past its capacity:
// the first write that does not fit latches core.ErrCapacityExceeded and
// every later write is refused.
type Buffer struct {
	capacity int
	tokens   []TokenKind
	slots    []Slot
	err      error
}

// NewBuffer returns an empty buffer bounded to capacity tokens and capacity
// slots.
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = core.DefaultResultCapacity
	}
	return &Buffer{
		capacity: capacity,
		tokens:   make([]TokenKind, 0, capacity),
		slots:    make([]Slot, 0, capacity),
	}
}

// Reset empties the buffer and clears a latched overflow.
func (b *Buffer) Reset() {
	b.tokens = b.tokens[:0]
	b.slots = b.slots[:0]
	b.err = nil
}

// Capacity returns the token (and slot) bound.
func (b *Buffer) Capacity() int { return b.capacity }

// Len returns the number of tokens written since the last Reset.
func (b *Buffer) Len() int { return len(b.tokens) }

// Err returns core.ErrCapacityExceeded once a write has been refused.
func (b *Buffer) Err() error { return b.err }

func (b *Buffer) overflow(what string) error {
	if b.err == nil {
		b.err = fmt.Errorf("%w: %s does not fit (%d tokens, %d slots, capacity %d)",
			core.ErrCapacityExceeded, what, len(b.tokens), len(b.slots), b.capacity)
	}
	return b.err
}

// pushToken appends a structural or slot-free token.
func (b *Buffer) pushToken(kind TokenKind) error {
	if b.err != nil {
		return b.err
	}
	if len(b.tokens) >= b.capacity {
		return b.overflow(kind.String())
	}
	b.tokens = append(b.tokens, kind)
	return nil
}

// pushSlot appends a token together with its slot. Both bounds are checked
// before either sequence is touched.
func (b *Buffer) pushSlot(s Slot) error {
	if b.err != nil {
		return b.err
	}
	if len(b.tokens) >= b.capacity || len(b.slots) >= b.capacity {
		return b.overflow(s.Kind.String())
	}
	b.tokens = append(b.tokens, s.Kind)
	b.slots = append(b.slots, s)
	return nil
}

// Snapshot copies the buffer into an owned Result. Later writes to the
// buffer do not affect the snapshot.
func (b *Buffer) Snapshot() Result {
	r := Result{
		tokens: make([]TokenKind, len(b.tokens)),
		slots:  make([]Slot, len(b.slots)),
		index:  make([]int, len(b.tokens)),
		Err:    b.err,
	}
	copy(r.tokens, b.tokens)
	copy(r.slots, b.slots)
	next := 0
	for i, k := range r.tokens {
		if k.HasSlot() {
			r.index[i] = next
			next++
		} else {
			r.index[i] = -1
		}
	}
	return r
}
