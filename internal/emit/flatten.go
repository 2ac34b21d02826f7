package emit

import "fmt"

// Flatten appends v to b in depth-first order. Capacity is checked before
// every append; the first refused write stops the walk and the buffer keeps
// everything written before it.
func Flatten(b *Buffer, v Value) error {
	switch v.Kind {
	case KindString:
		return b.pushSlot(Slot{Kind: String, Str: v.Str})
	case KindInt:
		return b.pushSlot(Slot{Kind: IntNumber, Int: v.Int})
	case KindFloat:
		return b.pushSlot(Slot{Kind: FloatNumber, Float: v.Float})
	case KindBool:
		if v.Bool {
			return b.pushToken(BoolTrue)
		}
		return b.pushToken(BoolFalse)
	case KindArray:
		if err := b.pushToken(ArrayStart); err != nil {
			return err
		}
		for _, e := range v.Elems {
			if err := Flatten(b, e); err != nil {
				return err
			}
		}
		return b.pushToken(ArrayEnd)
	case KindMap:
		if err := b.pushSlot(Slot{Kind: MapStart, Int: v.Int}); err != nil {
			return err
		}
		for _, e := range v.Elems {
			if err := Flatten(b, e); err != nil {
				return err
			}
		}
		return b.pushToken(MapEnd)
	case KindUndefined:
		return b.pushToken(Undefined)
	case KindObject:
		return b.pushSlot(Slot{Kind: JSONString, Str: v.Str})
	case KindTruncated:
		return b.overflow("truncated value")
	}
	return fmt.Errorf("flatten: unknown value kind %d", v.Kind)
}

// FlattenAll flattens the arguments of one emit call in order.
func FlattenAll(b *Buffer, args []Value) error {
	for _, v := range args {
		if err := Flatten(b, v); err != nil {
			return err
		}
	}
	return nil
}
