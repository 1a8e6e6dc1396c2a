// Package ebml serializes EBML element trees, the binary layer underneath
// Matroska and WebM. Elements are explicit tagged values rather than
// reflected structs so that writers can reserve fixed-width size fields and
// patch them once the real extent of a container is known.
package ebml

import "math"

// Kind discriminates the payload variant of an Element.
type Kind uint8

const (
	KindBytes Kind = iota
	KindUint
	KindInt
	KindFloat32
	KindFloat64
	KindString
	KindMaster
)

// NoRef marks an element that has not been written yet.
const NoRef Ref = -1

// Ref is an index into a Writer's offset arena.
type Ref int32

// Element is one node of an EBML tree: an ID plus exactly one payload
// variant. SizeWidth pins the width of the size vint (required for anything
// patched after the fact); ValueWidth pins the payload width of integer
// elements whose value is rewritten later. Zero widths mean minimal
// encoding.
type Element struct {
	ID   ID
	Kind Kind

	Data     []byte
	UintVal  uint64
	IntVal   int64
	FloatVal float64
	StrVal   string
	Children []*Element

	SizeWidth  int
	ValueWidth int

	ref Ref
}

// Uint returns an unsigned integer element with minimal payload width.
func Uint(id ID, v uint64) *Element {
	return &Element{ID: id, Kind: KindUint, UintVal: v, ref: NoRef}
}

// UintWidthEl returns an unsigned integer element with a fixed payload
// width, so the element keeps its byte span when the value is patched.
func UintWidthEl(id ID, v uint64, width int) *Element {
	return &Element{ID: id, Kind: KindUint, UintVal: v, ValueWidth: width, ref: NoRef}
}

// Int returns a signed integer element.
func Int(id ID, v int64) *Element {
	return &Element{ID: id, Kind: KindInt, IntVal: v, ref: NoRef}
}

// Float32El returns a 4-byte float element.
func Float32El(id ID, v float32) *Element {
	return &Element{ID: id, Kind: KindFloat32, FloatVal: float64(v), ref: NoRef}
}

// Float64El returns an 8-byte float element.
func Float64El(id ID, v float64) *Element {
	return &Element{ID: id, Kind: KindFloat64, FloatVal: v, ref: NoRef}
}

// String returns a UTF-8 string element.
func String(id ID, s string) *Element {
	return &Element{ID: id, Kind: KindString, StrVal: s, ref: NoRef}
}

// Bytes returns a raw binary element.
func Bytes(id ID, b []byte) *Element {
	return &Element{ID: id, Kind: KindBytes, Data: b, ref: NoRef}
}

// Master returns a container element owning the given children.
func Master(id ID, children ...*Element) *Element {
	return &Element{ID: id, Kind: KindMaster, Children: children, ref: NoRef}
}

// Append adds children to a master element and returns it.
func (e *Element) Append(children ...*Element) *Element {
	e.Children = append(e.Children, children...)
	return e
}

// payloadSize returns the encoded byte length of the element's payload.
func (e *Element) payloadSize() int {
	switch e.Kind {
	case KindBytes:
		return len(e.Data)
	case KindUint:
		if e.ValueWidth > 0 {
			return e.ValueWidth
		}
		return UintWidth(e.UintVal)
	case KindInt:
		if e.ValueWidth > 0 {
			return e.ValueWidth
		}
		return IntWidth(e.IntVal)
	case KindFloat32:
		return 4
	case KindFloat64:
		return 8
	case KindString:
		return len(e.StrVal)
	case KindMaster:
		n := 0
		for _, c := range e.Children {
			n += c.EncodedSize()
		}
		return n
	}
	return 0
}

// EncodedSize returns the full encoded length of the element: ID, size
// field and payload.
func (e *Element) EncodedSize() int {
	p := e.payloadSize()
	sw := e.SizeWidth
	if sw == 0 {
		sw = VintWidth(uint64(p))
	}
	return IDWidth(e.ID) + sw + p
}

// appendPayload serializes just the payload variant.
func (e *Element) appendPayload(dst []byte) []byte {
	switch e.Kind {
	case KindBytes:
		return append(dst, e.Data...)
	case KindUint:
		w := e.ValueWidth
		if w == 0 {
			w = UintWidth(e.UintVal)
		}
		return AppendUint(dst, e.UintVal, w)
	case KindInt:
		w := e.ValueWidth
		if w == 0 {
			w = IntWidth(e.IntVal)
		}
		return AppendInt(dst, e.IntVal, w)
	case KindFloat32:
		return AppendUint(dst, uint64(math.Float32bits(float32(e.FloatVal))), 4)
	case KindFloat64:
		return AppendUint(dst, math.Float64bits(e.FloatVal), 8)
	case KindString:
		return append(dst, e.StrVal...)
	}
	return dst
}
