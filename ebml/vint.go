package ebml

import "fmt"

// maxVintWidth is the widest size field EBML permits (EBMLMaxSizeLength).
const maxVintWidth = 8

// VintWidth returns the smallest width in bytes whose 7*w value bits can
// represent v. The all-ones pattern of each width is reserved for the
// "unknown size" marker, so a value that would occupy it is pushed to the
// next width.
func VintWidth(v uint64) int {
	for w := 1; w < maxVintWidth; w++ {
		if v < (uint64(1)<<(7*w))-1 {
			return w
		}
	}
	return maxVintWidth
}

// AppendVint appends v encoded as a minimal-width EBML variable-length
// integer: a leading marker bit at position 7*w followed by the value bits.
func AppendVint(dst []byte, v uint64) []byte {
	return AppendVintWidth(dst, v, VintWidth(v))
}

// AppendVintWidth appends v as a fixed w-byte vint. Values too large for the
// width are truncated to its value bits; callers reserve widths large enough
// for any size they will patch in later.
func AppendVintWidth(dst []byte, v uint64, w int) []byte {
	marker := uint64(1) << (7 * w)
	x := marker | (v & (marker - 1))
	for i := w - 1; i >= 0; i-- {
		dst = append(dst, byte(x>>(8*i)))
	}
	return dst
}

// AppendUnknownVint appends the w-byte "unknown size" marker: the width
// prefix followed by all value bits set.
func AppendUnknownVint(dst []byte, w int) []byte {
	marker := uint64(1) << (7 * w)
	x := marker | (marker - 1)
	for i := w - 1; i >= 0; i-- {
		dst = append(dst, byte(x>>(8*i)))
	}
	return dst
}

// IDWidth returns the encoded byte length of an element ID. IDs carry their
// own marker convention, so the stored constant already includes the leading
// bits and the width is just its natural big-endian length.
func IDWidth(id ID) int {
	switch {
	case id <= 0xFF:
		return 1
	case id <= 0xFFFF:
		return 2
	case id <= 0xFFFFFF:
		return 3
	default:
		return 4
	}
}

// AppendID appends the big-endian bytes of an element ID.
func AppendID(dst []byte, id ID) []byte {
	w := IDWidth(id)
	for i := w - 1; i >= 0; i-- {
		dst = append(dst, byte(id>>(8*i)))
	}
	return dst
}

// UintWidth returns the minimal number of bytes needed to store v, at least
// one so that zero still occupies a byte.
func UintWidth(v uint64) int {
	w := 1
	for v > 0xFF {
		v >>= 8
		w++
	}
	return w
}

// IntWidth returns the minimal number of bytes holding v in two's
// complement.
func IntWidth(v int64) int {
	for w := 1; w < 8; w++ {
		lo := -(int64(1) << (8*w - 1))
		hi := int64(1)<<(8*w-1) - 1
		if v >= lo && v <= hi {
			return w
		}
	}
	return 8
}

// AppendUint appends v as exactly w big-endian bytes.
func AppendUint(dst []byte, v uint64, w int) []byte {
	for i := w - 1; i >= 0; i-- {
		dst = append(dst, byte(v>>(8*i)))
	}
	return dst
}

// AppendInt appends v as exactly w big-endian two's complement bytes.
func AppendInt(dst []byte, v int64, w int) []byte {
	return AppendUint(dst, uint64(v), w)
}

func checkWidth(w int) error {
	if w < 1 || w > maxVintWidth {
		return fmt.Errorf("ebml: invalid field width %d", w)
	}
	return nil
}
