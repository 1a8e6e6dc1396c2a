package codecs

import "errors"

var errBitOverrun = errors.New("codecs: read past end of bitstream")

// bitReader reads big-endian bit fields at arbitrary, byte-unaligned
// positions. Overruns latch an error and make every later read return zero,
// so callers validate once at the end of a parse.
type bitReader struct {
	data []byte
	pos  int // absolute bit position
	err  error
}

func newBitReader(data []byte) *bitReader {
	return &bitReader{data: data}
}

// bits reads n bits (n <= 32) most-significant first.
func (r *bitReader) bits(n int) uint32 {
	if r.err != nil {
		return 0
	}
	if r.pos+n > len(r.data)*8 {
		r.err = errBitOverrun
		return 0
	}
	var v uint32
	for i := 0; i < n; i++ {
		byteIdx := r.pos >> 3
		bitIdx := 7 - (r.pos & 7)
		v = v<<1 | uint32(r.data[byteIdx]>>bitIdx)&1
		r.pos++
	}
	return v
}

func (r *bitReader) skip(n int) { r.bits(n) }

// bitPos returns the absolute position of the next unread bit.
func (r *bitReader) bitPos() int { return r.pos }

// overwriteBits replaces n bits starting at bit position pos with the low n
// bits of v, leaving all surrounding bits untouched.
func overwriteBits(data []byte, pos, n int, v uint32) {
	for i := n - 1; i >= 0; i-- {
		byteIdx := pos >> 3
		bitIdx := 7 - (pos & 7)
		mask := byte(1) << bitIdx
		if v>>(uint(i))&1 == 1 {
			data[byteIdx] |= mask
		} else {
			data[byteIdx] &^= mask
		}
		pos++
	}
}
