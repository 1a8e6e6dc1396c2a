package codecs

import (
	"fmt"
	"strconv"
	"strings"
)

// VP9 color_space identifiers from the frame header.
const (
	vp9CSUnknown  = 0
	vp9CSBT601    = 1
	vp9CSBT709    = 2
	vp9CSSMPTE170 = 3
	vp9CSSMPTE240 = 4
	vp9CSBT2020   = 5
	vp9CSRGB      = 7
)

// VP9Params carries the fields a "vp09.PP.LL.DD[.CC]" codec string encodes.
type VP9Params struct {
	Profile           uint8
	Level             uint8
	BitDepth          uint8
	ChromaSubsampling uint8
}

// ParseVP9CodecString extracts the parameter fields from a full vp09 codec
// string. Bare "vp9"/"vp09" strings carry no parameters and return an
// error; the caller then simply writes no CodecPrivate.
func ParseVP9CodecString(codec string) (*VP9Params, error) {
	parts := strings.Split(strings.ToLower(codec), ".")
	if len(parts) < 4 || parts[0] != "vp09" {
		return nil, fmt.Errorf("codecs: codec string %q carries no vp9 parameters", codec)
	}
	fields := make([]uint8, 3)
	for i := 0; i < 3; i++ {
		n, err := strconv.Atoi(parts[i+1])
		if err != nil || n < 0 || n > 255 {
			return nil, fmt.Errorf("codecs: bad vp9 codec string field %q", parts[i+1])
		}
		fields[i] = uint8(n)
	}
	p := &VP9Params{
		Profile:  fields[0],
		Level:    fields[1],
		BitDepth: fields[2],
		// 4:2:0 colocated unless the string says otherwise.
		ChromaSubsampling: 1,
	}
	if len(parts) > 4 {
		if n, err := strconv.Atoi(parts[4]); err == nil && n >= 0 && n <= 3 {
			p.ChromaSubsampling = uint8(n)
		}
	}
	return p, nil
}

// CodecPrivate renders the parameters as the VP9 codec feature list the
// container stores: a sequence of (id, length, value) triplets.
func (p *VP9Params) CodecPrivate() []byte {
	return []byte{
		1, 1, p.Profile,
		2, 1, p.Level,
		3, 1, p.BitDepth,
		4, 1, p.ChromaSubsampling,
	}
}

// VP9ColorSpaceFromMatrix maps Matroska MatrixCoefficients to the VP9
// color_space id. The second return is false for matrices VP9 cannot
// express (including unspecified), in which case no patching happens.
func VP9ColorSpaceFromMatrix(matrix uint8) (uint8, bool) {
	switch matrix {
	case 0:
		return vp9CSRGB, true
	case 1:
		return vp9CSBT709, true
	case 5:
		return vp9CSBT601, true
	case 6:
		return vp9CSSMPTE170, true
	case 7:
		return vp9CSSMPTE240, true
	case 9:
		return vp9CSBT2020, true
	}
	return vp9CSUnknown, false
}

// PatchVP9ColorSpace walks a keyframe's uncompressed header to the
// color_space field and overwrites its 3 bits in place with cs. VP9 stores
// color metadata in every keyframe header, so container-level color
// declarations are invisible to decoders unless the bitstream agrees.
// Returns false without touching the frame when the header does not parse
// as a shown VP9 keyframe (wrong marker or sync code, show-existing frame);
// that is expected for some inputs and is not an error.
func PatchVP9ColorSpace(frame []byte, cs uint8) bool {
	r := newBitReader(frame)
	if r.bits(2) != 2 { // frame_marker
		return false
	}
	profile := r.bits(1) | r.bits(1)<<1
	if profile == 3 {
		r.skip(1) // reserved_zero
	}
	if r.bits(1) == 1 { // show_existing_frame
		return false
	}
	if r.bits(1) != 0 { // frame_type, 0 = key frame
		return false
	}
	r.skip(2) // show_frame, error_resilient_mode
	if r.bits(24) != 0x498342 { // frame_sync_code
		return false
	}
	if profile >= 2 {
		r.skip(1) // bit depth flag
	}
	pos := r.bitPos()
	r.skip(3) // color_space, the patch target
	if r.err != nil {
		return false
	}
	overwriteBits(frame, pos, 3, uint32(cs))
	return true
}

// IsVP9Keyframe reports whether the frame's header declares a shown key
// frame.
func IsVP9Keyframe(frame []byte) bool {
	r := newBitReader(frame)
	if r.bits(2) != 2 {
		return false
	}
	profile := r.bits(1) | r.bits(1)<<1
	if profile == 3 {
		r.skip(1)
	}
	if r.bits(1) == 1 { // show_existing_frame
		return false
	}
	keyframe := r.bits(1) == 0
	return r.err == nil && keyframe
}
