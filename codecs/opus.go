package codecs

import (
	"encoding/binary"
	"fmt"
)

const opusHeadMagic = "OpusHead"

// opusPreSkip is the standard encoder lookahead in 48 kHz samples.
const opusPreSkip = 312

// BuildOpusHead synthesizes the identification header Opus tracks store as
// CodecPrivate, for encoders that hand over raw packets without one. Only
// mono and stereo use mapping family 0; anything wider needs a real header
// from the encoder.
func BuildOpusHead(channels int, sampleRate float64) ([]byte, error) {
	if channels < 1 || channels > 2 {
		return nil, fmt.Errorf("codecs: cannot synthesize opus header for %d channels", channels)
	}
	h := make([]byte, 19)
	copy(h, opusHeadMagic)
	h[8] = 1 // version
	h[9] = byte(channels)
	binary.LittleEndian.PutUint16(h[10:], opusPreSkip)
	binary.LittleEndian.PutUint32(h[12:], uint32(sampleRate))
	// Output gain zero, mapping family zero.
	return h, nil
}

// IsOpusHead reports whether b starts with a plausible Opus identification
// header.
func IsOpusHead(b []byte) bool {
	return len(b) >= 19 && string(b[:8]) == opusHeadMagic
}
