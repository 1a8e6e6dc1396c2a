package codecs

import (
	"fmt"
	"strconv"
	"strings"
)

const obuTypeSequenceHeader = 1

// AV1Params carries the fields of an "av01.P.LLT.DD" codec string.
type AV1Params struct {
	Profile  uint8
	Level    uint8
	Tier     uint8 // 0 = Main, 1 = High
	BitDepth uint8

	Monochrome           bool
	ChromaSubsamplingX   uint8
	ChromaSubsamplingY   uint8
	ChromaSamplePosition uint8
}

// ParseAV1CodecString extracts the parameter fields from a full av01 codec
// string, including the optional monochrome and chroma fields.
func ParseAV1CodecString(codec string) (*AV1Params, error) {
	parts := strings.Split(codec, ".")
	if len(parts) < 4 || strings.ToLower(parts[0]) != "av01" {
		return nil, fmt.Errorf("codecs: codec string %q carries no av1 parameters", codec)
	}
	profile, err := strconv.Atoi(parts[1])
	if err != nil || profile < 0 || profile > 2 {
		return nil, fmt.Errorf("codecs: bad av1 profile %q", parts[1])
	}
	lt := parts[2]
	if len(lt) != 3 {
		return nil, fmt.Errorf("codecs: bad av1 level/tier %q", lt)
	}
	level, err := strconv.Atoi(lt[:2])
	if err != nil || level < 0 || level > 31 {
		return nil, fmt.Errorf("codecs: bad av1 level %q", lt[:2])
	}
	var tier uint8
	switch lt[2] {
	case 'M', 'm':
		tier = 0
	case 'H', 'h':
		tier = 1
	default:
		return nil, fmt.Errorf("codecs: bad av1 tier %q", lt[2:])
	}
	depth, err := strconv.Atoi(parts[3])
	if err != nil || (depth != 8 && depth != 10 && depth != 12) {
		return nil, fmt.Errorf("codecs: bad av1 bit depth %q", parts[3])
	}

	p := &AV1Params{
		Profile:  uint8(profile),
		Level:    uint8(level),
		Tier:     tier,
		BitDepth: uint8(depth),
	}
	// Chroma defaults by profile: 0 and 2 are 4:2:0 here, 1 is 4:4:4.
	if profile != 1 {
		p.ChromaSubsamplingX, p.ChromaSubsamplingY = 1, 1
	}
	if len(parts) > 4 {
		p.Monochrome = parts[4] == "1"
	}
	if len(parts) > 5 && len(parts[5]) == 3 {
		p.ChromaSubsamplingX = digit(parts[5][0])
		p.ChromaSubsamplingY = digit(parts[5][1])
		p.ChromaSamplePosition = digit(parts[5][2])
	}
	return p, nil
}

func digit(b byte) uint8 {
	if b < '0' || b > '9' {
		return 0
	}
	return b - '0'
}

// CodecPrivate renders the AV1CodecConfigurationRecord the container
// requires for this codec.
func (p *AV1Params) CodecPrivate() []byte {
	b := make([]byte, 4)
	b[0] = 0x81 // marker + version 1
	b[1] = p.Profile<<5 | p.Level
	b[2] = p.Tier << 7
	if p.BitDepth > 8 {
		b[2] |= 1 << 6
	}
	if p.BitDepth == 12 {
		b[2] |= 1 << 5
	}
	if p.Monochrome {
		b[2] |= 1 << 4
	}
	b[2] |= p.ChromaSubsamplingX << 3
	b[2] |= p.ChromaSubsamplingY << 2
	b[2] |= p.ChromaSamplePosition & 0x3
	return b
}

// ContainsAV1SequenceHeader walks the OBUs of a temporal unit looking for a
// sequence header, the marker of a random access point. Used as the
// keyframe signal when demuxing raw AV1 streams.
func ContainsAV1SequenceHeader(frame []byte) bool {
	for len(frame) > 0 {
		h := frame[0]
		if h&0x80 != 0 { // forbidden bit
			return false
		}
		obuType := h >> 3 & 0xF
		hasExt := h&0x04 != 0
		hasSize := h&0x02 != 0
		i := 1
		if hasExt {
			if len(frame) < 2 {
				return false
			}
			i++
		}
		if obuType == obuTypeSequenceHeader {
			return true
		}
		if !hasSize {
			// Size-less OBU extends to the end of the unit.
			return false
		}
		size, n := readLEB128(frame[i:])
		if n == 0 || i+n+int(size) > len(frame) {
			return false
		}
		frame = frame[i+n+int(size):]
	}
	return false
}

// readLEB128 decodes an unsigned LEB128 value, returning the value and the
// number of bytes consumed (0 on malformed input).
func readLEB128(b []byte) (uint64, int) {
	var v uint64
	for i := 0; i < len(b) && i < 8; i++ {
		v |= uint64(b[i]&0x7F) << (7 * i)
		if b[i]&0x80 == 0 {
			return v, i + 1
		}
	}
	return 0, 0
}
