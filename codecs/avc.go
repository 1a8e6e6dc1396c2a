package codecs

import (
	"fmt"

	"github.com/bluenviron/mediacommon/v2/pkg/codecs/h264"
)

// BuildAVCDecoderConfig assembles an AVCDecoderConfigurationRecord (the
// CodecPrivate payload for V_MPEG4/ISO/AVC) from raw SPS and PPS NAL units.
// The SPS is parsed first so malformed parameter sets are rejected instead
// of being embedded in the output.
func BuildAVCDecoderConfig(sps, pps []byte) ([]byte, error) {
	if len(sps) < 4 {
		return nil, fmt.Errorf("codecs: sps too short (%d bytes)", len(sps))
	}
	if len(pps) == 0 {
		return nil, fmt.Errorf("codecs: missing pps")
	}
	var parsed h264.SPS
	if err := parsed.Unmarshal(sps); err != nil {
		return nil, fmt.Errorf("codecs: invalid sps: %w", err)
	}

	cfg := make([]byte, 0, 11+len(sps)+len(pps))
	cfg = append(cfg,
		1,      // configurationVersion
		sps[1], // AVCProfileIndication
		sps[2], // profile_compatibility
		sps[3], // AVCLevelIndication
		0xFF,   // lengthSizeMinusOne = 3
		0xE1,   // numOfSequenceParameterSets = 1
		byte(len(sps)>>8), byte(len(sps)),
	)
	cfg = append(cfg, sps...)
	cfg = append(cfg, 1, byte(len(pps)>>8), byte(len(pps)))
	cfg = append(cfg, pps...)
	return cfg, nil
}

// ExtractAVCParameterSets pulls the first SPS and PPS out of an
// AVCDecoderConfigurationRecord.
func ExtractAVCParameterSets(avcc []byte) (sps, pps []byte, err error) {
	if len(avcc) < 7 || avcc[0] != 1 {
		return nil, nil, fmt.Errorf("codecs: not an avc decoder configuration record")
	}
	i := 5
	numSPS := int(avcc[i] & 0x1F)
	i++
	for n := 0; n < numSPS; n++ {
		if i+2 > len(avcc) {
			return nil, nil, fmt.Errorf("codecs: truncated sps list")
		}
		l := int(avcc[i])<<8 | int(avcc[i+1])
		i += 2
		if i+l > len(avcc) {
			return nil, nil, fmt.Errorf("codecs: truncated sps")
		}
		if l > 0 && sps == nil {
			sps = append([]byte{}, avcc[i:i+l]...)
		}
		i += l
	}
	if i >= len(avcc) {
		return nil, nil, fmt.Errorf("codecs: missing pps list")
	}
	numPPS := int(avcc[i])
	i++
	for n := 0; n < numPPS; n++ {
		if i+2 > len(avcc) {
			return nil, nil, fmt.Errorf("codecs: truncated pps list")
		}
		l := int(avcc[i])<<8 | int(avcc[i+1])
		i += 2
		if i+l > len(avcc) {
			return nil, nil, fmt.Errorf("codecs: truncated pps")
		}
		if l > 0 && pps == nil {
			pps = append([]byte{}, avcc[i:i+l]...)
		}
		i += l
	}
	if sps == nil || pps == nil {
		return nil, nil, fmt.Errorf("codecs: configuration record holds no parameter sets")
	}
	return sps, pps, nil
}

// AVCParameterSetsFromAnnexB scans an Annex-B access unit for SPS and PPS
// NAL units, for encoders that deliver parameter sets in-band instead of as
// a decoder configuration record.
func AVCParameterSetsFromAnnexB(au []byte) (sps, pps []byte, ok bool) {
	var annexB h264.AnnexB
	if err := annexB.Unmarshal(au); err != nil {
		return nil, nil, false
	}
	for _, nalu := range annexB {
		if len(nalu) == 0 {
			continue
		}
		switch h264.NALUType(nalu[0] & 0x1F) {
		case h264.NALUTypeSPS:
			sps = nalu
		case h264.NALUTypePPS:
			pps = nalu
		}
	}
	return sps, pps, sps != nil && pps != nil
}

// IsAVCKeyframeAnnexB reports whether an Annex-B access unit contains an
// IDR slice.
func IsAVCKeyframeAnnexB(au []byte) bool {
	var annexB h264.AnnexB
	if err := annexB.Unmarshal(au); err != nil {
		return false
	}
	for _, nalu := range annexB {
		if len(nalu) > 0 && h264.NALUType(nalu[0]&0x1F) == h264.NALUTypeIDR {
			return true
		}
	}
	return false
}
