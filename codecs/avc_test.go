package codecs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSPS = []byte{
	0x67, 0x42, 0xc0, 0x28, 0xd9, 0x00, 0x78, 0x02,
	0x27, 0xe5, 0x84, 0x00, 0x00, 0x03, 0x00, 0x04,
	0x00, 0x00, 0x03, 0x00, 0xf0, 0x3c, 0x60, 0xc9,
	0x20,
}

var testPPS = []byte{0x68, 0xce, 0x38, 0x80}

var testIDR = []byte{0x65, 0x88, 0x84, 0x00, 0x10}

var testPFrame = []byte{0x41, 0x9a, 0x24, 0x8c, 0x09}

func TestBuildAVCDecoderConfig(t *testing.T) {
	cfg, err := BuildAVCDecoderConfig(testSPS, testPPS)
	require.NoError(t, err)

	expect := []byte{
		0x01,       // configurationVersion
		0x42,       // AVCProfileIndication
		0xc0,       // profile_compatibility
		0x28,       // AVCLevelIndication
		0xFF,       // lengthSizeMinusOne
		0xE1,       // numOfSequenceParameterSets
		0x00, 0x19, // SPS length (25 bytes)
	}
	expect = append(expect, testSPS...)
	expect = append(expect, 0x01, 0x00, 0x04)
	expect = append(expect, testPPS...)

	assert.Equal(t, expect, cfg)
}

func TestBuildAVCDecoderConfigRejects(t *testing.T) {
	// SPS too short to carry profile and level bytes.
	_, err := BuildAVCDecoderConfig([]byte{0x67, 0x42}, testPPS)
	assert.Error(t, err)

	// Missing PPS.
	_, err = BuildAVCDecoderConfig(testSPS, nil)
	assert.Error(t, err)

	// Wrong NAL unit type (a PPS passed as SPS).
	_, err = BuildAVCDecoderConfig(testPPS, testPPS)
	assert.Error(t, err)
}

// TestExtractAVCParameterSets tests parameter set extraction from decoder
// configuration records with various inputs
func TestExtractAVCParameterSets(t *testing.T) {
	tests := []struct {
		name        string
		avcc        []byte
		expectSPS   []byte
		expectPPS   []byte
		expectErr   bool
		description string
	}{
		{
			name: "valid_record",
			avcc: []byte{
				0x01,       // version
				0x42,       // profile
				0x00,       // compatibility
				0x28,       // level
				0xFE,       // lengthSizeMinusOne
				0xE1,       // numOfSPS (1)
				0x00, 0x04, // SPS length
				0x67, 0x42, 0xc0, 0x28,
				0x01,       // numOfPPS
				0x00, 0x04, // PPS length
				0x68, 0xce, 0x38, 0x80,
			},
			expectSPS:   []byte{0x67, 0x42, 0xc0, 0x28},
			expectPPS:   []byte{0x68, 0xce, 0x38, 0x80},
			description: "Record with one SPS and one PPS",
		},
		{
			name: "multiple_sps_returns_first",
			avcc: []byte{
				0x01, 0x42, 0x00, 0x28, 0xFE,
				0xE2,       // numOfSPS (2)
				0x00, 0x04, // SPS1 length
				0x67, 0x42, 0xc0, 0x28,
				0x00, 0x05, // SPS2 length
				0x67, 0x42, 0xc0, 0x28, 0xd9,
				0x01,       // numOfPPS
				0x00, 0x04, // PPS length
				0x68, 0xce, 0x38, 0x80,
			},
			expectSPS:   []byte{0x67, 0x42, 0xc0, 0x28},
			expectPPS:   []byte{0x68, 0xce, 0x38, 0x80},
			description: "First SPS wins when the record carries several",
		},
		{
			name: "invalid_version",
			avcc: []byte{
				0x02, 0x42, 0x00, 0x28, 0xFE, 0xE1,
				0x00, 0x04, 0x67, 0x42, 0xc0, 0x28,
				0x01, 0x00, 0x04, 0x68, 0xce, 0x38, 0x80,
			},
			expectErr:   true,
			description: "Version byte must be 1",
		},
		{
			name:        "too_short",
			avcc:        []byte{0x01, 0x42, 0x00},
			expectErr:   true,
			description: "Record shorter than the fixed header",
		},
		{
			name: "no_pps",
			avcc: []byte{
				0x01, 0x42, 0x00, 0x28, 0xFE, 0xE1,
				0x00, 0x04, 0x67, 0x42, 0xc0, 0x28,
				0x00, // numOfPPS (0)
			},
			expectErr:   true,
			description: "A record without PPS is unusable",
		},
		{
			name: "truncated_record",
			avcc: []byte{
				0x01, 0x42, 0x00, 0x28, 0xFE, 0xE1,
				0x00, 0x04, 0x67, 0x42, 0xc0, 0x28,
			},
			expectErr:   true,
			description: "Record ends before the PPS count",
		},
		{
			name: "malformed_sps_length",
			avcc: []byte{
				0x01, 0x42, 0x00, 0x28, 0xFE, 0xE1,
				0xFF, 0xFF, // SPS length far past the end
				0x67, 0x42,
			},
			expectErr:   true,
			description: "Declared SPS length exceeds the record",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sps, pps, err := ExtractAVCParameterSets(tt.avcc)
			if tt.expectErr {
				assert.Error(t, err, tt.description)
				return
			}
			require.NoError(t, err, tt.description)
			assert.Equal(t, tt.expectSPS, sps, "SPS mismatch. %s", tt.description)
			assert.Equal(t, tt.expectPPS, pps, "PPS mismatch. %s", tt.description)

			// Verify NAL unit types
			assert.Equal(t, byte(7), sps[0]&0x1F, "SPS should have NAL unit type 7")
			assert.Equal(t, byte(8), pps[0]&0x1F, "PPS should have NAL unit type 8")
		})
	}
}

func TestAVCConfigRoundTrip(t *testing.T) {
	cfg, err := BuildAVCDecoderConfig(testSPS, testPPS)
	require.NoError(t, err)

	sps, pps, err := ExtractAVCParameterSets(cfg)
	require.NoError(t, err)
	assert.Equal(t, testSPS, sps)
	assert.Equal(t, testPPS, pps)
}

func annexBAccessUnit(nalus ...[]byte) []byte {
	var au []byte
	for _, nalu := range nalus {
		au = append(au, 0x00, 0x00, 0x00, 0x01)
		au = append(au, nalu...)
	}
	return au
}

func TestAVCParameterSetsFromAnnexB(t *testing.T) {
	au := annexBAccessUnit(testSPS, testPPS, testIDR)

	sps, pps, ok := AVCParameterSetsFromAnnexB(au)
	require.True(t, ok)
	assert.Equal(t, testSPS, sps)
	assert.Equal(t, testPPS, pps)

	// An access unit without parameter sets yields nothing.
	_, _, ok = AVCParameterSetsFromAnnexB(annexBAccessUnit(testPFrame))
	assert.False(t, ok)

	// Not Annex-B at all.
	_, _, ok = AVCParameterSetsFromAnnexB([]byte{0x01, 0x02, 0x03})
	assert.False(t, ok)
}

func TestIsAVCKeyframeAnnexB(t *testing.T) {
	assert.True(t, IsAVCKeyframeAnnexB(annexBAccessUnit(testSPS, testPPS, testIDR)))
	assert.False(t, IsAVCKeyframeAnnexB(annexBAccessUnit(testPFrame)))
	assert.False(t, IsAVCKeyframeAnnexB([]byte{0x01, 0x02, 0x03}))
}
