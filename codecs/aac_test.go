package codecs

import (
	"bytes"
	"testing"
)

func TestBuildAACConfig(t *testing.T) {
	tests := []struct {
		sampleRate float64
		channels   int
		expect     []byte
	}{
		// AAC-LC, 48 kHz, stereo
		{48000, 2, []byte{0x11, 0x90}},
		// AAC-LC, 44.1 kHz, stereo
		{44100, 2, []byte{0x12, 0x10}},
		// AAC-LC, 48 kHz, mono
		{48000, 1, []byte{0x11, 0x88}},
	}

	for _, tt := range tests {
		cfg, err := BuildAACConfig(tt.sampleRate, tt.channels)
		if err != nil {
			t.Fatalf("BuildAACConfig(%v, %d) failed: %v", tt.sampleRate, tt.channels, err)
		}
		if !bytes.Equal(cfg, tt.expect) {
			t.Errorf("BuildAACConfig(%v, %d) = % 02x, want % 02x",
				tt.sampleRate, tt.channels, cfg, tt.expect)
		}
	}
}
