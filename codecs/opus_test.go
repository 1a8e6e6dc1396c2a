package codecs

import (
	"bytes"
	"testing"
)

func TestBuildOpusHead(t *testing.T) {
	head, err := BuildOpusHead(2, 48000)
	if err != nil {
		t.Fatalf("BuildOpusHead failed: %v", err)
	}

	expect := []byte{
		'O', 'p', 'u', 's', 'H', 'e', 'a', 'd',
		0x01,       // version
		0x02,       // channel count
		0x38, 0x01, // pre-skip (312)
		// input sample rate (48000)
		0x80, 0xbb, 0x00, 0x00,
		0x00, 0x00, // output gain
		0x00,       // mapping family
	}
	if !bytes.Equal(head, expect) {
		t.Fatalf("header = % 02x, want % 02x", head, expect)
	}
	if !IsOpusHead(head) {
		t.Error("synthesized header not recognized")
	}
}

func TestBuildOpusHeadMono(t *testing.T) {
	head, err := BuildOpusHead(1, 24000)
	if err != nil {
		t.Fatalf("BuildOpusHead failed: %v", err)
	}
	if head[9] != 1 {
		t.Errorf("channel count = %d, want 1", head[9])
	}
	// 24000 little-endian
	if head[12] != 0xc0 || head[13] != 0x5d || head[14] != 0x00 || head[15] != 0x00 {
		t.Errorf("sample rate bytes = % 02x", head[12:16])
	}
}

func TestBuildOpusHeadRejectsChannelCount(t *testing.T) {
	if _, err := BuildOpusHead(0, 48000); err == nil {
		t.Error("accepted zero channels")
	}
	if _, err := BuildOpusHead(3, 48000); err == nil {
		t.Error("accepted channel count needing a mapping table")
	}
}

func TestIsOpusHead(t *testing.T) {
	if IsOpusHead([]byte("OpusTags")) {
		t.Error("comment header recognized as identification header")
	}
	if IsOpusHead([]byte("OpusHead")) {
		t.Error("truncated header accepted")
	}
	if IsOpusHead(nil) {
		t.Error("empty input accepted")
	}
}
