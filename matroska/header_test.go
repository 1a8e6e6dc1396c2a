package matroska

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamkit/mkvmux/ebml"
)

func TestPoseRoll(t *testing.T) {
	cases := []struct {
		rotation int
		want     float32
	}{
		{90, -90},
		{180, 180},
		{270, 90},
	}
	for _, c := range cases {
		if got := poseRoll(c.rotation); got != c.want {
			t.Errorf("poseRoll(%d) = %v, want %v", c.rotation, got, c.want)
		}
	}
}

func TestNewUID(t *testing.T) {
	for i := 0; i < 64; i++ {
		id := newUID()
		if id == 0 {
			t.Fatal("zero uid")
		}
		if id>>63 != 0 {
			t.Fatalf("uid %#x does not fit a signed reader", id)
		}
	}
}

// seekEntries scans the fixed-layout seek entries the muxer writes:
// SeekID with a 4-byte payload directly followed by a 5-byte-wide
// SeekPosition.
func seekEntries(data []byte) map[string]int64 {
	out := make(map[string]int64)
	for i := 0; i+15 <= len(data); i++ {
		if data[i] != 0x53 || data[i+1] != 0xAB || data[i+2] != 0x84 {
			continue
		}
		if data[i+7] != 0x53 || data[i+8] != 0xAC || data[i+9] != 0x85 {
			continue
		}
		id := string(data[i+3 : i+7])
		pos := int64(0)
		for _, b := range data[i+10 : i+15] {
			pos = pos<<8 | int64(b)
		}
		out[id] = pos
	}
	return out
}

func TestMuxerMatroskaFeatures(t *testing.T) {
	avcC := []byte{0x01, 0x64, 0x00, 0x1F, 0xFF, 0xE1}
	cover := []byte{0x89, 0x50, 0x4E, 0x47}

	sink := ebml.NewBufferSink()
	m, err := NewMuxer(sink, Options{
		DocType: DocTypeMatroska,
		Attachments: []Attachment{{
			Name:        "cover.png",
			MediaType:   "image/png",
			Description: "front",
			Data:        cover,
		}},
		Tags: []Tag{{Name: "TITLE", Value: "Night Drive"}},
	})
	require.NoError(t, err)
	v, err := m.AddVideoTrack(VideoTrackOptions{TrackOptions: TrackOptions{Codec: "avc1.42E01E"}})
	require.NoError(t, err)
	require.NoError(t, m.Start())

	cfg := videoConfig()
	cfg.Description = avcC
	require.NoError(t, v.WritePacket(Packet{Data: []byte{0x20}, Keyframe: true, Config: cfg}))
	require.NoError(t, m.Finalize())

	data := sink.Bytes()
	assert.True(t, bytes.Contains(data, []byte("matroska")), "doctype")
	assert.True(t, bytes.Contains(data, []byte{0x73, 0xA4, 0x90}), "16-byte SegmentUID")
	assert.True(t, bytes.Contains(data, []byte("V_MPEG4/ISO/AVC")))
	assert.True(t, bytes.Contains(data, append([]byte{0x63, 0xA2, 0x86}, avcC...)), "CodecPrivate")

	assert.True(t, bytes.Contains(data, idAttachments))
	assert.True(t, bytes.Contains(data, []byte("cover.png")))
	assert.True(t, bytes.Contains(data, []byte("image/png")))
	assert.True(t, bytes.Contains(data, []byte("front")))
	assert.True(t, bytes.Contains(data, append([]byte{0x46, 0x5C, 0x84}, cover...)), "FileData")

	assert.True(t, bytes.Contains(data, idTags))
	assert.True(t, bytes.Contains(data, append([]byte{0x45, 0xA3, 0x85}, "TITLE"...)), "TagName")
	assert.True(t, bytes.Contains(data, append([]byte{0x44, 0x87, 0x8B}, "Night Drive"...)), "TagString")
	assert.True(t, bytes.Contains(data, append([]byte{0x44, 0x7A, 0x83}, "und"...)), "TagLanguage")

	// The seek index carries all five headed sections, each position
	// resolving to its target element.
	entries := seekEntries(data)
	require.Len(t, entries, 5)
	dataStart := segmentDataStart(t, data, true)
	for _, id := range [][]byte{idInfo, idTracks, idCues, idAttachments, idTags} {
		pos, ok := entries[string(id)]
		require.True(t, ok, "seek entry for % x", id)
		off := dataStart + pos
		assert.Equal(t, id, data[off:off+4], "seek position for % x", id)
	}
}

func TestMuxerWebMSkipsAttachments(t *testing.T) {
	sink := ebml.NewBufferSink()
	m, err := NewMuxer(sink, Options{
		Logger:      quietLogger(),
		Attachments: []Attachment{{Name: "cover.png", MediaType: "image/png", Data: []byte{0x89}}},
	})
	require.NoError(t, err)
	v, err := m.AddVideoTrack(VideoTrackOptions{TrackOptions: TrackOptions{Codec: "vp8"}})
	require.NoError(t, err)
	require.NoError(t, m.Start())
	require.NoError(t, v.WritePacket(Packet{Data: []byte{0x01}, Keyframe: true, Config: videoConfig()}))
	require.NoError(t, m.Finalize())

	data := sink.Bytes()
	assert.False(t, bytes.Contains(data, idAttachments))
	assert.False(t, bytes.Contains(data, []byte("cover.png")))
	assert.Len(t, seekEntries(data), 3, "only Info, Tracks and Cues are indexed")
}

func TestMuxerVideoProjection(t *testing.T) {
	sink := ebml.NewBufferSink()
	m, err := NewMuxer(sink, Options{})
	require.NoError(t, err)
	v, err := m.AddVideoTrack(VideoTrackOptions{
		TrackOptions: TrackOptions{Codec: "vp8"},
		Rotation:     270,
	})
	require.NoError(t, err)
	require.NoError(t, m.Start())
	require.NoError(t, v.WritePacket(Packet{Data: []byte{0x01}, Keyframe: true, Config: videoConfig()}))
	require.NoError(t, m.Finalize())

	data := sink.Bytes()
	assert.True(t, bytes.Contains(data, []byte{0x76, 0x71, 0x81, 0x00}), "rectangular projection type")

	roll := make([]byte, 4)
	binary.BigEndian.PutUint32(roll, 0x42B40000) // float32(90)
	assert.True(t, bytes.Contains(data, append([]byte{0x76, 0x75, 0x84}, roll...)),
		"270 degrees clockwise stores as a 90 degree pose roll")
}

func TestMuxerOpusPreSkip(t *testing.T) {
	// An explicit OpusHead wins over synthesis, and its pre-skip drives
	// the declared codec delay.
	head := make([]byte, 19)
	copy(head, "OpusHead")
	head[8] = 1
	head[9] = 2
	binary.LittleEndian.PutUint16(head[10:], 120) // pre-skip, 48kHz samples
	binary.LittleEndian.PutUint32(head[12:], 48000)

	sink := ebml.NewBufferSink()
	m, err := NewMuxer(sink, Options{})
	require.NoError(t, err)
	a, err := m.AddAudioTrack(AudioTrackOptions{TrackOptions: TrackOptions{Codec: "opus"}})
	require.NoError(t, err)
	require.NoError(t, m.Start())

	cfg := audioConfig()
	cfg.Description = head
	cfg.BitDepth = 16
	require.NoError(t, a.WritePacket(Packet{Data: []byte{0x01}, Keyframe: true, Config: cfg}))
	require.NoError(t, m.Finalize())

	f := parseFile(t, sink.Bytes())
	require.Len(t, f.Segment.Tracks.TrackEntry, 1)
	entry := f.Segment.Tracks.TrackEntry[0]
	assert.Equal(t, head, entry.CodecPrivate)
	assert.Equal(t, uint64(2_500_000), entry.CodecDelay, "120 samples at 48kHz")
	assert.Equal(t, uint64(80_000_000), entry.SeekPreRoll)
	require.NotNil(t, entry.Audio)
	assert.Equal(t, uint64(16), entry.Audio.BitDepth)
}
