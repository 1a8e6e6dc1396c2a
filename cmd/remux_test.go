package cmd

import (
	"bytes"
	"encoding/binary"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamkit/mkvmux/config"
	"github.com/streamkit/mkvmux/ebml"
	"github.com/streamkit/mkvmux/internal/ivf"
	"github.com/streamkit/mkvmux/internal/version"
	"github.com/streamkit/mkvmux/matroska"
)

func TestDefaultOutputName(t *testing.T) {
	tests := []struct {
		input   string
		docType matroska.DocType
		want    string
	}{
		{"clip.ivf", matroska.DocTypeWebM, "clip.webm"},
		{"clip.ivf", matroska.DocTypeMatroska, "clip.mkv"},
		{filepath.Join("takes", "take.2.ivf"), matroska.DocTypeWebM, filepath.Join("takes", "take.2.webm")},
		{"raw", matroska.DocTypeWebM, "raw.webm"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, defaultOutputName(tt.input, tt.docType))
	}
}

func TestLoadCoverAttachment(t *testing.T) {
	dir := t.TempDir()
	data := []byte{0x89, 0x50, 0x4E, 0x47}

	path := filepath.Join(dir, "cover.png")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	att, err := loadCoverAttachment(path)
	require.NoError(t, err)
	assert.Equal(t, "cover.png", att.Name)
	assert.Equal(t, "image/png", att.MediaType)
	assert.Equal(t, data, att.Data)

	upper := filepath.Join(dir, "COVER.JPG")
	require.NoError(t, os.WriteFile(upper, data, 0o644))
	att, err = loadCoverAttachment(upper)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", att.MediaType)

	plain := filepath.Join(dir, "cover.bin")
	require.NoError(t, os.WriteFile(plain, data, 0o644))
	att, err = loadCoverAttachment(plain)
	require.NoError(t, err)
	assert.Equal(t, "application/octet-stream", att.MediaType)

	_, err = loadCoverAttachment(filepath.Join(dir, "missing.png"))
	assert.Error(t, err)
}

func TestResolveMuxSettings(t *testing.T) {
	t.Setenv("MKVMUX_PRESET_PATH", filepath.Join(t.TempDir(), "presets.toml"))

	pm := config.NewPresetManager()
	require.NoError(t, pm.Load())
	require.NoError(t, pm.Add("archive", config.Preset{
		DocType:            "matroska",
		MinClusterDuration: "250ms",
		WritingApp:         "archiver/2.0",
	}))
	require.NoError(t, pm.Add("talk", config.Preset{
		DocType:  "webm",
		Language: "eng",
	}))

	t.Run("current preset applies", func(t *testing.T) {
		// "archive" was added first and became current.
		s, err := resolveMuxSettings(NewRemuxCommand(), &RemuxOptions{})
		require.NoError(t, err)
		assert.Equal(t, matroska.DocTypeMatroska, s.docType)
		assert.Equal(t, 250*time.Millisecond, s.minCluster)
		assert.Equal(t, "archiver/2.0", s.writingApp)
	})

	t.Run("named preset beats current", func(t *testing.T) {
		s, err := resolveMuxSettings(NewRemuxCommand(), &RemuxOptions{Preset: "talk"})
		require.NoError(t, err)
		assert.Equal(t, matroska.DocTypeWebM, s.docType)
		assert.Equal(t, "eng", s.language)
		// "talk" sets no writing app, so the built-in stamp applies.
		assert.Equal(t, version.AppString(), s.writingApp)
	})

	t.Run("flags beat the preset", func(t *testing.T) {
		cmd := NewRemuxCommand()
		require.NoError(t, cmd.Flags().Set("doctype", "webm"))
		s, err := resolveMuxSettings(cmd, &RemuxOptions{
			Preset:     "archive",
			DocType:    "webm",
			MinCluster: 50 * time.Millisecond,
			Language:   "jpn",
		})
		require.NoError(t, err)
		assert.Equal(t, matroska.DocTypeWebM, s.docType)
		assert.Equal(t, 50*time.Millisecond, s.minCluster)
		assert.Equal(t, "jpn", s.language)
	})

	t.Run("unknown preset", func(t *testing.T) {
		_, err := resolveMuxSettings(NewRemuxCommand(), &RemuxOptions{Preset: "nope"})
		assert.ErrorContains(t, err, "not found")
	})

	t.Run("invalid doctype", func(t *testing.T) {
		cmd := NewRemuxCommand()
		require.NoError(t, cmd.Flags().Set("doctype", "avi"))
		_, err := resolveMuxSettings(cmd, &RemuxOptions{DocType: "avi"})
		assert.ErrorContains(t, err, "invalid doctype")
	})
}

// Ogg page checksums use CRC-32 with polynomial 0x04c11db7, no reflection,
// computed over the page with the checksum field zeroed.
var oggCRCTable = func() [256]uint32 {
	var table [256]uint32
	const poly = 0x04c11db7
	for i := range table {
		r := uint32(i) << 24
		for j := 0; j < 8; j++ {
			if r&0x80000000 != 0 {
				r = r<<1 ^ poly
			} else {
				r <<= 1
			}
		}
		table[i] = r
	}
	return table
}()

func oggPage(headerType byte, granule uint64, index uint32, payload []byte) []byte {
	page := make([]byte, 27, 28+len(payload))
	copy(page, "OggS")
	page[5] = headerType
	binary.LittleEndian.PutUint64(page[6:], granule)
	binary.LittleEndian.PutUint32(page[14:], 0xbeef)
	binary.LittleEndian.PutUint32(page[18:], index)
	page[26] = 1
	page = append(page, byte(len(payload)))
	page = append(page, payload...)

	var crc uint32
	for i, b := range page {
		if i >= 22 && i < 26 {
			b = 0
		}
		crc = crc<<8 ^ oggCRCTable[byte(crc>>24)^b]
	}
	binary.LittleEndian.PutUint32(page[22:], crc)
	return page
}

func opusIDHeader(channels uint8, preSkip uint16) []byte {
	head := make([]byte, 19)
	copy(head, "OpusHead")
	head[8] = 1
	head[9] = channels
	binary.LittleEndian.PutUint16(head[10:], preSkip)
	binary.LittleEndian.PutUint32(head[12:], 48000)
	return head
}

// sampleOgg is two 20ms Opus packets behind the identification and comment
// headers.
func sampleOgg() []byte {
	var buf bytes.Buffer
	buf.Write(oggPage(0x02, 0, 0, opusIDHeader(2, 312)))
	buf.Write(oggPage(0, 0, 1, append([]byte("OpusTags"), 0, 0, 0, 0)))
	buf.Write(oggPage(0, 960, 2, []byte{0xFC, 0x01, 0x02}))
	buf.Write(oggPage(0, 1920, 3, []byte{0xFC, 0x03, 0x04}))
	return buf.Bytes()
}

func TestOggSourceTimestamps(t *testing.T) {
	src, err := newOggSource(bytes.NewReader(sampleOgg()))
	require.NoError(t, err)
	assert.Equal(t, uint8(2), src.header.Channels)
	assert.Equal(t, uint16(312), src.header.PreSkip)

	// The comment page is skipped; granule deltas count 48 kHz samples.
	p1, err := src.next()
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), p1.ts)
	assert.Equal(t, 20*time.Millisecond, p1.duration)
	assert.Equal(t, []byte{0xFC, 0x01, 0x02}, p1.data)

	p2, err := src.next()
	require.NoError(t, err)
	assert.Equal(t, 20*time.Millisecond, p2.ts)
	assert.Equal(t, 20*time.Millisecond, p2.duration)

	p3, err := src.next()
	require.NoError(t, err)
	assert.Nil(t, p3)
}

func TestOggSourceOpusHead(t *testing.T) {
	src, err := newOggSource(bytes.NewReader(sampleOgg()))
	require.NoError(t, err)

	head := src.opusHead()
	require.Len(t, head, 19)
	assert.Equal(t, "OpusHead", string(head[:8]))
	assert.Equal(t, byte(1), head[8])
	assert.Equal(t, byte(2), head[9])
	assert.Equal(t, uint16(312), binary.LittleEndian.Uint16(head[10:]))
	assert.Equal(t, uint32(48000), binary.LittleEndian.Uint32(head[12:]))
}

func TestMergeStreams(t *testing.T) {
	video, err := ivf.Open(bytes.NewReader(sampleIVF()))
	require.NoError(t, err)
	audio, err := newOggSource(bytes.NewReader(sampleOgg()))
	require.NoError(t, err)

	sink := ebml.NewBufferSink()
	m, err := matroska.NewMuxer(sink, matroska.Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	require.NoError(t, err)
	videoTrack, err := m.AddVideoTrack(matroska.VideoTrackOptions{TrackOptions: matroska.TrackOptions{Codec: "vp8"}})
	require.NoError(t, err)
	audioTrack, err := m.AddAudioTrack(matroska.AudioTrackOptions{TrackOptions: matroska.TrackOptions{Codec: "opus"}})
	require.NoError(t, err)
	require.NoError(t, m.Start())

	stats, err := mergeStreams(video, videoTrack, audio, audioTrack)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.videoPackets)
	assert.Equal(t, 2, stats.audioPackets)
	assert.Equal(t, 40*time.Millisecond, stats.duration)

	require.NoError(t, m.Finalize())

	f := parseProbeFile(t, sink.Bytes())
	require.Len(t, f.Segment.Tracks.TrackEntry, 2)
	assert.Equal(t, "V_VP8", f.Segment.Tracks.TrackEntry[0].CodecID)
	assert.Equal(t, "A_OPUS", f.Segment.Tracks.TrackEntry[1].CodecID)
	assert.Equal(t, uint64(320), f.Segment.Tracks.TrackEntry[0].Video.PixelWidth)
	assert.Equal(t, float64(48000), f.Segment.Tracks.TrackEntry[1].Audio.SamplingFrequency)
}

func TestMergeStreamsVideoOnly(t *testing.T) {
	video, err := ivf.Open(bytes.NewReader(sampleIVF()))
	require.NoError(t, err)

	sink := ebml.NewBufferSink()
	m, err := matroska.NewMuxer(sink, matroska.Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	require.NoError(t, err)
	track, err := m.AddVideoTrack(matroska.VideoTrackOptions{TrackOptions: matroska.TrackOptions{Codec: "vp8"}})
	require.NoError(t, err)
	require.NoError(t, m.Start())

	stats, err := mergeStreams(video, track, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.videoPackets)
	assert.Zero(t, stats.audioPackets)

	require.NoError(t, m.Finalize())
	require.Len(t, parseProbeFile(t, sink.Bytes()).Segment.Tracks.TrackEntry, 1)
}
