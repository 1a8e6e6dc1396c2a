package matroska

import (
	"log/slog"
	"time"
)

// DocType selects the document type declared in the EBML header. It gates
// which codecs a file may carry.
type DocType string

const (
	DocTypeWebM     DocType = "webm"
	DocTypeMatroska DocType = "matroska"
)

const defaultMinClusterDuration = time.Second

// Options configure a Muxer.
type Options struct {
	// DocType defaults to webm.
	DocType DocType

	// MinClusterDuration is the minimum span a cluster must cover before a
	// keyframe may start a new one. Defaults to one second.
	MinClusterDuration time.Duration

	MuxingApp  string
	WritingApp string

	// Attachments are embedded files, written for the matroska doctype
	// only; webm output skips them with a warning.
	Attachments []Attachment

	// Tags are segment-level name/value pairs.
	Tags []Tag

	Logger *slog.Logger

	// Byte-range callbacks for incremental consumers. Positions are
	// absolute sink offsets; the data slice is reused and only valid for
	// the duration of the call. In seekable mode the delivered bytes
	// reflect the stream as first written; later patch-backs of earlier
	// regions are not re-delivered.
	OnEBMLHeader    func(pos int64, data []byte)
	OnSegmentHeader func(pos int64, data []byte)
	OnCluster       func(pos int64, data []byte, timestamp time.Duration)
}

func (o *Options) withDefaults() Options {
	out := *o
	if out.DocType == "" {
		out.DocType = DocTypeWebM
	}
	if out.MinClusterDuration <= 0 {
		out.MinClusterDuration = defaultMinClusterDuration
	}
	if out.MuxingApp == "" {
		out.MuxingApp = "mkvmux"
	}
	if out.WritingApp == "" {
		out.WritingApp = "mkvmux"
	}
	if out.Logger == nil {
		out.Logger = slog.Default()
	}
	return out
}

// Attachment is a file embedded in the segment (matroska doctype only).
type Attachment struct {
	Name        string
	MediaType   string
	Description string
	Data        []byte
}

// Tag is one segment-level SimpleTag.
type Tag struct {
	Name  string
	Value string
}

// TrackOptions carries the per-track declaration fields common to all track
// types.
type TrackOptions struct {
	// Codec is a WebCodecs-style codec string ("vp09.00.41.08", "opus",
	// "avc1.42E01E", ...). Required.
	Codec string

	// Language is an ISO 639-2 code, defaulting to "und".
	Language string

	Name string

	// TimestampOffset is added to every packet timestamp of this track
	// before validation, for aligning tracks with different zero points.
	TimestampOffset time.Duration
}

// VideoTrackOptions declare a video track.
type VideoTrackOptions struct {
	TrackOptions

	// FrameRate, when known, is written as the track's default frame
	// duration.
	FrameRate float64

	// Rotation is the display rotation in degrees (0, 90, 180 or 270),
	// stored as a projection pose roll.
	Rotation int

	// Alpha marks the track as carrying an alpha plane in block-additional
	// side data.
	Alpha bool
}

// AudioTrackOptions declare an audio track.
type AudioTrackOptions struct {
	TrackOptions
}

// SubtitleTrackOptions declare a subtitle track.
type SubtitleTrackOptions struct {
	TrackOptions
}

// ColorSpace declares color metadata for a video track. It is written into
// the track entry and, for VP9, patched into keyframe headers so bitstream
// and container agree.
type ColorSpace struct {
	// MatrixCoefficients, TransferCharacteristics and Primaries use the
	// numeric code points shared by Matroska and ISO 23001-8.
	MatrixCoefficients      uint8
	TransferCharacteristics uint8
	Primaries               uint8

	FullRange bool
}

// DecoderConfig is the decoder configuration delivered with a track's first
// packet. Video tracks use the dimension fields, audio tracks the sample
// fields.
type DecoderConfig struct {
	CodedWidth  int
	CodedHeight int

	SampleRate float64
	Channels   int
	BitDepth   int

	// Description holds codec-specific configuration bytes (avcC, OpusHead,
	// AudioSpecificConfig, ...). When empty the muxer synthesizes it for
	// codecs that permit synthesis, and rejects codecs that do not.
	Description []byte

	ColorSpace *ColorSpace
}

// Packet is one encoded sample.
type Packet struct {
	Data     []byte
	Keyframe bool

	Timestamp time.Duration
	Duration  time.Duration

	// Additions carries block-additional side data (BlockAddID 1), e.g. an
	// alpha plane.
	Additions []byte

	// Config must accompany the first packet of a video or audio track.
	Config *DecoderConfig
}
