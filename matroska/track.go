package matroska

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"

	"github.com/streamkit/mkvmux/codecs"
	"github.com/streamkit/mkvmux/ebml"
)

// TrackType is the Matroska track type code.
type TrackType uint8

const (
	TrackTypeVideo    TrackType = 1
	TrackTypeAudio    TrackType = 2
	TrackTypeSubtitle TrackType = 17
)

func (t TrackType) String() string {
	switch t {
	case TrackTypeVideo:
		return "video"
	case TrackTypeAudio:
		return "audio"
	case TrackTypeSubtitle:
		return "subtitle"
	}
	return fmt.Sprintf("TrackType(%d)", uint8(t))
}

// Track is one declared stream of a Muxer. Tracks are created through the
// muxer's Add*Track methods before Start; packets then arrive through
// WritePacket in per-track timestamp order.
//
// A track starts out declared but unknown: its decoder configuration is
// pinned by the first packet. Until every track is either known or closed
// the muxer buffers packets instead of writing them, so that the track
// header block can be emitted once, complete.
type Track struct {
	mux *Muxer

	number uint64
	uid    uint64
	typ    TrackType

	opts      TrackOptions
	frameRate float64
	rotation  int
	alpha     bool

	codecID codecs.ID
	config  *DecoderConfig
	private []byte

	// VP9 keyframe headers carry their own color-space field; when the
	// declared matrix maps onto one of its code points, keyframes are
	// patched to match the track entry.
	patch   bool
	patchCS uint8

	// Timestamp validator state, in milliseconds after the track offset.
	seen    bool
	floor   int64
	maxSeen int64

	known  bool
	closed bool
	queue  []*packet

	hasWritten  bool
	lastWritten int64

	hasClusterFirst bool
	clusterFirst    int64
}

// Number returns the track number used in block headers.
func (t *Track) Number() uint64 { return t.number }

// Type returns the track's Matroska type.
func (t *Track) Type() TrackType { return t.typ }

// CodecID returns the resolved Matroska codec ID.
func (t *Track) CodecID() codecs.ID { return t.codecID }

// WritePacket validates, buffers and eventually serializes one encoded
// sample. See Muxer.Start for the lifecycle requirements.
func (t *Track) WritePacket(p Packet) error {
	return t.mux.writePacket(t, p)
}

// Close declares that no further packets will arrive on this track. Pending
// packets of other tracks stop waiting on it. Closing an already-closed
// track is a no-op.
func (t *Track) Close() error {
	return t.mux.closeTrack(t)
}

// register pins the track's decoder configuration from its first packet.
// It is all-or-nothing: on error the track stays unknown and the same
// packet may be retried with a corrected config.
func (t *Track) register(cfg *DecoderConfig) error {
	if cfg == nil {
		if t.typ != TrackTypeSubtitle {
			return fmt.Errorf("%w: first packet of a %s track must carry a config", ErrMissingDecoderConfig, t.typ)
		}
		cfg = &DecoderConfig{}
	}
	switch t.typ {
	case TrackTypeVideo:
		if cfg.CodedWidth <= 0 || cfg.CodedHeight <= 0 {
			return fmt.Errorf("%w: video config needs coded dimensions", ErrMissingDecoderConfig)
		}
	case TrackTypeAudio:
		if cfg.SampleRate <= 0 || cfg.Channels <= 0 {
			return fmt.Errorf("%w: audio config needs sample rate and channels", ErrMissingDecoderConfig)
		}
	}
	private, err := t.resolvePrivate(cfg)
	if err != nil {
		return err
	}
	t.config = cfg
	t.private = private
	if t.codecID == codecs.VP9 && cfg.ColorSpace != nil {
		if cs, ok := codecs.VP9ColorSpaceFromMatrix(cfg.ColorSpace.MatrixCoefficients); ok {
			t.patch = true
			t.patchCS = cs
		}
	}
	t.known = true
	return nil
}

// resolvePrivate produces the CodecPrivate payload for the track: an
// explicit description wins, otherwise it is synthesized for codecs whose
// configuration is recoverable from the codec string or the audio
// parameters.
func (t *Track) resolvePrivate(cfg *DecoderConfig) ([]byte, error) {
	if len(cfg.Description) > 0 {
		return append([]byte(nil), cfg.Description...), nil
	}
	switch t.codecID {
	case codecs.VP9:
		// A full vp09 string pins profile, level, depth and chroma; a
		// bare "vp9" carries nothing and the private is simply omitted.
		if p, err := codecs.ParseVP9CodecString(t.opts.Codec); err == nil {
			return p.CodecPrivate(), nil
		}
		return nil, nil
	case codecs.AV1:
		p, err := codecs.ParseAV1CodecString(t.opts.Codec)
		if err != nil {
			return nil, fmt.Errorf("%w: av1 needs a full codec string or an explicit description", ErrMissingDecoderConfig)
		}
		return p.CodecPrivate(), nil
	case codecs.Opus:
		return codecs.BuildOpusHead(cfg.Channels, cfg.SampleRate)
	case codecs.AAC:
		return codecs.BuildAACConfig(cfg.SampleRate, cfg.Channels)
	}
	if codecs.RequiresPrivateData(t.codecID) {
		return nil, fmt.Errorf("%w: %s needs an explicit description", ErrMissingDecoderConfig, t.codecID)
	}
	return nil, nil
}

// codecDelay returns the decoder-side delay to declare on the track entry,
// in nanoseconds. For Opus it is the pre-skip the OpusHead announces.
func (t *Track) codecDelay() uint64 {
	if t.codecID != codecs.Opus || !codecs.IsOpusHead(t.private) {
		return 0
	}
	preSkip := uint64(binary.LittleEndian.Uint16(t.private[10:12]))
	return preSkip * 1_000_000_000 / 48000
}

// entryElement builds the TrackEntry for the Tracks header.
func (t *Track) entryElement() *ebml.Element {
	entry := ebml.Master(ebml.IDTrackEntry,
		ebml.Uint(ebml.IDTrackNumber, t.number),
		ebml.Uint(ebml.IDTrackUID, t.uid),
		ebml.Uint(ebml.IDTrackType, uint64(t.typ)),
		ebml.String(ebml.IDCodecID, string(t.codecID)),
	)
	if len(t.private) > 0 {
		entry.Append(ebml.Bytes(ebml.IDCodecPrivate, t.private))
	}
	if delay := t.codecDelay(); delay > 0 {
		entry.Append(ebml.Uint(ebml.IDCodecDelay, delay))
	}
	if t.codecID == codecs.Opus {
		// Matroska asks demuxers to hand decoders 80ms of lead-in after
		// a seek so the Opus decoder converges.
		entry.Append(ebml.Uint(ebml.IDSeekPreRoll, 80_000_000))
	}
	if t.typ == TrackTypeVideo && t.frameRate > 0 {
		entry.Append(ebml.Uint(ebml.IDDefaultDuration, uint64(1e9/t.frameRate+0.5)))
	}
	lang := t.opts.Language
	if lang == "" {
		lang = "und"
	}
	entry.Append(ebml.String(ebml.IDLanguage, lang))
	if t.opts.Name != "" {
		entry.Append(ebml.String(ebml.IDName, t.opts.Name))
	}
	switch t.typ {
	case TrackTypeVideo:
		entry.Append(t.videoElement())
	case TrackTypeAudio:
		entry.Append(t.audioElement())
	}
	return entry
}

func (t *Track) videoElement() *ebml.Element {
	video := ebml.Master(ebml.IDVideo,
		ebml.Uint(ebml.IDPixelWidth, uint64(t.config.CodedWidth)),
		ebml.Uint(ebml.IDPixelHeight, uint64(t.config.CodedHeight)),
	)
	if t.alpha {
		video.Append(ebml.Uint(ebml.IDAlphaMode, 1))
	}
	if cs := t.config.ColorSpace; cs != nil {
		rng := uint64(1)
		if cs.FullRange {
			rng = 2
		}
		video.Append(ebml.Master(ebml.IDColour,
			ebml.Uint(ebml.IDMatrixCoefficients, uint64(cs.MatrixCoefficients)),
			ebml.Uint(ebml.IDRange, rng),
			ebml.Uint(ebml.IDTransferCharacteristics, uint64(cs.TransferCharacteristics)),
			ebml.Uint(ebml.IDPrimaries, uint64(cs.Primaries)),
		))
	}
	if t.rotation != 0 {
		video.Append(ebml.Master(ebml.IDProjection,
			ebml.Uint(ebml.IDProjectionType, 0),
			ebml.Float32El(ebml.IDProjectionPoseRoll, poseRoll(t.rotation)),
		))
	}
	return video
}

func (t *Track) audioElement() *ebml.Element {
	audio := ebml.Master(ebml.IDAudio,
		ebml.Float64El(ebml.IDSamplingFrequency, t.config.SampleRate),
		ebml.Uint(ebml.IDChannels, uint64(t.config.Channels)),
	)
	if t.config.BitDepth > 0 {
		audio.Append(ebml.Uint(ebml.IDBitDepth, uint64(t.config.BitDepth)))
	}
	return audio
}

// poseRoll maps a clockwise display rotation onto the counter-clockwise
// projection pose roll, normalized to (-180, 180].
func poseRoll(rotation int) float32 {
	r := -(rotation % 360)
	if r <= -180 {
		r += 360
	}
	return float32(r)
}

// newUID returns a random nonzero element UID. The top bit stays clear so
// readers that parse UIDs as signed integers see the same value.
func newUID() uint64 {
	u := uuid.New()
	id := binary.BigEndian.Uint64(u[:8]) &^ (1 << 63)
	if id == 0 {
		id = 1
	}
	return id
}
