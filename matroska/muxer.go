// Package matroska writes Matroska and WebM containers incrementally.
//
// A Muxer serializes packets from any number of declared tracks into a
// single segment, interleaving them into clusters in global timestamp
// order and enforcing the per-track ordering rules the format expects
// (keyframe-first, no reaching behind the last keyframe). Output goes to
// an ebml.Sink: seekable sinks get a finished file with SeekHead, Cues,
// sized elements and a patched duration; append-only sinks get a live
// stream with unknown-size elements that players can join mid-flight.
//
// Track decoder configuration travels with the first packet of each track,
// the way WebCodecs encoders deliver it, so the muxer defers the segment
// header until every track has revealed itself or been closed. Callers
// that need the produced byte ranges as they are finished (for example to
// fan out a live stream) register the On* callbacks in Options.
//
// The zero flow is: NewMuxer, AddVideoTrack/AddAudioTrack/AddSubtitleTrack,
// Start, any number of WritePacket calls, Finalize. Cancel abandons the
// output at any point before finalization. A Muxer is safe for concurrent
// use; writes from different goroutines are serialized.
package matroska

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/streamkit/mkvmux/codecs"
	"github.com/streamkit/mkvmux/ebml"
)

type muxState uint8

const (
	statePending muxState = iota
	stateStarted
	stateFinalizing
	stateFinalized
	stateCanceled
)

func (s muxState) String() string {
	switch s {
	case statePending:
		return "pending"
	case stateStarted:
		return "started"
	case stateFinalizing:
		return "finalizing"
	case stateFinalized:
		return "finalized"
	case stateCanceled:
		return "canceled"
	}
	return fmt.Sprintf("muxState(%d)", uint8(s))
}

// Muxer writes one Matroska or WebM segment to a sink.
type Muxer struct {
	mu   sync.Mutex
	w    *ebml.Writer
	sink ebml.Sink
	opts Options
	log  *slog.Logger

	state        muxState
	sinkClosed   bool
	canceledDone bool

	tracks       []*Track
	minClusterMs int64

	// capture is non-nil when byte-range callbacks are registered.
	capture *captureSink

	segmentWritten bool
	segmentEl      *ebml.Element
	segmentData    int64
	seekHeadEl     *ebml.Element
	seekEntries    []seekEntry
	infoEl         *ebml.Element
	tracksEl       *ebml.Element
	attachEl       *ebml.Element
	tagsEl         *ebml.Element
	cuesEl         *ebml.Element
	durationEl     *ebml.Element

	cluster *clusterState
	cues    cueBuilder
	maxEnd  int64
}

// NewMuxer prepares a muxer over sink. Nothing is written until Start.
func NewMuxer(sink ebml.Sink, opts Options) (*Muxer, error) {
	if sink == nil {
		return nil, errors.New("matroska: nil sink")
	}
	o := opts.withDefaults()
	if o.DocType != DocTypeWebM && o.DocType != DocTypeMatroska {
		return nil, fmt.Errorf("matroska: unknown doctype %q", o.DocType)
	}
	m := &Muxer{
		opts:         o,
		sink:         sink,
		log:          o.Logger.With("component", "matroska"),
		minClusterMs: roundMs(o.MinClusterDuration),
	}
	wrapped := sink
	if o.OnEBMLHeader != nil || o.OnSegmentHeader != nil || o.OnCluster != nil {
		wrapped, m.capture = newCaptureSink(sink)
	}
	m.w = ebml.NewWriter(wrapped)
	return m, nil
}

// AddVideoTrack declares a video track. Tracks can only be added before
// Start.
func (m *Muxer) AddVideoTrack(opts VideoTrackOptions) (*Track, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if opts.Rotation != 0 && opts.Rotation != 90 && opts.Rotation != 180 && opts.Rotation != 270 {
		return nil, fmt.Errorf("matroska: rotation must be 0, 90, 180 or 270, got %d", opts.Rotation)
	}
	if opts.FrameRate < 0 {
		return nil, fmt.Errorf("matroska: negative frame rate %v", opts.FrameRate)
	}
	t, err := m.newTrack(TrackTypeVideo, opts.TrackOptions)
	if err != nil {
		return nil, err
	}
	t.frameRate = opts.FrameRate
	t.rotation = opts.Rotation
	t.alpha = opts.Alpha
	return t, nil
}

// AddAudioTrack declares an audio track.
func (m *Muxer) AddAudioTrack(opts AudioTrackOptions) (*Track, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.newTrack(TrackTypeAudio, opts.TrackOptions)
}

// AddSubtitleTrack declares a subtitle track. Subtitle packets are always
// treated as keyframes and must carry a positive duration.
func (m *Muxer) AddSubtitleTrack(opts SubtitleTrackOptions) (*Track, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.newTrack(TrackTypeSubtitle, opts.TrackOptions)
}

func (m *Muxer) newTrack(typ TrackType, opts TrackOptions) (*Track, error) {
	if m.state != statePending {
		return nil, fmt.Errorf("%w: tracks must be added before Start", ErrInvalidState)
	}
	id, err := codecs.Resolve(opts.Codec)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedCodec, err)
	}
	var prefix string
	switch typ {
	case TrackTypeVideo:
		prefix = "V_"
	case TrackTypeAudio:
		prefix = "A_"
	case TrackTypeSubtitle:
		prefix = "S_"
	}
	if !strings.HasPrefix(string(id), prefix) {
		return nil, fmt.Errorf("%w: %s is not a %s codec", ErrUnsupportedCodec, id, typ)
	}
	if m.opts.DocType == DocTypeWebM && !codecs.AllowedInWebM(id) {
		return nil, fmt.Errorf("%w: %s is not allowed in webm", ErrUnsupportedCodec, id)
	}
	t := &Track{
		mux:     m,
		number:  uint64(len(m.tracks) + 1),
		uid:     newUID(),
		typ:     typ,
		opts:    opts,
		codecID: id,
	}
	m.tracks = append(m.tracks, t)
	m.log.Debug("track added",
		"track", t.number, "type", typ.String(), "codec", codecs.ShortName(id))
	return t, nil
}

// Start writes the EBML header and opens the muxer for packets.
func (m *Muxer) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != statePending {
		return fmt.Errorf("%w: already started", ErrInvalidState)
	}
	if err := m.w.Write(ebmlHeaderElement(m.opts.DocType)); err != nil {
		return err
	}
	m.captureSpan(m.opts.OnEBMLHeader)
	if err := m.w.Flush(); err != nil {
		return err
	}
	m.state = stateStarted
	m.log.Debug("muxer started",
		"doctype", string(m.opts.DocType), "seekable", m.w.Seekable(), "tracks", len(m.tracks))
	return nil
}

func (m *Muxer) writePacket(t *Track, p Packet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.state {
	case stateStarted:
	case statePending:
		return fmt.Errorf("%w: Start before writing packets", ErrInvalidState)
	default:
		return fmt.Errorf("%w: muxer is %s", ErrInvalidState, m.state)
	}
	if t.closed {
		return ErrTrackClosed
	}

	keyframe := p.Keyframe || t.typ == TrackTypeSubtitle
	ts, err := t.validate(p.Timestamp, keyframe)
	if err != nil {
		return err
	}
	if t.typ == TrackTypeSubtitle && p.Duration <= 0 {
		return errors.New("matroska: subtitle packets need a positive duration")
	}
	if !t.known {
		if err := t.register(p.Config); err != nil {
			return err
		}
	}
	t.commit(ts, keyframe)

	dur := roundMs(p.Duration)
	if dur < 0 {
		dur = 0
	}
	pkt := &packet{
		track:    t,
		data:     append([]byte(nil), p.Data...),
		keyframe: keyframe,
		ts:       ts,
		duration: dur,
	}
	if len(p.Additions) > 0 {
		pkt.additions = append([]byte(nil), p.Additions...)
	}
	if t.patch && keyframe {
		if !codecs.PatchVP9ColorSpace(pkt.data, t.patchCS) {
			m.log.Warn("vp9 color-space patch skipped, keyframe header did not parse",
				"track", t.number, "timestamp_ms", ts)
		}
	}
	t.queue = append(t.queue, pkt)
	return m.pump()
}

func (m *Muxer) closeTrack(t *Track) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	m.log.Debug("track closed", "track", t.number, "queued", len(t.queue))
	if m.state != stateStarted {
		return nil
	}
	// The gate may have been waiting on this track, and with one fewer
	// open track the order of queued packets may now be decided.
	return m.pump()
}

// Finalize drains everything still queued, seals the segment and closes
// the sink. On seekable sinks it then patches the segment size, duration,
// and seek index. After Cancel, Finalize only ensures the sink is closed.
// A second Finalize returns ErrAlreadyFinalized.
func (m *Muxer) Finalize() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.state {
	case statePending:
		return fmt.Errorf("%w: muxer never started", ErrInvalidState)
	case stateFinalizing, stateFinalized:
		return ErrAlreadyFinalized
	case stateCanceled:
		if m.canceledDone {
			return ErrAlreadyFinalized
		}
		m.canceledDone = true
		return m.closeSink()
	}
	m.state = stateFinalizing
	if err := m.finalizeLocked(); err != nil {
		return err
	}
	m.state = stateFinalized
	return nil
}

func (m *Muxer) finalizeLocked() error {
	if err := m.drain(); err != nil {
		return err
	}
	if err := m.closeCluster(); err != nil {
		return err
	}
	if !m.segmentWritten {
		// No packet ever made it in; emit a minimal valid segment.
		if err := m.writeEmptySegment(); err != nil {
			return err
		}
	} else {
		if cues := m.cues.element(); cues != nil {
			if err := m.w.Write(cues); err != nil {
				return err
			}
			m.cuesEl = cues
		}
		if len(m.opts.Tags) > 0 {
			tags := tagsElement(m.opts.Tags)
			if err := m.w.Write(tags); err != nil {
				return err
			}
			m.tagsEl = tags
		}
		if m.w.Seekable() {
			if err := m.w.End(m.segmentEl); err != nil {
				return err
			}
			if m.durationEl != nil {
				m.durationEl.FloatVal = float64(m.maxEnd)
				if err := m.w.Rewrite(m.durationEl); err != nil {
					return err
				}
			}
			if err := m.patchSeekHead(); err != nil {
				return err
			}
		}
	}
	if err := m.w.Flush(); err != nil {
		return err
	}
	m.log.Debug("muxer finalized",
		"duration_ms", m.maxEnd, "cue_points", len(m.cues.points))
	return m.closeSink()
}

func (m *Muxer) writeEmptySegment() error {
	seg := &ebml.Element{ID: ebml.IDSegment, Kind: ebml.KindMaster, SizeWidth: segmentSizeWidth}
	if err := m.w.Begin(seg); err != nil {
		return err
	}
	if err := m.w.Write(m.infoElement()); err != nil {
		return err
	}
	if err := m.w.End(seg); err != nil {
		return err
	}
	m.captureSpan(m.opts.OnSegmentHeader)
	return nil
}

// Cancel abandons the output and closes the sink. Whatever bytes were
// already written stay as they are; nothing is patched. Canceling twice is
// a no-op, canceling after Finalize an error.
func (m *Muxer) Cancel() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.state {
	case statePending, stateStarted:
		m.state = stateCanceled
		m.log.Debug("muxer canceled")
		return m.closeSink()
	case stateCanceled:
		return nil
	}
	return fmt.Errorf("%w: cannot cancel a %s muxer", ErrInvalidState, m.state)
}

// closeSink closes the sink exactly once across Finalize and Cancel.
func (m *Muxer) closeSink() error {
	if m.sinkClosed {
		return nil
	}
	m.sinkClosed = true
	return m.sink.Close()
}

// captureSpan delivers the bytes written since the last mark and starts
// the next window.
func (m *Muxer) captureSpan(deliver func(pos int64, data []byte)) {
	if m.capture == nil {
		return
	}
	pos, data := m.capture.take()
	if deliver != nil && len(data) > 0 {
		deliver(pos, data)
	}
	m.capture.mark()
}
