// Package ivf demuxes IVF byte streams (the container libvpx and aomenc
// write) into timestamped frames ready for muxing.
package ivf

import (
	"fmt"
	"io"
	"time"

	"github.com/pion/webrtc/v4/pkg/media/ivfreader"

	"github.com/streamkit/mkvmux/codecs"
)

// Packet is one demuxed frame.
type Packet struct {
	Data      []byte
	Timestamp time.Duration
	Keyframe  bool
}

// Reader pulls frames out of an IVF stream. Keyframes are detected by
// probing the frame payload, since the IVF frame header carries no flag.
type Reader struct {
	src      *ivfreader.IVFReader
	header   *ivfreader.IVFFileHeader
	codec    string
	keyProbe func([]byte) bool
}

// Open reads the DKIF file header and prepares frame extraction. The
// fourcc must map to a supported codec.
func Open(r io.Reader) (*Reader, error) {
	src, header, err := ivfreader.NewWith(r)
	if err != nil {
		return nil, fmt.Errorf("ivf: read file header: %w", err)
	}
	if header.TimebaseDenominator == 0 {
		return nil, fmt.Errorf("ivf: file header declares a zero timebase")
	}

	codec, ok := codecs.FourCC(header.FourCC)
	if !ok {
		return nil, fmt.Errorf("ivf: unsupported fourcc %q (expected VP80, VP90 or AV01)", header.FourCC)
	}

	rd := &Reader{src: src, header: header, codec: codec}
	switch header.FourCC {
	case "VP80":
		rd.keyProbe = codecs.IsVP8Keyframe
	case "VP90":
		rd.keyProbe = codecs.IsVP9Keyframe
	case "AV01":
		rd.keyProbe = codecs.ContainsAV1SequenceHeader
	}
	return rd, nil
}

// Next returns the next frame, or io.EOF at a clean end of stream.
func (r *Reader) Next() (*Packet, error) {
	data, fh, err := r.src.ParseNextFrame()
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("ivf: read frame: %w", err)
	}

	// Frame timestamps count in timebase ticks of numerator/denominator
	// seconds each.
	ts := time.Duration(fh.Timestamp) *
		time.Duration(r.header.TimebaseNumerator) *
		time.Second / time.Duration(r.header.TimebaseDenominator)

	return &Packet{
		Data:      data,
		Timestamp: ts,
		Keyframe:  r.keyProbe(data),
	}, nil
}

// Codec returns the codec string the fourcc maps to.
func (r *Reader) Codec() string { return r.codec }

// Width returns the frame width from the file header.
func (r *Reader) Width() int { return int(r.header.Width) }

// Height returns the frame height from the file header.
func (r *Reader) Height() int { return int(r.header.Height) }

// FrameCount returns the frame count the header declares. Streamed files
// often leave it zero.
func (r *Reader) FrameCount() int { return int(r.header.NumFrames) }

// FrameDuration returns the length of one timebase tick. Encoders that
// stamp one tick per frame make this the nominal frame interval.
func (r *Reader) FrameDuration() time.Duration {
	return time.Duration(r.header.TimebaseNumerator) * time.Second /
		time.Duration(r.header.TimebaseDenominator)
}
