package ebml

import (
	"errors"
	"fmt"
	"io"
)

var (
	// ErrNotSeekable is returned by patch operations on append-only sinks.
	ErrNotSeekable = errors.New("ebml: sink is not seekable")
	// ErrNotWritten is returned when an element has no recorded offsets yet.
	ErrNotWritten = errors.New("ebml: element has not been written")
)

type elementOffsets struct {
	start     int64 // first byte of the element ID
	dataStart int64 // first byte after ID and size field
}

// Writer serializes elements into a Sink, keeping an arena of byte offsets
// per written element so containers can be size-patched and metadata
// rewritten once their true values are known. In append-only mode (sink
// without seeking) open-ended containers get the unknown-size marker and all
// patch operations degrade to no-ops or errors.
type Writer struct {
	sink    Sink
	seeker  SeekableSink // nil in append-only mode
	pos     int64
	offsets []elementOffsets
}

// NewWriter wraps sink. Seekability is taken from the sink's type.
func NewWriter(sink Sink) *Writer {
	w := &Writer{sink: sink}
	if s, ok := sink.(SeekableSink); ok {
		w.seeker = s
	}
	return w
}

// Seekable reports whether patch-back is available.
func (w *Writer) Seekable() bool { return w.seeker != nil }

// Pos returns the current write position.
func (w *Writer) Pos() int64 { return w.pos }

// Flush delegates to the sink, blocking until written bytes are accepted.
func (w *Writer) Flush() error { return w.sink.Flush() }

// Write serializes a complete element, including nested children, and
// records offsets for the element and every descendant.
func (w *Writer) Write(el *Element) error {
	buf, err := w.appendElement(nil, el)
	if err != nil {
		return err
	}
	return w.writeAll(buf)
}

// Begin opens an element whose extent is not yet known: ID plus a reserved
// size field (or the unknown-size marker in append-only mode), then any
// initial children. Content written afterwards lands inside the element
// until End.
func (w *Writer) Begin(el *Element) error {
	if el.Kind != KindMaster {
		return fmt.Errorf("ebml: Begin on non-master element %#x", el.ID)
	}
	if w.Seekable() {
		if err := checkWidth(el.SizeWidth); err != nil {
			return err
		}
	}
	ref := w.alloc()
	el.ref = ref
	w.offsets[ref].start = w.pos

	buf := AppendID(nil, el.ID)
	if w.Seekable() {
		buf = AppendVintWidth(buf, 0, el.SizeWidth)
	} else {
		// Streaming form: single-byte marker with all size bits set,
		// never patched.
		buf = AppendUnknownVint(buf, 1)
	}
	w.offsets[ref].dataStart = w.pos + int64(len(buf))
	var err error
	for _, c := range el.Children {
		if buf, err = w.appendElement(buf, c); err != nil {
			return err
		}
	}
	return w.writeAll(buf)
}

// End closes an element opened with Begin, patching its reserved size field
// with the exact byte span written since its data start. In append-only mode
// the unknown-size marker stands and End does nothing.
func (w *Writer) End(el *Element) error {
	if !w.Seekable() {
		return nil
	}
	if el.ref == NoRef {
		return ErrNotWritten
	}
	off := w.offsets[el.ref]
	size := w.pos - off.dataStart
	end := w.pos
	if err := w.seekTo(off.dataStart - int64(el.SizeWidth)); err != nil {
		return err
	}
	if err := w.writeAll(AppendVintWidth(nil, uint64(size), el.SizeWidth)); err != nil {
		return err
	}
	return w.seekTo(end)
}

// Rewrite re-serializes an already-written element in place, used after its
// values have been updated. The element's fixed widths keep the byte layout
// identical, so surrounding data is untouched.
func (w *Writer) Rewrite(el *Element) error {
	if w.seeker == nil {
		return ErrNotSeekable
	}
	if el.ref == NoRef {
		return ErrNotWritten
	}
	start := w.offsets[el.ref].start
	end := w.pos
	if err := w.seekTo(start); err != nil {
		return err
	}
	buf, err := w.appendElement(nil, el)
	if err != nil {
		return err
	}
	if err := w.writeAll(buf); err != nil {
		return err
	}
	return w.seekTo(end)
}

// Offset returns the absolute position of the element's first byte.
func (w *Writer) Offset(el *Element) (int64, error) {
	if el.ref == NoRef {
		return 0, ErrNotWritten
	}
	return w.offsets[el.ref].start, nil
}

// DataOffset returns the absolute position just past the element's ID and
// size field.
func (w *Writer) DataOffset(el *Element) (int64, error) {
	if el.ref == NoRef {
		return 0, ErrNotWritten
	}
	return w.offsets[el.ref].dataStart, nil
}

func (w *Writer) alloc() Ref {
	w.offsets = append(w.offsets, elementOffsets{start: -1, dataStart: -1})
	return Ref(len(w.offsets) - 1)
}

// appendElement serializes el into buf, recording offsets relative to the
// current stream position plus the bytes already buffered.
func (w *Writer) appendElement(buf []byte, el *Element) ([]byte, error) {
	if el.ref == NoRef {
		el.ref = w.alloc()
	}
	w.offsets[el.ref].start = w.pos + int64(len(buf))

	buf = AppendID(buf, el.ID)
	p := el.payloadSize()
	sw := el.SizeWidth
	if sw == 0 {
		sw = VintWidth(uint64(p))
	} else if err := checkWidth(sw); err != nil {
		return buf, err
	}
	buf = AppendVintWidth(buf, uint64(p), sw)
	w.offsets[el.ref].dataStart = w.pos + int64(len(buf))

	if el.Kind == KindMaster {
		var err error
		for _, c := range el.Children {
			if buf, err = w.appendElement(buf, c); err != nil {
				return buf, err
			}
		}
		return buf, nil
	}
	return el.appendPayload(buf), nil
}

func (w *Writer) writeAll(buf []byte) error {
	for len(buf) > 0 {
		n, err := w.sink.Write(buf)
		w.pos += int64(n)
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		buf = buf[n:]
	}
	return nil
}

func (w *Writer) seekTo(off int64) error {
	if w.seeker == nil {
		return ErrNotSeekable
	}
	if _, err := w.seeker.Seek(off, io.SeekStart); err != nil {
		return err
	}
	w.pos = off
	return nil
}
