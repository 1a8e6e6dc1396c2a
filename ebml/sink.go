package ebml

import (
	"io"
	"sync"
)

// Sink is the destination byte stream of a Writer. The base contract is
// append-only: Write extends the stream, Flush blocks until previously
// written bytes have been accepted downstream (the muxer's backpressure
// point), Close releases the destination.
type Sink interface {
	io.Writer
	Flush() error
	Close() error
}

// SeekableSink additionally supports repositioning, which enables two-pass
// size patch-back. Sinks that do not implement it put the Writer in
// append-only mode.
type SeekableSink interface {
	Sink
	io.Seeker
}

// BufferSink is an in-memory seekable sink.
type BufferSink struct {
	buf []byte
	pos int64
}

// NewBufferSink returns an empty in-memory sink.
func NewBufferSink() *BufferSink {
	return &BufferSink{}
}

func (b *BufferSink) Write(p []byte) (int, error) {
	end := b.pos + int64(len(p))
	if end > int64(len(b.buf)) {
		grown := make([]byte, end)
		copy(grown, b.buf)
		b.buf = grown
	}
	copy(b.buf[b.pos:end], p)
	b.pos = end
	return len(p), nil
}

func (b *BufferSink) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
		b.pos = offset
	case io.SeekCurrent:
		b.pos += offset
	case io.SeekEnd:
		b.pos = int64(len(b.buf)) + offset
	}
	return b.pos, nil
}

// Flush is a no-op; memory imposes no backpressure.
func (b *BufferSink) Flush() error { return nil }

func (b *BufferSink) Close() error { return nil }

// Bytes returns the accumulated output.
func (b *BufferSink) Bytes() []byte { return b.buf }

// Len returns the current output length.
func (b *BufferSink) Len() int { return len(b.buf) }

// FileSink adapts an io.WriteSeeker (typically an *os.File) into a seekable
// sink.
type FileSink struct {
	ws io.WriteSeeker
}

// NewFileSink wraps ws. Closing the sink closes ws when it is an io.Closer.
func NewFileSink(ws io.WriteSeeker) *FileSink {
	return &FileSink{ws: ws}
}

func (f *FileSink) Write(p []byte) (int, error) { return f.ws.Write(p) }

func (f *FileSink) Seek(offset int64, whence int) (int64, error) {
	return f.ws.Seek(offset, whence)
}

func (f *FileSink) Flush() error {
	if s, ok := f.ws.(interface{ Sync() error }); ok {
		return s.Sync()
	}
	return nil
}

func (f *FileSink) Close() error {
	if c, ok := f.ws.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// StreamSink is an append-only sink over a plain io.Writer, for live
// outputs that can never be revisited (sockets, pipes, HTTP responses). An
// optional OnWrite callback observes every chunk with its stream offset.
// After Close, or after the underlying writer fails, further writes return
// io.ErrClosedPipe.
type StreamSink struct {
	mu      sync.Mutex
	w       io.Writer
	pos     int64
	closed  bool
	onWrite func(pos int64, p []byte)
}

// NewStreamSink wraps w. onWrite may be nil.
func NewStreamSink(w io.Writer, onWrite func(pos int64, p []byte)) *StreamSink {
	return &StreamSink{w: w, onWrite: onWrite}
}

func (s *StreamSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, io.ErrClosedPipe
	}
	n, err := s.w.Write(p)
	if err != nil {
		// Treat a failed downstream as gone for all subsequent writes.
		s.closed = true
		return n, err
	}
	if s.onWrite != nil && n > 0 {
		s.onWrite(s.pos, p[:n])
	}
	s.pos += int64(n)
	return n, err
}

func (s *StreamSink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return io.ErrClosedPipe
	}
	if f, ok := s.w.(interface{ Flush() }); ok {
		f.Flush()
		return nil
	}
	if f, ok := s.w.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}

func (s *StreamSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if c, ok := s.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Pos returns the number of bytes written so far.
func (s *StreamSink) Pos() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos
}
