package matroska

import "github.com/streamkit/mkvmux/ebml"

// captureSink wraps the output sink and mirrors every byte written since
// the last mark into a window buffer, so the muxer can hand finished spans
// (EBML header, segment header, each cluster) to the byte-range callbacks.
//
// The window is positional, not sequential: a size patch that lands inside
// the current window simply overwrites its bytes, so the delivered span is
// the final form of that region. Patches behind the window (finalize-time
// rewrites of already-delivered spans) fall outside it and are dropped.
type captureSink struct {
	inner ebml.Sink
	pos   int64
	base  int64
	buf   []byte
}

// newCaptureSink wraps sink, preserving its seekability so the writer still
// detects patch-back support through the wrapper.
func newCaptureSink(sink ebml.Sink) (ebml.Sink, *captureSink) {
	if s, ok := sink.(ebml.SeekableSink); ok {
		c := &captureSeekSink{captureSink: captureSink{inner: sink}, seeker: s}
		return c, &c.captureSink
	}
	c := &captureSink{inner: sink}
	return c, c
}

func (c *captureSink) Write(p []byte) (int, error) {
	n, err := c.inner.Write(p)
	if n > 0 {
		c.record(c.pos, p[:n])
		c.pos += int64(n)
	}
	return n, err
}

func (c *captureSink) Flush() error { return c.inner.Flush() }

func (c *captureSink) Close() error { return c.inner.Close() }

// record copies a write at stream offset at into the window buffer,
// clipping anything before the window base.
func (c *captureSink) record(at int64, p []byte) {
	if at < c.base {
		if at+int64(len(p)) <= c.base {
			return
		}
		p = p[c.base-at:]
		at = c.base
	}
	off := at - c.base
	end := off + int64(len(p))
	if end > int64(len(c.buf)) {
		grown := make([]byte, end)
		copy(grown, c.buf)
		c.buf = grown
	}
	copy(c.buf[off:end], p)
}

// mark ends the current window and starts the next one at the present
// stream position.
func (c *captureSink) mark() {
	c.base = c.pos
	c.buf = c.buf[:0]
}

// take returns the window's start offset and bytes. The slice is reused by
// the next window; callers must not retain it.
func (c *captureSink) take() (int64, []byte) {
	return c.base, c.buf
}

// captureSeekSink is the seekable variant; it tracks position across seeks
// so patch writes land at the right window offset.
type captureSeekSink struct {
	captureSink
	seeker ebml.SeekableSink
}

func (c *captureSeekSink) Seek(offset int64, whence int) (int64, error) {
	n, err := c.seeker.Seek(offset, whence)
	if err == nil {
		c.pos = n
	}
	return n, err
}
