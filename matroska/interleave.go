package matroska

// packet is the internal, normalized form of one sample: payload and side
// data copied, timestamps rounded to milliseconds with the track offset
// applied.
type packet struct {
	track     *Track
	data      []byte
	additions []byte
	keyframe  bool
	ts        int64
	duration  int64
}

// gateOpen reports whether blocks may be written yet: every declared track
// must be known (configured by its first packet) or closed. Until then the
// Tracks header would be incomplete, so packets wait in their queues.
func (m *Muxer) gateOpen() bool {
	for _, t := range m.tracks {
		if !t.known && !t.closed {
			return false
		}
	}
	return true
}

// popMin removes and returns the queued packet with the lowest timestamp.
// Ties go to the earliest-declared track. Returns nil when every queue is
// empty.
func (m *Muxer) popMin() *packet {
	var (
		best  *packet
		owner *Track
	)
	for _, t := range m.tracks {
		if len(t.queue) == 0 {
			continue
		}
		if head := t.queue[0]; best == nil || head.ts < best.ts {
			best, owner = head, t
		}
	}
	if best != nil {
		owner.queue = owner.queue[1:]
	}
	return best
}

// pump writes queued packets in global timestamp order for as long as the
// order is decided: every open track must have a packet queued, otherwise
// a not-yet-arrived packet could still be the global minimum. Closed
// tracks cannot receive more packets, so their residue participates in the
// minimum without ever blocking it.
func (m *Muxer) pump() error {
	for {
		if !m.gateOpen() {
			return nil
		}
		for _, t := range m.tracks {
			if !t.closed && len(t.queue) == 0 {
				return nil
			}
		}
		p := m.popMin()
		if p == nil {
			return nil
		}
		if err := m.emit(p); err != nil {
			return err
		}
	}
}

// drain writes out everything still queued, in timestamp order, without
// waiting on any track. Only finalize may do this: afterwards no packet
// can arrive to violate the order.
func (m *Muxer) drain() error {
	for {
		p := m.popMin()
		if p == nil {
			return nil
		}
		if err := m.emit(p); err != nil {
			return err
		}
	}
}

// emit writes one packet to the sink: opens the segment on the very first
// block, cuts clusters as needed, serializes the block and advances the
// bookkeeping that cue points, cluster cuts and the segment duration are
// derived from.
func (m *Muxer) emit(p *packet) error {
	if err := m.ensureSegment(); err != nil {
		return err
	}
	if err := m.maybeCut(p); err != nil {
		return err
	}
	if err := m.writeBlock(p); err != nil {
		return err
	}
	t := p.track
	if p.ts > m.cluster.max {
		m.cluster.max = p.ts
	}
	if !t.hasClusterFirst {
		t.clusterFirst, t.hasClusterFirst = p.ts, true
	}
	t.lastWritten, t.hasWritten = p.ts, true
	if end := p.ts + p.duration; end > m.maxEnd {
		m.maxEnd = end
	}
	return m.w.Flush()
}
