package matroska

import (
	"math"
	"time"

	"github.com/streamkit/mkvmux/ebml"
)

type clusterState struct {
	el    *ebml.Element
	start int64 // cluster timestamp, ms
	max   int64 // highest block timestamp written so far
}

// maybeCut decides whether p starts a new cluster before being written.
// Block timestamps are signed 16-bit offsets from the cluster timestamp, so
// a packet outside that window forces a cut no matter what kind of frame it
// is. Otherwise only a keyframe may cut, and only when the cluster has
// covered the minimum span, the packet moves time forward, and every other
// track's next pending packet is also a keyframe (so no track ends up with
// a dangling back-reference into the previous cluster).
func (m *Muxer) maybeCut(p *packet) error {
	if m.cluster == nil {
		return m.openCluster(p.ts)
	}
	rel := p.ts - m.cluster.start
	if rel < math.MinInt16 || rel > math.MaxInt16 {
		m.log.Debug("cluster cut forced by timestamp range",
			"timestamp", p.ts, "cluster", m.cluster.start)
		if err := m.closeCluster(); err != nil {
			return err
		}
		return m.openCluster(p.ts)
	}
	if p.keyframe &&
		p.ts > m.cluster.max &&
		rel >= m.minClusterMs &&
		m.otherHeadsKeyed(p.track) {
		if err := m.closeCluster(); err != nil {
			return err
		}
		return m.openCluster(p.ts)
	}
	return nil
}

// otherHeadsKeyed reports whether every open track other than except is
// ready for a cluster boundary: drained, or queued up at a keyframe.
func (m *Muxer) otherHeadsKeyed(except *Track) bool {
	for _, t := range m.tracks {
		if t == except || t.closed || len(t.queue) == 0 {
			continue
		}
		if !t.queue[0].keyframe {
			return false
		}
	}
	return true
}

func (m *Muxer) openCluster(ts int64) error {
	el := &ebml.Element{ID: ebml.IDCluster, Kind: ebml.KindMaster, SizeWidth: clusterSizeWidth}
	el.Append(ebml.Uint(ebml.IDTimestamp, uint64(ts)))
	if err := m.w.Begin(el); err != nil {
		return err
	}
	m.cluster = &clusterState{el: el, start: ts, max: ts}
	return nil
}

// closeCluster seals the open cluster: patches its size, records its cue
// points and hands the finished bytes to the cluster callback.
func (m *Muxer) closeCluster() error {
	if m.cluster == nil {
		return nil
	}
	c := m.cluster
	m.cluster = nil
	if err := m.w.End(c.el); err != nil {
		return err
	}
	start, err := m.w.Offset(c.el)
	if err != nil {
		return err
	}
	m.cues.clusterClosed(m.tracks, start-m.segmentData)
	for _, t := range m.tracks {
		t.hasClusterFirst = false
	}
	if m.capture != nil {
		pos, data := m.capture.take()
		if cb := m.opts.OnCluster; cb != nil && len(data) > 0 {
			cb(pos, data, time.Duration(c.start)*time.Millisecond)
		}
		m.capture.mark()
	}
	return nil
}
