package matroska

import (
	"sort"

	"github.com/streamkit/mkvmux/ebml"
)

// cuePoint is one seek index entry: tracks whose first block in a cluster
// shares a timestamp are grouped under a single point.
type cuePoint struct {
	time    int64
	tracks  []uint64
	cluster int64 // cluster offset from the segment data start
}

type cueBuilder struct {
	points []cuePoint
}

// clusterClosed records the index entries for a finished cluster from each
// track's first written block in it.
func (b *cueBuilder) clusterClosed(tracks []*Track, clusterOffset int64) {
	var points []cuePoint
	for _, t := range tracks {
		if !t.hasClusterFirst {
			continue
		}
		grouped := false
		for i := range points {
			if points[i].time == t.clusterFirst {
				points[i].tracks = append(points[i].tracks, t.number)
				grouped = true
				break
			}
		}
		if !grouped {
			points = append(points, cuePoint{
				time:    t.clusterFirst,
				tracks:  []uint64{t.number},
				cluster: clusterOffset,
			})
		}
	}
	sort.Slice(points, func(i, j int) bool { return points[i].time < points[j].time })
	b.points = append(b.points, points...)
}

// element builds the Cues master, or nil when nothing was indexed.
func (b *cueBuilder) element() *ebml.Element {
	if len(b.points) == 0 {
		return nil
	}
	cues := ebml.Master(ebml.IDCues)
	for _, p := range b.points {
		point := ebml.Master(ebml.IDCuePoint,
			ebml.Uint(ebml.IDCueTime, uint64(p.time)),
		)
		for _, n := range p.tracks {
			point.Append(ebml.Master(ebml.IDCueTrackPositions,
				ebml.Uint(ebml.IDCueTrack, n),
				ebml.Uint(ebml.IDCueClusterPosition, uint64(p.cluster)),
			))
		}
		cues.Append(point)
	}
	return cues
}
