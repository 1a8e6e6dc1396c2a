package matroska

import "github.com/streamkit/mkvmux/ebml"

const simpleBlockKeyFlag = 0x80

// blockBytes serializes the common block prelude followed by the payload:
// track number vint, signed 16-bit timestamp offset from the cluster, and
// a flags byte.
func blockBytes(trackNumber uint64, rel int16, flags byte, payload []byte) []byte {
	b := make([]byte, 0, 4+len(payload))
	b = ebml.AppendVint(b, trackNumber)
	b = append(b, byte(uint16(rel)>>8), byte(uint16(rel)), flags)
	return append(b, payload...)
}

// writeBlock serializes one packet into the open cluster. Packets with
// side data, and all subtitle packets, need BlockGroup structure; anything
// else takes the compact SimpleBlock form with its keyframe flag.
func (m *Muxer) writeBlock(p *packet) error {
	t := p.track
	rel := int16(p.ts - m.cluster.start)

	if len(p.additions) == 0 && t.typ != TrackTypeSubtitle {
		var flags byte
		if p.keyframe {
			flags = simpleBlockKeyFlag
		}
		return m.w.Write(ebml.Bytes(ebml.IDSimpleBlock, blockBytes(t.number, rel, flags, p.data)))
	}

	group := ebml.Master(ebml.IDBlockGroup,
		ebml.Bytes(ebml.IDBlock, blockBytes(t.number, rel, 0, p.data)),
	)
	// Block carries no keyframe flag; a delta frame declares its
	// dependency on the previous block instead, and a keyframe is
	// recognized by having no reference.
	if !p.keyframe && t.hasWritten {
		group.Append(ebml.Int(ebml.IDReferenceBlock, t.lastWritten-p.ts))
	}
	if len(p.additions) > 0 {
		group.Append(ebml.Master(ebml.IDBlockAdditions,
			ebml.Master(ebml.IDBlockMore,
				ebml.Uint(ebml.IDBlockAddID, 1),
				ebml.Bytes(ebml.IDBlockAdditional, p.additions),
			),
		))
	}
	if p.duration > 0 {
		group.Append(ebml.Uint(ebml.IDBlockDuration, uint64(p.duration)))
	}
	return m.w.Write(group)
}
