package matroska

import (
	"github.com/google/uuid"

	"github.com/streamkit/mkvmux/ebml"
)

// timestampScale is the segment tick in nanoseconds. Everything this muxer
// writes counts in milliseconds.
const timestampScale = 1_000_000

const (
	segmentSizeWidth = 6
	clusterSizeWidth = 5
	seekPosWidth     = 5
)

func ebmlHeaderElement(doc DocType) *ebml.Element {
	return ebml.Master(ebml.IDEBML,
		ebml.Uint(ebml.IDEBMLVersion, 1),
		ebml.Uint(ebml.IDEBMLReadVersion, 1),
		ebml.Uint(ebml.IDEBMLMaxIDLength, 4),
		ebml.Uint(ebml.IDEBMLMaxSizeLength, 8),
		ebml.String(ebml.IDDocType, string(doc)),
		ebml.Uint(ebml.IDDocTypeVersion, 2),
		ebml.Uint(ebml.IDDocTypeReadVersion, 2),
	)
}

// seekEntry pairs a SeekHead target with its position element, which is
// rewritten at finalize once the target's real offset is known.
type seekEntry struct {
	target ebml.ID
	pos    *ebml.Element
}

// ensureSegment opens the Segment and writes its header block (SeekHead
// placeholder, Info, Tracks, Attachments) the first time a block is about
// to be emitted. Deferring this to the first packet is what lets track
// configs arrive with the packets themselves.
func (m *Muxer) ensureSegment() error {
	if m.segmentWritten {
		return nil
	}
	seg := &ebml.Element{ID: ebml.IDSegment, Kind: ebml.KindMaster, SizeWidth: segmentSizeWidth}
	if err := m.w.Begin(seg); err != nil {
		return err
	}
	m.segmentEl = seg
	data, err := m.w.DataOffset(seg)
	if err != nil {
		return err
	}
	m.segmentData = data

	// Append-only output has no second pass, so a SeekHead full of
	// placeholder positions would never be corrected; it is omitted.
	if m.w.Seekable() {
		targets := []ebml.ID{ebml.IDInfo, ebml.IDTracks, ebml.IDCues}
		if m.opts.DocType == DocTypeMatroska && len(m.opts.Attachments) > 0 {
			targets = append(targets, ebml.IDAttachments)
		}
		if len(m.opts.Tags) > 0 {
			targets = append(targets, ebml.IDTags)
		}
		head := m.buildSeekHead(targets)
		if err := m.w.Write(head); err != nil {
			return err
		}
		m.seekHeadEl = head
	}

	info := m.infoElement()
	if err := m.w.Write(info); err != nil {
		return err
	}
	m.infoEl = info

	if tracks := m.tracksElement(); tracks != nil {
		if err := m.w.Write(tracks); err != nil {
			return err
		}
		m.tracksEl = tracks
	}

	if len(m.opts.Attachments) > 0 {
		if m.opts.DocType == DocTypeMatroska {
			att := attachmentsElement(m.opts.Attachments)
			if err := m.w.Write(att); err != nil {
				return err
			}
			m.attachEl = att
		} else {
			m.log.Warn("attachments are not part of webm, skipping", "count", len(m.opts.Attachments))
		}
	}

	m.segmentWritten = true
	m.captureSpan(m.opts.OnSegmentHeader)
	return nil
}

func (m *Muxer) buildSeekHead(targets []ebml.ID) *ebml.Element {
	head := ebml.Master(ebml.IDSeekHead)
	for _, id := range targets {
		pos := ebml.UintWidthEl(ebml.IDSeekPosition, 0, seekPosWidth)
		head.Append(ebml.Master(ebml.IDSeek,
			ebml.Bytes(ebml.IDSeekID, ebml.AppendID(nil, id)),
			pos,
		))
		m.seekEntries = append(m.seekEntries, seekEntry{target: id, pos: pos})
	}
	return head
}

// patchSeekHead fills in the real positions, relative to the segment data
// start, and rewrites the placeholder in place. Fixed vint and value widths
// keep the byte layout identical.
func (m *Muxer) patchSeekHead() error {
	if m.seekHeadEl == nil {
		return nil
	}
	for _, e := range m.seekEntries {
		el := m.elementFor(e.target)
		if el == nil {
			continue
		}
		off, err := m.w.Offset(el)
		if err != nil {
			return err
		}
		e.pos.UintVal = uint64(off - m.segmentData)
	}
	return m.w.Rewrite(m.seekHeadEl)
}

func (m *Muxer) elementFor(id ebml.ID) *ebml.Element {
	switch id {
	case ebml.IDInfo:
		return m.infoEl
	case ebml.IDTracks:
		return m.tracksEl
	case ebml.IDCues:
		return m.cuesEl
	case ebml.IDAttachments:
		return m.attachEl
	case ebml.IDTags:
		return m.tagsEl
	}
	return nil
}

func (m *Muxer) infoElement() *ebml.Element {
	info := ebml.Master(ebml.IDInfo,
		ebml.Uint(ebml.IDTimestampScale, timestampScale),
		ebml.String(ebml.IDMuxingApp, m.opts.MuxingApp),
		ebml.String(ebml.IDWritingApp, m.opts.WritingApp),
	)
	if m.w.Seekable() {
		// Placeholder; rewritten at finalize with the presentation end.
		m.durationEl = ebml.Float64El(ebml.IDDuration, 0)
		info.Append(m.durationEl)
	}
	if m.opts.DocType == DocTypeMatroska {
		uid := uuid.New()
		info.Append(ebml.Bytes(ebml.IDSegmentUID, uid[:]))
	}
	return info
}

// tracksElement covers the known tracks in declaration order. Tracks closed
// before their first packet never became known and are left out; their
// numbers stay reserved, so the remaining numbering keeps its gaps.
func (m *Muxer) tracksElement() *ebml.Element {
	tracks := ebml.Master(ebml.IDTracks)
	for _, t := range m.tracks {
		if !t.known {
			continue
		}
		tracks.Append(t.entryElement())
	}
	if len(tracks.Children) == 0 {
		return nil
	}
	return tracks
}

func attachmentsElement(atts []Attachment) *ebml.Element {
	el := ebml.Master(ebml.IDAttachments)
	for _, a := range atts {
		file := ebml.Master(ebml.IDAttachedFile)
		if a.Description != "" {
			file.Append(ebml.String(ebml.IDFileDescription, a.Description))
		}
		file.Append(
			ebml.String(ebml.IDFileName, a.Name),
			ebml.String(ebml.IDFileMediaType, a.MediaType),
			ebml.Bytes(ebml.IDFileData, a.Data),
			ebml.Uint(ebml.IDFileUID, newUID()),
		)
		el.Append(file)
	}
	return el
}

func tagsElement(tags []Tag) *ebml.Element {
	el := ebml.Master(ebml.IDTags)
	for _, t := range tags {
		el.Append(ebml.Master(ebml.IDTag,
			ebml.Master(ebml.IDTargets),
			ebml.Master(ebml.IDSimpleTag,
				ebml.String(ebml.IDTagName, t.Name),
				ebml.String(ebml.IDTagString, t.Value),
				ebml.String(ebml.IDTagLanguage, "und"),
			),
		))
	}
	return el
}
