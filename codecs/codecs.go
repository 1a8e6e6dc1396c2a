// Package codecs maps WebCodecs-style codec strings onto Matroska codec
// identifiers and handles the per-codec plumbing the container needs:
// decoder-configuration synthesis (VP9, AV1, AAC, Opus), AVC parameter-set
// handling, keyframe probing and the VP9 color-space header patch.
package codecs

import (
	"fmt"
	"strings"

	"github.com/vishalkuo/bimap"
)

// ID is a Matroska CodecID string.
type ID string

const (
	VP8  ID = "V_VP8"
	VP9  ID = "V_VP9"
	AV1  ID = "V_AV1"
	AVC  ID = "V_MPEG4/ISO/AVC"
	HEVC ID = "V_MPEGH/ISO/HEVC"

	Opus     ID = "A_OPUS"
	Vorbis   ID = "A_VORBIS"
	AAC      ID = "A_AAC"
	PCMInt   ID = "A_PCM/INT/LIT"
	PCMFloat ID = "A_PCM/FLOAT/IEEE"

	WebVTT ID = "S_TEXT/WEBVTT"
	SubRip ID = "S_TEXT/UTF8"
)

// shortNames maps codec IDs to the short names used on the command line and
// in probe output, and back.
var shortNames = func() *bimap.BiMap[ID, string] {
	m := bimap.NewBiMap[ID, string]()
	m.Insert(VP8, "vp8")
	m.Insert(VP9, "vp9")
	m.Insert(AV1, "av1")
	m.Insert(AVC, "avc")
	m.Insert(HEVC, "hevc")
	m.Insert(Opus, "opus")
	m.Insert(Vorbis, "vorbis")
	m.Insert(AAC, "aac")
	m.Insert(PCMInt, "pcm-s16")
	m.Insert(PCMFloat, "pcm-f32")
	m.Insert(WebVTT, "webvtt")
	m.Insert(SubRip, "srt")
	return m
}()

// ShortName returns the display name for a codec ID, or the raw ID when the
// codec is not registered.
func ShortName(id ID) string {
	if name, ok := shortNames.Get(id); ok {
		return name
	}
	return string(id)
}

// IDForShortName resolves a short name back to its codec ID.
func IDForShortName(name string) (ID, bool) {
	return shortNames.GetInverse(strings.ToLower(name))
}

// Resolve maps a codec string ("vp09.00.41.08", "opus", "avc1.42E01E", …)
// to its Matroska codec ID.
func Resolve(codec string) (ID, error) {
	c := strings.ToLower(strings.TrimSpace(codec))
	base := c
	if i := strings.IndexByte(c, '.'); i >= 0 {
		base = c[:i]
	}
	switch base {
	case "vp8", "vp08":
		return VP8, nil
	case "vp9", "vp09":
		return VP9, nil
	case "av1", "av01":
		return AV1, nil
	case "avc1", "avc3", "h264":
		return AVC, nil
	case "hev1", "hvc1", "h265":
		return HEVC, nil
	case "opus":
		return Opus, nil
	case "vorbis":
		return Vorbis, nil
	case "aac", "mp4a":
		return AAC, nil
	case "pcm-s16":
		return PCMInt, nil
	case "pcm-f32":
		return PCMFloat, nil
	case "webvtt":
		return WebVTT, nil
	case "srt", "subrip":
		return SubRip, nil
	}
	return "", fmt.Errorf("codecs: unrecognized codec string %q", codec)
}

// webmCodecs is the subset of codecs the webm doctype permits.
var webmCodecs = map[ID]bool{
	VP8: true, VP9: true, AV1: true,
	Opus: true, Vorbis: true,
	WebVTT: true,
}

// AllowedInWebM reports whether the codec may appear in a file with the
// webm doctype. The matroska doctype accepts everything.
func AllowedInWebM(id ID) bool { return webmCodecs[id] }

// RequiresPrivateData reports whether the codec cannot be decoded without
// CodecPrivate bytes that the muxer is unable to synthesize on its own.
func RequiresPrivateData(id ID) bool {
	switch id {
	case Vorbis, AVC, HEVC:
		return true
	}
	return false
}

// FourCC resolves an IVF fourcc to the default codec string used when the
// caller supplies none.
func FourCC(fcc string) (string, bool) {
	switch fcc {
	case "VP80":
		return "vp8", true
	case "VP90":
		return "vp9", true
	case "AV01":
		return "av01.0.00M.08", true
	}
	return "", false
}
