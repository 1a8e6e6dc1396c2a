package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	ebmlgo "github.com/at-wat/ebml-go"
	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/streamkit/mkvmux/codecs"
	"github.com/streamkit/mkvmux/internal/util"
)

// The probe* structs decode the slice of a container the report needs;
// everything else is skipped during parsing.

type probeHeader struct {
	DocType        string `ebml:"EBMLDocType"`
	DocTypeVersion uint64 `ebml:"EBMLDocTypeVersion"`
}

type probeInfo struct {
	TimecodeScale uint64
	MuxingApp     string
	WritingApp    string
	Duration      float64
}

type probeVideo struct {
	PixelWidth  uint64
	PixelHeight uint64
}

type probeAudio struct {
	SamplingFrequency float64
	Channels          uint64
	BitDepth          uint64
}

type probeTrackEntry struct {
	TrackNumber     uint64
	TrackType       uint64
	CodecID         string
	CodecPrivate    []byte
	DefaultDuration uint64
	Language        string
	Name            string
	Video           *probeVideo
	Audio           *probeAudio
}

type probeTracks struct {
	TrackEntry []probeTrackEntry
}

type probeCluster struct {
	Timecode uint64
}

type probeCuePoint struct {
	CueTime uint64
}

type probeCues struct {
	CuePoint []probeCuePoint
}

type probeSeek struct {
	SeekID       []byte
	SeekPosition uint64
}

type probeSeekHead struct {
	Seek []probeSeek
}

type probeSegment struct {
	SeekHead *probeSeekHead
	Info     probeInfo
	Tracks   probeTracks
	Cluster  []probeCluster
	Cues     *probeCues
}

type probeFile struct {
	Header  probeHeader `ebml:"EBML"`
	Segment probeSegment
}

type trackReport struct {
	Number     uint64  `json:"number"`
	Type       string  `json:"type"`
	Codec      string  `json:"codec"`
	CodecID    string  `json:"codec_id"`
	Language   string  `json:"language,omitempty"`
	Name       string  `json:"name,omitempty"`
	Width      uint64  `json:"width,omitempty"`
	Height     uint64  `json:"height,omitempty"`
	SampleRate float64 `json:"sample_rate,omitempty"`
	Channels   uint64  `json:"channels,omitempty"`
	BitDepth   uint64  `json:"bit_depth,omitempty"`
}

type probeReport struct {
	File       string        `json:"file"`
	SizeBytes  int64         `json:"size_bytes"`
	DocType    string        `json:"doctype"`
	Seekable   bool          `json:"seekable"`
	Duration   string        `json:"duration,omitempty"`
	MuxingApp  string        `json:"muxing_app,omitempty"`
	WritingApp string        `json:"writing_app,omitempty"`
	Tracks     []trackReport `json:"tracks"`
	Clusters   int           `json:"clusters"`
	CuePoints  int           `json:"cue_points"`
}

// NewProbeCommand creates the probe command
func NewProbeCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "probe <file>",
		Short: "Inspect a Matroska or WebM file",
		Long: `Probe parses a .webm or .mkv file and reports its doctype, duration, tracks,
cluster layout and cue index. Unrecognized elements are skipped, so files
written by other muxers parse fine.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProbe(args[0], output)
		},
		Example: `  # Summarize a file
  mkvmux probe recording.webm

  # Machine-readable output
  mkvmux probe recording.webm -o json`,
	}

	cmd.Flags().StringVarP(&output, "output", "o", "text", "Output format (text or json)")

	cmd.RegisterFlagCompletionFunc("output", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{"text", "json"}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runProbe(path string, output string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "failed to open file")
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return err
	}

	var parsed probeFile
	if err := ebmlgo.Unmarshal(f, &parsed, ebmlgo.WithIgnoreUnknown(true)); err != nil {
		return errors.Wrap(err, "failed to parse EBML structure")
	}

	report := buildReport(path, st.Size(), &parsed)

	if output == "json" {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	printReport(report)
	return nil
}

func buildReport(path string, size int64, f *probeFile) *probeReport {
	r := &probeReport{
		File:       path,
		SizeBytes:  size,
		DocType:    f.Header.DocType,
		Seekable:   f.Segment.SeekHead != nil,
		MuxingApp:  f.Segment.Info.MuxingApp,
		WritingApp: f.Segment.Info.WritingApp,
		Clusters:   len(f.Segment.Cluster),
	}
	if f.Segment.Cues != nil {
		r.CuePoints = len(f.Segment.Cues.CuePoint)
	}
	if d := f.Segment.Info.Duration; d > 0 {
		// Duration is stored in timestamp-scale ticks.
		scale := f.Segment.Info.TimecodeScale
		if scale == 0 {
			scale = 1_000_000
		}
		r.Duration = time.Duration(d * float64(scale)).Round(time.Millisecond).String()
	}

	for _, e := range f.Segment.Tracks.TrackEntry {
		tr := trackReport{
			Number:   e.TrackNumber,
			Type:     trackTypeName(e.TrackType),
			Codec:    codecs.ShortName(codecs.ID(e.CodecID)),
			CodecID:  e.CodecID,
			Language: e.Language,
			Name:     e.Name,
		}
		if e.Video != nil {
			tr.Width = e.Video.PixelWidth
			tr.Height = e.Video.PixelHeight
		}
		if e.Audio != nil {
			tr.SampleRate = e.Audio.SamplingFrequency
			tr.Channels = e.Audio.Channels
			tr.BitDepth = e.Audio.BitDepth
		}
		r.Tracks = append(r.Tracks, tr)
	}
	return r
}

func trackTypeName(t uint64) string {
	switch t {
	case 1:
		return "video"
	case 2:
		return "audio"
	case 17:
		return "subtitle"
	}
	return fmt.Sprintf("type-%d", t)
}

func printReport(r *probeReport) {
	fmt.Printf("%s (%s, %s)\n", r.File, color.CyanString(r.DocType), formatSize(r.SizeBytes))
	if r.Duration != "" {
		fmt.Printf("  duration:    %s\n", r.Duration)
	} else {
		fmt.Printf("  duration:    unknown (no duration header)\n")
	}
	layout := "append-only stream"
	if r.Seekable {
		layout = "seekable, cue-indexed"
	}
	fmt.Printf("  layout:      %s (%d clusters, %d cue points)\n", layout, r.Clusters, r.CuePoints)
	if r.WritingApp != "" {
		fmt.Printf("  writing app: %s\n", r.WritingApp)
	}
	fmt.Println()

	var rows []map[string]interface{}
	for _, tr := range r.Tracks {
		details := ""
		switch {
		case tr.Width > 0:
			details = fmt.Sprintf("%dx%d", tr.Width, tr.Height)
		case tr.SampleRate > 0:
			details = fmt.Sprintf("%g Hz, %d ch", tr.SampleRate, tr.Channels)
			if tr.BitDepth > 0 {
				details += fmt.Sprintf(", %d bit", tr.BitDepth)
			}
		}
		rows = append(rows, map[string]interface{}{
			"number":   tr.Number,
			"type":     tr.Type,
			"codec":    tr.Codec,
			"codec_id": tr.CodecID,
			"lang":     tr.Language,
			"details":  details,
		})
	}

	columns := []util.TableColumn{
		{Header: "#", Key: "number"},
		{Header: "TYPE", Key: "type"},
		{Header: "CODEC", Key: "codec"},
		{Header: "CODEC ID", Key: "codec_id"},
		{Header: "LANG", Key: "lang"},
		{Header: "DETAILS", Key: "details"},
	}
	util.RenderTable(columns, rows)
}

func formatSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(n)/(1<<10))
	}
	return fmt.Sprintf("%d B", n)
}
