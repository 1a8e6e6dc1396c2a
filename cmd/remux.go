package cmd

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/pion/webrtc/v4/pkg/media/oggreader"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/streamkit/mkvmux/config"
	"github.com/streamkit/mkvmux/ebml"
	"github.com/streamkit/mkvmux/internal/ivf"
	"github.com/streamkit/mkvmux/internal/util"
	"github.com/streamkit/mkvmux/internal/version"
	"github.com/streamkit/mkvmux/matroska"
)

type RemuxOptions struct {
	Output     string
	Audio      string
	DocType    string
	Preset     string
	Title      string
	Language   string
	MinCluster time.Duration
	Rotation   int
	Cover      string
}

// NewRemuxCommand creates the remux command
func NewRemuxCommand() *cobra.Command {
	opts := &RemuxOptions{}

	cmd := &cobra.Command{
		Use:   "remux <input.ivf>",
		Short: "Remux IVF video and Ogg Opus audio into a Matroska or WebM file",
		Long: `Remux reads VP8, VP9 or AV1 frames from an IVF file, optionally merges an Ogg
Opus audio stream, and writes a seekable .webm or .mkv file with a cue index
and a patched duration.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRemux(cmd, args[0], opts)
		},
		Example: `  # Remux a VP9 file to WebM
  mkvmux remux input.ivf -o output.webm

  # Merge an Opus audio track
  mkvmux remux input.ivf --audio voice.ogg -o output.webm

  # Produce a Matroska file with a cover image
  mkvmux remux input.ivf --doctype matroska --cover cover.png -o output.mkv`,
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.Output, "output", "o", "", "Output file (defaults to the input name with a container extension)")
	flags.StringVarP(&opts.Audio, "audio", "a", "", "Ogg Opus audio file to merge")
	flags.StringVar(&opts.DocType, "doctype", "", "Container doctype (webm or matroska)")
	flags.StringVar(&opts.Preset, "preset", "", "Muxing preset to apply")
	flags.StringVar(&opts.Title, "title", "", "Title tag for the output")
	flags.StringVar(&opts.Language, "language", "", "ISO 639-2 track language")
	flags.DurationVar(&opts.MinCluster, "min-cluster-duration", 0, "Minimum cluster duration")
	flags.IntVar(&opts.Rotation, "rotation", 0, "Display rotation in degrees (0, 90, 180 or 270)")
	flags.StringVar(&opts.Cover, "cover", "", "Cover image to attach (matroska only)")

	cmd.RegisterFlagCompletionFunc("doctype", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{"webm", "matroska"}, cobra.ShellCompDirectiveNoFileComp
	})
	cmd.RegisterFlagCompletionFunc("preset", completePresetNames)

	return cmd
}

// muxSettings are the muxing parameters after merging config defaults, the
// selected preset and explicit flags, in that order of precedence.
type muxSettings struct {
	docType    matroska.DocType
	minCluster time.Duration
	writingApp string
	language   string
}

func resolveMuxSettings(cmd *cobra.Command, opts *RemuxOptions) (*muxSettings, error) {
	s := &muxSettings{
		docType:    matroska.DocType(config.GetDocType()),
		minCluster: config.GetMinClusterDuration(),
		writingApp: config.GetWritingApp(),
	}

	pm := config.NewPresetManager()
	if err := pm.Load(); err != nil {
		if opts.Preset != "" {
			return nil, errors.Wrap(err, "failed to load presets")
		}
		util.GetLogger().Debug("preset file unavailable", "error", err)
	} else {
		preset := pm.GetCurrent()
		if opts.Preset != "" {
			preset = pm.Get(opts.Preset)
			if preset == nil {
				return nil, errors.Errorf("preset '%s' not found", opts.Preset)
			}
		}
		if preset != nil {
			if preset.DocType != "" {
				s.docType = matroska.DocType(preset.DocType)
			}
			if d := preset.MinCluster(); d > 0 {
				s.minCluster = d
			}
			if preset.WritingApp != "" {
				s.writingApp = preset.WritingApp
			}
			if preset.Language != "" {
				s.language = preset.Language
			}
		}
	}

	if cmd.Flags().Changed("doctype") {
		s.docType = matroska.DocType(opts.DocType)
	}
	if s.docType != matroska.DocTypeWebM && s.docType != matroska.DocTypeMatroska {
		return nil, errors.Errorf("invalid doctype '%s' (expected webm or matroska)", s.docType)
	}
	if opts.MinCluster > 0 {
		s.minCluster = opts.MinCluster
	}
	if s.writingApp == "" {
		s.writingApp = version.AppString()
	}
	if opts.Language != "" {
		s.language = opts.Language
	}

	return s, nil
}

func runRemux(cmd *cobra.Command, input string, opts *RemuxOptions) error {
	settings, err := resolveMuxSettings(cmd, opts)
	if err != nil {
		return err
	}

	in, err := os.Open(input)
	if err != nil {
		return errors.Wrap(err, "failed to open input")
	}
	defer in.Close()

	video, err := ivf.Open(in)
	if err != nil {
		return err
	}

	var audio *oggSource
	if opts.Audio != "" {
		af, err := os.Open(opts.Audio)
		if err != nil {
			return errors.Wrap(err, "failed to open audio input")
		}
		defer af.Close()
		if audio, err = newOggSource(af); err != nil {
			return err
		}
	}

	output := opts.Output
	if output == "" {
		output = defaultOutputName(input, settings.docType)
	}

	out, err := os.Create(output)
	if err != nil {
		return errors.Wrap(err, "failed to create output")
	}
	// The muxer owns the sink from here; Finalize and Cancel close the file.

	muxOpts := matroska.Options{
		DocType:            settings.docType,
		MinClusterDuration: settings.minCluster,
		WritingApp:         settings.writingApp,
		Logger:             util.GetLogger(),
	}
	if opts.Title != "" {
		muxOpts.Tags = []matroska.Tag{{Name: "TITLE", Value: opts.Title}}
	}
	if opts.Cover != "" {
		att, err := loadCoverAttachment(opts.Cover)
		if err != nil {
			out.Close()
			os.Remove(output)
			return err
		}
		muxOpts.Attachments = []matroska.Attachment{*att}
	}

	m, err := matroska.NewMuxer(ebml.NewFileSink(out), muxOpts)
	if err != nil {
		out.Close()
		os.Remove(output)
		return err
	}

	videoTrack, err := m.AddVideoTrack(matroska.VideoTrackOptions{
		TrackOptions: matroska.TrackOptions{Codec: video.Codec(), Language: settings.language},
		Rotation:     opts.Rotation,
	})
	if err != nil {
		m.Cancel()
		os.Remove(output)
		return err
	}

	var audioTrack *matroska.Track
	if audio != nil {
		if audioTrack, err = m.AddAudioTrack(matroska.AudioTrackOptions{
			TrackOptions: matroska.TrackOptions{Codec: "opus", Language: settings.language},
		}); err != nil {
			m.Cancel()
			os.Remove(output)
			return err
		}
	}

	if err := m.Start(); err != nil {
		m.Cancel()
		os.Remove(output)
		return err
	}

	stats, err := mergeStreams(video, videoTrack, audio, audioTrack)
	if err != nil {
		m.Cancel()
		os.Remove(output)
		return err
	}

	if err := m.Finalize(); err != nil {
		os.Remove(output)
		return err
	}

	fmt.Printf("✅ Remuxed %s → %s\n", input, color.CyanString(output))
	fmt.Printf("   %d video packets", stats.videoPackets)
	if audio != nil {
		fmt.Printf(", %d audio packets", stats.audioPackets)
	}
	fmt.Printf(", %s\n", stats.duration.Round(time.Millisecond))
	return nil
}

type remuxStats struct {
	videoPackets int
	audioPackets int
	duration     time.Duration
}

// mergeStreams feeds both sources to the muxer in global timestamp order so
// neither track queue grows beyond a couple of packets.
func mergeStreams(video *ivf.Reader, videoTrack *matroska.Track, audio *oggSource, audioTrack *matroska.Track) (*remuxStats, error) {
	stats := &remuxStats{}

	vp, err := nextVideo(video)
	if err != nil {
		return nil, err
	}
	if vp == nil {
		if err := videoTrack.Close(); err != nil {
			return nil, err
		}
	}
	var ap *audioPacket
	if audio != nil {
		if ap, err = audio.next(); err != nil {
			return nil, err
		}
		if ap == nil {
			if err := audioTrack.Close(); err != nil {
				return nil, err
			}
		}
	}

	videoFirst := true
	audioFirst := true

	for vp != nil || ap != nil {
		if ap == nil || (vp != nil && vp.Timestamp <= ap.ts) {
			pkt := matroska.Packet{Data: vp.Data, Keyframe: vp.Keyframe, Timestamp: vp.Timestamp}
			if videoFirst {
				pkt.Config = &matroska.DecoderConfig{
					CodedWidth:  video.Width(),
					CodedHeight: video.Height(),
				}
				videoFirst = false
			}
			if err := videoTrack.WritePacket(pkt); err != nil {
				return nil, errors.Wrapf(err, "failed to mux video packet at %s", vp.Timestamp)
			}
			stats.videoPackets++
			if vp.Timestamp > stats.duration {
				stats.duration = vp.Timestamp
			}
			if vp, err = nextVideo(video); err != nil {
				return nil, err
			}
			if vp == nil {
				if err := videoTrack.Close(); err != nil {
					return nil, err
				}
			}
		} else {
			pkt := matroska.Packet{Data: ap.data, Keyframe: true, Timestamp: ap.ts, Duration: ap.duration}
			if audioFirst {
				pkt.Config = &matroska.DecoderConfig{
					// Opus always decodes at 48 kHz regardless of the
					// original input rate.
					SampleRate:  48000,
					Channels:    int(audio.header.Channels),
					Description: audio.opusHead(),
				}
				audioFirst = false
			}
			if err := audioTrack.WritePacket(pkt); err != nil {
				return nil, errors.Wrapf(err, "failed to mux audio packet at %s", ap.ts)
			}
			stats.audioPackets++
			if end := ap.ts + ap.duration; end > stats.duration {
				stats.duration = end
			}
			if ap, err = audio.next(); err != nil {
				return nil, err
			}
			if ap == nil {
				if err := audioTrack.Close(); err != nil {
					return nil, err
				}
			}
		}
	}

	return stats, nil
}

func nextVideo(r *ivf.Reader) (*ivf.Packet, error) {
	p, err := r.Next()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// oggSource demuxes an Ogg Opus stream page by page, one Opus packet per
// page, turning granule position deltas into timestamps.
type oggSource struct {
	ogg         *oggreader.OggReader
	header      *oggreader.OggHeader
	lastGranule uint64
	ts          time.Duration
}

type audioPacket struct {
	data     []byte
	ts       time.Duration
	duration time.Duration
}

func newOggSource(r io.Reader) (*oggSource, error) {
	ogg, header, err := oggreader.NewWith(r)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse ogg stream")
	}
	return &oggSource{ogg: ogg, header: header}, nil
}

// opusHead rebuilds the 19-byte OpusHead from the parsed identification
// header so the container carries the stream's true pre-skip.
func (s *oggSource) opusHead() []byte {
	head := make([]byte, 19)
	copy(head, "OpusHead")
	head[8] = 1
	head[9] = s.header.Channels
	binary.LittleEndian.PutUint16(head[10:], s.header.PreSkip)
	binary.LittleEndian.PutUint32(head[12:], s.header.SampleRate)
	binary.LittleEndian.PutUint16(head[16:], s.header.OutputGain)
	head[18] = s.header.ChannelMap
	return head
}

// next returns the following audio packet, nil at the end of the stream.
func (s *oggSource) next() (*audioPacket, error) {
	for {
		data, pageHeader, err := s.ogg.ParseNextPage()
		if err == io.EOF {
			return nil, nil
		}
		if err != nil {
			return nil, errors.Wrap(err, "failed to read ogg page")
		}

		// The comment header page carries no audio.
		if len(data) == 0 || bytes.HasPrefix(data, []byte("OpusTags")) {
			s.lastGranule = pageHeader.GranulePosition
			continue
		}

		// Opus granules count 48 kHz samples whatever the input rate.
		sampleCount := pageHeader.GranulePosition - s.lastGranule
		s.lastGranule = pageHeader.GranulePosition

		pkt := &audioPacket{
			data:     data,
			ts:       s.ts,
			duration: time.Duration(sampleCount) * time.Second / 48000,
		}
		s.ts += pkt.duration
		return pkt, nil
	}
}

func defaultOutputName(input string, docType matroska.DocType) string {
	ext := ".webm"
	if docType == matroska.DocTypeMatroska {
		ext = ".mkv"
	}
	return strings.TrimSuffix(input, filepath.Ext(input)) + ext
}

func loadCoverAttachment(path string) (*matroska.Attachment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read cover image")
	}

	mediaType := "application/octet-stream"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		mediaType = "image/png"
	case ".jpg", ".jpeg":
		mediaType = "image/jpeg"
	case ".webp":
		mediaType = "image/webp"
	}

	return &matroska.Attachment{
		Name:      filepath.Base(path),
		MediaType: mediaType,
		Data:      data,
	}, nil
}
