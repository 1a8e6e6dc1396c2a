package cmd

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/streamkit/mkvmux/config"
	"github.com/streamkit/mkvmux/ebml"
	"github.com/streamkit/mkvmux/internal/ivf"
	"github.com/streamkit/mkvmux/internal/server"
	"github.com/streamkit/mkvmux/internal/util"
	"github.com/streamkit/mkvmux/matroska"
)

type ServeOptions struct {
	Listen     string
	DocType    string
	Preset     string
	MinCluster time.Duration
	Loop       bool
}

// NewServeCommand creates the serve command
func NewServeCommand() *cobra.Command {
	opts := &ServeOptions{}

	cmd := &cobra.Command{
		Use:   "serve <input.ivf>",
		Short: "Mux an IVF file live and broadcast it over HTTP and WebSocket",
		Long: `Serve reads an IVF file at its native frame rate, muxes it append-only and
broadcasts the result to every connected client. Late joiners receive the
init segment first, then clusters from their join point onward.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, args[0], opts)
		},
		Example: `  # Stream a file once
  mkvmux serve input.ivf

  # Loop forever on a custom port
  mkvmux serve input.ivf --listen :9090 --loop`,
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.Listen, "listen", "l", config.GetListenAddr(), "Listen address")
	flags.StringVar(&opts.DocType, "doctype", "", "Container doctype (webm or matroska)")
	flags.StringVar(&opts.Preset, "preset", "", "Muxing preset to apply")
	flags.DurationVar(&opts.MinCluster, "min-cluster-duration", 0, "Minimum cluster duration")
	flags.BoolVar(&opts.Loop, "loop", false, "Restart from the top when the file ends")

	cmd.RegisterFlagCompletionFunc("doctype", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{"webm", "matroska"}, cobra.ShellCompDirectiveNoFileComp
	})
	cmd.RegisterFlagCompletionFunc("preset", completePresetNames)

	return cmd
}

func runServe(cmd *cobra.Command, input string, opts *ServeOptions) error {
	settings, err := resolveMuxSettings(cmd, &RemuxOptions{
		DocType:    opts.DocType,
		Preset:     opts.Preset,
		MinCluster: opts.MinCluster,
	})
	if err != nil {
		return err
	}

	f, err := os.Open(input)
	if err != nil {
		return errors.Wrap(err, "failed to open input")
	}
	video, err := ivf.Open(f)
	if err != nil {
		f.Close()
		return err
	}

	contentType := "video/webm"
	if settings.docType == matroska.DocTypeMatroska {
		contentType = "video/x-matroska"
	}

	b := server.NewBroadcaster()
	srv := server.New(opts.Listen, b, contentType)

	errChan := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	m, err := matroska.NewMuxer(ebml.NewStreamSink(io.Discard, nil), matroska.Options{
		DocType:            settings.docType,
		MinClusterDuration: settings.minCluster,
		WritingApp:         settings.writingApp,
		Logger:             util.GetLogger(),
		OnEBMLHeader:       func(pos int64, data []byte) { b.AppendInit(data) },
		OnSegmentHeader:    func(pos int64, data []byte) { b.AppendInit(data) },
		OnCluster: func(pos int64, data []byte, ts time.Duration) {
			// The writer reuses the slice between callbacks.
			buf := make([]byte, len(data))
			copy(buf, data)
			b.Broadcast(buf)
		},
	})
	if err != nil {
		f.Close()
		return err
	}

	track, err := m.AddVideoTrack(matroska.VideoTrackOptions{
		TrackOptions: matroska.TrackOptions{Codec: video.Codec()},
	})
	if err != nil {
		f.Close()
		return err
	}
	if err := m.Start(); err != nil {
		f.Close()
		return err
	}

	// ANSI color codes
	const (
		ColorReset = "\033[0m"
		ColorGreen = "\033[32m"
		ColorBlue  = "\033[34m"
		ColorCyan  = "\033[36m"
	)

	fmt.Printf("%s🚀 Live Stream%s %s➜ %s%s/stream%s\n", ColorGreen, ColorReset, ColorCyan, ColorBlue, displayURL(opts.Listen), ColorReset)
	fmt.Printf("%sPress Ctrl+C to stop...%s\n", ColorCyan, ColorReset)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	streamDone := make(chan error, 1)
	go func() {
		streamDone <- playFile(ctx, input, f, video, track, opts.Loop)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		fmt.Println("\nShutting down...")
		cancel()
		<-streamDone
		if err := m.Finalize(); err != nil {
			util.GetLogger().Warn("finalize failed", "error", err)
		}
		return srv.Stop()

	case err := <-errChan:
		cancel()
		<-streamDone
		m.Cancel()
		return errors.Wrapf(err, "failed to serve on %s", opts.Listen)

	case err := <-streamDone:
		if err != nil && !errors.Is(err, context.Canceled) {
			m.Cancel()
			srv.Stop()
			return err
		}
		if err := m.Finalize(); err != nil {
			util.GetLogger().Warn("finalize failed", "error", err)
		}
		fmt.Println("Stream ended, serving until interrupted...")
		<-sigChan
		return srv.Stop()
	}
}

// playFile paces frames against the wall clock and writes them to the
// track, reopening the file for every pass when looping.
func playFile(ctx context.Context, path string, f *os.File, video *ivf.Reader, track *matroska.Track, loop bool) error {
	start := time.Now()
	var offset time.Duration
	sendConfig := true

	for {
		last, n, err := playPass(ctx, start, offset, video, track, sendConfig)
		f.Close()
		if err != nil {
			return err
		}
		if n == 0 {
			return errors.Errorf("%s contains no frames", path)
		}
		if !loop {
			return nil
		}
		sendConfig = false

		// Restart one frame interval after the last written timestamp.
		offset = last + video.FrameDuration()

		if f, err = os.Open(path); err != nil {
			return errors.Wrap(err, "failed to reopen input")
		}
		if video, err = ivf.Open(f); err != nil {
			f.Close()
			return err
		}
	}
}

// playPass writes one pass through the file, sleeping until each frame's
// wall-clock slot comes up.
func playPass(ctx context.Context, start time.Time, offset time.Duration, video *ivf.Reader, track *matroska.Track, sendConfig bool) (time.Duration, int, error) {
	var last time.Duration
	n := 0
	for {
		p, err := nextVideo(video)
		if err != nil {
			return last, n, err
		}
		if p == nil {
			return last, n, nil
		}

		ts := offset + p.Timestamp
		if d := time.Until(start.Add(ts)); d > 0 {
			select {
			case <-ctx.Done():
				return last, n, ctx.Err()
			case <-time.After(d):
			}
		} else if ctx.Err() != nil {
			return last, n, ctx.Err()
		}

		pkt := matroska.Packet{Data: p.Data, Keyframe: p.Keyframe, Timestamp: ts}
		if sendConfig && n == 0 {
			pkt.Config = &matroska.DecoderConfig{CodedWidth: video.Width(), CodedHeight: video.Height()}
		}
		if err := track.WritePacket(pkt); err != nil {
			return last, n, errors.Wrapf(err, "failed to mux frame at %s", ts)
		}
		last = ts
		n++
	}
}

// displayURL turns a listen address into something clickable.
func displayURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "http://localhost" + addr
	}
	return "http://" + addr
}
