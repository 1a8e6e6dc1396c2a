package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/streamkit/mkvmux/internal/util"
	"github.com/streamkit/mkvmux/internal/version"
)

var (
	verbose bool

	rootCmd = &cobra.Command{
		Use:   "mkvmux",
		Short: "Matroska/WebM muxing toolkit",
		Long: `mkvmux muxes encoded media streams into Matroska and WebM containers. It remuxes
IVF video and Ogg Opus audio into playable files, inspects existing containers,
and serves a live muxed stream over HTTP and WebSocket.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			util.InitLogger(verbose)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flag("version").Changed {
				info := version.Info()
				fmt.Printf("mkvmux version %s, build %s\n", info["Version"], info["GitCommit"])
				return nil
			}
			return cmd.Help()
		},
	}
)

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.Flags().BoolP("version", "v", false, "Print version information and exit")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable debug logging")

	rootCmd.AddCommand(NewRemuxCommand())
	rootCmd.AddCommand(NewProbeCommand())
	rootCmd.AddCommand(NewServeCommand())
	rootCmd.AddCommand(NewPresetCommand())
	rootCmd.AddCommand(NewVersionCommand())
}
