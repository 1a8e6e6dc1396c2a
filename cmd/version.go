package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/streamkit/mkvmux/internal/version"
)

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	var outputFormat string

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			info := version.Info()

			if outputFormat == "json" {
				data, err := json.MarshalIndent(info, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to marshal version info: %v", err)
				}
				fmt.Println(string(data))
				return nil
			}

			fmt.Printf("mkvmux version %s\n", info["Version"])
			fmt.Printf("  Go version: %s\n", info["GoVersion"])
			fmt.Printf("  Git commit: %s\n", info["GitCommit"])
			fmt.Printf("  Built:      %s\n", info["FormattedTime"])
			fmt.Printf("  OS/Arch:    %s/%s\n", info["OS"], info["Arch"])
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "output", "o", "text", "Output format (json or text)")

	return cmd
}
