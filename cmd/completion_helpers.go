package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/streamkit/mkvmux/config"
)

// completePresetNames provides completion for preset names from the preset
// file.
func completePresetNames(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	pm := config.NewPresetManager()
	if err := pm.Load(); err != nil {
		return nil, cobra.ShellCompDirectiveError
	}

	var names []string
	for _, name := range pm.Names() {
		if strings.HasPrefix(name, toComplete) {
			names = append(names, name)
		}
	}
	return names, cobra.ShellCompDirectiveNoFileComp
}
