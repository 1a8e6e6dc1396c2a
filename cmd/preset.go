package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/streamkit/mkvmux/config"
	"github.com/streamkit/mkvmux/internal/util"
)

// NewPresetCommand creates the preset command with subcommands
func NewPresetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preset",
		Short: "Manage muxing presets",
		Long:  `Manage named bundles of muxing options stored in the preset file.`,
	}

	cmd.AddCommand(newPresetListCmd())
	cmd.AddCommand(newPresetAddCmd())
	cmd.AddCommand(newPresetRemoveCmd())
	cmd.AddCommand(newPresetUseCmd())
	cmd.AddCommand(newPresetCurrentCmd())

	return cmd
}

func loadPresetManager() (*config.PresetManager, error) {
	pm := config.NewPresetManager()
	if err := pm.Load(); err != nil {
		return nil, errors.Wrap(err, "failed to load presets")
	}
	return pm, nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func newPresetListCmd() *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List all presets",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			pm, err := loadPresetManager()
			if err != nil {
				return err
			}
			if pm.Count() == 0 {
				fmt.Println("No presets found")
				return nil
			}

			var rows []map[string]interface{}
			for _, name := range pm.Names() {
				p := pm.Get(name)
				marker := ""
				if name == pm.CurrentName() {
					marker = color.GreenString("→")
				}
				rows = append(rows, map[string]interface{}{
					"current":     marker,
					"name":        name,
					"doctype":     orDash(p.DocType),
					"min_cluster": orDash(p.MinClusterDuration),
					"writing_app": orDash(p.WritingApp),
					"language":    orDash(p.Language),
				})
			}

			columns := []util.TableColumn{
				{Header: " ", Key: "current"},
				{Header: "NAME", Key: "name"},
				{Header: "DOCTYPE", Key: "doctype"},
				{Header: "MIN CLUSTER", Key: "min_cluster"},
				{Header: "WRITING APP", Key: "writing_app"},
				{Header: "LANG", Key: "language"},
			}
			util.RenderTable(columns, rows)
			return nil
		},
	}
}

func newPresetAddCmd() *cobra.Command {
	var preset config.Preset

	cmd := &cobra.Command{
		Use:           "add <name>",
		Short:         "Add a preset",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			pm, err := loadPresetManager()
			if err != nil {
				return err
			}
			if err := pm.Add(args[0], preset); err != nil {
				return err
			}
			fmt.Println("Preset added successfully")
			return nil
		},
		Example: `  # A streaming preset with small clusters
  mkvmux preset add live --min-cluster-duration 250ms

  # An archival preset
  mkvmux preset add archive --doctype matroska --writing-app "archiver/2.1"`,
	}

	flags := cmd.Flags()
	flags.StringVar(&preset.DocType, "doctype", "", "Container doctype (webm or matroska)")
	flags.StringVar(&preset.MinClusterDuration, "min-cluster-duration", "", "Minimum cluster duration (e.g. 500ms)")
	flags.StringVar(&preset.WritingApp, "writing-app", "", "WritingApp string stamped into output")
	flags.StringVar(&preset.Language, "language", "", "ISO 639-2 track language")

	cmd.RegisterFlagCompletionFunc("doctype", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{"webm", "matroska"}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func newPresetRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "remove <name>",
		Short:             "Remove a preset",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completePresetNames,
		SilenceUsage:      true,
		SilenceErrors:     true,
		RunE: func(cmd *cobra.Command, args []string) error {
			pm, err := loadPresetManager()
			if err != nil {
				return err
			}
			if err := pm.Remove(args[0]); err != nil {
				return err
			}
			fmt.Printf("Preset '%s' removed\n", args[0])
			return nil
		},
	}
}

func newPresetUseCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "use <name>",
		Short:             "Set the current preset",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completePresetNames,
		SilenceUsage:      true,
		SilenceErrors:     true,
		RunE: func(cmd *cobra.Command, args []string) error {
			pm, err := loadPresetManager()
			if err != nil {
				return err
			}
			if err := pm.Use(args[0]); err != nil {
				return err
			}
			fmt.Printf("Switched to preset '%s'\n", args[0])
			return nil
		},
	}
}

func newPresetCurrentCmd() *cobra.Command {
	return &cobra.Command{
		Use:           "current",
		Short:         "Show the current preset",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			pm, err := loadPresetManager()
			if err != nil {
				return err
			}
			current := pm.GetCurrent()
			if current == nil {
				fmt.Println("No current preset set")
				return nil
			}

			fmt.Println("Current Preset:")
			fmt.Printf("  Name: %s\n", pm.CurrentName())
			fmt.Printf("  Doctype: %s\n", orDash(current.DocType))
			fmt.Printf("  Min cluster duration: %s\n", orDash(current.MinClusterDuration))
			fmt.Printf("  Writing app: %s\n", orDash(current.WritingApp))
			fmt.Printf("  Language: %s\n", orDash(current.Language))
			return nil
		},
	}
}
