package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var configDir string

	root := &cobra.Command{
		Use:           AppName,
		Short:         "Collects the rover traverse from the mission map",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&configDir, "config-dir", ".", "directory containing "+AppName+".cfg.json")

	root.AddCommand(
		newCollectCmd(&configDir),
		newServeCmd(&configDir),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (built %s)\n", AppName, CurrentVersion, BuildDate)
		},
	}
}
