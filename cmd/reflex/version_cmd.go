package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fentz26/reflex/internal/scoreboard"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "reflex %s\n", scoreboard.Version)
	},
}
