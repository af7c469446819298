package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/fentz26/reflex/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the reflex config file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the effective settings to the config file",
	Long: `Writes the current settings (defaults, env and flags applied) to
~/.reflex/config.yaml, or to the file named by --config.`,
	RunE: runConfigInit,
}

var forceInit bool

func init() {
	configCmd.AddCommand(configInitCmd)
	configInitCmd.Flags().BoolVar(&forceInit, "force", false, "Overwrite an existing config file")
}

func configFilePath() string {
	if configPath != "" {
		return configPath
	}
	return filepath.Join(config.Dir(), config.FileName)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configFilePath()
	if _, err := os.Stat(path); err == nil && !forceInit {
		return fmt.Errorf("config file %s already exists (use --force to overwrite)", path)
	}

	if err := config.SaveConfig(path, cfg); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote %s\n", path)
	return nil
}
