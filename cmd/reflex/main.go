package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fentz26/reflex/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "reflex",
	Short: "Reflex - reaction time trainer",
	Long: `Reflex measures how fast you react to a visual stimulus over three trials
and keeps your best average on a scoring service.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd)
	},
	// No RunE - defaults to showing help when no subcommand is provided
}

var (
	apiAddr    string
	configPath string
	envFile    string
	logLevel   string

	// cfg is the effective configuration, loaded before any subcommand runs.
	cfg *config.Config
)

func init() {
	rootCmd.PersistentFlags().StringVar(&apiAddr, "api", "", "Scoring service address (default from config)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.reflex/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Env file to load (default .env)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")

	// Add subcommands
	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(accountCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig layers explicitly set flags over the file and environment.
func loadConfig(cmd *cobra.Command) error {
	loaded, err := config.Load(config.LoadOptions{ConfigPath: configPath, EnvFile: envFile})
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("api") {
		loaded.APIAddr = apiAddr
	}
	if flags.Changed("log-level") {
		loaded.LogLevel = logLevel
	}
	if flags.Changed("listen") {
		loaded.ListenAddr = listenAddr
	}
	if flags.Changed("db") {
		loaded.DBPath = dbPath
	}
	if err := loaded.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	cfg = loaded
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
