package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/fentz26/reflex/internal/logging"
	"github.com/fentz26/reflex/internal/reporter"
	"github.com/fentz26/reflex/internal/tui"
)

var autoServe bool

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Play the reaction time game",
	RunE:  runPlay,
}

func init() {
	playCmd.Flags().BoolVar(&autoServe, "serve", true, "Start a local scoring service in the background when none is running")
}

func runPlay(cmd *cobra.Command, args []string) error {
	// The TUI owns the terminal, so logs go to a file.
	logFile, err := logging.OpenFile(cfg.LogFile)
	if err != nil {
		return err
	}
	defer logFile.Close()

	logger, err := logging.Setup(cfg.LogLevel, logFile)
	if err != nil {
		return err
	}

	client := reporter.NewClient(cfg.APIAddr, cfg.ClientTimeout)

	if autoServe && isLocal(cfg.APIAddr) && !isServiceRunning(client) {
		fmt.Println("⚡ Scoring service not running. Starting background service...")
		if err := startService(client); err != nil {
			// Scores are optional, the game still works offline.
			logger.Warn().Err(err).Msg("scoring service unavailable")
			fmt.Fprintf(os.Stderr, "Warning: %v (playing offline)\n", err)
		}
	}

	app := tui.New(client, logger, clockwork.NewRealClock())
	if err := app.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

func isLocal(addr string) bool {
	u, err := url.Parse(addr)
	if err != nil {
		return false
	}
	switch u.Hostname() {
	case "127.0.0.1", "localhost", "::1":
		return true
	}
	return false
}

func isServiceRunning(client *reporter.Client) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	return client.Health(ctx) == nil
}

// serveArgs builds the arguments for the background `reflex serve`,
// forwarding the files this process loaded its settings from.
func serveArgs(listen string) []string {
	args := []string{"serve", "--listen", listen}
	if configPath != "" {
		args = append(args, "--config", configPath)
	}
	if envFile != "" {
		args = append(args, "--env-file", envFile)
	}
	return args
}

func startService(client *reporter.Client) error {
	exe, err := os.Executable()
	if err != nil {
		return err
	}

	u, err := url.Parse(client.BaseURL())
	if err != nil {
		return err
	}

	// Start "reflex serve" in background
	svc := exec.Command(exe, serveArgs(u.Host)...)
	configureServiceProc(svc)
	svc.Stdin = nil
	svc.Stdout = nil
	svc.Stderr = nil

	if err := svc.Start(); err != nil {
		return err
	}

	fmt.Print("   Waiting for scoring service...")
	for i := 0; i < 20; i++ { // Wait up to 5 seconds
		if isServiceRunning(client) {
			fmt.Println(" Done.")
			return nil
		}
		time.Sleep(250 * time.Millisecond)
		fmt.Print(".")
	}
	fmt.Println(" Timeout!")
	return fmt.Errorf("scoring service started but not reachable at %s", client.BaseURL())
}
