package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fentz26/reflex/internal/reporter"
	"github.com/fentz26/reflex/internal/trial"
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Manage your scoring account",
}

var accountRegisterCmd = &cobra.Command{
	Use:   "register [username]",
	Short: "Register a username",
	Args:  cobra.ExactArgs(1),
	RunE:  runAccountRegister,
}

var accountLoginCmd = &cobra.Command{
	Use:   "login [username]",
	Short: "Log in and show your best time",
	Args:  cobra.ExactArgs(1),
	RunE:  runAccountLogin,
}

func init() {
	accountCmd.AddCommand(accountRegisterCmd, accountLoginCmd)
}

func runAccountRegister(cmd *cobra.Command, args []string) error {
	client := reporter.NewClient(cfg.APIAddr, cfg.ClientTimeout)
	if err := client.Register(commandContext(cmd), args[0]); err != nil {
		if reporter.IsConflict(err) {
			return fmt.Errorf("username %q is already taken", args[0])
		}
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ User %s registered\n", args[0])
	return nil
}

func runAccountLogin(cmd *cobra.Command, args []string) error {
	client := reporter.NewClient(cfg.APIAddr, cfg.ClientTimeout)
	id, err := client.Login(commandContext(cmd), args[0])
	if errors.Is(err, reporter.ErrUserNotFound) {
		return fmt.Errorf("user %q not found, register first", args[0])
	}
	if err != nil {
		return err
	}

	best := "N/A"
	if id.BestTime != nil {
		best = fmt.Sprintf("%.2f ms", trial.Millis(*id.BestTime))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Logged in as %s\n", id.Username)
	fmt.Fprintf(cmd.OutOrStdout(), "  Best time: %s\n", best)
	return nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
