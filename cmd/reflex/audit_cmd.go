package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fentz26/reflex/internal/reporter"
)

var auditCmd = &cobra.Command{
	Use:   "audit [username]",
	Short: "Show the scoring service audit trail",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAudit,
}

func runAudit(cmd *cobra.Command, args []string) error {
	username := ""
	if len(args) == 1 {
		username = args[0]
	}

	client := reporter.NewClient(cfg.APIAddr, cfg.ClientTimeout)
	entries, err := client.Audit(commandContext(cmd), username)
	if err != nil {
		return err
	}

	if len(entries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No audit entries.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tACTION\tUSER\tOUTCOME\tDETAILS")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			e.Timestamp.Local().Format("2006-01-02 15:04:05"), e.Action, e.Username, e.Outcome, e.Details)
	}
	return w.Flush()
}
