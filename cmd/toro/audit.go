package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/Veraticus/toro/internal/cli"
	"github.com/Veraticus/toro/internal/service"
	"github.com/spf13/cobra"
)

func auditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Read the audit log",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List audit entries, newest first",
		Example: `  toro audit list --action catalog_upgrade
  toro audit list --limit 5 --json`,
		RunE: runAuditList,
	}
	list.Flags().String("action", "", "only entries with this action")
	list.Flags().Int("limit", 20, "maximum number of entries (0 = no limit)")
	list.Flags().Bool("json", false, "print entries as JSON including before/after state")

	cmd.AddCommand(list)
	return cmd
}

func runAuditList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	store, cleanup, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	var filter service.AuditFilter
	filter.Action, _ = cmd.Flags().GetString("action")
	filter.Limit, _ = cmd.Flags().GetInt("limit")

	entries, err := store.GetAuditEntries(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to read audit log: %w", err)
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	if len(entries) == 0 {
		cmd.Println(cli.FormatInfo("The audit log is empty"))
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	//nolint:forbidigo // User-facing output
	fmt.Fprintln(w, "Fecha\tActor\tAcción\tEntidad")
	//nolint:forbidigo // User-facing output
	fmt.Fprintln(w, separator(19, 12, 26, 30))
	for _, e := range entries {
		//nolint:forbidigo // User-facing output
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			e.Timestamp.Local().Format("2006-01-02 15:04:05"),
			truncate(e.Actor, 12),
			e.Action,
			truncate(e.Entity, 30),
		)
	}
	return w.Flush()
}
