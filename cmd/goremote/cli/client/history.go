package client

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mwantia/goremote/internal/agent"
	"github.com/mwantia/goremote/pkg/db/models"
	"github.com/spf13/cobra"
)

func NewHistoryCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent transfers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAgent(cmd.Context(), func(gra *agent.GoRemoteAgent) error {
				records, err := gra.Store().ListTransferRecords(cmd.Context(), limit)
				if err != nil {
					return fmt.Errorf("failed to list transfer records: %w", err)
				}
				printHistory(cmd.OutOrStdout(), records, gra.ProfileName)
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of records to show (0 for all)")
	cmd.AddCommand(newHistoryShowCommand())

	return cmd
}

func newHistoryShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show every path of a transfer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAgent(cmd.Context(), func(gra *agent.GoRemoteAgent) error {
				record, err := gra.Store().GetTransferRecord(cmd.Context(), args[0])
				if err != nil {
					return fmt.Errorf("failed to load transfer record '%s': %w", args[0], err)
				}
				printRecord(cmd.OutOrStdout(), record, gra.ProfileName)
				return nil
			})
		},
	}
}

func printHistory(out io.Writer, records []models.TransferRecord, profileName func(string) string) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, headerStyle.Render("ID\tSTARTED\tOPERATION\tPROFILE\tOK\tFAILED\tPARTIAL\tIGNORED\tRUNTIME"))
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
			r.ID, humanize.Time(r.StartedAt), r.Operation, profileName(r.Profile),
			r.Transferred, r.Failed, r.PartiallyFailed, r.Ignored,
			(time.Duration(r.RuntimeMs) * time.Millisecond).String())
	}
	w.Flush()
}

func printRecord(out io.Writer, r *models.TransferRecord, profileName func(string) string) {
	fmt.Fprintf(out, "%s %s of '%s' started %s\n",
		headerStyle.Render(r.ID), r.Operation, profileName(r.Profile), r.StartedAt.Format(time.RFC3339))

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, e := range r.Entries {
		fmt.Fprintf(w, "  %s\t%s\t%s\n", e.Outcome, displayPath(e.Path), e.Reason)
	}
	w.Flush()
}
