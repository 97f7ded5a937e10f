package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tidemark/sealpost/internal/store"
)

// JournalOptions holds flags for the journal command.
type JournalOptions struct {
	*RootOptions
	Database string
}

// journalRow is a table row for the journal listing.
type journalRow struct {
	Seq       int64  `header:"seq" json:"seq"`
	OpID      string `header:"op id" json:"op_id"`
	Caller    string `header:"caller" json:"caller"`
	Kind      string `header:"kind" json:"kind"`
	AppliedAt string `header:"applied at" json:"applied_at"`
	Detail    string `header:"detail" json:"detail"`
}

// NewJournalCommand creates the journal command.
func NewJournalCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &JournalOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "List the audit journal",
		Long: `List the audit journal.

Every applied mutation leaves one journal row, written in the same
transaction as the mutation itself. The detail column is a digest of
the operation's inputs, never the inputs themselves.

Example:
  sealpost journal --db ./sealpost.db`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listJournal(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func listJournal(opts *JournalOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	records, err := st.ReadJournal(context.Background())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}

	rows := make([]journalRow, 0, len(records))
	for _, rec := range records {
		rows = append(rows, journalRow{
			Seq:       rec.Seq,
			OpID:      rec.OpID,
			Caller:    string(rec.Caller),
			Kind:      rec.Kind,
			AppliedAt: time.Unix(0, rec.AppliedAt).UTC().Format(time.RFC3339Nano),
			Detail:    shorten(rec.Detail, 16),
		})
	}

	if f.Format == "json" {
		return f.Success(rows)
	}

	if len(rows) == 0 {
		fmt.Fprintln(f.Writer, "journal is empty")
		return nil
	}
	printTable(f, rows)
	return nil
}

// shorten truncates a digest for table display.
func shorten(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
