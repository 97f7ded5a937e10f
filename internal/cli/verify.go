package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tidemark/sealpost/internal/store"
)

// VerifyOptions holds flags for the verify command.
type VerifyOptions struct {
	*RootOptions
	Database string
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VerifyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check database invariants",
		Long: `Check database invariants.

Walks the world state and reports violations: gaps in the message log,
non-monotonic timestamps, cursors outside the log, ledger index holes,
and journal rows that don't cover the recorded mutations.

Exit code 0 means the state is consistent; 1 means problems were found.

Example:
  sealpost verify --db ./sealpost.db`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return verifyDatabase(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func verifyDatabase(opts *VerifyOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	report, err := st.Verify(context.Background())
	if err != nil {
		return WrapExitError(ExitCommandError, "verification aborted", err)
	}

	if f.Format == "json" {
		if err := f.Success(report); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(f.Writer, "accounts:       %d\n", report.Accounts)
		fmt.Fprintf(f.Writer, "messages:       %d\n", report.Messages)
		fmt.Fprintf(f.Writer, "ledger entries: %d\n", report.LedgerEntries)
		fmt.Fprintf(f.Writer, "journal rows:   %d\n", report.JournalRows)
		if report.OK() {
			fmt.Fprintln(f.Writer, "state OK")
		} else {
			fmt.Fprintf(f.Writer, "%d problem(s):\n", len(report.Problems))
			for _, p := range report.Problems {
				fmt.Fprintf(f.Writer, "  - %s\n", p)
			}
		}
	}

	if !report.OK() {
		return NewExitError(ExitFailure, fmt.Sprintf("%d invariant violation(s)", len(report.Problems)))
	}
	return nil
}
