package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tidemark/sealpost/internal/engine"
	"github.com/tidemark/sealpost/internal/record"
	"github.com/tidemark/sealpost/internal/store"
)

// LedgerOptions holds flags for the ledger commands.
type LedgerOptions struct {
	*RootOptions
	Database       string
	As             string
	Owner          string
	Payload        string
	ExpectedLength int64
}

// ledgerRow is a table row for the ledger listing.
type ledgerRow struct {
	Index int64 `header:"idx" json:"index"`
	Bytes int   `header:"bytes" json:"bytes"`
	Seq   int64 `header:"seq" json:"seq"`
}

// NewLedgerCommand creates the ledger command group.
func NewLedgerCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LedgerOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Work with per-account ledgers",
	}

	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkPersistentFlagRequired("db")

	add := &cobra.Command{
		Use:   "add",
		Short: "Append an entry to a ledger",
		Long: `Append an entry to a ledger.

The target ledger defaults to the caller's own; naming another owner
with --owner fails with NOT_OWNER, since only the owner can append.
Anyone registered can read. The append is guarded by an expected
ledger length, like send.

Example:
  sealpost ledger add --db ./sealpost.db --as alice --payload "<blob>"`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return addLedgerEntry(opts, cmd)
		},
	}
	add.Flags().StringVar(&opts.As, "as", "", "caller identity (required)")
	add.Flags().StringVar(&opts.Owner, "owner", "", "target ledger owner (default: the caller)")
	add.Flags().StringVar(&opts.Payload, "payload", "", "opaque entry payload (required)")
	add.Flags().Int64Var(&opts.ExpectedLength, "expected-length", -1, "expected ledger length (-1 = current)")
	_ = add.MarkFlagRequired("as")
	_ = add.MarkFlagRequired("payload")

	get := &cobra.Command{
		Use:           "get <owner> <index>",
		Short:         "Read one ledger entry",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid index %q", args[1]))
			}
			return getLedgerEntry(opts, record.Identity(args[0]), idx, cmd)
		},
	}
	get.Flags().StringVar(&opts.As, "as", "", "reader identity (required)")
	_ = get.MarkFlagRequired("as")

	list := &cobra.Command{
		Use:   "list <owner>",
		Short: "List an account's ledger entries",
		Long: `List an account's ledger entries.

This is operator tooling: it reads the database directly and shows
metadata only, never payload bytes.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listLedger(opts, record.Identity(args[0]), cmd)
		},
	}

	cmd.AddCommand(add)
	cmd.AddCommand(get)
	cmd.AddCommand(list)
	return cmd
}

func addLedgerEntry(opts *LedgerOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	sess, err := openSession(opts.Database)
	if err != nil {
		return err
	}
	defer sess.Close()

	caller := record.Identity(opts.As)
	owner := record.Identity(opts.Owner)
	if owner == "" {
		owner = caller
	}

	expected := opts.ExpectedLength
	if expected < 0 {
		res, err := sess.Submit(engine.Op{
			Kind:   engine.OpLedgerCount,
			Caller: caller,
			Owner:  owner,
		})
		if err != nil {
			return reportFault(f, err)
		}
		expected = res.Count
	}

	res, err := sess.Submit(engine.Op{
		Kind:           engine.OpAddLedgerEntry,
		Caller:         caller,
		Owner:          owner,
		Payload:        []byte(opts.Payload),
		ExpectedLength: expected,
	})
	if err != nil {
		return reportFault(f, err)
	}

	return f.Success(fmt.Sprintf("ledger entry %d appended (op %s)", res.Index, res.OpID))
}

func getLedgerEntry(opts *LedgerOptions, owner record.Identity, idx int64, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	sess, err := openSession(opts.Database)
	if err != nil {
		return err
	}
	defer sess.Close()

	res, err := sess.Submit(engine.Op{
		Kind:   engine.OpGetLedgerEntry,
		Caller: record.Identity(opts.As),
		Owner:  owner,
		Index:  idx,
	})
	if err != nil {
		return reportFault(f, err)
	}

	if f.Format == "json" {
		return f.Success(map[string]any{"owner": owner, "index": idx, "payload": res.Payload})
	}
	return f.Success(fmt.Sprintf("%s[%d]: %d bytes", owner, idx, len(res.Payload)))
}

func listLedger(opts *LedgerOptions, owner record.Identity, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	ctx := context.Background()

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	count, err := st.LedgerCount(ctx, owner)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read ledger count", err)
	}

	rows := make([]ledgerRow, 0, count)
	for i := int64(0); i < count; i++ {
		entry, err := st.GetLedgerEntry(ctx, owner, i)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to read entry %d", i), err)
		}
		rows = append(rows, ledgerRow{
			Index: entry.Index,
			Bytes: len(entry.Payload),
			Seq:   entry.Seq,
		})
	}

	if f.Format == "json" {
		return f.Success(rows)
	}

	if len(rows) == 0 {
		fmt.Fprintf(f.Writer, "ledger for %s is empty\n", owner)
		return nil
	}
	printTable(f, rows)
	return nil
}
