package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tidemark/sealpost/internal/engine"
	"github.com/tidemark/sealpost/internal/record"
)

// CursorOptions holds flags for the cursor commands.
type CursorOptions struct {
	*RootOptions
	Database string
	As       string
}

// NewCursorCommand creates the cursor command group.
func NewCursorCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CursorOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "cursor",
		Short: "Inspect or advance a read cursor",
	}

	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.PersistentFlags().StringVar(&opts.As, "as", "", "account identity (required)")
	_ = cmd.MarkPersistentFlagRequired("db")
	_ = cmd.MarkPersistentFlagRequired("as")

	get := &cobra.Command{
		Use:   "get",
		Short: "Show the account's read cursor",
		Long: `Show the account's read cursor.

A cursor of -1 means no message has been acknowledged yet.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return getCursor(opts, cmd)
		},
	}

	advance := &cobra.Command{
		Use:   "advance <index>",
		Short: "Advance the account's read cursor",
		Long: `Advance the account's read cursor to a message index.

Cursors only move forward, and only onto an index that exists in the
log. Acknowledging an already-acknowledged message is rejected.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid index %q", args[0]))
			}
			return advanceCursor(opts, idx, cmd)
		},
	}

	cmd.AddCommand(get)
	cmd.AddCommand(advance)
	return cmd
}

func getCursor(opts *CursorOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	sess, err := openSession(opts.Database)
	if err != nil {
		return err
	}
	defer sess.Close()

	res, err := sess.Submit(engine.Op{
		Kind:   engine.OpReadCursor,
		Caller: record.Identity(opts.As),
	})
	if err != nil {
		return reportFault(f, err)
	}

	if f.Format == "json" {
		return f.Success(map[string]int64{"cursor": res.Cursor})
	}
	return f.Success(fmt.Sprintf("cursor for %s: %d", opts.As, res.Cursor))
}

func advanceCursor(opts *CursorOptions, idx int64, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	sess, err := openSession(opts.Database)
	if err != nil {
		return err
	}
	defer sess.Close()

	res, err := sess.Submit(engine.Op{
		Kind:     engine.OpUpdateReadCursor,
		Caller:   record.Identity(opts.As),
		NewIndex: idx,
	})
	if err != nil {
		return reportFault(f, err)
	}

	if f.Format == "json" {
		return f.Success(map[string]int64{"cursor": res.Cursor})
	}
	return f.Success(fmt.Sprintf("cursor for %s advanced to %d", opts.As, res.Cursor))
}
