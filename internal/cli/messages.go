package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/kataras/tablewriter"
	"github.com/lensesio/tableprinter"
	"github.com/spf13/cobra"

	"github.com/tidemark/sealpost/internal/store"
)

// MessagesOptions holds flags for the messages command.
type MessagesOptions struct {
	*RootOptions
	Database string
}

// messageRow is a table row for the messages listing.
type messageRow struct {
	Index  int64  `header:"idx" json:"index"`
	Sender string `header:"sender" json:"sender"`
	SentAt string `header:"sent at" json:"sent_at"`
	Bytes  int    `header:"bytes" json:"bytes"`
	Seq    int64  `header:"seq" json:"seq"`
}

// NewMessagesCommand creates the messages command.
func NewMessagesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MessagesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "messages",
		Short: "List the global message log",
		Long: `List the global message log.

This is operator tooling: it reads the database directly and shows
metadata only, never ciphertext.

Example:
  sealpost messages --db ./sealpost.db`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listMessages(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func listMessages(opts *MessagesOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	ctx := context.Background()

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	count, err := st.MessageCount(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read message count", err)
	}

	rows := make([]messageRow, 0, count)
	for i := int64(0); i < count; i++ {
		entry, err := st.GetMessage(ctx, i)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to read message %d", i), err)
		}
		rows = append(rows, messageRow{
			Index:  entry.Index,
			Sender: string(entry.Sender),
			SentAt: time.Unix(0, entry.SentAt).UTC().Format(time.RFC3339Nano),
			Bytes:  len(entry.EncryptedMessage),
			Seq:    entry.Seq,
		})
	}

	if f.Format == "json" {
		return f.Success(rows)
	}

	if len(rows) == 0 {
		fmt.Fprintln(f.Writer, "log is empty")
		return nil
	}
	printTable(f, rows)
	return nil
}

// printTable renders rows with the standard sealpost table styling.
func printTable(f *OutputFormatter, rows any) {
	printer := tableprinter.New(f.Writer)
	printer.BorderTop, printer.BorderBottom, printer.BorderLeft, printer.BorderRight = true, true, true, true
	printer.CenterSeparator = "|"
	printer.ColumnSeparator = "|"
	printer.RowSeparator = "-"
	printer.HeaderBgColor = tablewriter.BgBlackColor
	printer.HeaderFgColor = tablewriter.FgGreenColor
	printer.Print(rows)
}
