package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tidemark/sealpost/internal/engine"
	"github.com/tidemark/sealpost/internal/record"
)

// SendOptions holds flags for the send command.
type SendOptions struct {
	*RootOptions
	Database       string
	As             string
	To             string
	Message        string
	ExpectedLength int64
}

// NewSendCommand creates the send command.
func NewSendCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SendOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Append an encrypted message to the global log",
		Long: `Append an encrypted message to the global log.

The recipient hint and message body are opaque ciphertext; the engine
never inspects them. The append is guarded by an expected log length:
if --expected-length is omitted the current length is used, which always
succeeds against a quiet log.

Example:
  sealpost send --db ./sealpost.db --as alice --to "<ciphertext>" --message "<ciphertext>"`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return sendMessage(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.As, "as", "", "sender identity (required)")
	cmd.Flags().StringVar(&opts.To, "to", "", "encrypted recipient hint (required)")
	cmd.Flags().StringVar(&opts.Message, "message", "", "encrypted message body (required)")
	cmd.Flags().Int64Var(&opts.ExpectedLength, "expected-length", -1, "expected log length (-1 = current)")
	_ = cmd.MarkFlagRequired("db")
	_ = cmd.MarkFlagRequired("as")
	_ = cmd.MarkFlagRequired("to")
	_ = cmd.MarkFlagRequired("message")

	return cmd
}

func sendMessage(opts *SendOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	sess, err := openSession(opts.Database)
	if err != nil {
		return err
	}
	defer sess.Close()

	caller := record.Identity(opts.As)

	expected := opts.ExpectedLength
	if expected < 0 {
		res, err := sess.Submit(engine.Op{Kind: engine.OpMessageCount, Caller: caller})
		if err != nil {
			return reportFault(f, err)
		}
		expected = res.Count
	}

	res, err := sess.Submit(engine.Op{
		Kind:             engine.OpSendMessage,
		Caller:           caller,
		EncryptedTo:      []byte(opts.To),
		EncryptedMessage: []byte(opts.Message),
		ExpectedLength:   expected,
	})
	if err != nil {
		return reportFault(f, err)
	}

	return f.Success(fmt.Sprintf("message %d appended (op %s)", res.Index, res.OpID))
}
