package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tidemark/sealpost/internal/engine"
	"github.com/tidemark/sealpost/internal/record"
)

// StatusOptions holds flags for the status command.
type StatusOptions struct {
	*RootOptions
	Database string
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StatusOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "status <identity>",
		Short:         "Check whether an identity is registered",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showStatus(opts, record.Identity(args[0]), cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func showStatus(opts *StatusOptions, identity record.Identity, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	sess, err := openSession(opts.Database)
	if err != nil {
		return err
	}
	defer sess.Close()

	res, err := sess.Submit(engine.Op{
		Kind:   engine.OpIsRegistered,
		Caller: identity,
		Target: identity,
	})
	if err != nil {
		return reportFault(f, err)
	}

	if f.Format == "json" {
		return f.Success(map[string]any{"identity": identity, "registered": res.Registered})
	}
	if res.Registered {
		return f.Success(fmt.Sprintf("%s is registered", identity))
	}
	return f.Success(fmt.Sprintf("%s is not registered", identity))
}
