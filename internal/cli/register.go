package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tidemark/sealpost/internal/engine"
	"github.com/tidemark/sealpost/internal/record"
)

// RegisterOptions holds flags for the register command.
type RegisterOptions struct {
	*RootOptions
	Database  string
	PublicKey string
}

// NewRegisterCommand creates the register command.
func NewRegisterCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RegisterOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "register <identity>",
		Short: "Register an account",
		Long: `Register an account under the given identity.

Registration is first-come-first-served: once an identity is taken it
cannot be registered again and its public key cannot be replaced.

Example:
  sealpost register alice --db ./sealpost.db --public-key "base64:..."`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return registerAccount(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.PublicKey, "public-key", "", "opaque public key material (required)")
	_ = cmd.MarkFlagRequired("db")
	_ = cmd.MarkFlagRequired("public-key")

	return cmd
}

func registerAccount(opts *RegisterOptions, identity string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	sess, err := openSession(opts.Database)
	if err != nil {
		return err
	}
	defer sess.Close()

	res, err := sess.Submit(engine.Op{
		Kind:      engine.OpRegister,
		Caller:    record.Identity(identity),
		PublicKey: []byte(opts.PublicKey),
	})
	if err != nil {
		return reportFault(f, err)
	}

	return f.Success(fmt.Sprintf("registered %s (op %s)", identity, res.OpID))
}

// newFormatter builds an OutputFormatter wired to the command's writers.
func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}
