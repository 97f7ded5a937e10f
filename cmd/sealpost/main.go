// Command sealpost is the entry point for the sealpost CLI.
package main

import (
	"fmt"
	"os"

	"github.com/tidemark/sealpost/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
