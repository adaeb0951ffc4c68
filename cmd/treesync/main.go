// Command treesync records local changes to a repository tree and
// reconciles them against server history.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/treesync/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "treesync:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
