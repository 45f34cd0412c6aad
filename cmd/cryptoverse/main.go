// Command cryptoverse keeps a local cache of the star log ledger in sync with
// a cryptoverse server.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/cryptoverse/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	// Failures the formatter already printed are not repeated here.
	if err != nil && !cli.IsReported(err) {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(cli.GetExitCode(err))
}
