// Command hackrun runs Hack CPU test scripts from the command line.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/roach88/hackrun/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
