package main

import (
	"fmt"
	"os"

	"github.com/rpggio/clmcore/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	cmd.SilenceErrors = true
	if err := cmd.Execute(); err != nil {
		code := cli.GetExitCode(err)
		if code != cli.ExitDifferent {
			fmt.Fprintln(os.Stderr, "clmctl:", err)
		}
		os.Exit(code)
	}
}
