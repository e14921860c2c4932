package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rpggio/clmcore/internal/diff"
	"github.com/spf13/cobra"
)

// DiffOutput is the JSON form of a diff.
type DiffOutput struct {
	Old   string      `json:"old"`
	New   string      `json:"new"`
	Edits []diff.Edit `json:"edits"`
	Stats diff.Stats  `json:"stats"`
}

// NewDiffCommand creates the diff command.
func NewDiffCommand(rootOpts *RootOptions) *cobra.Command {
	var exitCode bool

	cmd := &cobra.Command{
		Use:   "diff <old> <new>",
		Short: "Line diff of two contract texts",
		Long: `Compare two text files line by line and print the minimal edit script.

Added lines carry their line number in the new file. With --exit-code the
command exits 1 when the files differ.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiff(cmd, rootOpts, args[0], args[1], exitCode)
		},
	}
	cmd.Flags().BoolVar(&exitCode, "exit-code", false, "exit 1 when the files differ")

	return cmd
}

func runDiff(cmd *cobra.Command, opts *RootOptions, oldPath, newPath string, exitCode bool) error {
	oldText, err := os.ReadFile(oldPath)
	if err != nil {
		return &ExitError{Code: ExitCommandError, Message: "read old file", Err: err}
	}
	newText, err := os.ReadFile(newPath)
	if err != nil {
		return &ExitError{Code: ExitCommandError, Message: "read new file", Err: err}
	}

	edits := diff.Lines(string(oldText), string(newText))
	stats := diff.Summarize(edits)

	out := cmd.OutOrStdout()
	if opts.Format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(DiffOutput{Old: oldPath, New: newPath, Edits: edits, Stats: stats}); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(out, "--- %s\n+++ %s\n", oldPath, newPath)
		fmt.Fprint(out, diff.Render(edits))
		fmt.Fprintf(out, "%d added, %d removed, %d unchanged\n", stats.Added, stats.Removed, stats.Common)
	}

	if exitCode && (stats.Added > 0 || stats.Removed > 0) {
		return &ExitError{Code: ExitDifferent, Message: "files differ"}
	}
	return nil
}
