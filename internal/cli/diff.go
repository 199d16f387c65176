package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/refdrift/internal/dataset"
	"github.com/roach88/refdrift/internal/report"
)

// DiffOptions holds flags for the diff command.
type DiffOptions struct {
	*RootOptions
}

// DiffResult is the JSON payload of the diff command.
type DiffResult struct {
	Report dataset.Report `json:"report"`
	Result string         `json:"result"`
	Digest string         `json:"digest"`
}

// NewDiffCommand creates the diff command.
func NewDiffCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DiffOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "diff <source-file> <target-file>",
		Short: "Compare two NetCDF datasets",
		Long: `Compare two reference datasets directly, without running any notebooks.

Global attributes, the set of variables, variable attributes and variable
data (dimensions and values) are compared. Differences are reported, not
treated as failures.

Exit codes:
  0 - Comparison completed (same or different)
  1 - A file could not be read as a dataset
  2 - A file does not exist

Examples:
  refdrift diff old/Example_Track/Save/Track.nc new/Example_Track/Save/Track.nc`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiff(opts, args[0], args[1], cmd)
		},
	}

	return cmd
}

func runDiff(opts *DiffOptions, source, target string, cmd *cobra.Command) error {
	for _, path := range []string{source, target} {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			return NewExitError(ExitCommandError, fmt.Sprintf("file not found: %s", path))
		}
	}

	rep, err := dataset.NewComparator(nil).CompareFiles(cmd.Context(), source, target)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to compare datasets", err)
	}

	if opts.Format == "json" {
		digest, err := rep.Digest()
		if err != nil {
			return WrapExitError(ExitFailure, "failed to digest report", err)
		}
		formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
		return formatter.Success(DiffResult{Report: rep, Result: rep.Result(), Digest: digest})
	}
	return report.Render(cmd.OutOrStdout(), rep)
}
