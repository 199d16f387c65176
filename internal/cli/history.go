package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/refdrift/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
	Limit    int
	RunID    string // optional - show one run with its comparisons
}

// RunDetail is one run with its recorded comparisons.
type RunDetail struct {
	Run         store.Run          `json:"run"`
	Comparisons []store.Comparison `json:"comparisons"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded comparison runs",
		Long: `List the runs recorded in a refdrift ledger, newest first.

With --run, show a single run and the findings of each compared artifact.

Exit codes:
  0 - Success
  2 - Command error (database not found, unknown run)

Examples:
  refdrift history --db ./drift/refdrift.db
  refdrift history --db ./drift/refdrift.db --run 01920c4e-... --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum number of runs to list (0 for all)")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "show one run in detail")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()

	// Opening would create an empty ledger.
	if _, err := os.Stat(opts.Database); errors.Is(err, fs.ErrNotExist) {
		return NewExitError(ExitCommandError, fmt.Sprintf("database not found: %s", opts.Database))
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}

	if opts.RunID != "" {
		run, err := st.GetRun(ctx, opts.RunID)
		if errors.Is(err, store.ErrRunNotFound) {
			return WrapExitError(ExitCommandError, fmt.Sprintf("unknown run %s", opts.RunID), err)
		}
		if err != nil {
			return WrapExitError(ExitFailure, "failed to read run", err)
		}
		comparisons, err := st.Comparisons(ctx, opts.RunID)
		if err != nil {
			return WrapExitError(ExitFailure, "failed to read comparisons", err)
		}
		detail := RunDetail{Run: run, Comparisons: comparisons}
		if opts.Format == "json" {
			return formatter.Success(detail)
		}
		return outputRunDetailText(cmd, detail)
	}

	runs, err := st.ListRuns(ctx, opts.Limit)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to list runs", err)
	}
	if runs == nil {
		runs = []store.Run{}
	}

	if opts.Format == "json" {
		return formatter.Success(runs)
	}
	return outputHistoryText(cmd, runs)
}

func outputHistoryText(cmd *cobra.Command, runs []store.Run) error {
	w := cmd.OutOrStdout()

	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return nil
	}

	for _, r := range runs {
		fmt.Fprintf(w, "%s  %s  %s -> %s  %s  %d compared, %d different\n",
			r.ID, r.StartedAt.UTC().Format(time.RFC3339), r.Version1, r.Version2,
			r.Status, r.Comparisons, r.Different)
		if r.Error != "" {
			fmt.Fprintf(w, "  error: %s\n", r.Error)
		}
	}
	return nil
}

func outputRunDetailText(cmd *cobra.Command, d RunDetail) error {
	w := cmd.OutOrStdout()
	r := d.Run

	fmt.Fprintf(w, "Run %s (%s)\n", r.ID, r.Status)
	fmt.Fprintf(w, "  versions:  %s -> %s\n", r.Version1, r.Version2)
	if r.Installed1 != "" || r.Installed2 != "" {
		fmt.Fprintf(w, "  installed: %s -> %s\n", r.Installed1, r.Installed2)
	}
	fmt.Fprintf(w, "  notebooks: %s\n", r.Notebooks)
	fmt.Fprintf(w, "  save dir:  %s\n", r.SaveDir)
	fmt.Fprintf(w, "  started:   %s\n", r.StartedAt.UTC().Format(time.RFC3339))
	if !r.FinishedAt.IsZero() {
		fmt.Fprintf(w, "  finished:  %s\n", r.FinishedAt.UTC().Format(time.RFC3339))
	}
	if r.Error != "" {
		fmt.Fprintf(w, "  error:     %s\n", r.Error)
	}

	for _, c := range d.Comparisons {
		fmt.Fprintf(w, "\n[%d] %s: %s\n", c.Seq, c.Report.Source, c.Report.Result())
		for _, f := range c.Report.Findings {
			fmt.Fprintf(w, "    %s\n", f)
		}
	}
	return nil
}
