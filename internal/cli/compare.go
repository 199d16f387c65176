package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/refdrift/internal/archive"
	"github.com/roach88/refdrift/internal/config"
	"github.com/roach88/refdrift/internal/dataset"
	"github.com/roach88/refdrift/internal/env"
	"github.com/roach88/refdrift/internal/git"
	"github.com/roach88/refdrift/internal/notebook"
	"github.com/roach88/refdrift/internal/orchestrator"
	"github.com/roach88/refdrift/internal/report"
	"github.com/roach88/refdrift/internal/store"
	"github.com/roach88/refdrift/internal/tags"
	"github.com/roach88/refdrift/internal/version"
)

// DefaultResultsFile is appended to by every compare run.
const DefaultResultsFile = "comparison_results.txt"

// LedgerFile is the ledger name used inside a persistent save directory.
const LedgerFile = "refdrift.db"

// CompareOptions holds flags for the compare command.
type CompareOptions struct {
	*RootOptions
	Notebooks string
	Version1  string
	URL1      string
	Version2  string
	URL2      string
	Save      string
	Names     string
	Results   string
	Database  string
	Archive   bool
}

// CompareSummary is the text-mode closing line of a run.
type CompareSummary struct {
	RunID     string
	Compared  int
	Different int
	Skipped   int
	Results   string
}

func (s CompareSummary) String() string {
	line := fmt.Sprintf("Run %s: %d compared, %d different, %d without counterpart",
		s.RunID, s.Compared, s.Different, s.Skipped)
	if s.Results != "" {
		line += fmt.Sprintf("\nResults appended to %s", s.Results)
	}
	return line
}

// NewCompareCommand creates the compare command.
func NewCompareCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompareOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Compare reference data produced by two versions",
		Long: `Run the selected example notebooks under two versions and compare the
reference datasets they save.

Versions are release tags (v1.5.2 or 1.5.2) or 40-character commit hashes.
The notebooks come from the working directory ("wd"), a directory containing
examples/, or a checkout of the repository at a tag or commit.

Differences between the versions are reported but do not fail the command.

Exit codes:
  0 - Comparison completed (with or without differences)
  1 - Run failed (installation, notebook execution, I/O)
  2 - Command error (invalid version, bad flags, nothing selected)

Examples:
  refdrift compare -n wd -1 v1.5.2 -2 v1.5.3
  refdrift compare -n v1.5.3 -1 v1.5.2 -2 0123456789abcdef0123456789abcdef01234567 -s ./drift
  refdrift compare -n ./tobac -1 1.5.2 -2 1.5.3 --names Example_OLR_Tracking_model --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompare(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Notebooks, "notebooks", "n", "", "notebook source: wd, a path, a tag or a commit (required)")
	cmd.Flags().StringVarP(&opts.Version1, "version1", "1", "", "source version (required)")
	cmd.Flags().StringVar(&opts.URL1, "url1", "", "clone URL for a commit version1 (defaults to the configured repository)")
	cmd.Flags().StringVarP(&opts.Version2, "version2", "2", "", "target version (required)")
	cmd.Flags().StringVar(&opts.URL2, "url2", "", "clone URL for a commit version2 (defaults to the configured repository)")
	cmd.Flags().StringVarP(&opts.Save, "save", "s", orchestrator.TempSave, `save directory, or "tmp" for a temporary one`)
	cmd.Flags().StringVar(&opts.Names, "names", notebook.AllNotebooks, "comma-separated notebook names, or All")
	cmd.Flags().StringVar(&opts.Results, "results", DefaultResultsFile, "results file to append to")
	cmd.Flags().StringVar(&opts.Database, "db", "", "run ledger (defaults to <save>/"+LedgerFile+" unless --save is tmp)")
	cmd.Flags().BoolVar(&opts.Archive, "archive", false, "upload results and ledger to the configured archive")
	_ = cmd.MarkFlagRequired("notebooks")
	_ = cmd.MarkFlagRequired("version1")
	_ = cmd.MarkFlagRequired("version2")

	return cmd
}

func runCompare(opts *CompareOptions, cmd *cobra.Command) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	if opts.Archive && !cfg.Archive.Enabled() {
		return NewExitError(ExitCommandError, "--archive requires an archive endpoint in the configuration")
	}
	policy := notebook.Policy{Exclusions: cfg.Exclusions}
	if err := policy.Validate(); err != nil {
		return WrapExitError(ExitCommandError, "invalid exclusion policy", err)
	}

	cwd, err := opts.workingDir()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to determine working directory", err)
	}
	logger := opts.logger(cmd)

	saveDir := opts.Save
	persistent := saveDir != "" && saveDir != orchestrator.TempSave
	if persistent {
		if saveDir, err = config.ExpandPath(saveDir); err != nil {
			return WrapExitError(ExitCommandError, "invalid save directory", err)
		}
	}

	dbPath := opts.Database
	if dbPath == "" && persistent {
		dbPath = filepath.Join(saveDir, LedgerFile)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var st *store.Store
	if dbPath != "" {
		if dbPath, err = config.ExpandPath(dbPath); err != nil {
			return WrapExitError(ExitCommandError, "invalid database path", err)
		}
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return WrapExitError(ExitCommandError, "failed to create database directory", err)
		}
		st, err = store.Open(dbPath)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer st.Close()
	}

	progress := cmd.OutOrStdout()
	if opts.Format == "json" {
		progress = nil
	}
	sink, err := report.OpenSink(opts.Results, progress)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open results file", err)
	}
	defer sink.Close()

	deps, err := compareDeps(opts.RootOptions, cfg, cwd, logger)
	if err != nil {
		return err
	}
	deps.Sink = sink
	if st != nil {
		deps.Ledger = st
	}

	result, runErr := orchestrator.New(deps).Run(ctx, orchestrator.Options{
		Notebooks:       opts.Notebooks,
		Version1:        opts.Version1,
		URL1:            orDefault(opts.URL1, cfg.Repository.URL),
		Version2:        opts.Version2,
		URL2:            orDefault(opts.URL2, cfg.Repository.URL),
		SaveDir:         saveDir,
		Names:           opts.Names,
		EnvironmentName: cfg.EnvironmentName,
		Policy:          policy,
	})
	if runErr != nil {
		return compareFailed(opts, cmd, result, runErr)
	}

	if err := sink.Close(); err != nil {
		return WrapExitError(ExitFailure, "failed to close results file", err)
	}
	if st != nil {
		if err := st.Close(); err != nil {
			return WrapExitError(ExitFailure, "failed to close database", err)
		}
	}

	if opts.Archive {
		if err := archiveRun(ctx, cfg.Archive, logger, result.RunID, sink.Path(), dbPath); err != nil {
			return WrapExitError(ExitFailure, "failed to archive run", err)
		}
	}

	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), ErrWriter: cmd.ErrOrStderr(), Verbose: opts.Verbose}
	if opts.Format == "json" {
		return formatter.Encode(CLIResponse{Status: "ok", Data: result, RunID: result.RunID})
	}
	return formatter.Success(CompareSummary{
		RunID:     result.RunID,
		Compared:  len(result.Comparisons),
		Different: result.Different(),
		Skipped:   len(result.Skipped),
		Results:   sink.Path(),
	})
}

// compareDeps builds every collaborator of a run except the sink and ledger.
func compareDeps(opts *RootOptions, cfg config.Config, cwd string, logger *slog.Logger) (orchestrator.Deps, error) {
	runner := opts.commandRunner()
	gitClient := git.New(runner)

	lister, err := newTagLister(cfg)
	if err != nil {
		return orchestrator.Deps{}, WrapExitError(ExitCommandError, "invalid repository configuration", err)
	}

	provisioner := env.NewProvisioner(runner, gitClient, env.Config{
		Binary:            cfg.PackageManager,
		Channel:           cfg.Channel,
		Python:            cfg.Python,
		Package:           cfg.Package,
		AuxRequirements:   cfg.AuxRequirements,
		CloneRequirements: cfg.CloneRequirements,
		WorkDir:           cwd,
	}, logger)

	executor := notebook.NewNBConvertExecutor(runner, cfg.PackageManager,
		time.Duration(cfg.NotebookTimeout)*time.Second, cfg.Kernel)

	return orchestrator.Deps{
		Resolver:    version.NewResolver(lister, logger),
		Provisioner: provisioner,
		Source:      notebook.NewSource(gitClient, cfg.Repository.URL, cwd, logger),
		Runner:      notebook.NewRunner(executor, logger),
		Comparator:  dataset.NewComparator(nil),
		Lock:        orchestrator.EnvironmentLock,
		Logger:      logger,
	}, nil
}

func newTagLister(cfg config.Config) (*tags.GitHubLister, error) {
	var opts []tags.Option
	if cfg.Repository.GitHubAPI != "" {
		opts = append(opts, tags.WithBaseURL(cfg.Repository.GitHubAPI))
	}
	return tags.NewGitHubLister(cfg.Repository.Token, cfg.Repository.URL, opts...)
}

func compareFailed(opts *CompareOptions, cmd *cobra.Command, result *orchestrator.Result, runErr error) error {
	code, errCode := classifyRunError(runErr)

	if opts.Format == "json" {
		formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
		resp := CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: errCode, Message: runErr.Error(), Details: result},
		}
		if result != nil {
			resp.RunID = result.RunID
		}
		if err := formatter.Encode(resp); err != nil {
			return err
		}
	}
	return WrapExitError(code, "comparison failed", runErr)
}

func archiveRun(ctx context.Context, cfg config.Archive, logger *slog.Logger, runID string, files ...string) error {
	uploader, err := archive.New(cfg, logger)
	if err != nil {
		return err
	}
	_, err = uploader.UploadRun(ctx, runID, files...)
	return err
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
