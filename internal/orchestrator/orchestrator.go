package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/refdrift/internal/dataset"
	"github.com/roach88/refdrift/internal/env"
	"github.com/roach88/refdrift/internal/logging"
	"github.com/roach88/refdrift/internal/notebook"
	"github.com/roach88/refdrift/internal/reference"
	"github.com/roach88/refdrift/internal/report"
	"github.com/roach88/refdrift/internal/store"
	"github.com/roach88/refdrift/internal/version"
)

const (
	// TempSave selects a temporary save directory removed after the run.
	TempSave = "tmp"

	SourceDataDir = "source_reference_data"
	TargetDataDir = "target_reference_data"
)

// ErrNoNotebooks is returned when discovery and selection leave nothing to run.
var ErrNoNotebooks = errors.New("no notebooks selected")

// Resolver turns a raw version string into a validated spec.
type Resolver interface {
	Resolve(ctx context.Context, raw string) (version.Spec, error)
}

// Provisioner installs a version into an environment and reports what the
// environment ended up holding.
type Provisioner interface {
	Provision(ctx context.Context, path string, spec version.Spec, sourceURL string, reuseExisting bool) error
	Inspect(ctx context.Context, path string) (env.Environment, error)
}

// NotebookSource resolves a notebook selector to a root with an examples/ tree.
type NotebookSource interface {
	Root(ctx context.Context, selector, saveDir string) (string, error)
}

// NotebookRunner executes notebooks into per-notebook output directories.
type NotebookRunner interface {
	Run(ctx context.Context, envPath string, notebooks []string, outputRoot string) error
}

// Comparator diffs two artifact files.
type Comparator interface {
	CompareFiles(ctx context.Context, sourcePath, targetPath string) (dataset.Report, error)
}

// Sink receives human-readable results.
type Sink interface {
	WriteHeader(h report.Header) error
	WriteReport(r dataset.Report) error
	WriteSummary(s report.Summary) error
}

// Ledger records runs and their comparisons.
type Ledger interface {
	BeginRun(ctx context.Context, r store.Run) error
	WriteComparison(ctx context.Context, runID string, seq int, r dataset.Report) (string, error)
	RecordInstalled(ctx context.Context, id string, installed1, installed2 string) error
	FinishRun(ctx context.Context, id string, status store.RunStatus, finished time.Time, errMsg string) error
}

// Releaser is a held resource.
type Releaser interface {
	Release() error
}

// LockFunc acquires exclusive use of an environment path.
type LockFunc func(envPath string) (Releaser, error)

// RunIDGenerator produces run identifiers.
type RunIDGenerator interface {
	Generate() string
}

// Clock supplies wall time for ledger timestamps.
type Clock interface {
	Now() time.Time
}

// UUIDv7Generator generates time-sortable UUIDv7 run IDs.
type UUIDv7Generator struct{}

// Generate returns a new hyphenated UUIDv7.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Deps are the collaborators of a run. Ledger and Lock are optional.
type Deps struct {
	Resolver    Resolver
	Provisioner Provisioner
	Source      NotebookSource
	Runner      NotebookRunner
	Comparator  Comparator
	Sink        Sink
	Ledger      Ledger
	Lock        LockFunc
	IDs         RunIDGenerator
	Clock       Clock
	Logger      *slog.Logger
}

// Options describe one comparison.
type Options struct {
	Notebooks       string
	Version1        string
	URL1            string
	Version2        string
	URL2            string
	SaveDir         string
	Names           string
	EnvironmentName string
	Policy          notebook.Policy
}

// Comparison is one compared artifact pair.
type Comparison struct {
	Report dataset.Report `json:"report"`
	Digest string         `json:"digest"`
}

// Result summarizes a run.
type Result struct {
	RunID       string               `json:"run_id"`
	SaveDir     string               `json:"save_dir"`
	Version1    string               `json:"version1"`
	Version2    string               `json:"version2"`
	Installed1  string               `json:"installed1,omitempty"`
	Installed2  string               `json:"installed2,omitempty"`
	Notebooks   []string             `json:"notebooks"`
	Comparisons []Comparison         `json:"comparisons"`
	Skipped     []reference.Artifact `json:"skipped"`
	States      []State              `json:"states"`
	Final       State                `json:"final"`
}

// Different counts pairs with at least one finding.
func (r *Result) Different() int {
	n := 0
	for _, c := range r.Comparisons {
		if !c.Report.Equal() {
			n++
		}
	}
	return n
}

// Orchestrator drives comparison runs.
type Orchestrator struct {
	deps   Deps
	logger *slog.Logger
}

// New creates an orchestrator. Missing IDs or Clock fall back to UUIDv7 and
// wall time.
func New(deps Deps) *Orchestrator {
	if deps.IDs == nil {
		deps.IDs = UUIDv7Generator{}
	}
	if deps.Clock == nil {
		deps.Clock = systemClock{}
	}
	return &Orchestrator{deps: deps, logger: logging.OrDiscard(deps.Logger)}
}

// run carries the mutable state of a single Run call.
type run struct {
	*Orchestrator
	opts      Options
	result    *Result
	cleanup   cleanupStack
	envPath   string
	notebooks []string
}

// Run executes the comparison described by opts. The returned result is
// non-nil even on error and reflects the states reached.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (*Result, error) {
	r := &run{
		Orchestrator: o,
		opts:         opts,
		result:       &Result{RunID: o.deps.IDs.Generate()},
		cleanup:      cleanupStack{logger: o.logger},
	}
	defer r.cleanup.run()

	started := o.deps.Clock.Now()
	logger := o.logger.With("run_id", r.result.RunID)

	err := r.prepare(ctx)
	if err == nil && o.deps.Ledger != nil {
		err = o.deps.Ledger.BeginRun(ctx, store.Run{
			ID:        r.result.RunID,
			Version1:  opts.Version1,
			Version2:  opts.Version2,
			Notebooks: opts.Notebooks,
			SaveDir:   r.result.SaveDir,
			StartedAt: started,
		})
		if err == nil {
			defer r.finishLedger(ctx, &err)
		}
	}
	if err == nil {
		err = r.execute(ctx, logger)
	}

	if err != nil {
		r.enter(logger, StateAborted)
		logger.Error("run aborted", "error", err)
		return r.result, err
	}
	r.enter(logger, StateDone)
	return r.result, nil
}

func (r *run) finishLedger(ctx context.Context, errp *error) {
	status, msg := store.StatusSucceeded, ""
	if *errp != nil {
		status, msg = store.StatusFailed, (*errp).Error()
	}
	// The run's context may already be cancelled; the ledger row must still close.
	if err := r.deps.Ledger.FinishRun(context.WithoutCancel(ctx), r.result.RunID, status, r.deps.Clock.Now(), msg); err != nil {
		r.logger.Error("recording run outcome", "error", err)
	}
}

// prepare checks version shapes, sets up the save directory and takes the
// environment lock.
func (r *run) prepare(ctx context.Context) error {
	for _, raw := range []string{r.opts.Version1, r.opts.Version2} {
		if _, err := version.Parse(raw); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	save := r.opts.SaveDir
	if save == "" || save == TempSave {
		dir, err := os.MkdirTemp("", "refdrift-")
		if err != nil {
			return fmt.Errorf("create temporary save directory: %w", err)
		}
		r.cleanup.push("remove temporary save directory", func() error { return os.RemoveAll(dir) })
		save = dir
	} else {
		abs, err := filepath.Abs(save)
		if err != nil {
			return fmt.Errorf("resolve save directory: %w", err)
		}
		if err := os.MkdirAll(abs, 0o755); err != nil {
			return fmt.Errorf("create save directory: %w", err)
		}
		save = abs
	}
	r.result.SaveDir = save

	name := r.opts.EnvironmentName
	if name == "" {
		name = "realcase_testing"
	}
	r.envPath = env.CanonicalPath(filepath.Join(save, name))

	if r.deps.Lock != nil {
		lock, err := r.deps.Lock(r.envPath)
		if err != nil {
			return err
		}
		r.cleanup.push("release environment lock", lock.Release)
	}
	return nil
}

func (r *run) enter(logger *slog.Logger, s State) {
	r.result.States = append(r.result.States, s)
	r.result.Final = s
	logger.Info("state", "state", s.String())
}

func (r *run) execute(ctx context.Context, logger *slog.Logger) error {
	sourceRoot := filepath.Join(r.result.SaveDir, SourceDataDir)
	targetRoot := filepath.Join(r.result.SaveDir, TargetDataDir)

	v1, err := r.phase(ctx, logger, phase{
		resolve: StateResolveV1, provision: StateProvisionV1, runNotebooks: StateRunNotebooksV1, locate: StateLocateV1,
		raw: r.opts.Version1, url: r.opts.URL1, reuse: false, outputRoot: sourceRoot,
	})
	if err != nil {
		return err
	}
	r.result.Version1 = v1.spec.String()
	r.result.Installed1 = v1.installed

	v2, err := r.phase(ctx, logger, phase{
		resolve: StateResolveV2, provision: StateProvisionV2, runNotebooks: StateRunNotebooksV2, locate: StateLocateV2,
		raw: r.opts.Version2, url: r.opts.URL2, reuse: true, outputRoot: targetRoot,
	})
	if err != nil {
		return err
	}
	r.result.Version2 = v2.spec.String()
	r.result.Installed2 = v2.installed
	logger.Info("versions",
		"from", v1.spec.String(), "to", v2.spec.String(),
		"direction", version.Direction(v1.spec, v2.spec),
		"installed_from", v1.installed, "installed_to", v2.installed)

	if r.deps.Ledger != nil {
		if err := r.deps.Ledger.RecordInstalled(ctx, r.result.RunID, v1.installed, v2.installed); err != nil {
			return err
		}
	}

	r.enter(logger, StatePairwiseCompare)
	return r.compare(ctx, logger, v1.artifacts, targetRoot)
}

type phase struct {
	resolve, provision, runNotebooks, locate State

	raw        string
	url        string
	reuse      bool
	outputRoot string
}

// phaseResult is what one version's phase produced.
type phaseResult struct {
	spec      version.Spec
	installed string
	artifacts []reference.Artifact
}

// phase resolves, provisions, runs and locates for one version.
func (r *run) phase(ctx context.Context, logger *slog.Logger, p phase) (phaseResult, error) {
	var out phaseResult

	r.enter(logger, p.resolve)
	spec, err := r.deps.Resolver.Resolve(ctx, p.raw)
	if err != nil {
		return out, err
	}
	out.spec = spec

	r.enter(logger, p.provision)
	if err := r.deps.Provisioner.Provision(ctx, r.envPath, spec, p.url, p.reuse); err != nil {
		return out, err
	}
	installed, err := r.deps.Provisioner.Inspect(ctx, r.envPath)
	if err != nil {
		logger.Warn("could not read installed version", "env", r.envPath, "error", err)
	} else {
		out.installed = installed.Version
		logger.Info("environment ready", "env", installed.Path, "requested", spec.String(), "installed", installed.Version)
	}

	r.enter(logger, p.runNotebooks)
	if r.notebooks == nil {
		if err := r.selectNotebooks(ctx, logger); err != nil {
			return out, err
		}
	}
	if err := r.deps.Runner.Run(ctx, r.envPath, r.notebooks, p.outputRoot); err != nil {
		return out, err
	}

	r.enter(logger, p.locate)
	out.artifacts, err = reference.Locate(p.outputRoot)
	if err != nil {
		return out, err
	}
	logger.Info("artifacts located", "root", p.outputRoot, "count", len(out.artifacts))
	return out, nil
}

func (r *run) selectNotebooks(ctx context.Context, logger *slog.Logger) error {
	root, err := r.deps.Source.Root(ctx, r.opts.Notebooks, r.result.SaveDir)
	if err != nil {
		return err
	}
	discovered, err := notebook.Discover(root, r.opts.Policy, logger)
	if err != nil {
		return err
	}

	names := r.opts.Names
	if names == "" {
		names = notebook.AllNotebooks
	}
	selected := notebook.Select(discovered, names)
	if len(selected) == 0 {
		return fmt.Errorf("%w: %d discovered under %s, filter %q", ErrNoNotebooks, len(discovered), root, names)
	}
	r.notebooks = selected
	r.result.Notebooks = selected
	logger.Info("notebooks selected", "count", len(selected), "root", root)
	return nil
}

func (r *run) compare(ctx context.Context, logger *slog.Logger, sources []reference.Artifact, targetRoot string) error {
	sink := r.deps.Sink
	if err := sink.WriteHeader(report.Header{
		RunID:    r.result.RunID,
		Version1: r.result.Version1,
		Version2: r.result.Version2,
		Started:  r.deps.Clock.Now(),
	}); err != nil {
		return err
	}

	var summary report.Summary
	for _, a := range sources {
		target, ok := reference.Counterpart(targetRoot, a)
		if !ok {
			logger.Debug("no counterpart, skipping", "artifact", a.RelPath)
			r.result.Skipped = append(r.result.Skipped, a)
			summary.Skipped++
			continue
		}

		rep, err := r.deps.Comparator.CompareFiles(ctx, a.Path, target)
		if err != nil {
			return err
		}
		if err := sink.WriteReport(rep); err != nil {
			return err
		}

		comp := Comparison{Report: rep}
		if r.deps.Ledger != nil {
			comp.Digest, err = r.deps.Ledger.WriteComparison(ctx, r.result.RunID, len(r.result.Comparisons), rep)
		} else {
			comp.Digest, err = rep.Digest()
		}
		if err != nil {
			return err
		}
		r.result.Comparisons = append(r.result.Comparisons, comp)

		if rep.Equal() {
			summary.Same++
		} else {
			summary.Different++
		}
	}
	return sink.WriteSummary(summary)
}

// EnvironmentLock adapts env.AcquireLock to LockFunc.
func EnvironmentLock(envPath string) (Releaser, error) {
	lock, err := env.AcquireLock(envPath)
	if err != nil {
		return nil, err
	}
	return lock, nil
}
