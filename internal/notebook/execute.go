package notebook

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/roach88/refdrift/internal/command"
)

// DefaultTimeout bounds the execution of a single notebook cell.
const DefaultTimeout = 600 * time.Second

// Executor runs one notebook inside an environment with outputDir as the
// kernel's working directory.
type Executor interface {
	Execute(ctx context.Context, envPath, notebook, outputDir string) error
}

// ExecutionError reports a notebook whose cells failed to run.
type ExecutionError struct {
	Notebook string
	Output   string
	Err      error
}

func (e *ExecutionError) Error() string {
	msg := fmt.Sprintf("error executing the notebook %s", e.Notebook)
	if e.Output != "" {
		return msg + ": " + e.Output
	}
	return msg + ": " + e.Err.Error()
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// IsExecutionError reports whether err is (or wraps) an *ExecutionError.
func IsExecutionError(err error) bool {
	var ee *ExecutionError
	return errors.As(err, &ee)
}

// NBConvertExecutor runs notebooks with `jupyter nbconvert --execute` inside
// the environment via the package manager's `run` subcommand.
type NBConvertExecutor struct {
	runner  command.Runner
	binary  string
	timeout time.Duration
	kernel  string
}

// NewNBConvertExecutor creates an executor. binary is the package manager
// used to enter the environment.
func NewNBConvertExecutor(runner command.Runner, binary string, timeout time.Duration, kernel string) *NBConvertExecutor {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if kernel == "" {
		kernel = "python3"
	}
	return &NBConvertExecutor{runner: runner, binary: binary, timeout: timeout, kernel: kernel}
}

// Execute copies the notebook into outputDir and executes the copy in place,
// so relative paths written by the notebook resolve under outputDir.
func (e *NBConvertExecutor) Execute(ctx context.Context, envPath, notebook, outputDir string) error {
	target := filepath.Join(outputDir, filepath.Base(notebook))
	if err := copyFile(notebook, target); err != nil {
		return &ExecutionError{Notebook: notebook, Err: err}
	}

	_, err := e.runner.Run(ctx, outputDir, e.binary,
		"run", "-p", envPath,
		"jupyter", "nbconvert",
		"--to", "notebook",
		"--execute",
		"--inplace",
		fmt.Sprintf("--ExecutePreprocessor.timeout=%d", int(e.timeout.Seconds())),
		"--ExecutePreprocessor.kernel_name="+e.kernel,
		target,
	)
	if err != nil {
		ee := &ExecutionError{Notebook: notebook, Err: err}
		var ce *command.Error
		if errors.As(err, &ce) {
			ee.Output = ce.Output
		}
		return ee
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// Runner executes a list of notebooks one after another.
type Runner struct {
	executor Executor
	logger   *slog.Logger
}

// NewRunner creates a runner. A nil logger discards output.
func NewRunner(executor Executor, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Runner{executor: executor, logger: logger}
}

// Run executes each notebook in <outputRoot>/<name>, creating the directory
// if needed. The first failing notebook stops the run and its error is returned.
func (r *Runner) Run(ctx context.Context, envPath string, notebooks []string, outputRoot string) error {
	for _, nb := range notebooks {
		outputDir := filepath.Join(outputRoot, Name(nb))
		if err := os.MkdirAll(outputDir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}

		r.logger.Info("running notebook", "notebook", nb, "output", outputDir)
		start := time.Now()
		if err := r.executor.Execute(ctx, envPath, nb, outputDir); err != nil {
			r.logger.Error("notebook failed", "notebook", nb, "error", err)
			return err
		}
		r.logger.Info("notebook executed successfully", "notebook", nb, "elapsed", time.Since(start).Round(time.Millisecond))
	}
	return nil
}
