package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/refdrift/internal/command"
	"github.com/roach88/refdrift/internal/config"
	"github.com/roach88/refdrift/internal/logging"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	Config  string // optional YAML config file

	// runner and cwd are overridden in tests.
	runner command.Runner
	cwd    string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the refdrift CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "refdrift",
		Short: "refdrift - reference data drift between library versions",
		Long: `Run the example notebooks of two tobac versions and compare the NetCDF
reference datasets they save.

Each version is installed into a mamba environment, the selected notebooks
are executed with nbconvert, and every Example*/Save/* file produced by the
first version is compared with its counterpart from the second.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Config, "config", "", "path to refdrift.yaml")

	cmd.AddCommand(NewCompareCommand(opts))
	cmd.AddCommand(NewResolveCommand(opts))
	cmd.AddCommand(NewLocateCommand(opts))
	cmd.AddCommand(NewDiffCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

func (o *RootOptions) loadConfig() (config.Config, error) {
	cfg, err := config.Load(o.Config)
	if err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "failed to load configuration", err)
	}
	return cfg, nil
}

// logger writes diagnostics to the command's stderr so JSON on stdout stays clean.
func (o *RootOptions) logger(cmd *cobra.Command) *slog.Logger {
	return logging.New(cmd.ErrOrStderr(), o.Verbose)
}

func (o *RootOptions) commandRunner() command.Runner {
	if o.runner != nil {
		return o.runner
	}
	return command.NewExecRunner()
}

func (o *RootOptions) workingDir() (string, error) {
	if o.cwd != "" {
		return o.cwd, nil
	}
	return os.Getwd()
}
