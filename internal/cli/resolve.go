package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/refdrift/internal/version"
)

// ResolveOptions holds flags for the resolve command.
type ResolveOptions struct {
	*RootOptions
}

// ResolveResult describes one resolved version.
type ResolveResult struct {
	Input string `json:"input"`
	Kind  string `json:"kind"`
	Ref   string `json:"ref"`
}

func (r ResolveResult) String() string {
	return fmt.Sprintf("%s (%s, ref %s)", r.Input, r.Kind, r.Ref)
}

// NewResolveCommand creates the resolve command.
func NewResolveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResolveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "resolve <version>",
		Short: "Check a version against the repository's tags",
		Long: `Resolve a version the way compare does before installing it.

Tags are checked against the repository's tag list on GitHub; commit hashes
are accepted without a lookup. An unknown tag lists the valid ones.

Exit codes:
  0 - Version is usable
  2 - Version is malformed or not a known tag

Examples:
  refdrift resolve v1.5.2
  refdrift resolve 0123456789abcdef0123456789abcdef01234567 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(opts, args[0], cmd)
		},
	}

	return cmd
}

func runResolve(opts *ResolveOptions, raw string, cmd *cobra.Command) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	lister, err := newTagLister(cfg)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid repository configuration", err)
	}

	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), ErrWriter: cmd.ErrOrStderr(), Verbose: opts.Verbose}

	spec, err := version.NewResolver(lister, opts.logger(cmd)).Resolve(cmd.Context(), raw)
	if err != nil {
		code, errCode := classifyRunError(err)
		if opts.Format == "json" {
			if ferr := formatter.Error(errCode, err.Error(), nil); ferr != nil {
				return ferr
			}
		}
		return WrapExitError(code, "version rejected", err)
	}

	return formatter.Success(ResolveResult{Input: raw, Kind: spec.Kind().String(), Ref: spec.Ref()})
}
