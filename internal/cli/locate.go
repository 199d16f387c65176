package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/refdrift/internal/reference"
)

// LocateOptions holds flags for the locate command.
type LocateOptions struct {
	*RootOptions
	Target string // optional - pair each artifact with this root
}

// LocatedArtifact is one artifact in locate output.
type LocatedArtifact struct {
	Example     string `json:"example"`
	Path        string `json:"path"`
	RelPath     string `json:"rel_path"`
	Counterpart string `json:"counterpart,omitempty"`
}

// LocateResult holds the artifacts found under a root.
type LocateResult struct {
	Root      string            `json:"root"`
	Artifacts []LocatedArtifact `json:"artifacts"`
	Unmatched []LocatedArtifact `json:"unmatched,omitempty"`
}

// NewLocateCommand creates the locate command.
func NewLocateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LocateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "locate <root>",
		Short: "List reference artifacts under a directory",
		Long: `List every file directly inside an Example*/Save/ directory under root.

With --target, each artifact is paired with the file at the same relative
path under the target root; artifacts without a counterpart are listed
separately, as compare would skip them.

Examples:
  refdrift locate ./drift/source_reference_data
  refdrift locate ./drift/source_reference_data --target ./drift/target_reference_data`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLocate(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Target, "target", "", "pair artifacts with this root")

	return cmd
}

func runLocate(opts *LocateOptions, root string, cmd *cobra.Command) error {
	for _, dir := range []string{root, opts.Target} {
		if dir == "" {
			continue
		}
		if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
			return NewExitError(ExitCommandError, fmt.Sprintf("directory not found: %s", dir))
		}
	}

	result := LocateResult{Root: root, Artifacts: []LocatedArtifact{}}

	if opts.Target == "" {
		artifacts, err := reference.Locate(root)
		if err != nil {
			return WrapExitError(ExitFailure, "failed to locate artifacts", err)
		}
		for _, a := range artifacts {
			result.Artifacts = append(result.Artifacts, located(a, ""))
		}
	} else {
		pairs, unmatched, err := reference.Pairs(root, opts.Target)
		if err != nil {
			return WrapExitError(ExitFailure, "failed to locate artifacts", err)
		}
		for _, p := range pairs {
			result.Artifacts = append(result.Artifacts, located(p.Source, p.Target))
		}
		for _, a := range unmatched {
			result.Unmatched = append(result.Unmatched, located(a, ""))
		}
	}

	if opts.Format == "json" {
		formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
		return formatter.Success(result)
	}
	return outputLocateText(cmd, result)
}

func located(a reference.Artifact, counterpart string) LocatedArtifact {
	return LocatedArtifact{Example: a.Example, Path: a.Path, RelPath: a.RelPath, Counterpart: counterpart}
}

func outputLocateText(cmd *cobra.Command, result LocateResult) error {
	w := cmd.OutOrStdout()

	if len(result.Artifacts) == 0 && len(result.Unmatched) == 0 {
		fmt.Fprintf(w, "No reference artifacts under %s\n", result.Root)
		return nil
	}

	for _, a := range result.Artifacts {
		if a.Counterpart != "" {
			fmt.Fprintf(w, "%s -> %s\n", a.RelPath, a.Counterpart)
			continue
		}
		fmt.Fprintln(w, a.RelPath)
	}
	for _, a := range result.Unmatched {
		fmt.Fprintf(w, "%s (no counterpart)\n", a.RelPath)
	}
	return nil
}
