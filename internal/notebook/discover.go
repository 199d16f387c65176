package notebook

import (
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
)

const (
	// ExamplesDir is the subtree notebooks are discovered in.
	ExamplesDir = "examples"
	// AllNotebooks selects every discovered notebook.
	AllNotebooks = "All"

	notebookExt = ".ipynb"
)

// Discover returns every notebook under root/examples that the policy does
// not exclude, in walk order.
func Discover(root string, policy Policy, logger *slog.Logger) ([]string, error) {
	examples := filepath.Join(root, ExamplesDir)
	var notebooks []string

	err := filepath.WalkDir(examples, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != notebookExt {
			return nil
		}

		rel, err := filepath.Rel(examples, path)
		if err != nil {
			return err
		}
		if reason, ok := policy.Excluded(rel); ok {
			if logger != nil {
				logger.Debug("notebook excluded", "notebook", rel, "reason", reason)
			}
			return nil
		}

		notebooks = append(notebooks, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discover notebooks in %s: %w", examples, err)
	}
	return notebooks, nil
}

// Name returns the notebook's base filename without extension.
func Name(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Select filters notebooks by a comma-delimited list of names. The filter
// "All" keeps everything.
func Select(notebooks []string, filter string) []string {
	if strings.TrimSpace(filter) == AllNotebooks {
		return notebooks
	}

	wanted := make(map[string]struct{})
	for _, name := range strings.Split(filter, ",") {
		if name = strings.TrimSpace(name); name != "" {
			wanted[name] = struct{}{}
		}
	}

	var selected []string
	for _, nb := range notebooks {
		if _, ok := wanted[Name(nb)]; ok {
			selected = append(selected, nb)
		}
	}
	return selected
}
