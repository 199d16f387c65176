package dataset

import (
	"context"
	"fmt"

	"github.com/roach88/refdrift/internal/canon"
)

// Compare diffs source against target. Findings are ordered: global
// attributes, missing variables, then per shared variable its attributes
// followed by its data. Names within each group are sorted.
func Compare(source, target *Dataset) []Finding {
	if Equal(source, target) {
		return nil
	}

	var findings []Finding
	for _, name := range unionKeys(source.Attributes, target.Attributes) {
		if !attributePresentAndEqual(source.Attributes, target.Attributes, name) {
			findings = append(findings, Finding{Kind: GlobalAttributeMismatch, Name: name})
		}
	}

	var shared []string
	for _, name := range unionKeys(source.Variables, target.Variables) {
		_, inSource := source.Variables[name]
		_, inTarget := target.Variables[name]
		switch {
		case !inTarget:
			findings = append(findings, Finding{Kind: MissingVariable, Variable: name, MissingFrom: SideTarget})
		case !inSource:
			findings = append(findings, Finding{Kind: MissingVariable, Variable: name, MissingFrom: SideSource})
		default:
			shared = append(shared, name)
		}
	}

	for _, name := range shared {
		vs, vt := source.Variables[name], target.Variables[name]
		for _, attr := range unionKeys(vs.Attributes, vt.Attributes) {
			if !attributePresentAndEqual(vs.Attributes, vt.Attributes, attr) {
				findings = append(findings, Finding{Kind: VariableAttributeMismatch, Name: attr, Variable: name})
			}
		}
		if !dataEqual(vs, vt) {
			findings = append(findings, Finding{Kind: VariableDataMismatch, Variable: name})
		}
	}
	return findings
}

func attributePresentAndEqual(a, b map[string]any, key string) bool {
	va, okA := a[key]
	vb, okB := b[key]
	return okA && okB && valuesEqual(va, vb)
}

func unionKeys[V any](a, b map[string]V) []string {
	union := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		union[k] = struct{}{}
	}
	for k := range b {
		union[k] = struct{}{}
	}
	return canon.SortedKeys(union)
}

// Loader reads a dataset from disk.
type Loader interface {
	Load(ctx context.Context, path string) (*Dataset, error)
}

// Comparator loads and diffs artifact files.
type Comparator struct {
	loader Loader
}

// NewComparator creates a comparator. A nil loader uses NetCDFLoader.
func NewComparator(loader Loader) *Comparator {
	if loader == nil {
		loader = NetCDFLoader{}
	}
	return &Comparator{loader: loader}
}

// CompareFiles loads both files and returns their report.
func (c *Comparator) CompareFiles(ctx context.Context, sourcePath, targetPath string) (Report, error) {
	source, err := c.loader.Load(ctx, sourcePath)
	if err != nil {
		return Report{}, fmt.Errorf("load %s: %w", sourcePath, err)
	}
	target, err := c.loader.Load(ctx, targetPath)
	if err != nil {
		return Report{}, fmt.Errorf("load %s: %w", targetPath, err)
	}
	return Report{Source: sourcePath, Target: targetPath, Findings: Compare(source, target)}, nil
}
