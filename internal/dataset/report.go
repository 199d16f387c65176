package dataset

import (
	"fmt"

	"github.com/roach88/refdrift/internal/canon"
)

// Kind identifies the cause of a finding.
type Kind string

const (
	GlobalAttributeMismatch   Kind = "global_attribute_mismatch"
	MissingVariable           Kind = "missing_variable"
	VariableAttributeMismatch Kind = "variable_attribute_mismatch"
	VariableDataMismatch      Kind = "variable_data_mismatch"
)

// Side names one of the two compared datasets.
type Side string

const (
	SideSource Side = "source"
	SideTarget Side = "target"
)

// Finding is one reason two datasets differ.
type Finding struct {
	Kind        Kind   `json:"kind"`
	Name        string `json:"name,omitempty"`
	Variable    string `json:"variable,omitempty"`
	MissingFrom Side   `json:"missing_from,omitempty"`
}

// String renders the finding as a report line.
func (f Finding) String() string {
	switch f.Kind {
	case GlobalAttributeMismatch:
		return fmt.Sprintf("Global attribute '%s' differs.", f.Name)
	case MissingVariable:
		return fmt.Sprintf("Variable '%s' is not present in both files.", f.Variable)
	case VariableAttributeMismatch:
		return fmt.Sprintf("Attribute '%s' of variable '%s' differs.", f.Name, f.Variable)
	case VariableDataMismatch:
		return fmt.Sprintf("Data of variable '%s' differs.", f.Variable)
	default:
		return fmt.Sprintf("unknown finding %q", f.Kind)
	}
}

func (f Finding) canonical() map[string]any {
	m := map[string]any{"kind": string(f.Kind)}
	if f.Name != "" {
		m["name"] = f.Name
	}
	if f.Variable != "" {
		m["variable"] = f.Variable
	}
	if f.MissingFrom != "" {
		m["missing_from"] = string(f.MissingFrom)
	}
	return m
}

// Report is the ordered list of findings for one artifact pair.
type Report struct {
	Source   string    `json:"source"`
	Target   string    `json:"target"`
	Findings []Finding `json:"findings"`
}

// Equal reports whether the pair had no findings.
func (r Report) Equal() bool {
	return len(r.Findings) == 0
}

// Result returns "Same" or "Different".
func (r Report) Result() string {
	if r.Equal() {
		return "Same"
	}
	return "Different"
}

// Digest identifies the report contents. Paths are excluded so that the
// same drift found in different save directories hashes identically.
func (r Report) Digest() (string, error) {
	findings := make([]any, len(r.Findings))
	for i, f := range r.Findings {
		findings[i] = f.canonical()
	}
	return canon.Digest(canon.DomainReport, map[string]any{"findings": findings})
}
