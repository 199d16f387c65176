// Package report writes comparison results as plain text.
//
// Results go to an append-only file that accumulates across runs and, at the
// same time, to a progress writer (normally stdout). The file is never
// truncated; callers that want a fresh log remove it first.
package report

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/roach88/refdrift/internal/dataset"
)

// Header introduces one run in the results file.
type Header struct {
	RunID    string
	Version1 string
	Version2 string
	Started  time.Time
}

// Summary closes one run in the results file.
type Summary struct {
	Same      int
	Different int
	Skipped   int
}

// Sink appends rendered results to a file and mirrors them to progress.
type Sink struct {
	path string
	file *os.File
	out  io.Writer
}

// OpenSink opens path for appending, creating it if needed. An empty path
// writes to progress only. A nil progress writer is ignored.
func OpenSink(path string, progress io.Writer) (*Sink, error) {
	if progress == nil {
		progress = io.Discard
	}
	s := &Sink{path: path, out: progress}
	if path == "" {
		return s, nil
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open results file: %w", err)
	}
	s.file = f
	s.out = io.MultiWriter(f, progress)
	return s, nil
}

// Path returns the results file path, or "" when there is none.
func (s *Sink) Path() string {
	return s.path
}

// WriteHeader records the start of a run.
func (s *Sink) WriteHeader(h Header) error {
	return RenderHeader(s.out, h)
}

// WriteReport records one artifact pair.
func (s *Sink) WriteReport(r dataset.Report) error {
	return Render(s.out, r)
}

// WriteSummary records the end of a run.
func (s *Sink) WriteSummary(sum Summary) error {
	return RenderSummary(s.out, sum)
}

// Close closes the results file.
func (s *Sink) Close() error {
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

// RenderHeader writes the run header line.
func RenderHeader(w io.Writer, h Header) error {
	_, err := fmt.Fprintf(w, "=== run %s: %s -> %s (%s) ===\n",
		h.RunID, h.Version1, h.Version2, h.Started.UTC().Format(time.RFC3339))
	return err
}

// Render writes the result line for r followed by one line per finding.
func Render(w io.Writer, r dataset.Report) error {
	if _, err := fmt.Fprintf(w, "Comparison result for %s and %s: %s\n", r.Source, r.Target, r.Result()); err != nil {
		return err
	}
	for _, f := range r.Findings {
		if _, err := fmt.Fprintln(w, f.String()); err != nil {
			return err
		}
	}
	return nil
}

// RenderSummary writes the pair counts for a run.
func RenderSummary(w io.Writer, sum Summary) error {
	_, err := fmt.Fprintf(w, "=== %d same, %d different, %d without counterpart ===\n",
		sum.Same, sum.Different, sum.Skipped)
	return err
}
