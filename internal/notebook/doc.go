// Package notebook decides which example notebooks a comparison run executes
// and where their outputs land.
//
// Notebooks are discovered under the "examples" subtree of a source root.
// The root is the working directory, a previously materialized checkout in the
// save directory, or a fresh clone at the requested version. Exclusion
// patterns come from configuration, keyed by the reason a notebook is skipped.
//
// Each selected notebook runs in its own output directory named after the
// notebook, so files it writes to "Save/" end up at
// <output-root>/<notebook>/Save/. Execution itself is delegated to an
// Executor; a failure aborts the whole run.
package notebook
