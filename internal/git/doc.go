// Package git provides the small set of git operations refdrift needs to
// materialize a library revision on disk: clone without checkout, checkout a
// tag or commit, and read the checked-out HEAD.
//
// All commands run through a command.Runner, so tests inject a fake runner
// instead of invoking git.
package git
