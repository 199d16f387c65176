// Package env provisions the isolated package environment a comparison run
// installs the library under test into.
//
// One environment path serves both versions of a run: the first version is
// installed into a fresh environment, the second is installed over it in
// place. Release tags are installed from the package channel; commit hashes
// are cloned, their requirement files installed, and the source tree
// registered with pip in no-dependency mode.
//
// The package manager (mamba, conda or micromamba) is an opaque external
// command reached through command.Runner. Any non-zero exit aborts the run.
package env
