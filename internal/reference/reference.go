// Package reference locates the artifacts example notebooks save and pairs
// them across two output roots.
//
// An artifact is a regular file directly inside a "Save" directory whose
// parent directory name starts with "Example". Files in nested directories
// under Save are not artifacts.
package reference

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const (
	examplePrefix = "Example"
	saveDir       = "Save"
)

// Artifact is a saved reference file.
type Artifact struct {
	Example string // Name of the Example* directory
	Path    string // Absolute or root-joined path
	RelPath string // Path relative to the root it was found under
}

// Locate returns every artifact under root in walk order.
// A missing root yields no artifacts.
func Locate(root string) ([]Artifact, error) {
	if _, err := os.Stat(root); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}

	var artifacts []Artifact
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		if !d.IsDir() || !strings.HasPrefix(d.Name(), examplePrefix) {
			return nil
		}

		found, err := savedFiles(root, path)
		if err != nil {
			return err
		}
		artifacts = append(artifacts, found...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("locate artifacts in %s: %w", root, err)
	}
	return artifacts, nil
}

func savedFiles(root, exampleDir string) ([]Artifact, error) {
	save := filepath.Join(exampleDir, saveDir)
	entries, err := os.ReadDir(save)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var artifacts []Artifact
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		path := filepath.Join(save, e.Name())
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, Artifact{
			Example: filepath.Base(exampleDir),
			Path:    path,
			RelPath: rel,
		})
	}
	return artifacts, nil
}

// Counterpart returns the path of a's counterpart under targetRoot and
// whether a regular file exists there.
func Counterpart(targetRoot string, a Artifact) (string, bool) {
	target := filepath.Join(targetRoot, a.RelPath)
	info, err := os.Stat(target)
	return target, err == nil && info.Mode().IsRegular()
}

// Pair is a source artifact and its counterpart under the target root.
type Pair struct {
	Source Artifact
	Target string
}

// Pairs locates artifacts under sourceRoot and pairs each with its
// counterpart under targetRoot. Sources without a counterpart are returned
// separately; they are not compared.
func Pairs(sourceRoot, targetRoot string) (pairs []Pair, unmatched []Artifact, err error) {
	artifacts, err := Locate(sourceRoot)
	if err != nil {
		return nil, nil, err
	}

	for _, a := range artifacts {
		target, ok := Counterpart(targetRoot, a)
		if !ok {
			unmatched = append(unmatched, a)
			continue
		}
		pairs = append(pairs, Pair{Source: a, Target: target})
	}
	return pairs, unmatched, nil
}
