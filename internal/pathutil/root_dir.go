// Package pathutil locates repositories on the filesystem and exposes
// a pflag.Value used by the CLI's -C flag.
package pathutil

import (
	"os"
	"path/filepath"

	"github.com/ngit-go/ngit/ginternals"
	"golang.org/x/xerrors"
)

// RepoRoot returns the absolute path to the root of the repo
// containing the current working directory
func RepoRoot() (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", xerrors.Errorf("could not get current working directory: %w", err)
	}
	return RepoRootFromPath(wd)
}

// RepoRootFromPath walks p and its parents looking for a ".git"
// directory (regular repo) or a "HEAD" file (bare repo), and returns
// the first directory that has one
func RepoRootFromPath(p string) (string, error) {
	prev := ""
	for p != prev {
		info, err := os.Stat(filepath.Join(p, ".git"))
		if err == nil && info.IsDir() {
			return p, nil
		}

		info, err = os.Stat(filepath.Join(p, "HEAD"))
		if err == nil && !info.IsDir() && info.Size() > 0 {
			return p, nil
		}

		prev = p
		p = filepath.Dir(p)
	}
	return "", ginternals.ErrNotARepository
}

// WorkingTree returns the absolute path to the working tree
// containing the current working directory
func WorkingTree() (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", xerrors.Errorf("could not get current working directory: %w", err)
	}
	return WorkingTreeFromPath(wd)
}

// WorkingTreeFromPath walks p and its parents looking for a ".git"
// directory, and returns the first directory that has one
func WorkingTreeFromPath(p string) (string, error) {
	prev := ""
	for p != prev {
		info, err := os.Stat(filepath.Join(p, ".git"))
		if err == nil && info.IsDir() {
			return p, nil
		}

		prev = p
		p = filepath.Dir(p)
	}
	return "", ginternals.ErrNotARepository
}
