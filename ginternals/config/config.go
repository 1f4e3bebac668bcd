// Package config contains structs to interact with git configuration
// as well as to configure the library
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ngit-go/ngit/internal/env"
	"github.com/ngit-go/ngit/internal/gitpath"
	"github.com/ngit-go/ngit/internal/pathutil"
	"github.com/spf13/afero"
)

// DefaultDotGitDirName is the name of the directory that holds a
// repository's metadata
const DefaultDotGitDirName = gitpath.DotGitPath

// Config represents the resolved configuration of a repository: the
// paths that locate it on disk, plus the merged view of its
// gitconfig-style files
type Config struct {
	// FS is the filesystem implementation used to look for files and
	// directories. Defaults to the real filesystem.
	FS afero.Fs

	// fromFiles holds the values read from the user- and repo-scope
	// config files
	fromFiles *FileAggregate

	// WorkTreePath is the path to the working tree
	WorkTreePath string
	// GitDirPath is the path to the .git directory
	GitDirPath string
	// ObjectDirPath is the path to the .git/objects directory
	ObjectDirPath string
	// LocalConfig is the path to the repository-scope config file
	LocalConfig string
}

// LoadConfigOptions lets a caller override where a repository is
// located instead of relying on auto-discovery
type LoadConfigOptions struct {
	// FS is the filesystem implementation to use. Defaults to the real
	// filesystem.
	FS afero.Fs
	// WorkingDirectory is the directory to start the .git lookup from.
	// Defaults to the process' current working directory.
	WorkingDirectory string
	// GitDirPath overrides the auto-discovered .git directory.
	GitDirPath string
	// SkipGitDirLookUp disables walking up the tree looking for a .git
	// directory; only set this to true when initializing a new
	// repository.
	SkipGitDirLookUp bool
	// IsBare indicates the repository has no working tree: the git
	// directory itself is used as work tree path.
	IsBare bool
}

// LoadConfig resolves a repository's paths and merges its config
// files
func LoadConfig(e *env.Env, opts LoadConfigOptions) (*Config, error) {
	if opts.FS == nil {
		opts.FS = afero.NewOsFs()
	}

	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("could not get the current directory: %w", err)
	}
	if opts.WorkingDirectory == "" {
		opts.WorkingDirectory = wd
	}
	if !filepath.IsAbs(opts.WorkingDirectory) {
		opts.WorkingDirectory = filepath.Join(wd, opts.WorkingDirectory)
	}

	cfg := &Config{
		FS:         opts.FS,
		GitDirPath: opts.GitDirPath,
	}

	workTree := opts.WorkingDirectory
	switch cfg.GitDirPath {
	case "":
		if !opts.SkipGitDirLookUp {
			workTree, err = pathutil.WorkingTreeFromPath(opts.WorkingDirectory)
			if err != nil {
				return nil, fmt.Errorf("could not find working tree: %w", err)
			}
		}
		cfg.GitDirPath = filepath.Join(workTree, gitpath.DotGitPath)
	default:
		if !filepath.IsAbs(cfg.GitDirPath) {
			cfg.GitDirPath = filepath.Join(opts.WorkingDirectory, cfg.GitDirPath)
		}
	}
	cfg.WorkTreePath = workTree
	if opts.IsBare {
		cfg.WorkTreePath = cfg.GitDirPath
	}
	cfg.ObjectDirPath = filepath.Join(cfg.GitDirPath, gitpath.ObjectsPath)
	cfg.LocalConfig = filepath.Join(cfg.GitDirPath, gitpath.ConfigPath)

	cfg.fromFiles, err = NewFileAggregate(e, cfg)
	if err != nil {
		return nil, fmt.Errorf("could not load config files: %w", err)
	}

	if wt, ok := cfg.fromFiles.WorkTree(); ok {
		cfg.WorkTreePath = wt
	}

	return cfg, nil
}

// FromFile returns the accessor for this config's merged file values
func (cfg *Config) FromFile() *FileAggregate {
	return cfg.fromFiles
}

// LoadConfigSkipEnv resolves a repository's paths and config files
// without looking at the process environment. Used when initializing
// a new repository, where the environment shouldn't influence where
// the repository gets created.
func LoadConfigSkipEnv(opts LoadConfigOptions) (*Config, error) {
	return LoadConfig(env.NewFromKVList(nil), opts)
}
