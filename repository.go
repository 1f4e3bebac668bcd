// Package git implements a minimal, read-leaning object store and
// working-tree introspection library: it wires together the on-disk
// config, reference, object, and index codecs behind a single
// Repository facade.
package git

import (
	"bytes"
	"strings"
	"sync"

	"github.com/ngit-go/ngit/backend"
	"github.com/ngit-go/ngit/ginternals"
	"github.com/ngit-go/ngit/ginternals/config"
	"github.com/ngit-go/ngit/ginternals/filter"
	"github.com/ngit-go/ngit/ginternals/ignore"
	"github.com/ngit-go/ngit/ginternals/object"
	"github.com/ngit-go/ngit/internal/env"
	"github.com/spf13/afero"
	"golang.org/x/xerrors"
)

// HeadKind identifies what HEAD currently points to.
type HeadKind int8

const (
	// HeadBranch means HEAD is a symbolic reference to a local branch
	HeadBranch HeadKind = iota + 1
	// HeadTag means HEAD is a symbolic reference to a tag
	HeadTag
	// HeadDetached means HEAD directly targets a commit
	HeadDetached
)

// Head represents the resolved state of HEAD
type Head struct {
	Kind   HeadKind
	Name   string
	Commit *object.Commit
}

// Repository gives read access to a repository's objects, references,
// index, and ignore rules. The config is loaded when the Repository is
// created, and the ignore matcher is computed lazily and cached: a
// Repository is not safe for concurrent use, and
// must be externally synchronized if shared across goroutines.
type Repository struct {
	backend backend.Backend
	config  *config.Config

	ignoreOnce    sync.Once
	ignoreMatcher *ignore.Matcher
	ignoreErr     error
}

// InitOptions contains the optional data used to initialize a repository
type InitOptions struct {
	// IsBare represents whether a bare repository will be created or not
	IsBare bool
	// FS is the filesystem implementation to use. Defaults to the real
	// filesystem.
	FS afero.Fs
}

// InitRepository initializes a new repository in repoPath using
// branchName as the name of the initial branch HEAD points to.
func InitRepository(repoPath, branchName string) (*Repository, error) {
	return InitRepositoryWithOptions(repoPath, branchName, InitOptions{})
}

// InitRepositoryWithOptions initializes a new repository in repoPath
// using the provided options.
func InitRepositoryWithOptions(repoPath, branchName string, opts InitOptions) (*Repository, error) {
	cfg, err := config.LoadConfigSkipEnv(config.LoadConfigOptions{
		FS:               opts.FS,
		WorkingDirectory: repoPath,
		IsBare:           opts.IsBare,
		SkipGitDirLookUp: true,
	})
	if err != nil {
		return nil, xerrors.Errorf("could not load config: %w", err)
	}

	b, err := backend.NewFS(cfg)
	if err != nil {
		return nil, xerrors.Errorf("could not open backend: %w", err)
	}
	if err = b.Init(branchName); err != nil {
		return nil, xerrors.Errorf("could not initialize repository: %w", err)
	}

	return &Repository{backend: b, config: cfg}, nil
}

// OpenOptions contains the optional data used to open a repository
type OpenOptions struct {
	// IsBare represents whether the repository has no working tree
	IsBare bool
	// FS is the filesystem implementation to use. Defaults to the real
	// filesystem.
	FS afero.Fs
}

// OpenRepository loads an existing repository found by walking up
// from repoPath looking for a .git directory.
func OpenRepository(repoPath string) (*Repository, error) {
	return OpenRepositoryWithOptions(repoPath, OpenOptions{})
}

// OpenRepositoryWithOptions loads an existing repository using the
// provided options.
func OpenRepositoryWithOptions(repoPath string, opts OpenOptions) (*Repository, error) {
	cfg, err := config.LoadConfig(env.NewFromOs(), config.LoadConfigOptions{
		FS:               opts.FS,
		WorkingDirectory: repoPath,
		IsBare:           opts.IsBare,
	})
	if err != nil {
		return nil, xerrors.Errorf("could not load config: %w", err)
	}

	b, err := backend.NewFS(cfg)
	if err != nil {
		return nil, xerrors.Errorf("could not open backend: %w", err)
	}

	return &Repository{backend: b, config: cfg}, nil
}

// Close releases the resources held by the repository's backend
func (r *Repository) Close() error {
	return r.backend.Close()
}

// Config returns the repository's resolved configuration
func (r *Repository) Config() *config.Config {
	return r.config
}

// GetObject returns the raw object stored under oid
func (r *Repository) GetObject(oid ginternals.Oid) (*object.Object, error) {
	o, err := r.backend.Object(oid)
	if err != nil {
		return nil, xerrors.Errorf("could not get object %s: %w", oid.String(), err)
	}
	return o, nil
}

// GetCommit returns the commit stored under oid
func (r *Repository) GetCommit(oid ginternals.Oid) (*object.Commit, error) {
	o, err := r.GetObject(oid)
	if err != nil {
		return nil, err
	}
	c, err := o.AsCommit()
	if err != nil {
		return nil, xerrors.Errorf("%s is not a commit: %w", oid.String(), err)
	}
	return c, nil
}

// GetTree returns the tree stored under oid
func (r *Repository) GetTree(oid ginternals.Oid) (*object.Tree, error) {
	o, err := r.GetObject(oid)
	if err != nil {
		return nil, err
	}
	t, err := o.AsTree()
	if err != nil {
		return nil, xerrors.Errorf("%s is not a tree: %w", oid.String(), err)
	}
	return t, nil
}

// GetTag returns the tag stored under oid
func (r *Repository) GetTag(oid ginternals.Oid) (*object.Tag, error) {
	o, err := r.GetObject(oid)
	if err != nil {
		return nil, err
	}
	t, err := o.AsTag()
	if err != nil {
		return nil, xerrors.Errorf("%s is not a tag: %w", oid.String(), err)
	}
	return t, nil
}

// HashObject computes the oid an object of the given type and content
// would have without writing anything to the odb. When applyFilters is
// set and core.autocrlf calls for it, content is normalized (CRLF to
// LF) before hashing, unless it's classified binary; filename drives
// that classification and may be left empty. Passing applyFilters as
// false always hashes content as-is, which is what reproduces a loose
// object's original oid.
func (r *Repository) HashObject(typ object.Type, content []byte, filename string, applyFilters bool) ginternals.Oid {
	content = filter.Apply(applyFilters, r.config.FromFile().AutoCRLF(), filename, content)
	return object.New(typ, content).ID()
}

// WriteObject writes an object of the given type and content to the
// odb and returns its oid, running content through the same filter
// pipeline as HashObject first.
func (r *Repository) WriteObject(typ object.Type, content []byte, filename string, applyFilters bool) (ginternals.Oid, error) {
	content = filter.Apply(applyFilters, r.config.FromFile().AutoCRLF(), filename, content)
	oid, err := r.backend.WriteObject(object.New(typ, content))
	if err != nil {
		return ginternals.NullOid, xerrors.Errorf("could not write object: %w", err)
	}
	return oid, nil
}

// GetIndex parses and returns the repository's staging area
func (r *Repository) GetIndex() (*ginternals.Index, error) {
	data, err := afero.ReadFile(r.fs(), ginternals.IndexPath(r.config))
	if err != nil {
		return nil, xerrors.Errorf("could not read index: %w", err)
	}
	idx, err := ginternals.DecodeIndex(bytes.NewReader(data))
	if err != nil {
		return nil, xerrors.Errorf("could not decode index: %w", err)
	}
	return idx, nil
}

// GetReference returns the reference stored under its exact, fully
// qualified name (e.g. "HEAD" or "refs/heads/main"), without any
// "refs/..." prefixing
func (r *Repository) GetReference(name string) (*ginternals.Reference, error) {
	return r.backend.Reference(name)
}

// GetRef returns the reference named "refs/<ref>"
func (r *Repository) GetRef(ref string) (*ginternals.Reference, error) {
	return r.backend.Reference(ginternals.RefFullName(ref))
}

// GetBranch returns the reference of the local branch with the given
// short name
func (r *Repository) GetBranch(name string) (*ginternals.Reference, error) {
	return r.backend.Reference(ginternals.LocalBranchFullName(name))
}

// GetHead resolves HEAD to the branch, tag, or commit it currently
// points to
func (r *Repository) GetHead() (*Head, error) {
	ref, err := r.backend.Reference(ginternals.Head)
	if err != nil {
		return nil, xerrors.Errorf("could not resolve HEAD: %w", err)
	}

	switch {
	case ref.Type() == ginternals.SymbolicReference && strings.HasPrefix(ref.SymbolicTarget(), "refs/heads/"):
		commit, err := r.GetCommit(ref.Target())
		if err != nil {
			return nil, xerrors.Errorf("HEAD: %w", ginternals.ErrInvalidHead)
		}
		return &Head{
			Kind:   HeadBranch,
			Name:   ginternals.LocalBranchShortName(ref.SymbolicTarget()),
			Commit: commit,
		}, nil
	case ref.Type() == ginternals.SymbolicReference && strings.HasPrefix(ref.SymbolicTarget(), "refs/tags/"):
		commit, err := r.GetCommit(ref.Target())
		if err != nil {
			return nil, xerrors.Errorf("HEAD: %w", ginternals.ErrInvalidHead)
		}
		return &Head{
			Kind:   HeadTag,
			Name:   ginternals.LocalTagShortName(ref.SymbolicTarget()),
			Commit: commit,
		}, nil
	case ref.Type() == ginternals.OidReference:
		commit, err := r.GetCommit(ref.Target())
		if err != nil {
			return nil, xerrors.Errorf("HEAD: %w", ginternals.ErrInvalidHead)
		}
		return &Head{
			Kind:   HeadDetached,
			Name:   ref.Target().String(),
			Commit: commit,
		}, nil
	default:
		return nil, ginternals.ErrInvalidHead
	}
}

// GetIgnoreMatcher returns the matcher used to decide whether a
// working-tree path is ignored. The matcher is built on first call and
// cached for the lifetime of the Repository.
func (r *Repository) GetIgnoreMatcher() (*ignore.Matcher, error) {
	r.ignoreOnce.Do(func() {
		m := ignore.New(r.config.WorkTreePath, r.config.FromFile().IgnoreCase())
		if err := m.Init(r.fs()); err != nil {
			r.ignoreErr = xerrors.Errorf("could not build ignore matcher: %w", err)
			return
		}
		r.ignoreMatcher = m
	})
	return r.ignoreMatcher, r.ignoreErr
}

// fs returns the filesystem backing this repository's config
func (r *Repository) fs() afero.Fs {
	if r.config.FS != nil {
		return r.config.FS
	}
	return afero.NewOsFs()
}
