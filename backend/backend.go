// Package backend contains interfaces and implementations to store and
// retrieve data from the odb
package backend

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ngit-go/ngit/ginternals"
	"github.com/ngit-go/ngit/ginternals/config"
	"github.com/ngit-go/ngit/ginternals/object"
	"github.com/ngit-go/ngit/ginternals/packfile"
	"github.com/ngit-go/ngit/internal/cache"
	"github.com/ngit-go/ngit/internal/syncutil"
	"github.com/spf13/afero"
)

// This line generates a mock of the interfaces using gomock
// (https://github.com/golang/mock). To regenerate the mocks, you'll need
// gomock and mockgen installed, then run `go generate github.com/ngit-go/ngit/backend`
//
//go:generate mockgen -package mockpackfile -destination ../internal/mocks/mockbackend/backend.go github.com/ngit-go/ngit/backend Backend

// Backend represents an object that can store and retrieve data
// from and rto the odb
type Backend interface {
	// Close free the resources
	Close() error

	// Init initializes a repository
	Init(branchName string) error

	// Reference returns a stored reference from its name
	Reference(name string) (*ginternals.Reference, error)
	// WriteReference writes the given reference int the db. If the
	// reference already exists it will be overwritten
	WriteReference(ref *ginternals.Reference) error
	// WriteReferenceSafe writes the given reference in the db
	// ErrRefExists is returned if the reference already exists
	WriteReferenceSafe(ref *ginternals.Reference) error
	// WalkReferences runs the provided method on all the references
	WalkReferences(f RefWalkFunc) error

	// Object returns the object that has given oid
	Object(ginternals.Oid) (*object.Object, error)
	// HasObject returns whether an object exists in the odb
	HasObject(ginternals.Oid) (bool, error)
	// WriteObject adds an object to the odb
	WriteObject(*object.Object) (ginternals.Oid, error)
	// WalkPackedObjectIDs runs the provided method on all the objects ids
	WalkPackedObjectIDs(f packfile.OidWalkFunc) error
	// WalkLooseObjectIDs runs the provided method on all the loose ids
	WalkLooseObjectIDs(f packfile.OidWalkFunc) error
}

// RefWalkFunc represents a function that will be applied on all references
// found by Walk()
type RefWalkFunc = func(ref *ginternals.Reference) error

// WalkStop is a fake error used to tell Walk() to stop
var WalkStop = errors.New("stop walking") //nolint // the linter expects all errors to start with Err, but since here we're faking an error we don't want that

// defaultObjectCacheSize is the number of decoded objects kept in
// memory by a Backend's LRU cache
const defaultObjectCacheSize = 1000

// lockStripes is the number of mutexes backing a Backend's per-object
// locking; using more than one avoids serializing unrelated objects
// behind a single global lock
const lockStripes = 256

// we make sure the struct implements the interface
var _ Backend = (*FS)(nil)

// FS is a Backend implementation that stores objects and references
// on a filesystem (through afero, so it also works against an
// in-memory filesystem in tests)
type FS struct {
	fs     afero.Fs
	config *config.Config
	cache  *cache.LRU

	objectMu *syncutil.NamedMutex

	refs         sync.Map
	looseObjects sync.Map
	packfiles    map[ginternals.Oid]*packfile.Pack
}

// NewFS returns a new FS backend using the provided config. The
// filesystem, references, loose objects, and packfiles are loaded
// from cfg.FS (or the real filesystem if unset).
func NewFS(cfg *config.Config) (*FS, error) {
	fs := cfg.FS
	if fs == nil {
		fs = afero.NewOsFs()
	}

	b := &FS{
		fs:        fs,
		config:    cfg,
		cache:     cache.NewLRU(defaultObjectCacheSize),
		objectMu:  syncutil.NewNamedMutex(lockStripes),
		packfiles: map[ginternals.Oid]*packfile.Pack{},
	}

	if err := b.loadRefs(); err != nil {
		return nil, fmt.Errorf("could not load references: %w", err)
	}
	if err := b.loadLooseObject(); err != nil {
		return nil, fmt.Errorf("could not load loose objects: %w", err)
	}
	if err := b.loadPacks(); err != nil {
		return nil, fmt.Errorf("could not load packfiles: %w", err)
	}

	return b, nil
}

// Path returns the path to the .git directory
func (b *FS) Path() string {
	return ginternals.DotGitPath(b.config)
}

// ObjectsPath returns the path to the directory that contains the
// objects
func (b *FS) ObjectsPath() string {
	return ginternals.ObjectsPath(b.config)
}

// Close closes every packfile that was opened by this backend
func (b *FS) Close() error {
	for _, pack := range b.packfiles {
		if err := pack.Close(); err != nil {
			return fmt.Errorf("could not close packfile %s: %w", pack.ID().String(), err)
		}
	}
	return nil
}
