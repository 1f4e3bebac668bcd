package backend

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ngit-go/ngit/ginternals"
	"github.com/ngit-go/ngit/internal/errutil"
	"github.com/spf13/afero"
)

// Reference returns a stored reference from its name
// ErrRefNotFound is returned if the reference doesn't exists
// This method can be called concurrently
func (b *FS) Reference(name string) (*ginternals.Reference, error) {
	finder := func(name string) ([]byte, error) {
		data, ok := b.refs.Load(name)
		if !ok {
			return nil, fmt.Errorf(`ref "%s": %w`, name, ginternals.ErrRefNotFound)
		}
		return data.([]byte), nil
	}
	return ginternals.ResolveReference(name, finder)
}

// systemPath returns a path from a ref name
// Ex.: On windows refs/heads/master would return refs\heads\master
func (b *FS) systemPath(name string) string {
	name = filepath.FromSlash(name)
	return filepath.Join(b.Path(), name)
}

// specialRefNames are the top-level, non refs/-namespaced files that
// also hold a reference.
var specialRefNames = []string{
	ginternals.Head,
	// TODO(melvin): Removed until we support the format
	// ginternals.FetchHead,
	ginternals.OrigHead,
	ginternals.MergeHead,
	ginternals.CherryPickHead,
}

// loadRefs loads every known reference in memory: the packed-refs
// file first (which may be stale), then the loose refs/ tree and the
// special top-level files, which both take precedence and overwrite
// whatever packed-refs said about the same name.
func (b *FS) loadRefs() error {
	if err := b.loadPackedRefs(); err != nil {
		return err
	}
	if err := b.loadLooseRefs(); err != nil {
		return err
	}
	return b.loadSpecialRefs()
}

// loadPackedRefs parses the packed-refs file, if any, storing each
// "oid ref-name" line it finds. Comments and annotated-tag peel lines
// ("^...") are skipped.
func (b *FS) loadPackedRefs() (err error) {
	packedRefPath := ginternals.PackedRefsPath(b.config)
	f, err := b.fs.Open(packedRefPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("could not open %s: %w", packedRefPath, err)
	}
	defer errutil.Close(f, &err)

	sc := bufio.NewScanner(f)
	for lineNum := 1; sc.Scan(); lineNum++ {
		line := sc.Text()
		if line == "" || line[0] == '#' || line[0] == '^' {
			continue
		}

		oid, name, ok := strings.Cut(line, " ")
		if !ok {
			return fmt.Errorf("could not parse %s, unexpected data line %d: %w", packedRefPath, lineNum, ginternals.ErrPackedRefInvalid)
		}
		// the name of the ref is its UNIX path
		b.refs.Store(filepath.ToSlash(name), []byte(oid))
	}
	if sc.Err() != nil {
		return fmt.Errorf("could not parse %s: %w", packedRefPath, sc.Err())
	}
	return nil
}

// loadLooseRefs walks refs/ on disk, storing the raw content of every
// file found there.
// TODO(melvin): Do we really want to stop if we cannot parse one file?
func (b *FS) loadLooseRefs() error {
	refsPath := ginternals.RefsPath(b.config)
	err := afero.Walk(b.fs, refsPath, func(path string, info fs.FileInfo, walkErr error) error {
		// if refsPath doesn't exists this will return nil and skip the error
		// this is useful in case where the repo is empty and has no
		// references yet
		if path == refsPath {
			return nil
		}
		if walkErr != nil {
			return fmt.Errorf("could not walk %s: %w", path, walkErr)
		}
		if info.IsDir() {
			return nil
		}

		// TODO(melvin): for security reason we should limit the amount of
		// data we can read
		data, readErr := afero.ReadFile(b.fs, path)
		if readErr != nil {
			return fmt.Errorf("could not read reference at %s: %w", path, readErr)
		}
		relpath, relErr := filepath.Rel(b.Path(), path)
		if relErr != nil {
			return relErr //nolint:wrapcheck // the error message is already pretty descriptive
		}
		// the name of the ref is its UNIX path
		b.refs.Store(filepath.ToSlash(relpath), data)
		return nil
	})
	if err != nil {
		return fmt.Errorf("could not browse the refs directory: %w", err)
	}
	return nil
}

// loadSpecialRefs reads the top-level HEAD-family files that live
// outside refs/ but are still references.
func (b *FS) loadSpecialRefs() error {
	for _, name := range specialRefNames {
		data, err := afero.ReadFile(b.fs, filepath.Join(b.Path(), name))
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("could not read reference at %s: %w", name, err)
		}
		b.refs.Store(name, data)
	}
	return nil
}

// WriteReference writes the given reference on disk. If the
// reference already exists it will be overwritten
func (b *FS) WriteReference(ref *ginternals.Reference) error {
	return b.writeReference(ref)
}

// WriteReferenceSafe writes the given reference on disk.
// ErrRefExists is returned if the reference already exists
func (b *FS) WriteReferenceSafe(ref *ginternals.Reference) error {
	if _, ok := b.refs.Load(ref.Name()); ok {
		return ginternals.ErrRefExists
	}
	return b.writeReference(ref)
}

// writeReference writes the given reference on disk. If the
// reference already exists it will be overwritten
func (b *FS) writeReference(ref *ginternals.Reference) error {
	if !ginternals.IsRefNameValid(ref.Name()) {
		return ginternals.ErrRefNameInvalid
	}

	var target string
	switch ref.Type() {
	case ginternals.SymbolicReference:
		target = fmt.Sprintf("ref: %s\n", ref.SymbolicTarget())
	case ginternals.OidReference:
		target = fmt.Sprintf("%s\n", ref.Target().String())
	default:
		return fmt.Errorf("reference type %d: %w", ref.Type(), ginternals.ErrUnknownRefType)
	}

	refPath := b.systemPath(ref.Name())
	// Since we can have `/` in the ref name, we need to create
	// the path on the FS
	dir := filepath.Dir(refPath)
	err := b.fs.MkdirAll(dir, 0o755)
	if err != nil {
		// TODO(melvin): This fails if someone creates a ref
		// named ml/foo and then another ref named ml/foo/bar since
		// foo is a file. We should probably return a better error
		// message in this case (and potentially check this in IsRefNameValid?)
		return fmt.Errorf("could not persist reference to disk: %w", err)
	}
	// We can now create the actual file
	data := []byte(target)
	err = afero.WriteFile(b.fs, refPath, data, 0o644)
	if err != nil {
		return fmt.Errorf("could not persist reference to disk: %w", err)
	}
	b.refs.Store(ref.Name(), data)
	return nil
}

// WalkReferences runs the provided method on all the references
func (b *FS) WalkReferences(f RefWalkFunc) error {
	var topError error
	b.refs.Range(func(key, value interface{}) bool {
		name, ok := key.(string)
		if !ok {
			//nolint:goerr113 // no need to wrap the error, this would only be caused by a bug in the codebase
			topError = fmt.Errorf("invalid key type for %s. expected string got %T", name, key)
			return false
		}
		ref, err := b.Reference(name)
		if err != nil {
			topError = fmt.Errorf("could not resolve reference %s: %w", name, err)
			return false
		}

		if err = f(ref); err != nil {
			if err != WalkStop { //nolint:errorlint,goerr113 // it's a fake error so no need to use Error.Is()
				topError = err
			}
			return false
		}
		return true
	})

	return topError
}
