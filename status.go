package git

import (
	"github.com/ngit-go/ngit/ginternals"
	"github.com/ngit-go/ngit/ginternals/object"
	"golang.org/x/xerrors"
)

// FileStatus represents the high level state of a working-tree path
type FileStatus int8

const (
	// StatusStaged means the path differs between the index and the
	// tree it's compared against
	StatusStaged FileStatus = iota + 1
	// StatusModified means the path differs between the working tree
	// and the index
	StatusModified
	// StatusUntracked means the path exists in the working tree but not
	// in the index
	StatusUntracked
)

// StagingStatus refines a StatusStaged entry
type StagingStatus int8

const (
	// StagingAdded means the path is in the index but not in the tree
	// it's compared against
	StagingAdded StagingStatus = iota + 1
	// StagingModified means the path is in both but the OIDs differ
	StagingModified
	// StagingDeleted means the path is in the tree but not in the index
	StagingDeleted
)

// StatusEntry represents a single path reported by WorkingDirStatus
type StatusEntry struct {
	Name          string
	OID           ginternals.Oid
	Status        FileStatus
	StagingStatus StagingStatus
}

// WorkingDirStatus compares an index against a tree and reports, for
// every path staged relative to that tree, whether it was added or
// modified. Detecting working-tree modifications and untracked files
// is left to the caller, which has to walk the filesystem itself.
func (r *Repository) WorkingDirStatus(index *ginternals.Index, rootTree *object.Tree) ([]StatusEntry, error) {
	treeEntries := map[string]ginternals.Oid{}
	if err := r.flattenTree(rootTree, "", treeEntries); err != nil {
		return nil, xerrors.Errorf("could not walk tree: %w", err)
	}

	entries := make([]StatusEntry, 0, len(index.Entries))
	for _, e := range index.Entries {
		oid, ok := treeEntries[e.Path]
		switch {
		case !ok:
			entries = append(entries, StatusEntry{
				Name:          e.Path,
				OID:           e.OID,
				Status:        StatusStaged,
				StagingStatus: StagingAdded,
			})
		case oid != e.OID:
			entries = append(entries, StatusEntry{
				Name:          e.Path,
				OID:           e.OID,
				Status:        StatusStaged,
				StagingStatus: StagingModified,
			})
		}
	}
	return entries, nil
}

// flattenTree recursively walks a tree, joining subtree names with
// "/", and stores each blob/gitlink entry's OID under its full path
func (r *Repository) flattenTree(t *object.Tree, prefix string, out map[string]ginternals.Oid) error {
	for _, e := range t.Entries() {
		path := e.Path
		if prefix != "" {
			path = prefix + "/" + path
		}

		if e.Mode == object.ModeDirectory {
			sub, err := r.GetTree(e.ID)
			if err != nil {
				return xerrors.Errorf("could not get subtree %s: %w", path, err)
			}
			if err := r.flattenTree(sub, path, out); err != nil {
				return err
			}
			continue
		}

		out[path] = e.ID
	}
	return nil
}
