package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	git "github.com/ngit-go/ngit"
	"github.com/ngit-go/ngit/ginternals"
	"github.com/ngit-go/ngit/ginternals/object"
	"github.com/ngit-go/ngit/internal/errutil"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/xerrors"
)

func newStatusCmd(cfg *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "show the working tree status",
	}

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return statusCmd(cmd.OutOrStdout(), cfg)
	}

	return cmd
}

func statusCmd(out io.Writer, cfg *globalFlags) (err error) {
	r, err := loadRepository(cfg)
	if err != nil {
		return err
	}
	defer errutil.Close(r, &err)

	idx, err := r.GetIndex()
	if err != nil {
		return xerrors.Errorf("could not read index: %w", err)
	}

	tree := object.NewTree(nil)
	head, err := r.GetHead()
	switch {
	case err == nil:
		tree, err = r.GetTree(head.Commit.TreeID())
		if err != nil {
			return xerrors.Errorf("could not get HEAD tree: %w", err)
		}
	case errors.Is(err, ginternals.ErrRefNotFound):
		// the current branch has no commit yet
	default:
		return xerrors.Errorf("could not resolve HEAD: %w", err)
	}

	staged, err := r.WorkingDirStatus(idx, tree)
	if err != nil {
		return xerrors.Errorf("could not compute status: %w", err)
	}
	for _, e := range staged {
		verb := "modified"
		if e.StagingStatus == git.StagingAdded {
			verb = "new file"
		}
		fmt.Fprintf(out, "staged:     %s: %s\n", verb, e.Name)
	}

	return printWorkingTreeStatus(out, r, idx)
}

// printWorkingTreeStatus walks the working tree to find paths that
// WorkingDirStatus cannot see: it only ever compares the index against
// a tree, so untracked and not-yet-staged modifications are detected
// here instead, by hashing each file and comparing it against the
// index entry for the same path.
func printWorkingTreeStatus(out io.Writer, r *git.Repository, idx *ginternals.Index) error {
	matcher, err := r.GetIgnoreMatcher()
	if err != nil {
		return xerrors.Errorf("could not build ignore matcher: %w", err)
	}

	indexed := make(map[string]ginternals.Oid, len(idx.Entries))
	for _, e := range idx.Entries {
		indexed[e.Path] = e.OID
	}

	fs := r.Config().FS
	if fs == nil {
		fs = afero.NewOsFs()
	}
	worktree := r.Config().WorkTreePath

	return afero.Walk(fs, worktree, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		rel, relErr := filepath.Rel(worktree, path)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}

		if matcher.IsIgnored(rel, info.IsDir()) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if info.IsDir() {
			return nil
		}

		oid, tracked := indexed[rel]
		if !tracked {
			fmt.Fprintf(out, "untracked:  %s\n", rel)
			return nil
		}

		content, readErr := afero.ReadFile(fs, path)
		if readErr != nil {
			return readErr
		}
		if r.HashObject(object.TypeBlob, content, rel, true) != oid {
			fmt.Fprintf(out, "modified:   %s\n", rel)
		}
		return nil
	})
}
