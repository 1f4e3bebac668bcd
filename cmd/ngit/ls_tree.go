package main

import (
	"fmt"
	"io"

	git "github.com/ngit-go/ngit"
	"github.com/ngit-go/ngit/ginternals/object"
	"github.com/ngit-go/ngit/internal/errutil"
	"github.com/spf13/cobra"
	"golang.org/x/xerrors"
)

func newLsTreeCmd(cfg *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ls-tree TREE-ISH",
		Short: "list the contents of a tree object",
		Args:  cobra.ExactArgs(1),
	}

	recurse := cmd.Flags().BoolP("r", "r", false, "Recurse into sub-trees.")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return lsTreeCmd(cmd.OutOrStdout(), cfg, args[0], *recurse)
	}

	return cmd
}

func lsTreeCmd(out io.Writer, cfg *globalFlags, treeish string, recurse bool) (err error) {
	r, err := loadRepository(cfg)
	if err != nil {
		return err
	}
	defer errutil.Close(r, &err)

	oid, err := resolveObjectName(r, treeish)
	if err != nil {
		return err
	}

	o, err := r.GetObject(oid)
	if err != nil {
		return err
	}

	var tree *object.Tree
	switch o.Type() {
	case object.TypeCommit:
		c, err := o.AsCommit()
		if err != nil {
			return xerrors.Errorf("could not get commit %s: %w", treeish, err)
		}
		tree, err = r.GetTree(c.TreeID())
		if err != nil {
			return xerrors.Errorf("could not get tree of commit %s: %w", treeish, err)
		}
	case object.TypeTree:
		tree, err = o.AsTree()
		if err != nil {
			return xerrors.Errorf("could not parse tree %s: %w", treeish, err)
		}
	default:
		return xerrors.Errorf("%s is not a tree-ish", treeish)
	}

	return printTree(out, r, tree, "", recurse)
}

func printTree(out io.Writer, r *git.Repository, tree *object.Tree, prefix string, recurse bool) error {
	for _, e := range tree.Entries() {
		path := e.Path
		if prefix != "" {
			path = prefix + "/" + path
		}

		if recurse && e.Mode == object.ModeDirectory {
			sub, err := r.GetTree(e.ID)
			if err != nil {
				return xerrors.Errorf("could not get subtree %s: %w", path, err)
			}
			if err := printTree(out, r, sub, path, recurse); err != nil {
				return err
			}
			continue
		}

		fmt.Fprintf(out, "%06o %s %s\t%s\n", e.Mode, e.Mode.ObjectType().String(), e.ID.String(), path)
	}
	return nil
}
