package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ngit-go/ngit/ginternals/filter"
	"github.com/ngit-go/ngit/ginternals/object"
	"github.com/ngit-go/ngit/internal/errutil"
	"github.com/spf13/cobra"
	"golang.org/x/xerrors"
)

func newHashObjectCmd(cfg *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hash-object FILE",
		Short: "Compute the object ID and optionally create a blob from a file",
		Args:  cobra.ExactArgs(1),
	}

	typ := cmd.Flags().StringP("type", "t", "blob", "Specify the type")
	write := cmd.Flags().BoolP("write", "w", false, "Actually write the object into the object database.")
	noFilters := cmd.Flags().Bool("no-filters", false, "Disable the autocrlf line-ending filter.")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return hashObjectCmd(cmd.OutOrStdout(), cfg, args[0], *typ, *write, !*noFilters)
	}

	return cmd
}

func hashObjectCmd(out io.Writer, cfg *globalFlags, filePath, typ string, write, applyFilters bool) (err error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}

	objType, err := object.NewTypeFromString(typ)
	if err != nil {
		return xerrors.Errorf("unsupported object type %s: %w", typ, err)
	}

	// core.autocrlf only comes from a repository's config; outside of a
	// repository hash-object still works, it just has nothing to filter
	// against, so -w is the only thing that strictly requires one.
	autocrlf := "false"
	r, repoErr := loadRepository(cfg)
	switch {
	case repoErr == nil:
		defer errutil.Close(r, &err)
		autocrlf = r.Config().FromFile().AutoCRLF()
	case write:
		return repoErr
	}

	filtered := filter.Apply(applyFilters, autocrlf, filepath.Base(filePath), content)

	o := object.New(objType, filtered)
	switch objType {
	case object.TypeCommit:
		if _, err = o.AsCommit(); err != nil {
			return xerrors.Errorf("invalid commit file: %w", err)
		}
	case object.TypeTree:
		if _, err = o.AsTree(); err != nil {
			return xerrors.Errorf("invalid tree file: %w", err)
		}
	case object.TypeTag:
		if _, err = o.AsTag(); err != nil {
			return xerrors.Errorf("invalid tag file: %w", err)
		}
	case object.TypeBlob:
		// a blob has no inner structure to validate
	}

	if write {
		if _, err = r.WriteObject(objType, content, filepath.Base(filePath), applyFilters); err != nil {
			return xerrors.Errorf("could not write object: %w", err)
		}
	}

	fmt.Fprintln(out, o.ID().String())
	return nil
}
