package main

import (
	"fmt"
	"io"

	"github.com/ngit-go/ngit/internal/errutil"
	"github.com/spf13/cobra"
	"golang.org/x/xerrors"
)

func newLsFilesCmd(cfg *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ls-files",
		Short: "show information about files in the index",
	}

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return lsFilesCmd(cmd.OutOrStdout(), cfg)
	}

	return cmd
}

func lsFilesCmd(out io.Writer, cfg *globalFlags) (err error) {
	r, err := loadRepository(cfg)
	if err != nil {
		return err
	}
	defer errutil.Close(r, &err)

	idx, err := r.GetIndex()
	if err != nil {
		return xerrors.Errorf("could not read index: %w", err)
	}

	for _, e := range idx.Entries {
		fmt.Fprintln(out, e.Path)
	}

	return nil
}
