package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ngit-go/ngit/internal/errutil"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/xerrors"
)

// errNotIgnored signals that none of the requested paths are ignored,
// so main's top-level error handler can exit(1) without printing
// anything of its own: checkIgnoreCmd already wrote "Not ignored" for
// every path to out.
var errNotIgnored = xerrors.New("not ignored")

func newCheckIgnoreCmd(cfg *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check-ignore PATH...",
		Short: "check whether paths are excluded by .gitignore",
		Args:  cobra.MinimumNArgs(1),
	}

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return checkIgnoreCmd(cmd.OutOrStdout(), cfg, args)
	}

	return cmd
}

func checkIgnoreCmd(out io.Writer, cfg *globalFlags, paths []string) (err error) {
	r, err := loadRepository(cfg)
	if err != nil {
		return err
	}
	defer errutil.Close(r, &err)

	m, err := r.GetIgnoreMatcher()
	if err != nil {
		return xerrors.Errorf("could not build ignore matcher: %w", err)
	}

	fs := r.Config().FS
	if fs == nil {
		fs = afero.NewOsFs()
	}

	anyIgnored := false
	for _, p := range paths {
		slashed := filepath.ToSlash(p)
		isDir := strings.HasSuffix(slashed, "/")
		if !isDir {
			if info, statErr := fs.Stat(p); statErr == nil {
				isDir = info.IsDir()
			}
		}
		slashed = strings.TrimSuffix(slashed, "/")

		if m.IsIgnored(slashed, isDir) {
			anyIgnored = true
			fmt.Fprintln(out, "Ignored")
			continue
		}
		fmt.Fprintln(out, "Not ignored")
	}

	if !anyIgnored {
		return errNotIgnored
	}
	return nil
}
