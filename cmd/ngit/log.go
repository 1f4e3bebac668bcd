package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ngit-go/ngit/internal/errutil"
	"github.com/spf13/cobra"
	"golang.org/x/xerrors"
)

func newLogCmd(cfg *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log [REVISION]",
		Short: "show the first-parent commit history starting at REVISION (defaults to HEAD)",
		Args:  cobra.MaximumNArgs(1),
	}

	maxCount := cmd.Flags().IntP("max-count", "n", 0, "Limit the number of commits to output. 0 means no limit.")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		revision := "HEAD"
		if len(args) > 0 {
			revision = args[0]
		}
		return logCmd(cmd.OutOrStdout(), cfg, revision, *maxCount)
	}

	return cmd
}

func logCmd(out io.Writer, cfg *globalFlags, revision string, maxCount int) (err error) {
	r, err := loadRepository(cfg)
	if err != nil {
		return err
	}
	defer errutil.Close(r, &err)

	oid, err := resolveObjectName(r, revision)
	if err != nil {
		return err
	}

	for i := 0; maxCount <= 0 || i < maxCount; i++ {
		c, err := r.GetCommit(oid)
		if err != nil {
			return xerrors.Errorf("could not get commit %s: %w", oid.String(), err)
		}

		fmt.Fprintf(out, "commit %s\n", c.ID().String())
		fmt.Fprintf(out, "Author: %s <%s>\n", c.Author().Name, c.Author().Email)
		fmt.Fprintf(out, "Date:   %s\n\n", c.Author().Time.Format(time.RFC1123Z))
		for _, line := range strings.Split(strings.TrimRight(c.Message(), "\n"), "\n") {
			fmt.Fprintf(out, "    %s\n", line)
		}
		fmt.Fprintln(out)

		parents := c.ParentIDs()
		if len(parents) == 0 {
			break
		}
		// only the first-parent chain is walked, merge topology is out
		// of scope
		oid = parents[0]
	}
	return nil
}
