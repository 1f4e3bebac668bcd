package main

import (
	"github.com/ngit-go/ngit/internal/env"
	"github.com/ngit-go/ngit/internal/pathutil"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// globalFlags holds the flags and values shared by every subcommand
type globalFlags struct {
	// C mirrors git's -C <path>: run as if ngit was started in the
	// given directory instead of the process' current working
	// directory.
	// https://git-scm.com/docs/git#Documentation/git.txt--Cltpathgt
	C pflag.Value

	env *env.Env
}

func newRootCmd(cwd string, e *env.Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "ngit",
		Short:         "a minimal, read-leaning git implementation",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	cfg := &globalFlags{
		env: e,
	}
	cfg.C = pathutil.NewDirPathFlagWithDefault(cwd)
	cmd.PersistentFlags().VarP(cfg.C, "C", "C", "Run as if ngit was started in the provided path instead of the current working directory.")

	// porcelain
	cmd.AddCommand(newInitCmd(cfg))
	cmd.AddCommand(newLogCmd(cfg))
	cmd.AddCommand(newStatusCmd(cfg))

	// plumbing
	cmd.AddCommand(newCatFileCmd(cfg))
	cmd.AddCommand(newHashObjectCmd(cfg))
	cmd.AddCommand(newCheckIgnoreCmd(cfg))
	cmd.AddCommand(newLsFilesCmd(cfg))
	cmd.AddCommand(newLsTreeCmd(cfg))

	return cmd
}
