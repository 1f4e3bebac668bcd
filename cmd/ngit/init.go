package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	git "github.com/ngit-go/ngit"
	"github.com/ngit-go/ngit/ginternals"
	"github.com/ngit-go/ngit/ginternals/config"
	"github.com/ngit-go/ngit/internal/errutil"
	"github.com/spf13/cobra"
)

// initCmdFlags represents the flags accepted by the init command
//
// Reference: https://git-scm.com/docs/git-init#_options
type initCmdFlags struct {
	initialBranch string
	quiet         bool
}

func newInitCmd(cfg *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "create an empty git repository",
		Long:  "This command creates an empty Git repository - basically a .git directory with subdirectories for objects, refs/heads, refs/tags, and template files. An initial branch without any commits will be created (see the --initial-branch option below for its name).\n\nRunning init in an existing repository is safe. It keeps an existing config file and HEAD, resets the description file to its default content, and adds what is missing.",
		Args:  cobra.MaximumNArgs(1),
	}

	flags := initCmdFlags{}
	cmd.Flags().StringVarP(&flags.initialBranch, "initial-branch", "b", "", "Use the specified name for the initial branch in the newly created repository. If not specified, fall back to the default name (master).")
	cmd.Flags().BoolVarP(&flags.quiet, "quiet", "q", false, "Only print error and warning messages; all other output will be suppressed.")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		directory := cfg.C.String()
		if len(args) > 0 {
			directory = args[0]
		}
		return initCmd(cmd.OutOrStdout(), cfg, flags, directory)
	}

	return cmd
}

func initCmd(out io.Writer, cfg *globalFlags, flags initCmdFlags, directory string) (err error) {
	branchName := flags.initialBranch
	if branchName == "" {
		branchName = ginternals.Master
	}

	// Let's check if the repo already exists by checking if a HEAD
	// file is already there
	gitDir := filepath.Join(directory, config.DefaultDotGitDirName)
	newRepo := true
	if _, statErr := os.Stat(filepath.Join(gitDir, ginternals.Head)); statErr == nil {
		newRepo = false
	}

	r, err := git.InitRepository(directory, branchName)
	if err != nil {
		return fmt.Errorf("could not init repository: %w", err)
	}
	defer errutil.Close(r, &err)

	switch newRepo {
	case true:
		fprintln(flags.quiet, out, "Initialized empty Git repository in", ginternals.DotGitPath(r.Config()))
	case false:
		fprintln(flags.quiet, out, "Reinitialized existing Git repository in", ginternals.DotGitPath(r.Config()))
	}

	return nil
}
