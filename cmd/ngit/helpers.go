package main

import (
	"errors"
	"fmt"
	"io"

	git "github.com/ngit-go/ngit"
	"github.com/ngit-go/ngit/ginternals"
	"golang.org/x/xerrors"
)

func loadRepository(cfg *globalFlags) (*git.Repository, error) {
	r, err := git.OpenRepository(cfg.C.String())
	if err != nil {
		return nil, fmt.Errorf("could not open repository: %w", err)
	}
	return r, nil
}

// resolveObjectName turns a user-provided object name into an Oid. name
// can be a full 40-character hash, HEAD, or any form of a branch/tag
// name understood by ginternals' full-name helpers.
func resolveObjectName(r *git.Repository, name string) (ginternals.Oid, error) {
	oid, err := ginternals.NewOidFromString(name)
	if err == nil {
		return oid, nil
	}

	toTry := []string{
		// catches stuff like HEAD or refs/heads/master
		name,
		// catches heads/master
		ginternals.RefFullName(name),
		// catches local branch names
		ginternals.LocalBranchFullName(name),
		// catches local tag names
		ginternals.LocalTagFullName(name),
	}

	for _, refName := range toTry {
		ref, err := r.GetReference(refName)
		if err == nil {
			return ref.Target(), nil
		}

		// if the ref doesn't exist we test the next one
		if !errors.Is(err, ginternals.ErrRefNotFound) {
			return ginternals.NullOid, xerrors.Errorf("could not check if ref %s exists: %w", refName, err)
		}
	}

	return ginternals.NullOid, xerrors.Errorf("not a valid object name %s", name)
}

func fprintln(quiet bool, out io.Writer, msg ...interface{}) {
	if !quiet {
		fmt.Fprintln(out, msg...)
	}
}

func fprintf(quiet bool, out io.Writer, format string, a ...interface{}) {
	if !quiet {
		fmt.Fprintf(out, format, a...)
	}
}
