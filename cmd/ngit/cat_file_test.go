package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	git "github.com/ngit-go/ngit"
	"github.com/ngit-go/ngit/ginternals"
	"github.com/ngit-go/ngit/ginternals/config"
	"github.com/ngit-go/ngit/ginternals/object"
	"github.com/ngit-go/ngit/internal/env"
	"github.com/ngit-go/ngit/internal/testhelper"
	"github.com/stretchr/testify/require"
)

func TestCatFileParams(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		desc string
		args []string
	}{
		{
			desc: "-t cannot be used with -p",
			args: []string{"cat-file", "-p", "-t", "642480605b8b0fd464ab5762e044269cf29a60a3"},
		},
		{
			desc: "-s cannot be used with -p",
			args: []string{"cat-file", "-p", "-s", "642480605b8b0fd464ab5762e044269cf29a60a3"},
		},
		{
			desc: "-s cannot be used with -t",
			args: []string{"cat-file", "-t", "-s", "642480605b8b0fd464ab5762e044269cf29a60a3"},
		},
		{
			desc: "no type allowed with -t",
			args: []string{"cat-file", "-t", "blob", "642480605b8b0fd464ab5762e044269cf29a60a3"},
		},
		{
			desc: "no type allowed with -s",
			args: []string{"cat-file", "-s", "blob", "642480605b8b0fd464ab5762e044269cf29a60a3"},
		},
		{
			desc: "no type allowed with -p",
			args: []string{"cat-file", "-p", "blob", "642480605b8b0fd464ab5762e044269cf29a60a3"},
		},
		{
			desc: "type required when no -p -s -t",
			args: []string{"cat-file", "642480605b8b0fd464ab5762e044269cf29a60a3"},
		},
		{
			desc: "sha required when no -p -s -t",
			args: []string{"cat-file", "blob"},
		},
	}
	for i, tc := range testCases {
		tc := tc
		i := i
		t.Run(fmt.Sprintf("%d/%s", i, tc.desc), func(t *testing.T) {
			t.Parallel()

			cwd, err := os.Getwd()
			require.NoError(t, err)

			cmd := newRootCmd(cwd, env.NewFromOs())
			cmd.SetArgs(tc.args)

			require.NotPanics(t, func() {
				err = cmd.Execute()
			})
			require.Error(t, err)
		})
	}
}

// catFileFixture builds a tiny, self-contained repository with one
// commit (one blob tracked through one tree) and an annotated tag
// pointing at that commit, so cat-file's type/resolution logic can be
// exercised without relying on an external fixture.
type catFileFixture struct {
	repoPath string
	author   object.Signature
	blob     []byte
	blobOid  ginternals.Oid
	treeOid  ginternals.Oid
	commit   *object.Commit
	tagOid   ginternals.Oid
}

func newCatFileFixture(t *testing.T) catFileFixture {
	t.Helper()

	repoPath, cleanup := testhelper.TempDir(t)
	t.Cleanup(cleanup)

	r, err := git.InitRepository(repoPath, "main")
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, r.Close())
	})

	blob := []byte("hello world\n")
	blobOid, err := r.WriteObject(object.TypeBlob, blob, "hello.txt", false)
	require.NoError(t, err)

	tree := object.NewTree([]object.TreeEntry{
		{Path: "hello.txt", ID: blobOid, Mode: object.ModeFile},
	})
	treeOid, err := r.WriteObject(object.TypeTree, tree.ToObject().Bytes(), "", false)
	require.NoError(t, err)

	author := object.NewSignature("Ada Lovelace", "ada@example.com")
	commit := object.NewCommit(treeOid, author, &object.CommitOptions{
		Message: "first commit\n",
	})
	commitOid, err := r.WriteObject(object.TypeCommit, commit.ToObject().Bytes(), "", false)
	require.NoError(t, err)

	tag := object.NewTag(&object.TagParams{
		Target:  commit.ToObject(),
		Name:    "annotated",
		Tagger:  author,
		Message: "annotated tag\n",
	})
	tagOid, err := r.WriteObject(object.TypeTag, tag.ToObject().Bytes(), "", false)
	require.NoError(t, err)

	gitDir := filepath.Join(repoPath, config.DefaultDotGitDirName)
	for _, ref := range []string{
		filepath.Join("refs", "heads", "main"),
		filepath.Join("refs", "heads", "ml", "packfile", "tests"),
	} {
		path := filepath.Join(gitDir, ref)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(commitOid.String()+"\n"), 0o644))
	}
	tagPath := filepath.Join(gitDir, "refs", "tags", "annotated")
	require.NoError(t, os.MkdirAll(filepath.Dir(tagPath), 0o755))
	require.NoError(t, os.WriteFile(tagPath, []byte(tagOid.String()+"\n"), 0o644))

	return catFileFixture{
		repoPath: repoPath,
		author:   author,
		blob:     blob,
		blobOid:  blobOid,
		treeOid:  treeOid,
		commit:   commit,
		tagOid:   tagOid,
	}
}

func runCatFile(t *testing.T, repoPath string, args ...string) string {
	t.Helper()

	cwd, err := os.Getwd()
	require.NoError(t, err)

	outBuf := bytes.NewBufferString("")
	cmd := newRootCmd(cwd, env.NewFromOs())
	cmd.SetOut(outBuf)
	cmd.SetArgs(append([]string{"-C", repoPath}, args...))

	require.NotPanics(t, func() {
		err = cmd.Execute()
	})
	require.NoError(t, err)

	out, err := io.ReadAll(outBuf)
	require.NoError(t, err)
	return string(out)
}

func TestCatFile(t *testing.T) {
	t.Parallel()

	fixture := newCatFileFixture(t)
	commitOid := fixture.commit.ID()

	expectedCommitPretty := fmt.Sprintf(
		"tree %s\nauthor %s\ncommitter %s\n\nfirst commit\n",
		fixture.treeOid.String(), fixture.author.String(), fixture.author.String(),
	)
	expectedTagPretty := fmt.Sprintf(
		"object %s\ntype commit\ntag annotated\ntagger %s\n\nannotated tag\n",
		commitOid.String(), fixture.author.String(),
	)

	testCases := []struct {
		desc           string
		args           []string
		expectedOutput string
	}{
		{
			desc:           "-s should print the size (blob)",
			args:           []string{"cat-file", "-s", fixture.blobOid.String()},
			expectedOutput: fmt.Sprintf("%d\n", len(fixture.blob)),
		},
		{
			desc:           "-t should print the type (blob)",
			args:           []string{"cat-file", "-t", fixture.blobOid.String()},
			expectedOutput: "blob\n",
		},
		{
			desc:           "-p should pretty-print (blob)",
			args:           []string{"cat-file", "-p", fixture.blobOid.String()},
			expectedOutput: string(fixture.blob),
		},
		{
			desc:           "default should print raw object (blob)",
			args:           []string{"cat-file", "blob", fixture.blobOid.String()},
			expectedOutput: string(fixture.blob),
		},
		{
			desc:           "-t should print the type (tree)",
			args:           []string{"cat-file", "-t", fixture.treeOid.String()},
			expectedOutput: "tree\n",
		},
		{
			desc:           "-p should pretty-print (tree)",
			args:           []string{"cat-file", "-p", fixture.treeOid.String()},
			expectedOutput: fmt.Sprintf("100644 blob %s\thello.txt\n", fixture.blobOid.String()),
		},
		{
			desc:           "-t should print the type (commit)",
			args:           []string{"cat-file", "-t", commitOid.String()},
			expectedOutput: "commit\n",
		},
		{
			desc:           "-p should pretty-print (commit)",
			args:           []string{"cat-file", "-p", commitOid.String()},
			expectedOutput: expectedCommitPretty,
		},
		{
			desc:           "-p should pretty-print (annotated tag)",
			args:           []string{"cat-file", "-p", "annotated"},
			expectedOutput: expectedTagPretty,
		},
		{
			desc:           "-p should pretty-print (HEAD)",
			args:           []string{"cat-file", "-p", "HEAD"},
			expectedOutput: expectedCommitPretty,
		},
		{
			desc:           "-p should pretty-print (refs/heads/ml/packfile/tests)",
			args:           []string{"cat-file", "-p", "refs/heads/ml/packfile/tests"},
			expectedOutput: expectedCommitPretty,
		},
		{
			desc:           "-p should pretty-print (heads/ml/packfile/tests)",
			args:           []string{"cat-file", "-p", "heads/ml/packfile/tests"},
			expectedOutput: expectedCommitPretty,
		},
		{
			desc:           "-p should pretty-print (ml/packfile/tests)",
			args:           []string{"cat-file", "-p", "ml/packfile/tests"},
			expectedOutput: expectedCommitPretty,
		},
	}
	for i, tc := range testCases {
		tc := tc
		i := i
		t.Run(fmt.Sprintf("%d/%s", i, tc.desc), func(t *testing.T) {
			t.Parallel()

			out := runCatFile(t, fixture.repoPath, tc.args...)
			require.Equal(t, tc.expectedOutput, out)
		})
	}
}
