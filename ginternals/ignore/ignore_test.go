package ignore_test

import (
	"testing"

	"github.com/ngit-go/ngit/ginternals/ignore"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func TestMatcher(t *testing.T) {
	t.Parallel()

	t.Run(".git is always ignored", func(t *testing.T) {
		t.Parallel()

		fs := afero.NewMemMapFs()
		m := ignore.New("/repo", false)
		require.NoError(t, m.Init(fs))

		require.True(t, m.IsIgnored(".git", true))
		require.True(t, m.IsIgnored(".git/config", false))
	})

	t.Run("simple pattern matches at any depth", func(t *testing.T) {
		t.Parallel()

		fs := afero.NewMemMapFs()
		require.NoError(t, afero.WriteFile(fs, "/repo/.gitignore", []byte("*.log\n"), 0o644))
		require.NoError(t, afero.WriteFile(fs, "/repo/app.log", []byte(""), 0o644))
		require.NoError(t, afero.WriteFile(fs, "/repo/src/app.log", []byte(""), 0o644))

		m := ignore.New("/repo", false)
		require.NoError(t, m.Init(fs))

		require.True(t, m.IsIgnored("app.log", false))
		require.True(t, m.IsIgnored("src/app.log", false))
		require.False(t, m.IsIgnored("app.txt", false))
	})

	t.Run("anchored pattern only matches from its directory", func(t *testing.T) {
		t.Parallel()

		fs := afero.NewMemMapFs()
		require.NoError(t, afero.WriteFile(fs, "/repo/.gitignore", []byte("/build\n"), 0o644))
		require.NoError(t, afero.WriteFile(fs, "/repo/build", []byte(""), 0o644))
		require.NoError(t, afero.WriteFile(fs, "/repo/src/build", []byte(""), 0o644))

		m := ignore.New("/repo", false)
		require.NoError(t, m.Init(fs))

		require.True(t, m.IsIgnored("build", false))
		require.False(t, m.IsIgnored("src/build", false))
	})

	t.Run("trailing slash restricts a pattern to directories", func(t *testing.T) {
		t.Parallel()

		fs := afero.NewMemMapFs()
		require.NoError(t, afero.WriteFile(fs, "/repo/.gitignore", []byte("build/\n"), 0o644))
		require.NoError(t, afero.WriteFile(fs, "/repo/build", []byte(""), 0o644))
		require.NoError(t, afero.WriteFile(fs, "/repo/src/build/output.o", []byte(""), 0o644))

		m := ignore.New("/repo", false)
		require.NoError(t, m.Init(fs))

		// a plain file named "build" is not a directory, so it's spared
		require.False(t, m.IsIgnored("build", false))
		// but a directory named "build" anywhere, and anything under it,
		// is ignored
		require.True(t, m.IsIgnored("src/build", true))
		require.True(t, m.IsIgnored("src/build/output.o", false))
	})

	t.Run("negation un-ignores a previously matched path", func(t *testing.T) {
		t.Parallel()

		fs := afero.NewMemMapFs()
		require.NoError(t, afero.WriteFile(fs, "/repo/.gitignore", []byte("*.log\n!keep.log\n"), 0o644))

		m := ignore.New("/repo", false)
		require.NoError(t, m.Init(fs))

		require.True(t, m.IsIgnored("app.log", false))
		require.False(t, m.IsIgnored("keep.log", false))
	})

	t.Run("nested gitignore is scoped to its own directory", func(t *testing.T) {
		t.Parallel()

		fs := afero.NewMemMapFs()
		require.NoError(t, afero.WriteFile(fs, "/repo/.gitignore", []byte("*.log\n"), 0o644))
		require.NoError(t, afero.WriteFile(fs, "/repo/src/.gitignore", []byte("*.tmp\n"), 0o644))
		require.NoError(t, afero.WriteFile(fs, "/repo/app.tmp", []byte(""), 0o644))
		require.NoError(t, afero.WriteFile(fs, "/repo/src/app.tmp", []byte(""), 0o644))

		m := ignore.New("/repo", false)
		require.NoError(t, m.Init(fs))

		require.False(t, m.IsIgnored("app.tmp", false))
		require.True(t, m.IsIgnored("src/app.tmp", false))
	})

	t.Run("ignorecase folds pattern matching", func(t *testing.T) {
		t.Parallel()

		fs := afero.NewMemMapFs()
		require.NoError(t, afero.WriteFile(fs, "/repo/.gitignore", []byte("*.LOG\n"), 0o644))

		m := ignore.New("/repo", true)
		require.NoError(t, m.Init(fs))

		require.True(t, m.IsIgnored("app.log", false))
	})

	t.Run("comments and blank lines are skipped", func(t *testing.T) {
		t.Parallel()

		fs := afero.NewMemMapFs()
		require.NoError(t, afero.WriteFile(fs, "/repo/.gitignore", []byte("# comment\n\n*.log\n"), 0o644))

		m := ignore.New("/repo", false)
		require.NoError(t, m.Init(fs))

		require.True(t, m.IsIgnored("app.log", false))
	})

	t.Run("already ignored directories are not descended into", func(t *testing.T) {
		t.Parallel()

		fs := afero.NewMemMapFs()
		require.NoError(t, afero.WriteFile(fs, "/repo/.gitignore", []byte("/vendor\n"), 0o644))
		require.NoError(t, afero.WriteFile(fs, "/repo/vendor/.gitignore", []byte("!keep.txt\n"), 0o644))

		m := ignore.New("/repo", false)
		require.NoError(t, m.Init(fs))

		// the nested .gitignore was never read, so nothing un-ignores
		// files under vendor
		require.True(t, m.IsIgnored("vendor/keep.txt", false))
	})
}
