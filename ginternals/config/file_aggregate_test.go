package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ngit-go/ngit/internal/env"
	"github.com/ngit-go/ngit/internal/testhelper"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFileAggregate(t *testing.T) {
	t.Parallel()

	t.Run("should work with no files available", func(t *testing.T) {
		t.Parallel()

		dir, cleanup := testhelper.TempDir(t)
		t.Cleanup(cleanup)

		cfg := &Config{
			LocalConfig: filepath.Join(dir, "config"),
			FS:          afero.NewOsFs(),
		}
		f, err := NewFileAggregate(env.NewFromKVList(nil), cfg)
		require.NoError(t, err)
		require.NotNil(t, f)
	})

	t.Run("should reject a forbidden key", func(t *testing.T) {
		t.Parallel()

		dir, cleanup := testhelper.TempDir(t)
		t.Cleanup(cleanup)

		localConfigPath := filepath.Join(dir, "config")
		require.NoError(t, os.WriteFile(localConfigPath, []byte("[__proto__]\nx = 1\n"), 0o644))

		cfg := &Config{
			LocalConfig: localConfigPath,
			FS:          afero.NewOsFs(),
		}
		_, err := NewFileAggregate(env.NewFromKVList(nil), cfg)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrForbiddenKey)
	})
}

func TestGetters(t *testing.T) {
	t.Parallel()

	// Setup a few config files, a global one and a local one
	dirPath, cleanup := testhelper.TempDir(t)
	t.Cleanup(cleanup)

	localConfigPath := filepath.Join(dirPath, "local_config")
	globalConfigPath := filepath.Join(dirPath, ".gitconfig")

	err := os.WriteFile(globalConfigPath, []byte(`
	[core]
		worktree = root_dir
	`), 0o644)
	require.NoError(t, err)

	err = os.WriteFile(localConfigPath, []byte(`
	[core]
		worktree = local_dir
		repositoryformatversion = 0
	[init]
		defaultBranch = main
	`), 0o644)
	require.NoError(t, err)

	e := env.NewFromKVList([]string{"HOME=" + dirPath})

	// Agg contains the config of both files. The local data should
	// override the global ones
	agg, err := NewFileAggregate(e, &Config{
		LocalConfig: localConfigPath,
		FS:          afero.NewOsFs(),
	})
	require.NoError(t, err)

	// global only contains the global config
	global, err := NewFileAggregate(env.NewFromKVList(nil), &Config{
		LocalConfig: filepath.Join(dirPath, ".gitconfig"),
		FS:          afero.NewOsFs(),
	})
	require.NoError(t, err)

	t.Run("WorkTree", func(t *testing.T) {
		t.Parallel()
		wt, ok := agg.WorkTree()
		assert.True(t, ok, "expected to find core.worktree")
		assert.Equal(t, "local_dir", wt)
	})

	t.Run("RepoFormatVersion", func(t *testing.T) {
		t.Parallel()

		t.Run("Default", func(t *testing.T) {
			t.Parallel()
			v, ok := global.RepoFormatVersion()
			assert.False(t, ok, "expected to NOT find core.repositoryformatversion")
			assert.Equal(t, 0, v)
		})

		t.Run("With value", func(t *testing.T) {
			t.Parallel()
			v, ok := agg.RepoFormatVersion()
			assert.True(t, ok, "expected to find core.repositoryformatversion")
			assert.Equal(t, 0, v)
		})
	})

	t.Run("defaultBranch", func(t *testing.T) {
		t.Parallel()

		t.Run("Default", func(t *testing.T) {
			t.Parallel()
			v, ok := global.DefaultBranch()
			assert.False(t, ok, "expected to NOT find init.defaultBranch")
			assert.Equal(t, "", v)
		})

		t.Run("With value", func(t *testing.T) {
			t.Parallel()
			v, ok := agg.DefaultBranch()
			assert.True(t, ok, "expected to find init.defaultBranch")
			assert.Equal(t, "main", v)
		})
	})
}

func TestUpdate(t *testing.T) {
	t.Parallel()

	dirPath, cleanup := testhelper.TempDir(t)
	t.Cleanup(cleanup)

	localConfigPath := filepath.Join(dirPath, "local_config")
	err := os.WriteFile(localConfigPath, []byte(`
	[core]
		worktree = local_dir
		repositoryformatversion = 0
		bare = false
	[init]
		defaultBranch = main
	`), 0o644)
	require.NoError(t, err)

	agg, err := NewFileAggregate(env.NewFromKVList(nil), &Config{
		LocalConfig: localConfigPath,
		FS:          afero.NewOsFs(),
	})
	require.NoError(t, err)

	t.Run("IsBare", func(t *testing.T) {
		t.Parallel()

		// We make sure the default data are as we expect
		v, found := agg.IsBare()
		require.True(t, found, "IsBare should be found")
		require.False(t, v, "IsBare should be false")

		// Update should change the value of the config
		agg.UpdateIsBare(true)
		v, found = agg.IsBare()
		assert.True(t, found, "IsBare should be found")
		assert.True(t, v, "IsBare should be true")
	})
}

func TestGetPaths(t *testing.T) {
	t.Parallel()

	t.Run("only the local config when HOME is unset", func(t *testing.T) {
		t.Parallel()

		cfg := &Config{LocalConfig: "/local/path/config"}
		paths := getPaths(env.NewFromKVList(nil), cfg)
		assert.Equal(t, []string{"/local/path/config"}, paths)
	})

	t.Run("HOME's gitconfig is prepended when set", func(t *testing.T) {
		t.Parallel()

		cfg := &Config{LocalConfig: "/local/path/config"}
		paths := getPaths(env.NewFromKVList([]string{"HOME=/home"}), cfg)
		assert.Equal(t, []string{
			"/home/.gitconfig",
			"/local/path/config",
		}, paths)
	})
}
