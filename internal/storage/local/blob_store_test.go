package local_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/cortex-connector/internal/storage/local"
)

func TestNew(t *testing.T) {
	t.Run("CreatesMissingDir", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "reports")
		store, err := local.New(dir)
		require.NoError(t, err)
		require.NotNil(t, store)
		info, err := os.Stat(dir)
		require.NoError(t, err)
		require.True(t, info.IsDir())
		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		require.Empty(t, entries)
	})
	t.Run("MissingDir", func(t *testing.T) {
		_, err := local.New("")
		require.Error(t, err)
	})
	t.Run("PathIsFile", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "file")
		require.NoError(t, os.WriteFile(file, nil, 0o600))
		_, err := local.New(file)
		require.Error(t, err)
	})
}

func TestPutObject(t *testing.T) {
	dir := t.TempDir()
	store, err := local.New(dir)
	require.NoError(t, err)

	uri, err := store.PutObject(context.Background(), "primary/job-1.json", "application/json", bytes.NewBufferString(`{}`))
	require.NoError(t, err)
	full := filepath.Join(dir, "primary", "job-1.json")
	require.Equal(t, "file://"+full, uri)
	data, err := os.ReadFile(full)
	require.NoError(t, err)
	require.Equal(t, `{}`, string(data))

	_, err = store.PutObject(context.Background(), "../escape.json", "", bytes.NewBufferString(`{}`))
	require.Error(t, err)

	_, err = store.PutObject(context.Background(), "", "", bytes.NewBufferString(`{}`))
	require.Error(t, err)
}
