package memory

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBlobStorePutObject(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	uri, err := store.PutObject(context.Background(), "reports/job-1.json", "application/json", bytes.NewBufferString(`{"ok":true}`))
	require.NoError(t, err)
	require.Equal(t, "memory://reports/job-1.json", uri)

	data, contentType, ok := store.Object("reports/job-1.json")
	require.True(t, ok)
	require.Equal(t, "application/json", contentType)
	require.JSONEq(t, `{"ok":true}`, string(data))

	data[0] = 'X'
	again, _, _ := store.Object("reports/job-1.json")
	require.Equal(t, byte('{'), again[0])
	require.Equal(t, 1, store.Len())
}

func TestBlobStoreRejectsEmptyPath(t *testing.T) {
	t.Parallel()

	_, err := NewBlobStore().PutObject(context.Background(), " ", "", bytes.NewReader(nil))
	require.Error(t, err)
}

func TestBlobStoreMissingObject(t *testing.T) {
	t.Parallel()

	_, _, ok := NewBlobStore().Object("nope")
	require.False(t, ok)
}
