// File: internal/accounts/file_store_test.go
package accounts

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/avelaine/kzfleet/internal/schemas"
)

func newTestFileStore(t *testing.T) *FileStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "accounts.json")
	fs, err := NewFileStore(path, zaptest.NewLogger(t))
	require.NoError(t, err)
	return fs
}

func TestFileStoreAddListRemove(t *testing.T) {
	ctx := context.Background()
	fs := newTestFileStore(t)

	require.NoError(t, fs.Add(ctx, schemas.Account{Email: "b@example.com", Password: "pw2"}))
	require.NoError(t, fs.Add(ctx, schemas.Account{Email: "a@example.com", Password: "pw1"}))

	list, err := fs.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a@example.com", list[0].Email)
	assert.Equal(t, "b@example.com", list[1].Email)

	n, err := fs.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, fs.Remove(ctx, "A@EXAMPLE.COM"))
	n, err = fs.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestFileStoreDuplicate(t *testing.T) {
	ctx := context.Background()
	fs := newTestFileStore(t)

	require.NoError(t, fs.Add(ctx, schemas.Account{Email: "a@example.com", Password: "pw"}))
	err := fs.Add(ctx, schemas.Account{Email: "A@Example.com", Password: "other"})
	assert.True(t, errors.Is(err, ErrDuplicate))
}

func TestFileStoreRemoveMissing(t *testing.T) {
	fs := newTestFileStore(t)
	err := fs.Remove(context.Background(), "nobody@example.com")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestFileStoreRejectsInvalidAccount(t *testing.T) {
	fs := newTestFileStore(t)
	err := fs.Add(context.Background(), schemas.Account{Email: "no-at-sign", Password: "pw"})
	assert.Error(t, err)
}

func TestFileStorePersistsAcrossReload(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "accounts.json")
	logger := zaptest.NewLogger(t)

	fs, err := NewFileStore(path, logger)
	require.NoError(t, err)
	require.NoError(t, fs.Add(ctx, schemas.Account{Email: "a@example.com", Password: "pw"}))

	reloaded, err := NewFileStore(path, logger)
	require.NoError(t, err)
	list, err := reloaded.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "a@example.com", list[0].Email)
}

func TestFileStoreSkipsInvalidRosterEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accounts.json")
	raw := `[
		{"email": "good@example.com", "password": "pw"},
		{"email": "bad-entry", "password": ""}
	]`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o600))

	fs, err := NewFileStore(path, zaptest.NewLogger(t))
	require.NoError(t, err)

	list, err := fs.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "good@example.com", list[0].Email)
}

func TestFileStoreMissingFileStartsEmpty(t *testing.T) {
	fs := newTestFileStore(t)
	n, err := fs.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}
