package filesystem_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blobgate"
	"blobgate/filesystem"
)

func newStore(t *testing.T) (*filesystem.Store, string) {
	t.Helper()
	dir := t.TempDir()
	root, err := os.OpenRoot(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = root.Close() })
	return filesystem.NewFileStorage(root), dir
}

func TestStore_Save(t *testing.T) {
	t.Run("writes under the derived key", func(t *testing.T) {
		store, dir := newStore(t)
		ctx := context.Background()

		res, err := store.Save(ctx, "report.pdf", []byte("hello"))
		require.NoError(t, err)
		assert.Equal(t, int64(5), res.Size)
		assert.WithinDuration(t, time.Now(), res.CreatedAt, 5*time.Second)

		data, err := os.ReadFile(filepath.Join(dir, blobgate.StorageKey("report.pdf")))
		require.NoError(t, err)
		assert.Equal(t, []byte("hello"), data)
	})

	t.Run("duplicate save is a conflict and preserves content", func(t *testing.T) {
		store, dir := newStore(t)
		ctx := context.Background()

		_, err := store.Save(ctx, "dup", []byte("first"))
		require.NoError(t, err)

		_, err = store.Save(ctx, "dup", []byte("second"))
		assert.ErrorIs(t, err, blobgate.ErrConflict)

		data, err := os.ReadFile(filepath.Join(dir, blobgate.StorageKey("dup")))
		require.NoError(t, err)
		assert.Equal(t, []byte("first"), data)
	})

	t.Run("leaves no temp files behind", func(t *testing.T) {
		store, dir := newStore(t)
		ctx := context.Background()

		_, err := store.Save(ctx, "a", []byte("hello"))
		require.NoError(t, err)
		_, err = store.Save(ctx, "a", []byte("again"))
		assert.ErrorIs(t, err, blobgate.ErrConflict)

		err = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
			require.NoError(t, err)
			assert.NotContains(t, d.Name(), ".tmp-")
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("ids with slashes and unicode round-trip", func(t *testing.T) {
		store, _ := newStore(t)
		ctx := context.Background()

		for _, id := range []string{"nested/path/object", "名前.txt", "space d.bin"} {
			_, err := store.Save(ctx, id, []byte(id))
			require.NoError(t, err, "id %q", id)

			obj, err := store.Get(ctx, id)
			require.NoError(t, err, "id %q", id)
			assert.Equal(t, []byte(id), obj.Data)
		}
	})

	t.Run("empty content is allowed", func(t *testing.T) {
		store, _ := newStore(t)
		ctx := context.Background()

		res, err := store.Save(ctx, "empty", nil)
		require.NoError(t, err)
		assert.Equal(t, int64(0), res.Size)

		obj, err := store.Get(ctx, "empty")
		require.NoError(t, err)
		assert.Empty(t, obj.Data)
		assert.Equal(t, int64(0), obj.Size)
	})

	t.Run("cancelled context fails fast", func(t *testing.T) {
		store, _ := newStore(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := store.Save(ctx, "a", []byte("x"))
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestStore_Get(t *testing.T) {
	t.Run("round-trips saved content", func(t *testing.T) {
		store, _ := newStore(t)
		ctx := context.Background()

		_, err := store.Save(ctx, "a", []byte("hello"))
		require.NoError(t, err)

		obj, err := store.Get(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, []byte("hello"), obj.Data)
		assert.Equal(t, int64(5), obj.Size)
		assert.WithinDuration(t, time.Now(), obj.CreatedAt, 5*time.Second)
	})

	t.Run("missing content is not found", func(t *testing.T) {
		store, _ := newStore(t)

		_, err := store.Get(context.Background(), "ghost")
		assert.ErrorIs(t, err, blobgate.ErrNotFound)
	})
}

func TestStore_Delete(t *testing.T) {
	t.Run("removes content", func(t *testing.T) {
		store, _ := newStore(t)
		ctx := context.Background()

		_, err := store.Save(ctx, "a", []byte("hello"))
		require.NoError(t, err)

		require.NoError(t, store.Delete(ctx, "a"))

		_, err = store.Get(ctx, "a")
		assert.ErrorIs(t, err, blobgate.ErrNotFound)
	})

	t.Run("deleting a missing key is not an error", func(t *testing.T) {
		store, _ := newStore(t)
		assert.NoError(t, store.Delete(context.Background(), "ghost"))
	})

	t.Run("save after delete succeeds", func(t *testing.T) {
		store, _ := newStore(t)
		ctx := context.Background()

		_, err := store.Save(ctx, "a", []byte("first"))
		require.NoError(t, err)
		require.NoError(t, store.Delete(ctx, "a"))

		_, err = store.Save(ctx, "a", []byte("second"))
		require.NoError(t, err)

		obj, err := store.Get(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, []byte("second"), obj.Data)
	})
}

func TestStore_PathLayout(t *testing.T) {
	store, dir := newStore(t)
	ctx := context.Background()

	_, err := store.Save(ctx, "layout-check", []byte("x"))
	require.NoError(t, err)

	key := blobgate.StorageKey("layout-check")
	parts := strings.Split(key, "/")
	require.Len(t, parts, 4)

	info, err := os.Stat(filepath.Join(dir, parts[0], parts[1], parts[2]))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
