package storage

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"
	"os"
	"testing"
	"time"

	"bizphotos/internal/database"
	fsio "bizphotos/internal/io"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withBackends(t *testing.T, testFunc func(t *testing.T, backend Backend)) {
	t.Run("memory", func(t *testing.T) {
		testFunc(t, NewMemoryStore())
	})

	t.Run("localfs", func(t *testing.T) {
		testFunc(t, newTestLocalStore(t))
	})

	t.Run("gridfs", func(t *testing.T) {
		uri := os.Getenv("MONGO_TEST_URI")
		if uri == "" {
			t.Skip("MONGO_TEST_URI not set")
		}
		ctx := context.Background()
		store, err := ConnectGridFS(ctx, uri, "bizphotos_test_"+string(NewBlobID()), DefaultBucketName)
		require.NoError(t, err)
		defer func() {
			store.db.Drop(ctx)
			store.Close(ctx)
		}()
		testFunc(t, store)
	})
}

func newTestLocalStore(t *testing.T) *LocalStore {
	t.Helper()
	dir := t.TempDir()
	db, err := database.DatabaseSetup(context.Background(), dir)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	files, err := fsio.MakeFileSystemHandler(dir + "/data")
	require.NoError(t, err)

	return NewLocalStore(db, files)
}

func testMeta(filename string) Metadata {
	return Metadata{ContentType: "image/jpeg", BusinessID: "biz123", Caption: "storefront", Filename: filename}
}

func TestShouldStoreAndGetById(t *testing.T) {
	withBackends(t, func(t *testing.T, backend Backend) {
		ctx := context.Background()
		data := []byte("not really a jpeg")

		id, err := backend.Store(ctx, bytes.NewReader(data), testMeta("a1.jpg"))
		require.NoError(t, err)
		assert.Len(t, string(id), 24)

		blob, err := backend.GetByID(ctx, string(id))
		require.NoError(t, err)
		assert.Equal(t, id, blob.ID)
		assert.Equal(t, "image/jpeg", blob.ContentType)
		assert.Equal(t, "biz123", blob.BusinessID)
		assert.Equal(t, "storefront", blob.Caption)
		assert.Equal(t, "a1.jpg", blob.Filename)
		assert.Equal(t, int64(len(data)), blob.Length)
		assert.False(t, blob.UploadedAt.IsZero())
	})
}

func TestShouldStreamStoredBytesByFilename(t *testing.T) {
	withBackends(t, func(t *testing.T, backend Backend) {
		ctx := context.Background()
		data := bytes.Repeat([]byte("0123456789"), 100000)

		id, err := backend.Store(ctx, bytes.NewReader(data), testMeta("big.jpg"))
		require.NoError(t, err)

		blob, stream, err := backend.StreamByFilename(ctx, "big.jpg")
		require.NoError(t, err)
		defer stream.Close()
		assert.Equal(t, id, blob.ID)

		read, err := io.ReadAll(stream)
		require.NoError(t, err)
		assert.Equal(t, data, read)
	})
}

func TestShouldStoreEmptyBlob(t *testing.T) {
	withBackends(t, func(t *testing.T, backend Backend) {
		ctx := context.Background()
		id, err := backend.Store(ctx, bytes.NewReader(nil), testMeta("empty.png"))
		require.NoError(t, err)

		blob, err := backend.GetByID(ctx, string(id))
		require.NoError(t, err)
		assert.Equal(t, int64(0), blob.Length)
	})
}

func TestShouldRejectInvalidId(t *testing.T) {
	withBackends(t, func(t *testing.T, backend Backend) {
		for _, id := range []string{"", "foo", "6710f0c2a1b2c3d4e5f6071", "zz10f0c2a1b2c3d4e5f60718"} {
			_, err := backend.GetByID(context.Background(), id)
			assert.ErrorIs(t, err, ErrInvalidID, id)
		}
	})
}

func TestShouldReportUnknownIdAsNotFound(t *testing.T) {
	withBackends(t, func(t *testing.T, backend Backend) {
		_, err := backend.GetByID(context.Background(), string(NewBlobID()))
		assert.ErrorIs(t, err, ErrNotFound)

		_, stream, err := backend.StreamByFilename(context.Background(), "missing.jpg")
		assert.Nil(t, stream)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestShouldRequireOwner(t *testing.T) {
	withBackends(t, func(t *testing.T, backend Backend) {
		meta := testMeta("owner.jpg")
		meta.BusinessID = ""
		_, err := backend.Store(context.Background(), bytes.NewReader([]byte("x")), meta)
		assert.ErrorIs(t, err, ErrMissingOwner)

		_, _, err = backend.StreamByFilename(context.Background(), "owner.jpg")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestShouldListByOwnerInUploadOrder(t *testing.T) {
	withBackends(t, func(t *testing.T, backend Backend) {
		ctx := context.Background()
		first, err := backend.Store(ctx, bytes.NewReader([]byte("1")), testMeta("first.jpg"))
		require.NoError(t, err)
		time.Sleep(5 * time.Millisecond)
		second, err := backend.Store(ctx, bytes.NewReader([]byte("2")), testMeta("second.jpg"))
		require.NoError(t, err)

		other := testMeta("other.jpg")
		other.BusinessID = "someone-else"
		_, err = backend.Store(ctx, bytes.NewReader([]byte("3")), other)
		require.NoError(t, err)

		blobs, err := backend.ListByOwner(ctx, "biz123")
		require.NoError(t, err)
		require.Len(t, blobs, 2)
		assert.Equal(t, first, blobs[0].ID)
		assert.Equal(t, second, blobs[1].ID)

		none, err := backend.ListByOwner(ctx, "nobody")
		require.NoError(t, err)
		assert.Empty(t, none)
	})
}

func TestShouldFailStoreWhenContextIsDone(t *testing.T) {
	withBackends(t, func(t *testing.T, backend Backend) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := backend.Store(ctx, bytes.NewReader([]byte("late")), testMeta("late.jpg"))
		var storeError *StoreError
		assert.ErrorAs(t, err, &storeError)

		_, _, err = backend.StreamByFilename(context.Background(), "late.jpg")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

type failingReader struct{}

func (failingReader) Read(p []byte) (int, error) {
	return 0, errors.New("disk on fire")
}

func TestShouldNotExposePartialWrites(t *testing.T) {
	withBackends(t, func(t *testing.T, backend Backend) {
		ctx := context.Background()
		r := io.MultiReader(bytes.NewReader([]byte("half")), failingReader{})

		_, err := backend.Store(ctx, r, testMeta("partial.jpg"))
		var storeError *StoreError
		require.ErrorAs(t, err, &storeError)

		_, _, err = backend.StreamByFilename(ctx, "partial.jpg")
		assert.ErrorIs(t, err, ErrNotFound)

		blobs, err := backend.ListByOwner(ctx, "biz123")
		require.NoError(t, err)
		assert.Empty(t, blobs)
	})
}

type brokenIndex struct {
	database.Database
}

func (brokenIndex) AddBlob(tx *sql.Tx, data database.DBBlobData) error {
	return errors.New("index unavailable")
}

func TestLocalStoreRemovesFileWhenIndexFails(t *testing.T) {
	store := newTestLocalStore(t)
	store.DB = brokenIndex{Database: store.DB}

	_, err := store.Store(context.Background(), bytes.NewReader([]byte("bytes")), testMeta("orphan.jpg"))
	var storeError *StoreError
	require.ErrorAs(t, err, &storeError)

	entries, err := os.ReadDir(store.IO.GetStoragePath())
	require.NoError(t, err)
	assert.Empty(t, entries)
}
