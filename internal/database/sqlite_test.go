package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"
)

func setupTestDB(t *testing.T) SqliteDB {
	t.Helper()
	sqlite, err := DatabaseSetup(context.Background(), t.TempDir())
	if err != nil {
		t.Fatalf("DatabaseSetup(ctx, dir) %+v", err)
	}
	t.Cleanup(func() { sqlite.Close() })
	return sqlite
}

func addBlob(t *testing.T, sqlite SqliteDB, data DBBlobData) {
	t.Helper()
	tx, err := sqlite.BeginTransaction()
	if err != nil {
		t.Fatalf("sqlite.BeginTransaction() %+v", err)
	}
	err = sqlite.AddBlob(tx, data)
	if err != nil {
		tx.Rollback()
		t.Fatalf("sqlite.AddBlob(tx, data) %+v", err)
	}
	err = tx.Commit()
	if err != nil {
		t.Fatalf("tx.Commit() %+v", err)
	}
}

func TestAddBlobAndGetById(t *testing.T) {
	ctx := context.Background()
	sqlite := setupTestDB(t)

	now := time.Now().UnixMilli()
	addBlob(t, sqlite, DBBlobData{
		ID:          "6710f0c2a1b2c3d4e5f60718",
		Filename:    "abc.jpg",
		ContentType: "image/jpeg",
		BusinessID:  "biz123",
		Caption:     "front door",
		Length:      42,
		CreatedAt:   now,
	})

	blob, err := sqlite.GetBlob(ctx, "6710f0c2a1b2c3d4e5f60718")
	if err != nil {
		t.Fatalf("sqlite.GetBlob(ctx, id) %+v", err)
	}
	if blob.BusinessID != "biz123" {
		t.Errorf("wrong business id. got: %v", blob.BusinessID)
	}
	if blob.ContentType != "image/jpeg" {
		t.Errorf("wrong content type. got: %v", blob.ContentType)
	}
	if blob.Length != 42 || blob.CreatedAt != now || blob.Caption != "front door" {
		t.Errorf("wrong blob data. got: %+v", blob)
	}

	byName, err := sqlite.GetBlobByFilename(ctx, "abc.jpg")
	if err != nil {
		t.Fatalf("sqlite.GetBlobByFilename(ctx, name) %+v", err)
	}
	if byName.ID != blob.ID {
		t.Errorf("filename lookup returned a different blob. got: %v", byName.ID)
	}
}

func TestGetMissingBlobIsNoRows(t *testing.T) {
	sqlite := setupTestDB(t)

	_, err := sqlite.GetBlob(context.Background(), "6710f0c2a1b2c3d4e5f60718")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("expected sql.ErrNoRows. got: %+v", err)
	}
	_, err = sqlite.GetBlobByFilename(context.Background(), "nothing.png")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("expected sql.ErrNoRows. got: %+v", err)
	}
}

func TestDuplicateFilenameIsRejected(t *testing.T) {
	sqlite := setupTestDB(t)
	addBlob(t, sqlite, DBBlobData{ID: "6710f0c2a1b2c3d4e5f60718", Filename: "same.png", ContentType: "image/png", BusinessID: "a", CreatedAt: 1})

	tx, err := sqlite.BeginTransaction()
	if err != nil {
		t.Fatalf("sqlite.BeginTransaction() %+v", err)
	}
	defer tx.Rollback()
	err = sqlite.AddBlob(tx, DBBlobData{ID: "6710f0c2a1b2c3d4e5f60719", Filename: "same.png", ContentType: "image/png", BusinessID: "b", CreatedAt: 2})
	if err == nil {
		t.Errorf("second blob with the same filename should fail")
	}
}

func TestGetBlobsByBusinessOrdersByCreation(t *testing.T) {
	sqlite := setupTestDB(t)
	addBlob(t, sqlite, DBBlobData{ID: "6710f0c2a1b2c3d4e5f60002", Filename: "2.png", ContentType: "image/png", BusinessID: "biz", CreatedAt: 20})
	addBlob(t, sqlite, DBBlobData{ID: "6710f0c2a1b2c3d4e5f60001", Filename: "1.png", ContentType: "image/png", BusinessID: "biz", CreatedAt: 10})
	addBlob(t, sqlite, DBBlobData{ID: "6710f0c2a1b2c3d4e5f60003", Filename: "3.png", ContentType: "image/png", BusinessID: "other", CreatedAt: 5})

	blobs, err := sqlite.GetBlobsByBusiness(context.Background(), "biz")
	if err != nil {
		t.Fatalf("sqlite.GetBlobsByBusiness(ctx, biz) %+v", err)
	}
	if len(blobs) != 2 {
		t.Fatalf("wrong number of blobs. got: %v", len(blobs))
	}
	if blobs[0].Filename != "1.png" || blobs[1].Filename != "2.png" {
		t.Errorf("blobs are not ordered by creation. got: %+v", blobs)
	}

	none, err := sqlite.GetBlobsByBusiness(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("sqlite.GetBlobsByBusiness(ctx, nobody) %+v", err)
	}
	if len(none) != 0 {
		t.Errorf("expected no blobs. got: %+v", none)
	}
}
