package storage

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"time"

	"bizphotos/internal/database"
	fsio "bizphotos/internal/io"
)

// LocalStore keeps blob bytes as flat files and indexes them in SQLite.
type LocalStore struct {
	DB database.Database
	IO fsio.BlobIO
}

func NewLocalStore(db database.Database, files fsio.BlobIO) *LocalStore {
	return &LocalStore{DB: db, IO: files}
}

func fromRow(row database.DBBlobData) Blob {
	return Blob{
		ID:         BlobID(row.ID),
		Length:     row.Length,
		UploadedAt: time.UnixMilli(row.CreatedAt).UTC(),
		Metadata: Metadata{
			ContentType: row.ContentType,
			BusinessID:  row.BusinessID,
			Caption:     row.Caption,
			Filename:    row.Filename,
		},
	}
}

func (l *LocalStore) Store(ctx context.Context, r io.Reader, meta Metadata) (id BlobID, err error) {
	if err := meta.validate(); err != nil {
		return "", err
	}

	written, err := l.IO.WriteBlob(ctx, meta.Filename, r)
	if err != nil {
		return "", storeErr("l.IO.WriteBlob(ctx, filename, r)", err)
	}

	// The row makes the blob visible. Without it the file is garbage.
	defer func() {
		if err != nil {
			if rmErr := l.IO.RemoveBlob(meta.Filename); rmErr != nil {
				log.WithError(rmErr).WithField("filename", meta.Filename).Warn("Could not remove orphaned blob file")
			}
		}
	}()

	if err := ctx.Err(); err != nil {
		return "", storeErr("ctx.Err()", err)
	}

	tx, err := l.DB.BeginTransaction()
	if err != nil {
		return "", storeErr("l.DB.BeginTransaction()", err)
	}

	newID := NewBlobID()
	err = l.DB.AddBlob(tx, database.DBBlobData{
		ID:          string(newID),
		Filename:    meta.Filename,
		ContentType: meta.ContentType,
		BusinessID:  meta.BusinessID,
		Caption:     meta.Caption,
		Length:      written,
		CreatedAt:   time.Now().UnixMilli(),
	})
	if err != nil {
		tx.Rollback()
		return "", storeErr("l.DB.AddBlob(tx, data)", err)
	}

	if err = tx.Commit(); err != nil {
		return "", storeErr("tx.Commit()", err)
	}

	return newID, nil
}

func (l *LocalStore) GetByID(ctx context.Context, id string) (Blob, error) {
	if _, err := ParseBlobID(id); err != nil {
		return Blob{}, err
	}

	row, err := l.DB.GetBlob(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Blob{}, ErrNotFound
	}
	if err != nil {
		return Blob{}, storeErr("l.DB.GetBlob(ctx, id)", err)
	}

	return fromRow(row), nil
}

func (l *LocalStore) StreamByFilename(ctx context.Context, name string) (Blob, io.ReadCloser, error) {
	row, err := l.DB.GetBlobByFilename(ctx, name)
	if errors.Is(err, sql.ErrNoRows) {
		return Blob{}, nil, ErrNotFound
	}
	if err != nil {
		return Blob{}, nil, storeErr("l.DB.GetBlobByFilename(ctx, name)", err)
	}

	file, err := l.IO.OpenBlob(row.Filename)
	if err != nil {
		return Blob{}, nil, storeErr("l.IO.OpenBlob(filename)", err)
	}

	return fromRow(row), file, nil
}

func (l *LocalStore) ListByOwner(ctx context.Context, businessID string) ([]Blob, error) {
	rows, err := l.DB.GetBlobsByBusiness(ctx, businessID)
	if err != nil {
		return nil, storeErr("l.DB.GetBlobsByBusiness(ctx, businessID)", err)
	}

	blobs := make([]Blob, 0, len(rows))
	for _, row := range rows {
		blobs = append(blobs, fromRow(row))
	}
	return blobs, nil
}

func (l *LocalStore) Ping(ctx context.Context) error {
	return l.DB.Ping(ctx)
}

func (l *LocalStore) Close(ctx context.Context) error {
	return l.DB.Close()
}
