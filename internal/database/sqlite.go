package database

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("logger", "database")

const blobColumns = "id, filename, content_type, business_id, caption, length, created_at"

type SqliteDB struct {
	Db *sql.DB
}

func (sq SqliteDB) BeginTransaction() (*sql.Tx, error) {
	tx, err := sq.Db.Begin()
	if err != nil {
		return nil, fmt.Errorf("sq.Db.Begin(). %w", err)
	}

	return tx, nil
}

func (sq SqliteDB) AddBlob(tx *sql.Tx, data DBBlobData) error {
	_, err := tx.Exec("INSERT INTO blobs ("+blobColumns+") values (?, ?, ?, ?, ?, ?, ?)",
		data.ID, data.Filename, data.ContentType, data.BusinessID, data.Caption, data.Length, data.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf(`tx.Exec("INSERT INTO blobs (id, ). %w`, err)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBlob(row rowScanner) (DBBlobData, error) {
	var blobData DBBlobData
	err := row.Scan(&blobData.ID, &blobData.Filename, &blobData.ContentType, &blobData.BusinessID,
		&blobData.Caption, &blobData.Length, &blobData.CreatedAt)
	return blobData, err
}

func (sq SqliteDB) GetBlob(ctx context.Context, id string) (DBBlobData, error) {
	row := sq.Db.QueryRowContext(ctx, "SELECT "+blobColumns+" FROM blobs WHERE id = ?", id)

	blobData, err := scanBlob(row)
	if err != nil {
		return blobData, fmt.Errorf("sq.Db.QueryRowContext(ctx, id).Scan %w", err)
	}

	return blobData, nil
}

func (sq SqliteDB) GetBlobByFilename(ctx context.Context, filename string) (DBBlobData, error) {
	row := sq.Db.QueryRowContext(ctx, "SELECT "+blobColumns+" FROM blobs WHERE filename = ?", filename)

	blobData, err := scanBlob(row)
	if err != nil {
		return blobData, fmt.Errorf("sq.Db.QueryRowContext(ctx, filename).Scan %w", err)
	}

	return blobData, nil
}

func (sq SqliteDB) GetBlobsByBusiness(ctx context.Context, businessID string) ([]DBBlobData, error) {
	blobs := []DBBlobData{}

	rows, err := sq.Db.QueryContext(ctx,
		"SELECT "+blobColumns+" FROM blobs WHERE business_id = ? ORDER BY created_at, id", businessID)
	if err != nil {
		return blobs, fmt.Errorf("sq.Db.QueryContext(ctx, businessID). %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		blobData, err := scanBlob(rows)
		if err != nil {
			return blobs, fmt.Errorf("rows.Scan(). %w", err)
		}
		blobs = append(blobs, blobData)
	}
	if err := rows.Err(); err != nil {
		return blobs, fmt.Errorf("rows.Err(). %w", err)
	}

	return blobs, nil
}

func (sq SqliteDB) Ping(ctx context.Context) error {
	return sq.Db.PingContext(ctx)
}

func (sq SqliteDB) Close() error {
	return sq.Db.Close()
}

// DatabaseSetup opens app.db inside databaseDir and applies the embedded
// migrations.
func DatabaseSetup(ctx context.Context, databaseDir string) (SqliteDB, error) {
	var sqlitedb SqliteDB

	dsn := filepath.Join(databaseDir, "app.db") + "?_busy_timeout=5000&_journal_mode=WAL"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return sqlitedb, fmt.Errorf(`sql.Open("sqlite3", databaseDir + "app.db"). %w`, err)
	}

	goose.SetBaseFS(EmbedMigrations)
	goose.SetLogger(log)
	if err := goose.SetDialect("sqlite3"); err != nil {
		db.Close()
		return sqlitedb, fmt.Errorf(`goose.SetDialect("sqlite3"). %w`, err)
	}

	if err := goose.UpContext(ctx, db, MigrationsDir); err != nil {
		db.Close()
		return sqlitedb, fmt.Errorf(`goose.UpContext(ctx, db, MigrationsDir). %w`, err)
	}

	sqlitedb.Db = db

	return sqlitedb, nil
}
