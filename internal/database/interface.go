package database

import (
	"context"
	"database/sql"
	"embed"
)

//go:embed migrations/*.sql
var EmbedMigrations embed.FS

const MigrationsDir = "migrations"

type DBBlobData struct {
	ID          string
	Filename    string
	ContentType string `db:"content_type"`
	BusinessID  string `db:"business_id"`
	Caption     string
	Length      int64
	// unix milliseconds
	CreatedAt int64 `db:"created_at"`
}

type Database interface {
	BeginTransaction() (*sql.Tx, error)

	AddBlob(tx *sql.Tx, data DBBlobData) error
	GetBlob(ctx context.Context, id string) (DBBlobData, error)
	GetBlobByFilename(ctx context.Context, filename string) (DBBlobData, error)
	GetBlobsByBusiness(ctx context.Context, businessID string) ([]DBBlobData, error)

	Ping(ctx context.Context) error
	Close() error
}
