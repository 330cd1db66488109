package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrNotFound     = errors.New("blob not found")
	ErrInvalidID    = errors.New("invalid blob id")
	ErrMissingOwner = errors.New("blob metadata has no owner reference")
)

// StoreError reports an I/O or database failure while persisting or reading
// a blob. Nothing written during the failed call is visible to readers.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func storeErr(op string, err error) error {
	return &StoreError{Op: op, Err: err}
}

// BlobID is the hex form of a MongoDB ObjectID. Every backend hands out ids
// in this format so callers never learn which one is in use.
type BlobID string

func NewBlobID() BlobID {
	return BlobID(primitive.NewObjectID().Hex())
}

// ParseBlobID checks the syntactic form of id without touching storage.
func ParseBlobID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, ErrInvalidID
	}
	return oid, nil
}

type Metadata struct {
	ContentType string
	BusinessID  string
	Caption     string
	Filename    string
}

func (m Metadata) validate() error {
	if m.BusinessID == "" {
		return ErrMissingOwner
	}
	if m.Filename == "" {
		return errors.New("blob metadata has no filename")
	}
	return nil
}

type Blob struct {
	ID         BlobID
	Length     int64
	UploadedAt time.Time
	Metadata
}

type BlobStore interface {
	Store(ctx context.Context, r io.Reader, meta Metadata) (BlobID, error)
}

type BlobReader interface {
	GetByID(ctx context.Context, id string) (Blob, error)
	// StreamByFilename returns a reader that produces the bytes lazily. Read
	// errors surfaced by it are I/O failures, never ErrNotFound.
	StreamByFilename(ctx context.Context, name string) (Blob, io.ReadCloser, error)
	ListByOwner(ctx context.Context, businessID string) ([]Blob, error)
}

// Backend is a full blob store implementation.
type Backend interface {
	BlobStore
	BlobReader
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
