package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"
)

type memBlob struct {
	blob Blob
	data []byte
}

// MemoryStore keeps blobs in process memory. Use it for tests and local
// experiments only.
type MemoryStore struct {
	mu         sync.RWMutex
	byID       map[BlobID]*memBlob
	byFilename map[string]*memBlob
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:       make(map[BlobID]*memBlob),
		byFilename: make(map[string]*memBlob),
	}
}

func (s *MemoryStore) Store(ctx context.Context, r io.Reader, meta Metadata) (BlobID, error) {
	if err := meta.validate(); err != nil {
		return "", err
	}

	buf := bytes.Buffer{}
	if _, err := buf.ReadFrom(r); err != nil {
		return "", storeErr("buf.ReadFrom(r)", err)
	}
	if err := ctx.Err(); err != nil {
		return "", storeErr("ctx.Err()", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byFilename[meta.Filename]; exists {
		return "", storeErr("s.byFilename", fmt.Errorf("filename %s already stored", meta.Filename))
	}

	entry := &memBlob{
		blob: Blob{
			ID:         NewBlobID(),
			Length:     int64(buf.Len()),
			UploadedAt: time.Now().UTC(),
			Metadata:   meta,
		},
		data: buf.Bytes(),
	}
	s.byID[entry.blob.ID] = entry
	s.byFilename[meta.Filename] = entry

	return entry.blob.ID, nil
}

func (s *MemoryStore) GetByID(ctx context.Context, id string) (Blob, error) {
	if _, err := ParseBlobID(id); err != nil {
		return Blob{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.byID[BlobID(id)]
	if !ok {
		return Blob{}, ErrNotFound
	}
	return entry.blob, nil
}

func (s *MemoryStore) StreamByFilename(ctx context.Context, name string) (Blob, io.ReadCloser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.byFilename[name]
	if !ok {
		return Blob{}, nil, ErrNotFound
	}
	return entry.blob, io.NopCloser(bytes.NewReader(entry.data)), nil
}

func (s *MemoryStore) ListByOwner(ctx context.Context, businessID string) ([]Blob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	blobs := []Blob{}
	for _, entry := range s.byID {
		if entry.blob.BusinessID == businessID {
			blobs = append(blobs, entry.blob)
		}
	}
	sort.Slice(blobs, func(i, j int) bool {
		if blobs[i].UploadedAt.Equal(blobs[j].UploadedAt) {
			return blobs[i].ID < blobs[j].ID
		}
		return blobs[i].UploadedAt.Before(blobs[j].UploadedAt)
	})
	return blobs, nil
}

// Len reports how many blobs are stored.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

func (s *MemoryStore) Close(ctx context.Context) error {
	return nil
}
