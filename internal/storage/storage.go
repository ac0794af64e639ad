// Package storage keeps user avatars in an object store: a kv partition,
// a MinIO bucket or a GCS bucket.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
)

// MaxObjectSize bounds a single avatar.
const MaxObjectSize = 1 << 20

var ErrTooLarge = errors.New("storage: object too large")

// ObjectStorage is implemented by every backend. A missing key is reported
// as kv.ErrNotFound by Get.
type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Bucket() string
}

// Storage reads and writes whole objects through a backend.
type Storage struct {
	backend ObjectStorage
}

func NewStorage(backend ObjectStorage) *Storage {
	return &Storage{backend: backend}
}

func (s *Storage) EnsureBucket(ctx context.Context) error {
	return s.backend.EnsureBucket(ctx)
}

func (s *Storage) Delete(ctx context.Context, key string) error {
	return s.backend.Delete(ctx, key)
}

// Bucket names the bucket or partition objects live in.
func (s *Storage) Bucket() string {
	return s.backend.Bucket()
}

func (s *Storage) PutBytes(ctx context.Context, key string, data []byte, contentType string) error {
	if len(data) > MaxObjectSize {
		return fmt.Errorf("put %s: %w", key, ErrTooLarge)
	}
	return s.backend.Put(ctx, key, bytes.NewReader(data), int64(len(data)), contentType)
}

// ReadAll downloads key. Objects above MaxObjectSize are refused.
func (s *Storage) ReadAll(ctx context.Context, key string) ([]byte, error) {
	rc, err := s.backend.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, MaxObjectSize+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	if len(data) > MaxObjectSize {
		return nil, fmt.Errorf("read %s: %w", key, ErrTooLarge)
	}
	return data, nil
}
