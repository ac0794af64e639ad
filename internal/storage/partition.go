package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/akostadinov/chunchun/internal/kv"
)

// PartitionStorage keeps objects in a kv partition. It lets a single kv
// backend serve avatars without an object store, and lets object writes
// join a kv.Tx.
type PartitionStorage struct {
	rw        kv.ReadWriter
	partition string
}

type storedObject struct {
	ContentType string `json:"content_type"`
	Data        []byte `json:"data"`
}

// NewPartitionStorage stores objects in partition of rw.
func NewPartitionStorage(rw kv.ReadWriter, partition string) *PartitionStorage {
	return &PartitionStorage{rw: rw, partition: partition}
}

// EnsureBucket is a no-op; partitions need no setup.
func (p *PartitionStorage) EnsureBucket(context.Context) error {
	return nil
}

func (p *PartitionStorage) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	if size >= 0 {
		r = io.LimitReader(r, size)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if size >= 0 && int64(len(data)) != size {
		return fmt.Errorf("storage: object %q: read %d bytes, expected %d", key, len(data), size)
	}
	raw, err := json.Marshal(storedObject{ContentType: contentType, Data: data})
	if err != nil {
		return err
	}
	return p.rw.Put(ctx, p.partition, key, raw)
}

func (p *PartitionStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	e, err := p.rw.Get(ctx, p.partition, key)
	if err != nil {
		return nil, err
	}
	var obj storedObject
	if err := json.Unmarshal(e.Value, &obj); err != nil {
		return nil, fmt.Errorf("storage: decode object %q: %w", key, err)
	}
	return io.NopCloser(bytes.NewReader(obj.Data)), nil
}

func (p *PartitionStorage) Delete(ctx context.Context, key string) error {
	return p.rw.Delete(ctx, p.partition, key)
}

// Bucket returns the partition name.
func (p *PartitionStorage) Bucket() string {
	return p.partition
}
