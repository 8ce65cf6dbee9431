package testutil

import (
	"context"
	"fmt"
	"os"
	"sync"
)

const icebergMetadataTemplate = `{
  "format-version": 2,
  "table-uuid": "%s",
  "location": "%s",
  "last-sequence-number": 0,
  "last-updated-ms": 1602638573590,
  "last-column-id": 1,
  "current-schema-id": 0,
  "schemas": [{"type": "struct", "schema-id": 0, "fields": [{"id": 1, "name": "id", "required": true, "type": "long"}]}],
  "default-spec-id": 0,
  "partition-specs": [{"spec-id": 0, "fields": []}],
  "last-partition-id": 999,
  "default-sort-order-id": 0,
  "sort-orders": [{"order-id": 0, "fields": []}],
  "properties": {},
  "snapshots": [],
  "snapshot-log": [],
  "metadata-log": []
}`

// IcebergMetadataJSON returns a minimal valid v2 iceberg metadata file.
func IcebergMetadataJSON(tableUUID, location string) []byte {
	return []byte(fmt.Sprintf(icebergMetadataTemplate, tableUUID, location))
}

// MemObjects is an in-memory objstore.Reader keyed by URI.
type MemObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
	Reads   []string
}

// NewMemObjects creates an empty MemObjects.
func NewMemObjects() *MemObjects {
	return &MemObjects{objects: make(map[string][]byte)}
}

// Put stores data at uri.
func (m *MemObjects) Put(uri string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[uri] = data
}

// PutMetadata stores an iceberg metadata file for tableUUID at uri.
func (m *MemObjects) PutMetadata(uri, tableUUID string) {
	m.Put(uri, IcebergMetadataJSON(tableUUID, "s3://bucket/warehouse"))
}

// ReadObject returns the stored bytes or an error wrapping os.ErrNotExist.
func (m *MemObjects) ReadObject(_ context.Context, uri string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Reads = append(m.Reads, uri)
	data, ok := m.objects[uri]
	if !ok {
		return nil, fmt.Errorf("read %s: %w", uri, os.ErrNotExist)
	}
	return data, nil
}
