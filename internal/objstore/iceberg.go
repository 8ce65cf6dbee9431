package objstore

import (
	"context"
	"fmt"

	"github.com/apache/iceberg-go/table"
)

// IcebergMetadata is the subset of an iceberg metadata file the targets
// compare against.
type IcebergMetadata struct {
	TableUUID string
	Location  string
}

// ReadIcebergMetadata loads and parses the iceberg metadata file at uri.
func ReadIcebergMetadata(ctx context.Context, r Reader, uri string) (*IcebergMetadata, error) {
	data, err := r.ReadObject(ctx, uri)
	if err != nil {
		return nil, err
	}
	md, err := table.ParseMetadataBytes(data)
	if err != nil {
		return nil, fmt.Errorf("parse iceberg metadata %s: %w", uri, err)
	}
	return &IcebergMetadata{
		TableUUID: md.TableUUID().String(),
		Location:  md.Location(),
	}, nil
}

// SameTable reports whether two metadata files describe the same iceberg
// table, i.e. carry the same table-uuid.
func SameTable(ctx context.Context, r Reader, current, next string) (bool, error) {
	if current == next {
		return true, nil
	}
	a, err := ReadIcebergMetadata(ctx, r, current)
	if err != nil {
		return false, err
	}
	b, err := ReadIcebergMetadata(ctx, r, next)
	if err != nil {
		return false, err
	}
	return a.TableUUID == b.TableUUID, nil
}
