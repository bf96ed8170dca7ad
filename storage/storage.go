// Package storage keeps report photos, uploaded files and workbooks in an
// object store. MinIO/S3 is used when an endpoint is configured, a local
// directory otherwise.
package storage

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("storage: object not found")

type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
}
