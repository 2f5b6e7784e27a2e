package ports

import (
	"context"
	"errors"
	"io"
	"time"
)

var ErrObjectNotFound = errors.New("object not found")

type StoredObject struct {
	Key          string
	Size         int64
	LastModified time.Time
	ContentType  string
}

type ObjectStorage interface {
	Upload(ctx context.Context, bucket, objectName, contentType string, reader io.Reader, size int64) (string, error)
	Remove(ctx context.Context, bucket, objectName string) error
	List(ctx context.Context, bucket, prefix string) ([]StoredObject, error)
	Open(ctx context.Context, bucket, objectName string) (io.ReadCloser, *StoredObject, error)
}
