package storage

import "context"

// ObjectInfo represents metadata for a remote file/object.
type ObjectInfo struct {
	Key  string
	Size int64
}

// ObjectStorage captures the read-only bucket operations the reconciler needs.
type ObjectStorage interface {
	ListObjects(ctx context.Context, bucket string) ([]ObjectInfo, error)
	DownloadObject(ctx context.Context, bucket, key, destPath string) error
}
