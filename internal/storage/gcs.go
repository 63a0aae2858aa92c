package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
)

// GCSClient implements ObjectStorage for Google Cloud Storage buckets.
// Credentials come from application default credentials.
type GCSClient struct {
	client *gcs.Client
}

// NewGCSClient builds a new GCSClient.
func NewGCSClient(ctx context.Context) (*GCSClient, error) {
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create gcs client: %w", err)
	}
	return &GCSClient{client: client}, nil
}

// ListObjects lists every object in the bucket.
func (c *GCSClient) ListObjects(ctx context.Context, bucket string) ([]ObjectInfo, error) {
	it := c.client.Bucket(bucket).Objects(ctx, nil)
	results := make([]ObjectInfo, 0)
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("gcs list failed for bucket %s: %w", bucket, err)
		}
		results = append(results, ObjectInfo{
			Key:  attrs.Name,
			Size: attrs.Size,
		})
	}
	return results, nil
}

// DownloadObject downloads an object to the provided destination path.
func (c *GCSClient) DownloadObject(ctx context.Context, bucket, key, destPath string) error {
	r, err := c.client.Bucket(bucket).Object(key).NewReader(ctx)
	if err != nil {
		return fmt.Errorf("gcs open failed for %s/%s: %w", bucket, key, err)
	}
	defer r.Close()

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("failed creating directory for %s: %w", destPath, err)
	}
	f, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed creating %s: %w", destPath, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return fmt.Errorf("failed writing %s: %w", destPath, err)
	}
	return nil
}

// Close releases the underlying client.
func (c *GCSClient) Close() error {
	return c.client.Close()
}

var _ ObjectStorage = (*GCSClient)(nil)
