package storage

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	cmstorage "github.com/chartmuseum/storage"
)

// S3Config encapsulates the connection info for an S3-compatible bucket.
type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

// BackendClient implements ObjectStorage on top of a chartmuseum storage
// backend (Amazon S3 compatible or local filesystem).
type BackendClient struct {
	backend cmstorage.Backend
	name    string
}

// NewS3Client builds a path-style S3 client for MinIO, Sevalla and similar services.
func NewS3Client(cfg S3Config) (*BackendClient, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint must be provided")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("s3 credentials must be provided")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket must be provided")
	}

	endpoint := cfg.Endpoint
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		scheme := "https"
		if !cfg.UseSSL {
			scheme = "http"
		}
		endpoint = fmt.Sprintf("%s://%s", scheme, strings.TrimPrefix(cfg.Endpoint, "//"))
	}

	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	// The backend reads credentials from the standard AWS environment.
	os.Setenv("AWS_ACCESS_KEY_ID", cfg.AccessKey)
	os.Setenv("AWS_SECRET_ACCESS_KEY", cfg.SecretKey)
	os.Setenv("AWS_REGION", region)
	os.Setenv("AWS_DEFAULT_REGION", region)

	forcePathStyle := true
	backend := cmstorage.NewAmazonS3BackendWithOptions(
		cfg.Bucket,
		"",
		region,
		endpoint,
		"",
		&cmstorage.AmazonS3Options{S3ForcePathStyle: &forcePathStyle},
	)

	return &BackendClient{backend: backend, name: "s3"}, nil
}

// NewLocalClient stores objects as files below root.
func NewLocalClient(root string) (*BackendClient, error) {
	if root == "" {
		return nil, fmt.Errorf("local storage root must be provided")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed creating storage root %s: %w", root, err)
	}
	return &BackendClient{backend: cmstorage.NewLocalFilesystemBackend(root), name: "local"}, nil
}

// ListObjects lists all objects below prefix. Keys are returned in full, not
// relative to the prefix.
func (c *BackendClient) ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	objects, err := c.backend.ListObjects(prefix)
	if err != nil {
		return nil, fmt.Errorf("%s list failed: %w", c.name, err)
	}
	results := make([]ObjectInfo, 0, len(objects))
	for _, object := range objects {
		results = append(results, ObjectInfo{
			Key:  path.Join(prefix, object.Path),
			Size: int64(len(object.Content)),
		})
	}
	return results, nil
}

// DownloadObject downloads an object to the provided destination path.
func (c *BackendClient) DownloadObject(ctx context.Context, key, destPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	object, err := c.backend.GetObject(key)
	if err != nil {
		return fmt.Errorf("%s get %s failed: %w", c.name, key, err)
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("failed creating directory for %s: %w", destPath, err)
	}
	if err := os.WriteFile(destPath, object.Content, 0o644); err != nil {
		return fmt.Errorf("failed writing %s: %w", destPath, err)
	}
	return nil
}

// UploadObject writes data under key, replacing any existing object.
func (c *BackendClient) UploadObject(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.backend.PutObject(key, data); err != nil {
		return fmt.Errorf("%s put %s failed: %w", c.name, key, err)
	}
	return nil
}

var _ ObjectStorage = (*BackendClient)(nil)
