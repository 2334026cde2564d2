// Package s3storage wraps the MinIO/S3 bucket that holds document bytes and
// conversion outputs.
package s3storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/dharsanguruparan/docvault/internal/config"
)

// ErrNotFound is returned when the requested object key does not exist.
var ErrNotFound = errors.New("object not found")

const defaultContentType = "application/octet-stream"

// ObjectInfo is the metadata needed to serve an object over HTTP.
type ObjectInfo struct {
	Key         string
	Size        int64
	ContentType string
}

// Storage wraps MinIO/S3 interactions for a single bucket.
type Storage struct {
	client *minio.Client
	bucket string
	region string
}

// New creates a MinIO client from the Config.
func New(cfg *config.Config) (*Storage, error) {
	client, err := minio.New(cfg.S3Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		Secure: cfg.S3UseSSL,
		Region: cfg.S3Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}
	return &Storage{client: client, bucket: cfg.S3Bucket, region: cfg.S3Region}, nil
}

// EnsureBucket makes sure the bucket exists before use.
func (s *Storage) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
		return fmt.Errorf("make bucket %s: %w", s.bucket, err)
	}
	return nil
}

// Stat returns object metadata, ErrNotFound when the key is absent.
func (s *Storage) Stat(ctx context.Context, key string) (ObjectInfo, error) {
	info, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return ObjectInfo{}, mapError("stat object", err)
	}
	return toObjectInfo(info), nil
}

// Exists reports whether key is present in the bucket.
func (s *Storage) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.Stat(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Open streams an object. The caller closes the returned reader.
func (s *Storage) Open(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, ObjectInfo{}, mapError("get object", err)
	}
	// GetObject is lazy; Stat surfaces a missing key before any byte is sent.
	info, err := obj.Stat()
	if err != nil {
		obj.Close()
		return nil, ObjectInfo{}, mapError("get object", err)
	}
	return obj, toObjectInfo(info), nil
}

// DownloadToFile writes the object to dest.
func (s *Storage) DownloadToFile(ctx context.Context, key, dest string) error {
	if err := s.client.FGetObject(ctx, s.bucket, key, dest, minio.GetObjectOptions{}); err != nil {
		return mapError("download object", err)
	}
	return nil
}

// UploadFile stores the file at path under key.
func (s *Storage) UploadFile(ctx context.Context, key, path, contentType string) error {
	opts := minio.PutObjectOptions{ContentType: contentType}
	if _, err := s.client.FPutObject(ctx, s.bucket, key, path, opts); err != nil {
		return fmt.Errorf("upload object %s: %w", key, err)
	}
	return nil
}

func toObjectInfo(info minio.ObjectInfo) ObjectInfo {
	contentType := info.ContentType
	if contentType == "" {
		contentType = defaultContentType
	}
	return ObjectInfo{Key: info.Key, Size: info.Size, ContentType: contentType}
}

func mapError(op string, err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NotFound":
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}
