// Package storage keeps generated experience reports in S3-compatible
// object storage and hands out time-limited download links.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MaxPresignTTL is the longest expiry S3 accepts for a presigned URL.
const MaxPresignTTL = 7 * 24 * time.Hour

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
	LinkTTL   time.Duration
}

type objectClient interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucket, object string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	PresignedGetObject(ctx context.Context, bucket, object string, expires time.Duration, params url.Values) (*url.URL, error)
}

type ObjectStore struct {
	client objectClient
	bucket string
	region string
	ttl    time.Duration
}

func NewObjectStore(cfg Config) (*ObjectStore, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, errors.New("storage endpoint and bucket are required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return newObjectStore(client, cfg), nil
}

func newObjectStore(client objectClient, cfg Config) *ObjectStore {
	return &ObjectStore{
		client: client,
		bucket: cfg.Bucket,
		region: cfg.Region,
		ttl:    clampTTL(cfg.LinkTTL),
	}
}

func clampTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 || ttl > MaxPresignTTL {
		return MaxPresignTTL
	}
	return ttl
}

// EnsureBucket creates the bucket when it does not exist yet.
func (s *ObjectStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
		return fmt.Errorf("create bucket %s: %w", s.bucket, err)
	}
	return nil
}

// ReportKey is the object name of an experience's report. Regenerating a
// report overwrites the previous object.
func ReportKey(experienceID int64) string {
	return fmt.Sprintf("Experiencia-%d.pdf", experienceID)
}

// PublishPDF uploads a report and returns a presigned download URL.
func (s *ObjectStore) PublishPDF(ctx context.Context, experienceID int64, data []byte) (string, error) {
	if len(data) == 0 {
		return "", errors.New("empty report")
	}
	key := ReportKey(experienceID)
	if _, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/pdf",
	}); err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	link, err := s.client.PresignedGetObject(ctx, s.bucket, key, s.ttl, nil)
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return link.String(), nil
}
