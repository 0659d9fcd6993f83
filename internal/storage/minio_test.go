package storage

import (
	"context"
	"errors"
	"io"
	"net/url"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	exists    bool
	made      bool
	putErr    error
	objects   map[string][]byte
	types     map[string]string
	presigned time.Duration
}

func newFakeClient() *fakeClient {
	return &fakeClient{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeClient) BucketExists(context.Context, string) (bool, error) { return f.exists, nil }

func (f *fakeClient) MakeBucket(context.Context, string, minio.MakeBucketOptions) error {
	f.made = true
	return nil
}

func (f *fakeClient) PutObject(_ context.Context, _ string, object string, reader io.Reader, _ int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	if f.putErr != nil {
		return minio.UploadInfo{}, f.putErr
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return minio.UploadInfo{}, err
	}
	f.objects[object] = data
	f.types[object] = opts.ContentType
	return minio.UploadInfo{Key: object, Size: int64(len(data))}, nil
}

func (f *fakeClient) PresignedGetObject(_ context.Context, bucket, object string, expires time.Duration, _ url.Values) (*url.URL, error) {
	f.presigned = expires
	return url.Parse("https://objects.example.com/" + bucket + "/" + object + "?X-Amz-Signature=abc")
}

func TestPublishPDFUploadsAndPresigns(t *testing.T) {
	client := newFakeClient()
	s := newObjectStore(client, Config{Bucket: "reports", LinkTTL: time.Hour})

	link, err := s.PublishPDF(context.Background(), 12, []byte("%PDF"))

	require.NoError(t, err)
	assert.Equal(t, "https://objects.example.com/reports/Experiencia-12.pdf?X-Amz-Signature=abc", link)
	assert.Equal(t, []byte("%PDF"), client.objects["Experiencia-12.pdf"])
	assert.Equal(t, "application/pdf", client.types["Experiencia-12.pdf"])
	assert.Equal(t, time.Hour, client.presigned)
}

func TestPublishPDFClampsLinkTTL(t *testing.T) {
	client := newFakeClient()
	s := newObjectStore(client, Config{Bucket: "reports", LinkTTL: 365 * 24 * time.Hour})

	_, err := s.PublishPDF(context.Background(), 1, []byte("%PDF"))

	require.NoError(t, err)
	assert.Equal(t, MaxPresignTTL, client.presigned)
}

func TestPublishPDFRejectsEmptyReport(t *testing.T) {
	s := newObjectStore(newFakeClient(), Config{Bucket: "reports"})
	_, err := s.PublishPDF(context.Background(), 1, nil)
	assert.Error(t, err)
}

func TestPublishPDFWrapsUploadError(t *testing.T) {
	client := newFakeClient()
	client.putErr = errors.New("access denied")
	s := newObjectStore(client, Config{Bucket: "reports"})

	_, err := s.PublishPDF(context.Background(), 1, []byte("%PDF"))

	assert.ErrorIs(t, err, client.putErr)
}

func TestEnsureBucketCreatesMissingBucket(t *testing.T) {
	client := newFakeClient()
	s := newObjectStore(client, Config{Bucket: "reports"})

	require.NoError(t, s.EnsureBucket(context.Background()))
	assert.True(t, client.made)

	client.made = false
	client.exists = true
	require.NoError(t, s.EnsureBucket(context.Background()))
	assert.False(t, client.made)
}

func TestNewObjectStoreRequiresBucket(t *testing.T) {
	_, err := NewObjectStore(Config{Endpoint: "localhost:9000"})
	assert.Error(t, err)
}
