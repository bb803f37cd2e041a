package storage

import (
	"context"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/customeros/mailsync/config"
)

type mockS3Client struct {
	mock.Mock
}

func (m *mockS3Client) Upload(ctx context.Context, input s3manager.UploadInput) error {
	body, _ := io.ReadAll(input.Body)
	args := m.Called(*input.Bucket, *input.Key, string(body), *input.ContentType)
	return args.Error(0)
}

func (m *mockS3Client) Download(ctx context.Context, bucket, key string) ([]byte, error) {
	args := m.Called(bucket, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *mockS3Client) Exists(ctx context.Context, bucket, key string) (bool, error) {
	args := m.Called(bucket, key)
	return args.Bool(0), args.Error(1)
}

func (m *mockS3Client) Delete(ctx context.Context, bucket, key string) error {
	args := m.Called(bucket, key)
	return args.Error(0)
}

func TestObjectStorageService_UsesConfiguredBucket(t *testing.T) {
	client := new(mockS3Client)
	svc := NewStorageService(client, StorageConfig{Name: "r2", BucketName: "attachments"})
	ctx := context.Background()

	client.On("Upload", "attachments", "mbox/file.pdf", "hello", "application/pdf").Return(nil)
	client.On("Download", "attachments", "mbox/file.pdf").Return([]byte("hello"), nil)
	client.On("Exists", "attachments", "missing").Return(false, nil)

	require.NoError(t, svc.Upload(ctx, "mbox/file.pdf", []byte("hello"), "application/pdf"))

	data, err := svc.Download(ctx, "mbox/file.pdf")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	exists, err := svc.Exists(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, exists)

	assert.Equal(t, "attachments", svc.Bucket())
	assert.Equal(t, "r2", svc.Name())
	client.AssertExpectations(t)
}

func TestNewR2StorageService_DisabledWithoutCredentials(t *testing.T) {
	assert.Nil(t, NewR2StorageService(&config.R2StorageConfig{}))
	assert.Nil(t, NewR2StorageService(nil))
}
