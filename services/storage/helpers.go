package storage

import (
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"

	"github.com/customeros/mailsync/config"
	"github.com/customeros/mailsync/interfaces"
	"github.com/customeros/mailsync/services/storage/aws_client"
)

// NewR2StorageService creates a StorageService configured for Cloudflare R2.
// Returns nil when R2 is not configured.
func NewR2StorageService(cfg *config.R2StorageConfig) interfaces.StorageService {
	if !cfg.Enabled() {
		return nil
	}

	r2Client := aws_client.NewS3Client(&aws.Config{
		Endpoint:         aws.String("https://" + cfg.AccountID + ".r2.cloudflarestorage.com"),
		Region:           aws.String("auto"),
		Credentials:      credentials.NewStaticCredentials(cfg.AccessKeyID, cfg.AccessKeySecret, ""),
		S3ForcePathStyle: aws.Bool(true),
	})

	return NewStorageService(r2Client, StorageConfig{
		Name:       "r2",
		BucketName: cfg.EmailAttachmentBucket,
	})
}
