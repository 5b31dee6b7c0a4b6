package storage

import (
	"path"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/pkg/errors"

	"github.com/customeros/mailbackup/config"
	"github.com/customeros/mailbackup/interfaces"
	"github.com/customeros/mailbackup/services/storage/aws_client"
)

const (
	BackendFilesystem = "filesystem"
	BackendS3         = "s3"
	BackendR2         = "r2"

	RawMessageContentType = "message/rfc822"
)

var (
	ErrInvalidKey     = errors.New("invalid storage key")
	ErrUnknownBackend = errors.New("unknown storage backend")
)

// NewStorageService builds the raw message store selected by cfg.Backend
func NewStorageService(cfg *config.StorageConfig) (interfaces.StorageService, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", BackendFilesystem:
		return NewFilesystemStorage(cfg.Root), nil
	case BackendS3:
		return NewS3StorageService(cfg.Region, cfg.Endpoint, cfg.AccessKeyID, cfg.AccessKeySecret, cfg.Bucket), nil
	case BackendR2:
		if cfg.R2AccountID == "" {
			return nil, errors.Wrap(ErrUnknownBackend, "r2 backend needs CLOUDFLARE_R2_ACCOUNT_ID")
		}
		return NewR2StorageService(cfg.R2AccountID, cfg.AccessKeyID, cfg.AccessKeySecret, cfg.Bucket), nil
	default:
		return nil, errors.Wrapf(ErrUnknownBackend, "%q", cfg.Backend)
	}
}

// NewS3StorageService creates a StorageService configured for AWS S3 or an S3
// compatible endpoint
func NewS3StorageService(awsRegion, endpoint, accessKeyID, accessKeySecret, bucketName string) interfaces.StorageService {
	awsConfig := &aws.Config{
		Region: aws.String(awsRegion),
	}
	if accessKeyID != "" {
		awsConfig.Credentials = credentials.NewStaticCredentials(accessKeyID, accessKeySecret, "")
	}
	if endpoint != "" {
		awsConfig.Endpoint = aws.String(endpoint)
		awsConfig.S3ForcePathStyle = aws.Bool(true)
	}
	return NewObjectStorageService(aws_client.NewS3Client(awsConfig), bucketName)
}

// NewR2StorageService creates a StorageService configured for Cloudflare R2
func NewR2StorageService(accountID, accessKeyID, accessKeySecret, bucketName string) interfaces.StorageService {
	r2Client := aws_client.NewR2Client(aws_client.R2Config{
		AccountID:       accountID,
		AccessKeyID:     accessKeyID,
		AccessKeySecret: accessKeySecret,
	})
	return NewObjectStorageService(r2Client, bucketName)
}

// RawMessageKey is the storage key of a raw message: {account path}/{digest}.eml
func RawMessageKey(accountPath, digest string) string {
	return path.Join(strings.Trim(accountPath, "/"), digest+".eml")
}
