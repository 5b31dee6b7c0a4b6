package storage

import (
	"bytes"
	"context"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/opentracing/opentracing-go"

	"github.com/customeros/mailbackup/interfaces"
	"github.com/customeros/mailbackup/internal/tracing"
	"github.com/customeros/mailbackup/services/storage/aws_client"
)

// ObjectStorageService implements StorageService on an S3 compatible bucket
type ObjectStorageService struct {
	client     aws_client.S3Client
	bucketName string
}

func NewObjectStorageService(client aws_client.S3Client, bucketName string) interfaces.StorageService {
	return &ObjectStorageService{
		client:     client,
		bucketName: bucketName,
	}
}

func (s *ObjectStorageService) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ObjectStorageService.Upload")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.SetTag("storage.key", key)

	uploadInput := s3manager.UploadInput{
		Bucket:      aws.String(s.bucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	}

	return s.client.Upload(ctx, uploadInput)
}

func (s *ObjectStorageService) Download(ctx context.Context, key string) ([]byte, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ObjectStorageService.Download")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.SetTag("storage.key", key)

	return s.client.Download(ctx, s.bucketName, key)
}

func (s *ObjectStorageService) Exists(ctx context.Context, key string) (bool, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ObjectStorageService.Exists")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.SetTag("storage.key", key)

	return s.client.Exists(ctx, s.bucketName, key)
}

func (s *ObjectStorageService) Delete(ctx context.Context, key string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ObjectStorageService.Delete")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.SetTag("storage.key", key)

	return s.client.Delete(ctx, s.bucketName, key)
}
