package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"assist/internal/config"
	"assist/internal/core/contracts"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectPutter is the part of *minio.Client the uploader needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// MinioUploader stores image attachments in a public-read bucket.
type MinioUploader struct {
	client    ObjectPutter
	bucket    string
	publicURL string
	maxBytes  int64
	now       func() time.Time
}

func NewMinioUploader(client ObjectPutter, cfg config.StorageConfig) *MinioUploader {
	return &MinioUploader{
		client:    client,
		bucket:    cfg.Bucket,
		publicURL: strings.TrimRight(cfg.PublicURL, "/"),
		maxBytes:  cfg.MaxBytes,
		now:       time.Now,
	}
}

// NewMinioClient connects and makes sure the bucket exists with a public
// read policy.
func NewMinioClient(ctx context.Context, cfg config.StorageConfig) (*minio.Client, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, err
	}
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, err
		}
		publicPolicy := `{
			"Version": "2012-10-17",
			"Statement": [
				{
					"Action": ["s3:GetObject"],
					"Effect": "Allow",
					"Principal": "*",
					"Resource": "arn:aws:s3:::` + cfg.Bucket + `/*"
				}
			]
		}`
		if err := client.SetBucketPolicy(ctx, cfg.Bucket, publicPolicy); err != nil {
			return nil, err
		}
	}
	return client, nil
}

func (u *MinioUploader) Upload(ctx context.Context, f contracts.File) (string, error) {
	if !strings.HasPrefix(f.ContentType, "image/") {
		return "", fmt.Errorf("unsupported content type %q", f.ContentType)
	}
	if u.maxBytes > 0 && f.Size > u.maxBytes {
		return "", fmt.Errorf("file %q exceeds %d bytes", f.Name, u.maxBytes)
	}
	r, err := f.Open()
	if err != nil {
		return "", err
	}
	defer r.Close()

	objectKey := fmt.Sprintf("assist/%s/%s%s", u.now().UTC().Format("2006/01/02"), uuid.NewString(), strings.ToLower(path.Ext(f.Name)))
	_, err = u.client.PutObject(ctx, u.bucket, objectKey, r, f.Size, minio.PutObjectOptions{
		ContentType: f.ContentType,
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/%s/%s", u.publicURL, u.bucket, objectKey), nil
}
