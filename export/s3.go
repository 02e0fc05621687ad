package export

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var ErrBucketNotFound = errors.New("export: bucket does not exist")

type S3Options struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// NewS3Client creates a client for any S3 compatible endpoint.
func NewS3Client(opts S3Options) (*minio.Client, error) {
	return minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
}

type s3Sink struct {
	client *minio.Client
	bucket string
	key    string
}

// S3Sink uploads the snapshot as a single object. The bucket must exist.
func S3Sink(client *minio.Client, bucket, key string) Sink {
	return &s3Sink{client: client, bucket: bucket, key: key}
}

func (s *s3Sink) Write(ctx context.Context, r io.Reader, size int64) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrBucketNotFound, s.bucket)
	}

	_, err = s.client.PutObject(ctx, s.bucket, s.key, r, size, minio.PutObjectOptions{
		ContentType: ContentType,
	})
	return err
}

func (s *s3Sink) String() string {
	return fmt.Sprintf("s3://%s/%s", s.bucket, s.key)
}
