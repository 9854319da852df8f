package objstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/Rafael-Dagostim/studyflow-go/internal/config"
	"github.com/Rafael-Dagostim/studyflow-go/internal/core"
)

// S3Config holds connection parameters for an S3-compatible backend.
type S3Config struct {
	// Endpoint is the S3 endpoint URL; empty targets AWS proper.
	Endpoint string
	// Region is the bucket region.
	Region string
	// Bucket is the bucket holding all StudyFlow objects.
	Bucket string
	// AccessKey and SecretKey are static credentials. When both are empty
	// the standard AWS credential chain is used.
	AccessKey string
	SecretKey string
}

// S3Store implements Storage against an S3-compatible backend.
type S3Store struct {
	// client is the AWS SDK S3 client.
	client *s3.Client
	// bucket is the configured bucket name.
	bucket string
}

// NewS3 constructs an S3Store from the given config.
func NewS3(ctx context.Context, cfg S3Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("objstore: S3_BUCKET must be set")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("objstore: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			// MinIO and most self-hosted backends require path-style
			// addressing.
			o.UsePathStyle = true
		}
	})

	return &S3Store{client: client, bucket: cfg.Bucket}, nil
}

// NewS3FromEnv constructs an S3Store from S3_ENDPOINT, S3_REGION,
// S3_BUCKET, S3_ACCESS_KEY, and S3_SECRET_KEY.
func NewS3FromEnv(ctx context.Context) (*S3Store, error) {
	return NewS3(ctx, S3Config{
		Endpoint:  config.EnvStr("S3_ENDPOINT", ""),
		Region:    config.EnvStr("S3_REGION", ""),
		Bucket:    config.EnvStr("S3_BUCKET", ""),
		AccessKey: config.EnvStr("S3_ACCESS_KEY", ""),
		SecretKey: config.EnvStr("S3_SECRET_KEY", ""),
	})
}

// Upload stores data under key, overwriting any existing object.
func (s *S3Store) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("objstore: put %q: %w", key, err)
	}
	return nil
}

// Get returns the bytes stored under key.
func (s *S3Store) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, core.Wrap(err, core.CodeNotFound, "object %q not found", key)
		}
		return nil, fmt.Errorf("objstore: get %q: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("objstore: read %q: %w", key, err)
	}
	return data, nil
}

// Delete removes the object under key. S3 delete is idempotent.
func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("objstore: delete %q: %w", key, err)
	}
	return nil
}

// Exists reports whether an object is stored under key.
func (s *S3Store) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("objstore: head %q: %w", key, err)
	}
	return true, nil
}

// Copy duplicates the object at src to dst.
func (s *S3Store) Copy(ctx context.Context, src, dst string) error {
	_, err := s.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(s.bucket),
		CopySource: aws.String(s.bucket + "/" + src),
		Key:        aws.String(dst),
	})
	if err != nil {
		return fmt.Errorf("objstore: copy %q to %q: %w", src, dst, err)
	}
	return nil
}

// DeletePrefix removes every object whose key starts with prefix, paging
// through the listing.
func (s *S3Store) DeletePrefix(ctx context.Context, prefix string) error {
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("objstore: list prefix %q: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			if err := s.Delete(ctx, aws.ToString(obj.Key)); err != nil {
				return err
			}
		}
	}
	return nil
}

// isNoSuchKey reports whether err is S3's missing-object error.
func isNoSuchKey(err error) bool {
	var noSuchKey *types.NoSuchKey
	return errors.As(err, &noSuchKey)
}
