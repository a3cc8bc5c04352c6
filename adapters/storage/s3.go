package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/Skryldev/doc-intake/config"
	"github.com/Skryldev/doc-intake/core"
	apperrors "github.com/Skryldev/doc-intake/errors"
)

// S3API is the slice of *s3.Client used by the adapter, so tests can
// substitute a fake.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3 is the BlobStore backed by AWS S3 (or S3-compatible stores).
type S3 struct {
	client     S3API
	bucket     string
	prefix     string
	publicBase string
}

// NewS3 creates an S3 adapter.  client must not be nil.
func NewS3(client S3API, cfg config.S3Config) (*S3, error) {
	if client == nil {
		return nil, fmt.Errorf("s3 storage: client must not be nil")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 storage: bucket must not be empty")
	}
	return &S3{
		client:     client,
		bucket:     cfg.Bucket,
		prefix:     strings.Trim(cfg.Prefix, "/"),
		publicBase: strings.TrimRight(cfg.PublicBaseURL, "/"),
	}, nil
}

// NewS3Client builds an *s3.Client from cfg.  Static keys are used when set,
// otherwise the default AWS credential chain applies.
func NewS3Client(ctx context.Context, cfg config.S3Config) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3 storage: load aws config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	}), nil
}

func (s *S3) key(name string) string {
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}

func (s *S3) Put(ctx context.Context, name string, r io.Reader, size int64, mimeType string) (core.Object, error) {
	if err := ctx.Err(); err != nil {
		return core.Object{}, apperrors.Wrap(apperrors.CategoryStorage, "s3.put", err)
	}
	key := s.key(name)
	in := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        r,
		ContentType: aws.String(mimeType),
	}
	if size >= 0 {
		in.ContentLength = aws.Int64(size)
	}
	if _, err := s.client.PutObject(ctx, in); err != nil {
		return core.Object{}, apperrors.Wrap(apperrors.CategoryStorage, "s3.put", err)
	}
	return core.Object{ID: key, Link: s.link(key)}, nil
}

func (s *S3) link(key string) string {
	if s.publicBase != "" {
		return s.publicBase + "/" + (&url.URL{Path: key}).EscapedPath()
	}
	return "s3://" + s.bucket + "/" + key
}
