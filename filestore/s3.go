package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3API is the subset of the S3 client the backend calls.
type S3API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

var _ S3API = (*s3.Client)(nil)

// S3Config configures an S3Backend.
type S3Config struct {
	Bucket string
	Region string
	// Endpoint overrides the service endpoint and switches to path-style
	// addressing (MinIO, LocalStack).
	Endpoint string
	Prefix   string
}

// S3Backend stores files as objects in one S3 bucket.
type S3Backend struct {
	name   string
	client S3API
	bucket string
	prefix string
}

var _ Backend = (*S3Backend)(nil)

// NewS3Backend loads the default AWS configuration and builds a client for cfg.
func NewS3Backend(ctx context.Context, name string, cfg S3Config) (*S3Backend, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, ErrBucketRequired
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("filetransfer filestore: load aws config failed: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return NewS3BackendWithClient(name, client, cfg.Bucket, cfg.Prefix), nil
}

// NewS3BackendWithClient wraps an existing client.
func NewS3BackendWithClient(name string, client S3API, bucket, prefix string) *S3Backend {
	if client == nil {
		panic("filetransfer filestore: s3 client is nil")
	}

	return &S3Backend{name: name, client: client, bucket: bucket, prefix: prefix}
}

// Name implements Backend.
func (b *S3Backend) Name() string {
	return b.name
}

func (b *S3Backend) objectKey(key string) (string, error) {
	trimmed := strings.TrimLeft(key, "/")
	if strings.TrimSpace(trimmed) == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}

	return b.prefix + trimmed, nil
}

// Open implements Backend.
func (b *S3Backend) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	objKey, err := b.objectKey(key)
	if err != nil {
		return nil, err
	}

	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(objKey),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, fmt.Errorf("%w: %s/%s", ErrObjectNotFound, b.name, key)
		}
		return nil, fmt.Errorf("filetransfer filestore: s3 get %s failed: %w", key, err)
	}

	return out.Body, nil
}

// Put implements Backend. Readers that cannot seek are spooled to a temporary
// file first since the SDK needs a seekable body to sign the payload.
func (b *S3Backend) Put(ctx context.Context, key string, r io.Reader) error {
	objKey, err := b.objectKey(key)
	if err != nil {
		return err
	}

	body, cleanup, err := seekable(r)
	if err != nil {
		return fmt.Errorf("filetransfer filestore: spool %s failed: %w", key, err)
	}
	defer cleanup()

	_, err = b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(objKey),
		Body:        body,
		ContentType: aws.String("application/octet-stream"),
	})
	if err != nil {
		return fmt.Errorf("filetransfer filestore: s3 put %s failed: %w", key, err)
	}

	return nil
}

// Delete implements Backend.
func (b *S3Backend) Delete(ctx context.Context, key string) error {
	objKey, err := b.objectKey(key)
	if err != nil {
		return err
	}

	_, err = b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(objKey),
	})
	if err != nil && !isS3NotFound(err) {
		return fmt.Errorf("filetransfer filestore: s3 delete %s failed: %w", key, err)
	}

	return nil
}

// Exists implements Backend.
func (b *S3Backend) Exists(ctx context.Context, key string) (bool, error) {
	objKey, err := b.objectKey(key)
	if err != nil {
		return false, err
	}

	_, err = b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(objKey),
	})
	if err != nil {
		if isS3NotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("filetransfer filestore: s3 head %s failed: %w", key, err)
	}

	return true, nil
}

func isS3NotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound

	return errors.As(err, &noSuchKey) || errors.As(err, &notFound)
}

func seekable(r io.Reader) (io.ReadSeeker, func(), error) {
	if rs, ok := r.(io.ReadSeeker); ok {
		return rs, func() {}, nil
	}

	tmp, err := os.CreateTemp("", "filetransfer-s3-*")
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}
	if _, err := io.Copy(tmp, r); err != nil {
		cleanup()
		return nil, nil, err
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		cleanup()
		return nil, nil, err
	}

	return tmp, cleanup, nil
}
