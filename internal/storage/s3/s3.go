// Package s3 stores product images in an AWS S3 bucket.
package s3

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/websync-digital/sunlit-blue-spark/internal/storage"
	apperrors "github.com/websync-digital/sunlit-blue-spark/pkg/errors"
)

// objectAPI is the part of *s3.Client the store uses.
type objectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Config holds the bucket location and the public URL objects are served from.
type Config struct {
	Region        string
	Bucket        string
	Prefix        string
	PublicBaseURL string
	// Endpoint overrides the S3 endpoint for S3-compatible services.
	Endpoint string
}

// Storage implements storage.Storage on S3.
type Storage struct {
	client        objectAPI
	bucket        string
	prefix        string
	publicBaseURL string
}

// New loads AWS credentials from the default chain and creates the store.
func New(ctx context.Context, cfg Config) (*Storage, error) {
	if cfg.Bucket == "" || cfg.PublicBaseURL == "" {
		return nil, errors.New("s3 storage: bucket and public base URL are required")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return newWithClient(client, cfg), nil
}

func newWithClient(client objectAPI, cfg Config) *Storage {
	return &Storage{
		client:        client,
		bucket:        cfg.Bucket,
		prefix:        strings.Trim(cfg.Prefix, "/"),
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
	}
}

var _ storage.Storage = (*Storage)(nil)

// Upload puts the object with If-None-Match so an existing key is never replaced.
func (s *Storage) Upload(ctx context.Context, input *storage.UploadInput) (*storage.UploadResult, error) {
	key := s.objectKey(input.Key)

	params := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        input.Data,
		ContentType: aws.String(input.ContentType),
		IfNoneMatch: aws.String("*"),
	}
	if input.Size > 0 {
		params.ContentLength = aws.Int64(input.Size)
	}
	if input.CacheControl != "" {
		params.CacheControl = aws.String(input.CacheControl)
	}

	if _, err := s.client.PutObject(ctx, params); err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "PreconditionFailed" {
			return nil, apperrors.Conflict(fmt.Sprintf("object %s already exists", key))
		}
		return nil, fmt.Errorf("put object %s: %w", key, err)
	}

	return &storage.UploadResult{Key: key, URL: s.publicBaseURL + "/" + key}, nil
}

// Delete removes an object by its full key.
func (s *Storage) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object %s: %w", key, err)
	}
	return nil
}

// KeyFromURL recognises URLs under the public base URL.
func (s *Storage) KeyFromURL(rawURL string) (string, bool) {
	return storage.TrimPrefixKey(rawURL, s.publicBaseURL)
}

func (s *Storage) objectKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + "/" + key
}

func (s *Storage) String() string { return fmt.Sprintf("s3(%s/%s)", s.bucket, s.prefix) }
