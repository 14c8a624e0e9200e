// Package media opens upload sources stored in S3-compatible object storage.
package media

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ObjectGetter is the part of the S3 API a Source needs.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Client opens objects as upload sources.
type S3Client struct {
	client ObjectGetter
}

// NewS3Client creates a client for AWS S3 or an S3-compatible service such
// as MinIO. Empty endpoint and keys fall back to the default AWS chain.
func NewS3Client(ctx context.Context, endpoint, region, accessKey, secretKey string) (*S3Client, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if endpoint != "" {
		opts = append(opts, config.WithBaseEndpoint(endpoint))
	}
	if accessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(aws.CredentialsProviderFunc(
			func(ctx context.Context) (aws.Credentials, error) {
				return aws.Credentials{
					AccessKeyID:     accessKey,
					SecretAccessKey: secretKey,
				}, nil
			})))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = endpoint != "" // MinIO and friends
	})
	return &S3Client{client: client}, nil
}

// NewS3ClientWith wraps an existing getter.
func NewS3ClientWith(getter ObjectGetter) *S3Client {
	return &S3Client{client: getter}
}

// ParseURI splits s3://bucket/key. ok is false for anything else.
func ParseURI(uri string) (bucket, key string, ok bool) {
	rest, found := strings.CutPrefix(uri, "s3://")
	if !found {
		return "", "", false
	}
	bucket, key, found = strings.Cut(rest, "/")
	if !found || bucket == "" || key == "" {
		return "", "", false
	}
	return bucket, key, true
}

// Open returns a Source for bucket/key. Nothing is fetched until the first
// Read.
func (s *S3Client) Open(ctx context.Context, bucket, key string) *Source {
	return &Source{ctx: ctx, client: s.client, bucket: bucket, key: key}
}

// Source is a lazily opened object stream. Name is the object key, so
// multipart encoders derive the part filename from its base name.
type Source struct {
	ctx    context.Context
	client ObjectGetter
	bucket string
	key    string

	once        sync.Once
	body        io.ReadCloser
	contentType string
	err         error
}

// Name implements form.NamedReader.
func (s *Source) Name() string { return s.key }

// URI returns s3://bucket/key.
func (s *Source) URI() string { return "s3://" + path.Join(s.bucket, s.key) }

func (s *Source) open() {
	out, err := s.client.GetObject(s.ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		s.err = fmt.Errorf("failed to get object %s: %w", s.URI(), err)
		return
	}
	s.body = out.Body
	s.contentType = aws.ToString(out.ContentType)
}

func (s *Source) Read(p []byte) (int, error) {
	s.once.Do(s.open)
	if s.err != nil {
		return 0, s.err
	}
	return s.body.Read(p)
}

// ContentType is the stored content type, known after the first Read.
func (s *Source) ContentType() string { return s.contentType }

// Close releases the object body if it was opened.
func (s *Source) Close() error {
	if s.body != nil {
		return s.body.Close()
	}
	return nil
}
