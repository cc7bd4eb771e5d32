package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"oif/internal/config"
	"oif/internal/datasource"
)

// s3API is the subset of *s3.Client used here.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, opts ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	s3.ListObjectsV2APIClient
}

// S3 stores objects in one bucket.
type S3 struct {
	client     s3API
	bucket     string
	acl        types.ObjectCannedACL
	maxRetries int

	// sleep is swapped in tests.
	sleep func(time.Duration)
}

// NewS3 loads the default AWS credential chain and applies the region,
// custom endpoint and path-style settings from cfg.
func NewS3(ctx context.Context, cfg config.Storage) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("objectstore: s3 bucket is empty")
	}
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("objectstore: load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	if cfg.PathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}
	return newS3WithClient(s3.NewFromConfig(awsCfg, s3Opts...), cfg), nil
}

func newS3WithClient(client s3API, cfg config.Storage) *S3 {
	acl := cfg.ACL
	if acl == "" {
		acl = DefaultACL
	}
	retries := cfg.MaxRetries
	if retries == 0 {
		retries = 3
	}
	return &S3{
		client:     client,
		bucket:     cfg.Bucket,
		acl:        types.ObjectCannedACL(acl),
		maxRetries: retries,
		sleep:      time.Sleep,
	}
}

// Bucket is the bucket objects are written to.
func (s *S3) Bucket() string { return s.bucket }

// Put writes body under key with the configured canned ACL.
func (s *S3) Put(ctx context.Context, key string, body []byte, contentType string, meta map[string]string) error {
	return s.retryWithBackoff(ctx, func() error {
		in := &s3.PutObjectInput{
			Bucket:        aws.String(s.bucket),
			Key:           aws.String(key),
			Body:          bytes.NewReader(body),
			ContentLength: aws.Int64(int64(len(body))),
			ACL:           s.acl,
			Metadata:      meta,
		}
		if contentType != "" {
			in.ContentType = aws.String(contentType)
		}
		_, err := s.client.PutObject(ctx, in)
		return err
	})
}

// Get reads key from the store's bucket.
func (s *S3) Get(ctx context.Context, key string) ([]byte, error) {
	return s.getFrom(ctx, s.bucket, key)
}

func (s *S3) getFrom(ctx context.Context, bucket, key string) ([]byte, error) {
	var body []byte
	err := s.retryWithBackoff(ctx, func() error {
		resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			var noSuchKey *types.NoSuchKey
			if errors.As(err, &noSuchKey) {
				return fmt.Errorf("s3://%s/%s: %w", bucket, key, ErrNotFound)
			}
			return err
		}
		defer resp.Body.Close()
		body, err = io.ReadAll(resp.Body)
		return err
	})
	return body, err
}

// Exists reports whether key is present.
func (s *S3) Exists(ctx context.Context, key string) (bool, error) {
	var exists bool
	err := s.retryWithBackoff(ctx, func() error {
		_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			var notFound *types.NotFound
			if errors.As(err, &notFound) {
				exists = false
				return nil
			}
			return err
		}
		exists = true
		return nil
	})
	return exists, err
}

// List pages through every key under prefix.
func (s *S3) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("objectstore: list %s: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Source reads s3://bucket/key with this store's client, so spreadsheets
// staged in any readable bucket can be extracted.
func (s *S3) Source(bucket, key string) datasource.Source {
	return s3Source{s: s, bucket: bucket, key: key}
}

type s3Source struct {
	s           *S3
	bucket, key string
}

func (src s3Source) Open(ctx context.Context) (io.ReadCloser, error) {
	b, err := src.s.getFrom(ctx, src.bucket, src.key)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

// retryWithBackoff runs op up to maxRetries+1 times with exponential
// backoff starting at 100ms. Missing objects are not retried.
func (s *S3) retryWithBackoff(ctx context.Context, op func() error) error {
	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = op()
		if lastErr == nil || errors.Is(lastErr, ErrNotFound) {
			return lastErr
		}
		if attempt < s.maxRetries {
			s.sleep((100 * time.Millisecond) << attempt)
		}
	}
	return lastErr
}
