package feed

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Client is the subset of *s3.Client the archiver needs, abstracted so
// tests can inject a fake.
type S3Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Archiver uploads each archived feed payload as an object keyed by
// source, feed type, and send time.
type S3Archiver struct {
	client S3Client
	bucket string
	prefix string
}

// NewS3Archiver builds an archiver against bucket using region/endpoint
// credentials resolved the standard AWS SDK way (env vars, shared config,
// or the explicit accessKey/secretKey pair when non-empty).
func NewS3Archiver(ctx context.Context, region, endpoint, accessKey, secretKey, bucket, prefix string) (*S3Archiver, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if accessKey != "" && secretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("feed: s3 archiver: load config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = endpoint != ""
	})

	return &S3Archiver{client: client, bucket: bucket, prefix: prefix}, nil
}

// NewS3ArchiverWithClient wraps an already-constructed S3Client, for tests
// and for callers that already manage their own AWS config.
func NewS3ArchiverWithClient(client S3Client, bucket, prefix string) *S3Archiver {
	return &S3Archiver{client: client, bucket: bucket, prefix: prefix}
}

// Archive uploads the feed payload as an S3 object.
func (a *S3Archiver) Archive(ctx context.Context, source string, feedType FeedType, payload []byte, sendErr error) error {
	status := "success"
	if sendErr != nil {
		status = "failed"
	}
	key := fmt.Sprintf("%s%s/%s/%s-%s.xml", a.prefix, source, feedType, time.Now().UTC().Format("20060102T150405Z"), status)

	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(payload),
		ContentType: aws.String("application/xml"),
	})
	if err != nil {
		return fmt.Errorf("feed: s3 archiver: put object %s/%s: %w", a.bucket, key, err)
	}
	return nil
}
