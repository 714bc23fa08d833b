package storage

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// s3API is the subset of the S3 client the publisher uses.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// S3Publisher uploads finished reports to a bucket.
type S3Publisher struct {
	client s3API
	bucket string
	prefix string
}

// NewS3Publisher loads AWS configuration from the default chain, or from
// profile when set.
func NewS3Publisher(ctx context.Context, bucket, region, prefix, profile string) (*S3Publisher, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(profile))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return &S3Publisher{
		client: s3.NewFromConfig(cfg),
		bucket: bucket,
		prefix: prefix,
	}, nil
}

// Key is the object key a report is stored under.
func (p *S3Publisher) Key(name string) string {
	if p.prefix == "" {
		return name
	}
	return path.Join(p.prefix, name)
}

// Publish uploads dir/name. The name must pass ValidateName.
func (p *S3Publisher) Publish(ctx context.Context, dir, name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	f, err := os.Open(filepath.Join(dir, name))
	if err != nil {
		return "", fmt.Errorf("open report: %w", err)
	}
	defer f.Close()

	key := p.Key(name)
	_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(ContentType(name)),
	})
	if err != nil {
		return "", fmt.Errorf("putting object to S3: %w", err)
	}
	return fmt.Sprintf("s3://%s/%s", p.bucket, key), nil
}

// Ping checks that the bucket is reachable.
func (p *S3Publisher) Ping(ctx context.Context) error {
	_, err := p.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(p.bucket)})
	return err
}

// Bucket is the target bucket name.
func (p *S3Publisher) Bucket() string { return p.bucket }
