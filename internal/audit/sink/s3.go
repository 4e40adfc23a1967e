// Package sink provides the partitioned object stores the audit pipeline
// writes trail entries into.
package sink

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Sink writes each trail entry as one object under its partition key.
type S3Sink struct {
	client *s3.Client
	bucket string
}

func NewS3(cfg aws.Config, bucket string) *S3Sink {
	return &S3Sink{
		client: s3.NewFromConfig(cfg),
		bucket: bucket,
	}
}

// NewS3FromEnv loads the default AWS config chain for the given region.
func NewS3FromEnv(ctx context.Context, region, bucket string) (*S3Sink, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewS3(cfg, bucket), nil
}

func (s *S3Sink) Write(ctx context.Context, key string, line []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(line),
	})
	if err != nil {
		return fmt.Errorf("put audit entry %s: %w", key, err)
	}
	return nil
}
