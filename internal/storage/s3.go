package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/ignite/outreach-engine/internal/workflow"
)

// S3Store reads campaign documents from an S3 bucket.
type S3Store struct {
	client *s3.Client
	bucket string
}

// NewS3Store creates an S3-backed document store.
func NewS3Store(ctx context.Context, bucket, region, profile string) (*S3Store, error) {
	var cfg aws.Config
	var err error
	if profile != "" {
		cfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(region),
			awsconfig.WithSharedConfigProfile(profile),
		)
	} else {
		cfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(region),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return &S3Store{client: s3.NewFromConfig(cfg), bucket: bucket}, nil
}

func (s *S3Store) getObject(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("getting s3://%s/%s: %w", s.bucket, key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("reading s3://%s/%s: %w", s.bucket, key, err)
	}
	return data, nil
}

// LoadProspectList reads and decodes a prospect list document.
func (s *S3Store) LoadProspectList(ctx context.Context, key string) ([]Prospect, error) {
	data, err := s.getObject(ctx, key)
	if err != nil {
		return nil, err
	}
	var prospects []Prospect
	if err := json.Unmarshal(data, &prospects); err != nil {
		return nil, fmt.Errorf("parsing prospect list %s: %w", key, err)
	}
	return prospects, nil
}

// LoadWorkflow reads and parses a workflow document.
func (s *S3Store) LoadWorkflow(ctx context.Context, key string) (*workflow.Workflow, error) {
	data, err := s.getObject(ctx, key)
	if err != nil {
		return nil, err
	}
	return workflow.Parse(data)
}
