// Package storage persists uploaded plan documents in S3-compatible object
// storage (MinIO in development).
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

type Client struct {
	s3     *s3.Client
	bucket string
}

type Config struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
}

func New(ctx context.Context, cfg Config) (*Client, error) {
	resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		return aws.Endpoint{URL: fmt.Sprintf("http://%s", cfg.Endpoint),
			HostnameImmutable: true}, nil
	})
	awsCfg, err := awsconfig.LoadDefaultConfig(
		ctx,
		awsconfig.WithRegion("us-east-1"),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey,
			cfg.SecretKey,
			"")),
		awsconfig.WithEndpointResolverWithOptions(resolver),
	)
	if err != nil {
		return nil, err
	}
	return &Client{s3: s3.NewFromConfig(awsCfg), bucket: cfg.Bucket}, nil
}

// SavePlan stores a plan document and returns its object reference and the
// stored object name.
func (c *Client) SavePlan(ctx context.Context, projectID string, data []byte) (string, string, error) {
	name := fmt.Sprintf("%s_%s.pdf", projectID, uuid.NewString())
	key := fmt.Sprintf("plans/%s", name)
	_, err := c.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &c.bucket,
		Key:         &key,
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/pdf"),
	})
	if err != nil {
		return "", "", err
	}
	return fmt.Sprintf("s3://%s/%s", c.bucket, key), name, nil
}

// Get reads the full object back. The pipeline requires the document to be
// durably readable before extraction begins. The bucket comes from the ref
// itself, so refs minted under an earlier bucket configuration still
// resolve correctly.
func (c *Client) Get(ctx context.Context, ref string) ([]byte, error) {
	bucket, key, err := parseRef(ref)
	if err != nil {
		return nil, err
	}
	out, err := c.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", ref, err)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

func (c *Client) Delete(ctx context.Context, ref string) error {
	bucket, key, err := parseRef(ref)
	if err != nil {
		return err
	}
	_, err = c.s3.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: &bucket,
		Key:    &key,
	})
	return err
}

func (c *Client) Size(ctx context.Context, ref string) (int64, error) {
	bucket, key, err := parseRef(ref)
	if err != nil {
		return 0, err
	}
	out, err := c.s3.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: &bucket,
		Key:    &key,
	})
	if err != nil {
		return 0, err
	}
	if out.ContentLength == nil {
		return 0, nil
	}
	return *out.ContentLength, nil
}

func parseRef(ref string) (string, string, error) {
	const p = "s3://"
	if !strings.HasPrefix(ref, p) {
		return "", "", fmt.Errorf("bad object ref (missing s3://): %q", ref)
	}
	s := strings.TrimPrefix(ref, p)
	slash := strings.IndexByte(s, '/')
	if slash <= 0 || slash == len(s)-1 {
		return "", "", fmt.Errorf("bad object ref (need bucket/key): %q", ref)
	}
	return s[:slash], s[slash+1:], nil
}
