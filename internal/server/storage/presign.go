// Package storage issues presigned S3 URLs for profile and event pictures.
// Clients upload directly to the bucket; the server only stores object keys.
package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	sc "github.com/dmitrijs2005/eventpass/internal/server/config"
	"github.com/google/uuid"
)

var (
	loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}

	now = time.Now
)

// Upload is a presigned PUT target.
type Upload struct {
	Key       string    `json:"key"`
	URL       string    `json:"uploadUrl"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Download is a presigned GET for a stored picture.
type Download struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Presigner signs object URLs against one bucket.
type Presigner struct {
	client *s3.PresignClient
	bucket string
	ttl    time.Duration
}

// NewPresigner builds an S3 client from static credentials. Nothing is sent
// over the network until a signed URL is used.
func NewPresigner(ctx context.Context, c *sc.Config) (*Presigner, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		awsconfig.WithRegion(c.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			c.S3RootUser,
			c.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if c.S3BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(c.S3BaseEndpoint)
			o.UsePathStyle = true
		}
	})

	ttl := c.PresignValidityDuration
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}

	return &Presigner{client: s3.NewPresignClient(client), bucket: c.S3Bucket, ttl: ttl}, nil
}

// ObjectKey returns a fresh key under prefix, partitioned by date.
func ObjectKey(prefix string) string {
	d := now().UTC()
	return fmt.Sprintf("%s/%d/%02d/%02d/%s", strings.Trim(prefix, "/"), d.Year(), d.Month(), d.Day(), uuid.New())
}

// UploadURL presigns a PUT for a new object under prefix.
func (p *Presigner) UploadURL(ctx context.Context, prefix string) (*Upload, error) {
	key := ObjectKey(prefix)
	bucket := p.bucket

	req, err := presignPutObject(p.client, ctx, &s3.PutObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(p.ttl))
	if err != nil {
		return nil, fmt.Errorf("presign put: %w", err)
	}

	return &Upload{Key: key, URL: req.URL, ExpiresAt: now().Add(p.ttl)}, nil
}

// DownloadURL presigns a GET for key.
func (p *Presigner) DownloadURL(ctx context.Context, key string) (*Download, error) {
	bucket := p.bucket

	req, err := presignGetObject(p.client, ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(p.ttl))
	if err != nil {
		return nil, fmt.Errorf("presign get: %w", err)
	}
	return &Download{URL: req.URL, ExpiresAt: now().Add(p.ttl)}, nil
}
