package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config locates the bucket search exports are published to. Endpoint is
// set for S3-compatible services (Spaces, R2, MinIO) and left empty for AWS.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	Prefix          string
	AccessKeyID     string
	SecretAccessKey string
}

// ObjectKey places an export key under the configured prefix.
func (c S3Config) ObjectKey(key string) string {
	if c.Prefix == "" {
		return key
	}
	return path.Join(c.Prefix, key)
}

// ObjectURL is where an uploaded export can be fetched from. Spaces serves
// buckets as subdomains, other custom endpoints use path style.
func (c S3Config) ObjectURL(key string) string {
	key = c.ObjectKey(key)
	if c.Endpoint == "" {
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", c.Bucket, c.Region, key)
	}

	u, err := url.Parse(c.Endpoint)
	if err != nil || u.Host == "" {
		return strings.TrimSuffix(c.Endpoint, "/") + "/" + c.Bucket + "/" + key
	}
	if strings.HasSuffix(u.Host, "digitaloceanspaces.com") {
		u.Scheme = "https"
		u.Host = c.Bucket + "." + u.Host
		u.Path = "/" + key
		return u.String()
	}
	u.Path = path.Join("/", u.Path, c.Bucket, key)
	return u.String()
}

// S3Uploader publishes result exports as objects.
type S3Uploader struct {
	client *s3.Client
	cfg    S3Config
}

func NewS3Uploader(ctx context.Context, cfg S3Config) (*S3Uploader, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &S3Uploader{client: s3.NewFromConfig(awsCfg, endpointOptions(cfg)...), cfg: cfg}, nil
}

func endpointOptions(cfg S3Config) []func(*s3.Options) {
	if cfg.Endpoint == "" {
		return nil
	}
	return []func(*s3.Options){func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.Endpoint)
		o.UsePathStyle = true
	}}
}

// Upload writes data under the prefixed key. Exports are overwritten by
// reruns of the same search, so they are marked as uncacheable.
func (u *S3Uploader) Upload(ctx context.Context, key string, data io.Reader, contentType string) error {
	if contentType == "" {
		contentType = "application/json"
	}
	objectKey := u.cfg.ObjectKey(key)
	if _, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(u.cfg.Bucket),
		Key:          aws.String(objectKey),
		Body:         data,
		ContentType:  aws.String(contentType),
		CacheControl: aws.String("no-cache"),
	}); err != nil {
		return fmt.Errorf("upload export %s: %w", objectKey, err)
	}
	return nil
}

func (u *S3Uploader) PublicURL(key string) string {
	return u.cfg.ObjectURL(key)
}
