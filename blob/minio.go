package blob

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type MinioOpts func(c *minioConfig)

type minioConfig struct {
	endpoint        string
	bucket          string
	accessKey       string
	secretAccessKey string
	useSSL          bool
}

// MinioFetcher reads objects from an S3-compatible MinIO bucket.
type MinioFetcher struct {
	cfg    *minioConfig
	client *minio.Client
}

func NewMinioFetcher(opts ...MinioOpts) (*MinioFetcher, error) {
	cfg := &minioConfig{}
	for _, o := range opts {
		o(cfg)
	}

	client, err := minio.New(cfg.endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.accessKey, cfg.secretAccessKey, ""),
		Secure: cfg.useSSL,
	})
	if err != nil {
		return nil, err
	}
	return &MinioFetcher{cfg: cfg, client: client}, nil
}

func (m *MinioFetcher) Fetch(ctx context.Context, key string) ([]byte, error) {
	object, err := m.client.GetObject(ctx, m.cfg.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, m.wrap(key, err)
	}
	defer object.Close()

	body, err := io.ReadAll(object)
	if err != nil {
		return nil, m.wrap(key, err)
	}
	return body, nil
}

func (m *MinioFetcher) wrap(key string, err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return fmt.Errorf("%s/%s: %w", m.cfg.bucket, key, ErrObjectNotFound)
	}
	return fmt.Errorf("get %s/%s: %w", m.cfg.bucket, key, err)
}

func WithEndpoint(endpoint string) MinioOpts {
	return func(c *minioConfig) {
		c.endpoint = endpoint
	}
}

func WithBucket(bucket string) MinioOpts {
	return func(c *minioConfig) {
		c.bucket = bucket
	}
}

func WithAccessKey(accessKey string) MinioOpts {
	return func(c *minioConfig) {
		c.accessKey = accessKey
	}
}

func WithSecretKey(secretKey string) MinioOpts {
	return func(c *minioConfig) {
		c.secretAccessKey = secretKey
	}
}

func WithSSL(useSSL bool) MinioOpts {
	return func(c *minioConfig) {
		c.useSSL = useSSL
	}
}
