// Package config loads process configuration from the environment.
package config

import (
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

var singleConfig *Config = nil

type Config struct {
	Queue      QueueConfig
	Retry      RetryConfig
	Store      StoreConfig
	Blob       BlobConfig
	Lock       LockConfig
	Similarity SimilarityConfig
	Service    ServiceConfig
}

type QueueConfig struct {
	URL       string `envconfig:"UNDERWRITER_QUEUE_URL" default:""`
	RetryURL  string `envconfig:"SQS_RETRY_QUEUE" default:""`
	OutputURL string `envconfig:"SQS_OUTPUT_QUEUE" default:""`
	Region    string `envconfig:"AWS_REGION" default:"us-east-1"`
	// ProcessingTimeout bounds one message; keep it below the queue visibility timeout.
	ProcessingTimeout time.Duration `envconfig:"PROCESSING_TIMEOUT" default:"30s"`
	BatchSize         int32         `envconfig:"SQS_BATCH_SIZE" default:"5"`
	// FailurePolicy is "delete" to drop unprocessable messages or "redrive" to leave them to the
	// queue's dead-letter redrive.
	FailurePolicy string `envconfig:"FAILURE_POLICY" default:"delete"`
}

// RetryTarget is the queue requeued attempts are sent to.
func (q QueueConfig) RetryTarget() string {
	if q.RetryURL != "" {
		return q.RetryURL
	}
	return q.URL
}

type RetryConfig struct {
	BaseDelay   float64       `envconfig:"RETRY_BASE_DELAY" default:"2"`
	MaxAttempts int           `envconfig:"RETRY_MAX_ATTEMPTS" default:"5"`
	MaxDelay    time.Duration `envconfig:"RETRY_MAX_DELAY" default:"900s"`
}

type StoreConfig struct {
	URI        string `envconfig:"MONGO_URI" default:""`
	Database   string `envconfig:"MONGO_DATABASE" default:"underwriting"`
	Collection string `envconfig:"MONGO_COLLECTION" default:"beneficiarios"`
	SecretName string `envconfig:"MONGO_SECRET_NAME" default:""`
}

type BlobConfig struct {
	Backend        string `envconfig:"BLOB_BACKEND" default:"s3"`
	Bucket         string `envconfig:"S3_BUCKET" default:""`
	Folder         string `envconfig:"FOLDER_NAME" default:""`
	MinioEndpoint  string `envconfig:"MINIO_ENDPOINT" default:""`
	MinioAccessKey string `envconfig:"MINIO_ACCESS_KEY" default:""`
	MinioSecretKey string `envconfig:"MINIO_SECRET_KEY" default:""`
	MinioUseSSL    bool   `envconfig:"MINIO_USE_SSL" default:"false"`
}

type LockConfig struct {
	RedisURL string        `envconfig:"REDIS_URL" default:""`
	TTL      time.Duration `envconfig:"LOCK_TTL" default:"5m"`
}

type SimilarityConfig struct {
	DocumentTypes DocumentTypes `envconfig:"SIMILARITY_LIST" default:"ctps|comprovante_residencia"`
	Threshold     float64       `envconfig:"SIMILARITY_THRESHOLD" default:"0.85"`
	Metric        string        `envconfig:"SIMILARITY_METRIC" default:"sequential"`
}

type ServiceConfig struct {
	MetricsAddress string `envconfig:"METRICS_ADDRESS" default:":9090"`
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat      string `envconfig:"LOG_FORMAT" default:"console"`
}

// DocumentTypes is a pipe-separated list of document types.
type DocumentTypes []string

// Decode implements envconfig.Decoder.
func (d *DocumentTypes) Decode(value string) error {
	out := DocumentTypes{}
	for _, part := range strings.Split(value, "|") {
		if part = strings.ToLower(strings.TrimSpace(part)); part != "" {
			out = append(out, part)
		}
	}
	*d = out
	return nil
}

// New returns the process configuration, loading it on first use.
func New() (*Config, error) {
	if singleConfig == nil {
		cfg, err := Load()
		if err != nil {
			return nil, err
		}
		singleConfig = cfg
	}
	return singleConfig, nil
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	cfg := new(Config)
	if err := envconfig.Process("", cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
