package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hatsunemiku3939/underwriter"
	"github.com/hatsunemiku3939/underwriter/blob"
	"github.com/hatsunemiku3939/underwriter/catalog"
	"github.com/hatsunemiku3939/underwriter/config"
	"github.com/hatsunemiku3939/underwriter/consumer"
	"github.com/hatsunemiku3939/underwriter/lock"
	"github.com/hatsunemiku3939/underwriter/metrics"
	"github.com/hatsunemiku3939/underwriter/orchestrator"
	"github.com/hatsunemiku3939/underwriter/pkg/similarity"
	"github.com/hatsunemiku3939/underwriter/policy/failure"
	"github.com/hatsunemiku3939/underwriter/queue"
	"github.com/hatsunemiku3939/underwriter/resolver"
	"github.com/hatsunemiku3939/underwriter/rules"
	"github.com/hatsunemiku3939/underwriter/store"
	"github.com/hatsunemiku3939/underwriter/types"
)

var consumeCmd = &cobra.Command{
	Use:   "consume",
	Short: "Consume validation messages from the queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.New()
		if err != nil {
			return err
		}
		logger := zap.S().Named("main")
		defer func() { _ = zap.L().Sync() }()

		if cfg.Queue.URL == "" {
			return errors.New("UNDERWRITER_QUEUE_URL is not set")
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Queue.Region))
		if err != nil {
			return fmt.Errorf("load aws config: %w", err)
		}

		db, err := openStore(ctx, cfg.Store, secretsmanager.NewFromConfig(awsCfg))
		if err != nil {
			return err
		}
		defer func() {
			closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer closeCancel()
			if err := db.Close(closeCtx); err != nil {
				logger.Warnw("closing store", "error", err)
			}
		}()

		locker, err := openLocker(ctx, cfg.Lock)
		if err != nil {
			return err
		}

		fetcher, err := openFetcher(cfg.Blob, s3.NewFromConfig(awsCfg))
		if err != nil {
			return err
		}

		registry, err := catalog.Registry(
			catalog.WithDuplicateDetection(cfg.Similarity.Threshold, similarity.Metric(cfg.Similarity.Metric)),
		)
		if err != nil {
			return err
		}
		dispatcher := rules.NewDispatcher(registry, resolver.New(db, cfg.Similarity.DocumentTypes))

		m := metrics.New(prometheus.DefaultRegisterer)
		sqsClient := sqs.NewFromConfig(awsCfg)
		opts := []orchestrator.Option{
			orchestrator.WithRetry(cfg.Retry.BaseDelay, cfg.Retry.MaxAttempts, cfg.Retry.MaxDelay),
			orchestrator.WithLocker(locker, cfg.Lock.TTL),
			orchestrator.WithMetrics(m),
		}
		if fetcher != nil {
			opts = append(opts, orchestrator.WithFetcher(fetcher, cfg.Blob.Folder))
		}
		if cfg.Queue.OutputURL != "" {
			opts = append(opts, orchestrator.WithPublisher(queue.NewPublisher(sqsClient, cfg.Queue.OutputURL)))
		}
		orch := orchestrator.New(dispatcher, db, queue.NewRequeuer(sqsClient, cfg.Queue.RetryTarget()), opts...)

		policy, err := failurePolicy(cfg.Queue.FailurePolicy)
		if err != nil {
			return err
		}
		router, err := underwriter.NewRouter(underwriter.MessageSchema,
			underwriter.WithFailurePolicy(policy),
			underwriter.WithMiddleware(underwriter.LoggingMiddleware(zap.S().Named("router")), m.Middleware()),
		)
		if err != nil {
			return err
		}
		handler := orch.Handler()
		for _, kind := range []types.MessageType{types.MessageStandard, types.MessageSignature, types.MessageFraudMetadata} {
			router.Register(kind, handler)
		}

		server := &http.Server{
			Addr:              cfg.Service.MetricsAddress,
			Handler:           metrics.Handler(prometheus.DefaultGatherer),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Infow("serving metrics", "address", server.Addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Errorw("metrics server stopped", "error", err)
			}
		}()

		c := consumer.NewConsumer(sqsClient, cfg.Queue.URL, router,
			consumer.WithProcessingTimeout(cfg.Queue.ProcessingTimeout),
			consumer.WithMaxMessages(cfg.Queue.BatchSize))
		logger.Infow("consuming", "queue", cfg.Queue.URL, "document_types", registry.Types())
		c.Start(ctx)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	},
}

type closableStore interface {
	store.Store
	Close(ctx context.Context) error
}

// openStore connects to Mongo, reading the connection from Secrets Manager when a secret name is set.
func openStore(ctx context.Context, cfg config.StoreConfig, secrets store.SecretsClient) (closableStore, error) {
	uri, database := cfg.URI, cfg.Database
	if cfg.SecretName != "" {
		creds, err := store.CredentialsFromSecret(ctx, secrets, cfg.SecretName)
		if err != nil {
			return nil, err
		}
		uri = creds.URI
		if creds.Database != "" {
			database = creds.Database
		}
	}
	if uri == "" {
		return nil, errors.New("neither MONGO_URI nor MONGO_SECRET_NAME is set")
	}
	return store.NewMongoStore(ctx, uri, database, cfg.Collection)
}

// openLocker shares leases through Redis when configured and keeps them in process otherwise.
func openLocker(ctx context.Context, cfg config.LockConfig) (lock.Locker, error) {
	if cfg.RedisURL == "" {
		zap.S().Named("main").Warn("REDIS_URL is not set, document locks are local to this process")
		return lock.NewMemoryLocker(), nil
	}
	client, err := lock.Dial(ctx, cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	return lock.NewRedisLocker(client), nil
}

// openFetcher returns the object store holding large messages, or nil when none is configured.
func openFetcher(cfg config.BlobConfig, client blob.S3Client) (blob.Fetcher, error) {
	switch cfg.Backend {
	case "minio":
		return blob.NewMinioFetcher(
			blob.WithEndpoint(cfg.MinioEndpoint),
			blob.WithBucket(cfg.Bucket),
			blob.WithAccessKey(cfg.MinioAccessKey),
			blob.WithSecretKey(cfg.MinioSecretKey),
			blob.WithSSL(cfg.MinioUseSSL),
		)
	case "s3", "":
		if cfg.Bucket == "" {
			return nil, nil
		}
		return blob.NewS3Fetcher(client, cfg.Bucket), nil
	}
	return nil, fmt.Errorf("unknown blob backend %q", cfg.Backend)
}

func failurePolicy(name string) (failure.Policy, error) {
	switch name {
	case "delete", "":
		return failure.ImmediateDeletePolicy{}, nil
	case "redrive":
		return failure.SQSRedrivePolicy{}, nil
	}
	return nil, fmt.Errorf("unknown failure policy %q", name)
}
