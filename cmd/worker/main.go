package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/learnlive/backend/config"
	"github.com/learnlive/backend/internal/recordings"
	"github.com/learnlive/backend/internal/worker"
	"github.com/learnlive/backend/pkg/database"
	"github.com/learnlive/backend/pkg/queue"
	"github.com/learnlive/backend/pkg/redis"
	"github.com/learnlive/backend/pkg/storage"
)

func main() {
	zcfg := zap.NewProductionConfig()
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, err := zcfg.Build()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("connect postgres", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("connect redis", zap.Error(err))
	}
	defer rdb.Close()

	s3Client, err := storage.NewS3(ctx, storage.S3Config{
		Region:               cfg.AWS.Region,
		AccessKeyID:          cfg.AWS.AccessKeyID,
		SecretAccessKey:      cfg.AWS.SecretAccessKey,
		RecordingsBucket:     cfg.AWS.RecordingsBucket,
		PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
	}, logger)
	if err != nil {
		logger.Fatal("create s3 client", zap.Error(err))
	}

	jobQueue := queue.NewQueue(rdb.Client, logger)
	recordingRepo := recordings.NewRepository(pool)

	w := worker.New(jobQueue, recordingRepo, s3Client, logger)
	if err := w.Run(ctx); err != nil && err != context.Canceled {
		logger.Fatal("worker", zap.Error(err))
	}
	logger.Info("worker stopped")
}
