// Package main runs the background worker: room activity from the Redis feed into Postgres
// and transcript archive jobs into S3.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/pairprep/backend/config"
	"github.com/pairprep/backend/internal/realtime"
	"github.com/pairprep/backend/internal/sessionlog"
	"github.com/pairprep/backend/internal/transcripts"
	"github.com/pairprep/backend/internal/worker"
	"github.com/pairprep/backend/pkg/database"
	"github.com/pairprep/backend/pkg/logger"
	"github.com/pairprep/backend/pkg/queue"
	"github.com/pairprep/backend/pkg/redis"
	"github.com/pairprep/backend/pkg/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if !cfg.Redis.Enabled() || !cfg.Database.Enabled() {
		log.Fatal("worker needs REDIS_ADDR and DATABASE_URL")
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), log)
	if err != nil {
		log.Fatal("database", zap.Error(err))
	}
	defer pool.Close()
	if cfg.Database.Migrate {
		if err := database.Migrate(ctx, pool); err != nil {
			log.Fatal("migrate", zap.Error(err))
		}
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, log)
	if err != nil {
		log.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := worker.NewRoomEventConsumer(sessionlog.NewRepository(pool, ""), log)
	feed := realtime.NewRedisPubSub(rdb.Client, "", log)
	unsubscribe, err := feed.SubscribeRoomEvents(workerCtx, events.Handle)
	if err != nil {
		log.Fatal("subscribe room events", zap.Error(err))
	}
	defer unsubscribe()
	log.Info("room event consumer started", zap.String("channel", realtime.RoomsChannel))

	var done <-chan struct{}
	if cfg.AWS.Enabled() {
		s3Client, err := storage.NewS3(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			Endpoint:             cfg.AWS.Endpoint,
			TranscriptsBucket:    cfg.AWS.TranscriptsBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}, log)
		if err != nil {
			log.Fatal("s3", zap.Error(err))
		}
		processor := worker.NewTranscriptProcessor(transcripts.NewRepository(pool), s3Client, queue.NewQueue(rdb.Client, log), log)
		finished := make(chan struct{})
		go func() {
			processor.Run(workerCtx)
			close(finished)
		}()
		done = finished
		log.Info("transcript worker started", zap.String("queue", queue.QueueTranscripts))
	} else {
		log.Warn("AWS_S3_TRANSCRIPTS_BUCKET not set: transcript jobs stay queued")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	if done != nil {
		select {
		case <-done:
		case <-time.After(10 * time.Second):
			log.Warn("transcript worker did not stop in time")
		}
	}
	log.Info("worker stopped")
}
