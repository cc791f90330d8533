// Package main runs the interview room server: WebSocket sessions, REST lookups and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pairprep/backend/config"
	"github.com/pairprep/backend/internal/cache"
	"github.com/pairprep/backend/internal/catalog"
	"github.com/pairprep/backend/internal/lifecycle"
	"github.com/pairprep/backend/internal/middleware"
	"github.com/pairprep/backend/internal/realtime"
	"github.com/pairprep/backend/internal/room"
	"github.com/pairprep/backend/internal/sessionlog"
	"github.com/pairprep/backend/internal/status"
	"github.com/pairprep/backend/internal/transcripts"
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
	log = log.With(zap.String("instance", cfg.Rooms.InstanceID))

	ctx := context.Background()
	problems := catalog.Default()
	if !problems.Has(cfg.Rooms.DefaultProblem) {
		log.Warn("default problem not in catalog", zap.String("problem", cfg.Rooms.DefaultProblem))
	}

	reg := realtime.NewRegistry()
	pump := lifecycle.NewPump(cfg.Rooms.LifecycleBuffer, log)

	var claims *cache.RoomClaims
	var rdb *redis.Client
	if cfg.Redis.Enabled() {
		rdb, err = redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, log)
		if err != nil {
			log.Fatal("redis", zap.Error(err))
		}
		defer rdb.Close()
		claims = cache.NewRoomClaims(rdb.Client, cfg.Rooms.InstanceID, 0)
		pump.Add("claim-refresh", claims)
		pump.Add("redis-feed", realtime.NewRedisPubSub(rdb.Client, cfg.Rooms.InstanceID, log))
		pump.Add("transcript-archive", transcripts.NewArchiver(queue.NewQueue(rdb.Client, log), log))
	} else {
		log.Info("redis disabled: room codes are local, no event feed or transcript archive")
	}

	var sessionLogRepo *sessionlog.Repository
	var transcriptRepo *transcripts.Repository
	if cfg.Database.Enabled() {
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
		sessionLogRepo = sessionlog.NewRepository(pool, cfg.Rooms.InstanceID)
		transcriptRepo = transcripts.NewRepository(pool)
		if rdb == nil {
			// No Redis feed means no worker; record activity in-process.
			pump.Add("activity-log", sessionLogRepo)
		}
	}

	var s3Client *storage.S3
	if cfg.AWS.Enabled() {
		s3Client, err = storage.NewS3(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			Endpoint:             cfg.AWS.Endpoint,
			TranscriptsBucket:    cfg.AWS.TranscriptsBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}, log)
		if err != nil {
			log.Warn("s3 disabled", zap.Error(err))
			s3Client = nil
		}
	}

	storeOpts := room.StoreOptions{
		CodeLength:     cfg.Rooms.CodeLength,
		DefaultProblem: cfg.Rooms.DefaultProblem,
		TimerSeconds:   cfg.Rooms.TimerSeconds,
		Bindings:       reg,
		Logger:         log,
	}
	if claims != nil {
		storeOpts.Claimer = claims
	}
	store := room.NewStore(storeOpts)
	engine := room.NewEngine(room.EngineOptions{
		Store:            store,
		Bindings:         reg,
		Broadcaster:      realtime.NewDispatcher(reg, log),
		Starters:         problems,
		Observer:         pump,
		Logger:           log,
		WhiteboardReplay: cfg.Rooms.WhiteboardReplay,
		MaxStrokes:       cfg.Rooms.MaxStrokes,
	})
	hub := realtime.NewHub(reg, engine, realtime.Options{
		PingInterval:   cfg.Realtime.PingInterval,
		PongWait:       cfg.Realtime.PongWait,
		WriteWait:      cfg.Realtime.WriteWait,
		MaxMessageSize: cfg.Realtime.MaxMessageSize,
		SendBuffer:     cfg.Realtime.SendBuffer,
		AllowedOrigins: cfg.Realtime.AllowedOrigins,
	}, log)

	var owners status.OwnerLookup
	if claims != nil {
		owners = claims
	}
	statusHandler := status.NewHandler(store, hub, owners, cfg.Rooms.InstanceID, log)
	catalogHandler := catalog.NewHandler(problems)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(log, "/health"))

	router.GET("/health", statusHandler.Health)
	router.GET("/rooms/:code", statusHandler.Room)
	router.GET("/problems", catalogHandler.List)
	router.GET("/problems/:slug", catalogHandler.Get)
	if sessionLogRepo != nil {
		router.GET("/rooms/:code/activity", sessionlog.NewHandler(sessionLogRepo, log).GetActivity)
	}
	if transcriptRepo != nil {
		var signer transcripts.Presigner
		if s3Client != nil {
			signer = s3Client
		}
		th := transcripts.NewHandler(transcriptRepo, signer, log)
		router.GET("/rooms/:code/transcripts", th.ListByRoom)
		router.GET("/transcripts/:id", th.Get)
	}
	router.GET("/ws", realtime.ServeWs(hub))

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: time.Duration(cfg.Server.ReadTimeout) * time.Second,
	}

	pumpCtx, stopPump := context.WithCancel(context.Background())
	go pump.Run(pumpCtx)

	go func() {
		log.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", zap.Error(err))
	}
	closed := hub.CloseAll()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ConnectionCount() > 0 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	log.Info("websocket connections closed", zap.Int("count", closed))
	stopPump()
	select {
	case <-pump.Done():
	case <-shutdownCtx.Done():
		log.Warn("lifecycle pump did not drain before shutdown deadline")
	}
	log.Info("server stopped", zap.Int("rooms", store.Count()), zap.Int("dropped_events", pump.Dropped()))
}
