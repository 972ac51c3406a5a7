package main

import (
	"context"
	"log"
	"net/http"
	ossignal "os/signal"
	"syscall"

	"classrelay/internal/core/ports"
	"classrelay/internal/core/services"
	httphandlers "classrelay/internal/handlers/http"
	"classrelay/internal/infrastructure/middleware"
	"classrelay/internal/infrastructure/monitoring"
	"classrelay/internal/infrastructure/repositories/memory"
	redisrepo "classrelay/internal/infrastructure/repositories/redis"
	"classrelay/internal/infrastructure/signal"
	"classrelay/pkg/config"
	"classrelay/pkg/logger"
	"classrelay/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
)

func main() {
	configPaths := []string{
		"configs/config.yaml",
		"./configs/config.yaml",
		"config.yaml",
	}

	var cfg *config.Config
	var err error

	for _, path := range configPaths {
		cfg, err = config.Load(path)
		if err == nil {
			break
		}
	}
	if err != nil {
		log.Printf("Could not load config from any path, using defaults")
		cfg = config.DefaultConfig()
	}

	zlog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zlog.Sync()
	sugar := zlog.Sugar()

	tp, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: "classrelay",
		JaegerURL:   cfg.Tracing.JaegerURL,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		sugar.Fatalw("failed to init tracing", "error", err)
	}

	var collector *monitoring.Collector
	if cfg.Monitoring.PrometheusEnabled {
		collector = monitoring.NewCollector(prometheus.DefaultRegisterer)
	}

	authService := services.NewAuthService(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL.Std(), cfg.Auth.RefreshTokenTTL.Std())

	health := monitoring.NewHealthChecker()

	var store ports.MessageStore
	var redisClient *goredis.Client
	if cfg.Redis.Enabled {
		redisClient, err = redisrepo.NewClient(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.PoolSize, sugar)
		if err != nil {
			sugar.Fatalw("failed to connect to Redis", "error", err)
		}
		defer redisClient.Close()
		store = redisrepo.NewMessageStore(redisClient)
		health.AddCheck("redis", func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}, cfg.Persistence.Timeout.Std())
	} else {
		sugar.Warnw("redis disabled, using in-memory message store")
		store = memory.NewMessageStore()
	}

	rooms := memory.NewRoomRegistry()
	presence := memory.NewPresenceRegistry()

	opts := signal.Options{
		PingInterval:      cfg.WebSocket.PingInterval.Std(),
		PongTimeout:       cfg.WebSocket.PongTimeout.Std(),
		WriteTimeout:      cfg.WebSocket.WriteTimeout.Std(),
		SendBufferSize:    cfg.WebSocket.SendBufferSize,
		MaxMessageBytes:   cfg.WebSocket.MaxMessageBytes,
		MessagesPerSecond: cfg.WebSocket.MessagesPerSecond,
		MessageBurst:      cfg.WebSocket.MessageBurst,
	}

	groupHub := signal.NewHub("groups", opts, sugar, collector)
	chatHub := signal.NewHub("chat", opts, sugar, collector)
	meetingHub := signal.NewHub("meetings", opts, sugar, collector)

	groupRelay := signal.NewGroupChatRelay(groupHub, store, cfg.Persistence.Timeout.Std(), sugar, collector)
	chatPresence := signal.NewChatPresence(chatHub, presence, store, cfg.Persistence.Timeout.Std(), sugar, collector)
	meetings := signal.NewMeetingManager(meetingHub, rooms, sugar, collector)

	gate := signal.NewGate(authService, cfg.Auth.AllowedOrigins, sugar, collector)

	health.AddStat(func() (string, int) { return "group_connections", groupHub.ConnCount() })
	health.AddStat(func() (string, int) { return "chat_connections", chatHub.ConnCount() })
	health.AddStat(func() (string, int) { return "meeting_connections", meetingHub.ConnCount() })
	health.AddStat(func() (string, int) { return "meeting_rooms", rooms.RoomCount() })
	health.AddStat(func() (string, int) { return "users_online", presence.OnlineCount() })

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(middleware.RecoveryMiddleware(sugar))
	router.Use(middleware.ErrorHandlerMiddleware(sugar))
	router.Use(middleware.NewHTTPRateLimitMiddleware(cfg))
	if cfg.Tracing.Enabled {
		router.Use(middleware.TracingMiddleware())
	}

	authHandler := httphandlers.NewAuthHandler(authService, cfg.Auth.AccessTokenTTL.Std())
	authHandler.SetupRoutes(router)

	router.GET("/ws/groups", gate.Endpoint(groupHub, groupRelay))
	router.GET("/ws/chat", gate.Endpoint(chatHub, chatPresence))
	router.GET("/ws/meetings", gate.Endpoint(meetingHub, meetings))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, health.CheckAll(c.Request.Context()))
	})
	if cfg.Monitoring.PrometheusEnabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout.Std(),
		WriteTimeout: cfg.Server.WriteTimeout.Std(),
	}

	go func() {
		sugar.Infow("starting ClassRelay server", "address", cfg.Server.Address)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalw("server error", "error", err)
		}
	}()

	ctx, stop := ossignal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	sugar.Infow("shutting down")

	groupHub.CloseAll()
	chatHub.CloseAll()
	meetingHub.CloseAll()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Std())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		sugar.Errorw("shutdown error", "error", err)
	}

	if err := tp.Shutdown(shutdownCtx); err != nil {
		sugar.Errorw("tracing shutdown error", "error", err)
	}
}
