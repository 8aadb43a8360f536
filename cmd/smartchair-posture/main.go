package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"smartchair/internal/alert"
	"smartchair/internal/config"
	"smartchair/internal/consumer"
	"smartchair/internal/database"
	httpapi "smartchair/internal/http"
	logpkg "smartchair/internal/logger"
	mqttcommon "smartchair/internal/mqtt"
	rediscommon "smartchair/internal/redis"
	"smartchair/internal/repository"
	"smartchair/internal/service"
	"smartchair/internal/store"
	"smartchair/internal/validator"

	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	log, err := logpkg.NewLogger(cfg.Log.Level, cfg.Log.Format, "smartchair-posture")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting smartchair-posture service",
		zap.String("history_backend", cfg.History.Backend),
		zap.String("alert_backend", cfg.Alert.Backend),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 历史存储后端
	backend, closeBackend, err := openHistoryBackend(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to open history backend", zap.Error(err))
	}
	defer func() {
		if err := closeBackend(); err != nil {
			log.Error("Error closing history backend", zap.Error(err))
		}
	}()

	history := store.NewHistory(backend, cfg.History.PersistTimeout, log)
	if err := history.Load(ctx); err != nil {
		// 从空历史启动，服务保持可用
		log.Warn("Starting with empty history", zap.Error(err))
	}

	// 可选 Redis：最新记录镜像、遥测流、告警状态
	var opts []service.Option
	var alertSignal alert.Signal = alert.NewMemorySignal(log)
	if cfg.Redis.Enabled {
		rc := rediscommon.NewRedisClient(&cfg.Redis)
		defer rediscommon.Close(rc)
		if err := rediscommon.Ping(ctx, rc); err != nil {
			log.Fatal("Failed to connect to Redis", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}

		kv := store.NewRedisKV(rc)
		opts = append(opts, service.WithLatestMirror(store.NewCacheManager(kv, log)))
		if cfg.Redis.Stream != "" {
			opts = append(opts, service.WithPublisher(rediscommon.NewTelemetryPublisher(rc, cfg.Redis.Stream, cfg.Redis.StreamMaxLen)))
		}
		if cfg.Alert.Backend == config.AlertRedis {
			alertSignal = alert.NewRedisSignal(kv, log)
		}
	}

	svc := service.NewIngestService(validator.NewValidator(nil, log), history, alertSignal, log, opts...)

	router := httpapi.NewRouter(log)
	router.RegisterPostureRoutes(httpapi.NewPostureHandler(svc, cfg.HTTP.MaxBodyBytes, log))
	server := service.NewServer(cfg.HTTP.Addr, router, log)

	// 监听系统信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 2)
	go func() {
		if err := server.Start(); err != nil {
			errChan <- fmt.Errorf("http server: %w", err)
		}
	}()

	// 可选 MQTT 接入
	var mqttConsumer *consumer.MQTTConsumer
	if cfg.MQTT.Enabled {
		mc, err := mqttcommon.NewClient(&cfg.MQTT, log)
		if err != nil {
			log.Fatal("Failed to connect to MQTT broker", zap.Error(err))
		}
		defer mc.Disconnect()

		mqttConsumer = consumer.NewMQTTConsumer(&cfg.MQTT, mc, svc, cfg.HTTP.MaxBodyBytes, log)
		go func() {
			if err := mqttConsumer.Start(ctx); err != nil {
				errChan <- fmt.Errorf("mqtt consumer: %w", err)
			}
		}()
	}

	// 等待信号或错误
	select {
	case sig := <-sigChan:
		log.Info("Received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-errChan:
		log.Error("Service error", zap.Error(err))
	}
	cancel()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stopCancel()

	if mqttConsumer != nil {
		if err := mqttConsumer.Stop(stopCtx); err != nil {
			log.Error("Error stopping MQTT consumer", zap.Error(err))
		}
	}
	if err := server.Stop(stopCtx); err != nil {
		log.Error("Error stopping HTTP server", zap.Error(err))
	}

	log.Info("Service stopped", zap.Int("entries", history.Len()))
}

// openHistoryBackend 按配置打开历史后端，返回关闭函数
func openHistoryBackend(ctx context.Context, cfg *config.Config, log *zap.Logger) (repository.HistoryBackend, func() error, error) {
	switch cfg.History.Backend {
	case config.BackendLog:
		repo := repository.NewLogHistoryRepository(cfg.History.FilePath, log)
		return repo, repo.Close, nil

	case config.BackendPostgres:
		db, err := database.NewPostgresDB(ctx, &cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		repo := repository.NewPostgresHistoryRepository(db, log)
		if err := repo.EnsureSchema(ctx); err != nil {
			_ = database.Close(db)
			return nil, nil, err
		}
		return repo, func() error { return database.Close(db) }, nil

	default:
		repo := repository.NewFileHistoryRepository(cfg.History.FilePath, log)
		return repo, repo.Close, nil
	}
}
