package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"patient-tile/common/database"
	mqttcommon "patient-tile/common/mqtt"
	rediscommon "patient-tile/common/redis"
	"patient-tile/internal/bridge"
	"patient-tile/internal/config"
	"patient-tile/internal/events"
	httpapi "patient-tile/internal/http"
	"patient-tile/internal/repository"
	"patient-tile/internal/session"
	"patient-tile/internal/store"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// connectTimeout 启动时 Redis / PostgreSQL 连通性检查的超时
const connectTimeout = 5 * time.Second

// errStopped HTTP 服务正常停止，用于结束会话回收
var errStopped = errors.New("http server stopped")

// TileService 组装会话存储、桥接客户端、变化通知与 HTTP 服务
type TileService struct {
	config      *config.Config
	logger      *zap.Logger
	redisClient *redis.Client
	db          *sql.DB
	mqttClient  *mqttcommon.Client
	sessions    *session.Manager
	server      *Server
}

// NewTileService 创建服务；Redis / DB / MQTT 不可用时按配置降级
func NewTileService(cfg *config.Config, logger *zap.Logger) (*TileService, error) {
	s := &TileService{config: cfg, logger: logger}

	// 会话存储
	var kv store.KV
	var recorders []session.Recorder
	if cfg.RedisEnabled {
		s.redisClient = rediscommon.NewRedisClient(&cfg.Redis)
		pingCtx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		err := rediscommon.Ping(pingCtx, s.redisClient)
		cancel()
		if err != nil {
			_ = rediscommon.Close(s.redisClient)
			return nil, fmt.Errorf("failed to connect to redis %s: %w", cfg.Redis.Addr, err)
		}
		kv = store.NewRedisKV(s.redisClient)
		recorders = append(recorders, events.NewStreamPublisher(s.redisClient, cfg.Events.Stream, cfg.Events.MaxLen, logger))
	} else {
		logger.Warn("Redis disabled, using in-memory session store")
		kv = store.NewMemoryKV()
	}

	// 变化历史（可选）
	var history httpapi.HistoryLister
	if cfg.DBEnabled {
		pingCtx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		db, err := database.NewPostgresDB(pingCtx, &cfg.Database)
		cancel()
		if err != nil {
			logger.Warn("DB enabled but connection failed, history disabled", zap.Error(err))
		} else if repo := openHistory(context.Background(), db, logger); repo != nil {
			s.db = db
			history = repo
			recorders = append(recorders, repo)
		}
	}

	// 病人变化通知（可选）
	var notifier *bridge.Notifier
	if cfg.MQTT.Enabled {
		mqttClient, err := mqttcommon.NewClient(&cfg.MQTT.MQTTConfig, logger)
		if err != nil {
			// 通知不可用不影响页面，会话仍可拉取病人
			logger.Warn("Failed to connect to MQTT, patient change notifications disabled", zap.Error(err))
		} else {
			s.mqttClient = mqttClient
			notifier = bridge.NewNotifier(mqttClient, cfg.MQTT.TopicPrefix, cfg.MQTT.QoS, logger)
		}
	}

	var bridgeClient *bridge.HTTPClient
	if cfg.Bridge.BaseURL != "" {
		bridgeClient = bridge.NewHTTPClient(cfg.Bridge.BaseURL, cfg.Bridge.Timeout, cfg.Bridge.Retries, logger)
	} else {
		logger.Warn("BRIDGE_BASE_URL not set, sessions start without a patient")
	}

	s.sessions = session.NewManager(func(ctx context.Context, id string) *session.Session {
		return session.Open(ctx, id, session.Deps{
			Store:     store.NewSession(kv, id, cfg.Session.TTL),
			Source:    bridge.NewSessionSource(id, bridgeClient, notifier),
			Recorders: recorders,
			Logger:    logger,
		})
	}, cfg.Session.IdleTimeout, logger)

	router := httpapi.NewRouter(logger)
	router.RegisterTileRoutes(httpapi.NewTileHandler(s.sessions, kv, history, cfg.Session.CookieName, logger))
	router.RegisterHealthRoutes(s.healthChecks()...)
	s.server = NewServer(cfg.HTTP.Addr, router, logger)

	return s, nil
}

// errMQTTDisconnected MQTT 自动重连尚未恢复
var errMQTTDisconnected = errors.New("mqtt disconnected")

// healthChecks 只检查实际启用的组件
func (s *TileService) healthChecks() []httpapi.HealthCheck {
	var checks []httpapi.HealthCheck
	if s.redisClient != nil {
		checks = append(checks, httpapi.HealthCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rediscommon.Ping(ctx, s.redisClient)
		}})
	}
	if s.db != nil {
		checks = append(checks, httpapi.HealthCheck{Name: "postgres", Check: s.db.PingContext})
	}
	if s.mqttClient != nil {
		checks = append(checks, httpapi.HealthCheck{Name: "mqtt", Check: func(context.Context) error {
			if !s.mqttClient.IsConnected() {
				return errMQTTDisconnected
			}
			return nil
		}})
	}
	return checks
}

// openHistory 建表失败时关闭连接并返回 nil（历史功能关闭，服务继续）
func openHistory(ctx context.Context, db *sql.DB, logger *zap.Logger) *repository.HistoryRepository {
	repo := repository.NewHistoryRepository(db, logger)
	schemaCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := repo.EnsureSchema(schemaCtx); err != nil {
		logger.Warn("Failed to prepare history schema, history disabled", zap.Error(err))
		if cerr := database.Close(db); cerr != nil {
			logger.Warn("Error closing database", zap.Error(cerr))
		}
		return nil
	}
	return repo
}

// Start 启动会话回收与 HTTP 服务（阻塞）
func (s *TileService) Start(ctx context.Context) error {
	s.logger.Info("Starting patient tile service",
		zap.Bool("redis_enabled", s.config.RedisEnabled),
		zap.Bool("db_enabled", s.db != nil),
		zap.Bool("mqtt_enabled", s.mqttClient != nil),
		zap.String("bridge", s.config.Bridge.BaseURL),
	)

	eg, egCtx := errgroup.WithContext(ctx)
	if s.config.Session.SweepInterval > 0 {
		eg.Go(func() error {
			s.sessions.Run(egCtx, s.config.Session.SweepInterval)
			return nil
		})
	}
	eg.Go(func() error {
		if err := s.server.Start(); err != nil {
			return err
		}
		return errStopped
	})

	if err := eg.Wait(); err != nil && !errors.Is(err, errStopped) {
		return err
	}
	return nil
}

// Stop 停止 HTTP -> 释放所有会话订阅 -> 关闭连接
func (s *TileService) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.server.Stop(shutdownCtx); err != nil {
		s.logger.Error("Error stopping HTTP server", zap.Error(err))
	}

	s.sessions.Close()

	if s.mqttClient != nil {
		// 会话已全部关闭，此时仍有订阅说明有 unregister 失败
		if n := s.mqttClient.Subscriptions(); n > 0 {
			s.logger.Warn("MQTT subscriptions left after closing sessions", zap.Int("subscriptions", n))
		}
		s.mqttClient.Disconnect()
	}
	if err := rediscommon.Close(s.redisClient); err != nil {
		s.logger.Warn("Error closing redis", zap.Error(err))
	}
	if err := database.Close(s.db); err != nil {
		s.logger.Warn("Error closing database", zap.Error(err))
	}

	s.logger.Info("Patient tile service stopped")
	return nil
}
