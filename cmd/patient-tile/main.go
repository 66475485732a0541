package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	logpkg "patient-tile/common/logger"
	"patient-tile/internal/config"
	"patient-tile/internal/service"

	"go.uber.org/zap"
)

func main() {
	// 加载配置
	cfg := config.Load()

	// 初始化Logger
	logger, err := logpkg.NewLogger(cfg.Log.Level, cfg.Log.Format, "patient-tile")
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Starting patient-tile service",
		zap.String("addr", cfg.HTTP.Addr),
		zap.String("cookie", cfg.Session.CookieName),
		zap.Duration("session_ttl", cfg.Session.TTL),
	)

	tileService, err := service.NewTileService(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create tile service", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := tileService.Start(ctx); err != nil {
			logger.Fatal("Failed to start tile service", zap.Error(err))
		}
	}()

	// 等待中断信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	logger.Info("Received signal, shutting down", zap.String("signal", sig.String()))

	// 优雅关闭：ctx 已取消，Stop 使用独立的超时
	cancel()
	if err := tileService.Stop(context.Background()); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Service stopped")
}
