package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/palemoky/imposter-party/internal/config"
	"github.com/palemoky/imposter-party/internal/logger"
	"github.com/palemoky/imposter-party/internal/server"
	"github.com/palemoky/imposter-party/internal/storage"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	flag.Parse()

	if err := run(*configPath); err != nil {
		logger.DefaultLogger().Errorw("服务器异常退出", "error", err)
		os.Exit(1)
	}
}

// run 启动服务器直到收到退出信号，返回前执行所有清理
func run(configPath string) error {
	cfg, err := loadConfig(configPath, logger.DefaultLogger())
	if err != nil {
		return err
	}

	log := logger.NewLogger(cfg.Server.LogDebug)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithLogger(ctx, log)

	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("init storage %q: %w", cfg.Storage.Driver, err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warnw("关闭存储失败", "error", err)
		}
	}()

	srv, err := server.NewServer(cfg, store, log)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	log.Infow("🎭 内鬼派对服务器启动中...", "storage", cfg.Storage.Driver)
	return srv.Run(ctx)
}

// loadConfig 读取配置文件，文件不存在时退回默认值加环境变量
// 文件格式错误或环境变量非法时返回错误
func loadConfig(path string, log *zap.SugaredLogger) (*config.Config, error) {
	cfg, err := config.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Warnw("配置文件不存在，使用默认配置", "path", path)
		cfg, err = config.FromEnv()
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
