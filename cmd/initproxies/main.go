package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/macabanto/wordnet/internal/config"
	"github.com/macabanto/wordnet/internal/pkg/logger"
	"github.com/macabanto/wordnet/internal/pkg/proxypool"

	"github.com/redis/go-redis/v9"
)

// 依次尝试的代理文件路径，容器挂载和本地运行各有一个。
var candidatePaths = []string{
	"/proxies/proxies.txt",
	"./proxies.txt",
	"proxies.txt",
}

// initproxies 把代理列表灌进 proxy_queue（清空两个代理列表后重建）。
// 文件格式每行 host:port:username:password，# 开头和空行忽略。
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	appLogger := logger.NewDefault(cfg.App.LogLevel)

	ctx := context.Background()
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		appLogger.Error("redis connection failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer rdb.Close()

	paths := candidatePaths
	if len(os.Args) > 1 && os.Args[1] != "" {
		paths = []string{os.Args[1]}
	}

	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			continue
		}
		count, err := proxypool.Load(ctx, rdb, f)
		f.Close()
		if err != nil {
			appLogger.Error("load proxies failed",
				slog.String("path", path),
				slog.String("error", err.Error()))
			continue
		}
		appLogger.Info("loaded proxies into queue",
			slog.Int("count", count),
			slog.String("path", path))
		return
	}

	appLogger.Warn("no proxy file found", slog.Any("paths", paths))
}
