package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/macabanto/wordnet/internal/config"
	"github.com/macabanto/wordnet/internal/crawler"
	"github.com/macabanto/wordnet/internal/pkg/frontier"
	"github.com/macabanto/wordnet/internal/pkg/logger"
	"github.com/macabanto/wordnet/internal/pkg/proxypool"
	"github.com/macabanto/wordnet/internal/pkg/ratelimit"
	"github.com/macabanto/wordnet/internal/store"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

// main 是抓取 worker 进程的入口。
//
// 它负责：
// 1. 加载配置、初始化日志
// 2. 连接 Redis 与词条存储（连不上属于启动失败，立即退出）
// 3. 启动一个或多个独立的 worker 循环
// 4. 启动 Metrics 服务
// 5. 收到终止信号后关闭连接并退出
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
		DB:       0,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		appLogger.Error("redis connection failed",
			slog.String("addr", cfg.Redis.Addr),
			slog.String("error", err.Error()))
		os.Exit(1)
	}
	appLogger.Info("connected to redis", slog.String("addr", cfg.Redis.Addr))

	entryStore, err := store.Open(cfg.MySQL.DSN, appLogger)
	if err != nil {
		appLogger.Error("store connection failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	appLogger.Info("connected to entry store")

	limiter := ratelimit.New(rdb, ratelimit.DefaultKey, cfg.Crawl.RateLimit, cfg.Crawl.RateBurst)
	if limiter != nil {
		appLogger.Info("shared rate limiter enabled",
			slog.Float64("rate", cfg.Crawl.RateLimit),
			slog.Float64("burst", cfg.Crawl.RateBurst))
	}

	workerCtx, stopWorkers := context.WithCancel(ctx)
	var wg sync.WaitGroup
	for i := 0; i < cfg.App.WorkerCount; i++ {
		// 同进程内多个循环时 worker_id 依次递增，跨进程部署时
		// 由 WORKER_ID 错开。
		id := cfg.App.WorkerID + i
		wg.Add(1)
		go func(id int) {
			defer wg.Done()

			// 保险丝：worker 循环按设计永不退出，真 panic 了就让
			// 进程整个退出交给编排器重启，保持状态干净。
			defer func() {
				if r := recover(); r != nil {
					appLogger.Error("PANIC in worker loop",
						slog.Int("worker_id", id),
						slog.Any("panic", r))
					os.Exit(1)
				}
			}()

			pacing := crawler.DefaultPacing()
			pacing.SkipProbability = cfg.Crawl.SkipProbability
			pacing.GiveUpProbability = cfg.Crawl.GiveUpProbability
			seed := cfg.Crawl.Seed
			if seed != 0 {
				seed += int64(id)
			}
			pacer := crawler.NewPacer(pacing, seed)

			pool := proxypool.New(rdb, appLogger.With(slog.Int("worker_id", id)), cfg.Crawl.ProxyFailureThreshold)
			fetcher := crawler.NewFetcher(cfg.Crawl, pool, pacer, appLogger.With(slog.Int("worker_id", id)))
			w := crawler.NewWorker(id, appLogger, frontier.New(rdb), pool, fetcher, entryStore, pacer, limiter)

			if err := w.Run(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
				appLogger.Error("worker loop stopped",
					slog.Int("worker_id", id),
					slog.String("error", err.Error()))
			}
		}(id)
	}

	metricsServer := &http.Server{
		Addr:    cfg.App.MetricsAddr,
		Handler: promhttp.Handler(),
	}
	go func() {
		appLogger.Info("metrics server started", slog.String("addr", cfg.App.MetricsAddr))
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("metrics server stopped with error", slog.String("error", err.Error()))
		}
	}()

	// 等待终止信号
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	sig := <-sigCh
	appLogger.Info("received os signal", slog.String("signal", sig.String()))

	appLogger.Info("shutting down...")
	stopWorkers()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("metrics shutdown error", slog.String("error", err.Error()))
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		appLogger.Warn("timed out waiting for worker loops")
	}

	if err := entryStore.Close(); err != nil {
		appLogger.Error("close store error", slog.String("error", err.Error()))
	}
	if err := rdb.Close(); err != nil {
		appLogger.Error("close redis error", slog.String("error", err.Error()))
	}
	appLogger.Info("worker stopped gracefully")
}
