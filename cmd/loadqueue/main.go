package main

import (
	"bufio"
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/macabanto/wordnet/internal/config"
	"github.com/macabanto/wordnet/internal/crawler"
	"github.com/macabanto/wordnet/internal/pkg/frontier"
	"github.com/macabanto/wordnet/internal/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// loadqueue 把种子词表灌进 word_queue，每行一个词，空行跳过。
// 词表路径取第一个命令行参数，其次 WORD_LIST 环境变量，默认 word_list.txt。
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	appLogger := logger.NewDefault(cfg.App.LogLevel)

	path := "word_list.txt"
	if v := os.Getenv("WORD_LIST"); v != "" {
		path = v
	}
	if len(os.Args) > 1 && os.Args[1] != "" {
		path = os.Args[1]
	}

	f, err := os.Open(path)
	if err != nil {
		appLogger.Error("open word list failed", slog.String("path", path), slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer f.Close()

	var terms []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		term := crawler.NormalizeTerm(scanner.Text())
		if term == "" {
			continue
		}
		terms = append(terms, term)
	}
	if err := scanner.Err(); err != nil {
		appLogger.Error("read word list failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

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

	if err := frontier.New(rdb).Push(ctx, terms...); err != nil {
		appLogger.Error("seed frontier failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	appLogger.Info("seeded frontier",
		slog.Int("terms", len(terms)),
		slog.String("path", path))
}
