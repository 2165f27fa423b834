package proxypool

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/redis/go-redis/v9"
)

// Load populates the active pool from a bootstrap reader: one
// host:port:username:password entry per line, blank lines and lines starting
// with '#' ignored. Both proxy lists are cleared first, so a reload always
// starts from a clean state. Returns the number of proxies loaded.
func Load(ctx context.Context, rdb *redis.Client, r io.Reader) (int, error) {
	var entries []interface{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if _, err := ParseRecord(line); err != nil {
			return 0, err
		}
		entries = append(entries, line)
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("read proxy list: %w", err)
	}
	if len(entries) == 0 {
		return 0, nil
	}

	if err := rdb.Del(ctx, KeyActive, KeyQuarantine).Err(); err != nil {
		return 0, fmt.Errorf("clear proxy lists: %w", err)
	}
	if err := rdb.RPush(ctx, KeyActive, entries...).Err(); err != nil {
		return 0, fmt.Errorf("load proxy list: %w", err)
	}
	return len(entries), nil
}
