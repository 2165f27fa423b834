package frontier

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// KeyWordQueue is the shared Redis list holding pending terms.
const KeyWordQueue = "word_queue"

// ErrEmpty is returned by Pop when no term is pending. Pop never blocks;
// the caller decides how long to back off before polling again.
var ErrEmpty = errors.New("frontier is empty")

// Queue is the crawl frontier: a FIFO list of pending terms shared by all
// worker processes. Every operation is a single Redis command, so individual
// pushes and pops are atomic but no multi-step workflow is.
type Queue struct {
	rdb *redis.Client
	key string
}

// New creates a frontier queue over the given Redis client.
func New(rdb *redis.Client) *Queue {
	return &Queue{rdb: rdb, key: KeyWordQueue}
}

// Push appends terms to the tail of the queue. Pushing zero terms is a no-op.
func (q *Queue) Push(ctx context.Context, terms ...string) error {
	if q == nil || q.rdb == nil {
		return errors.New("frontier is not initialized")
	}
	if len(terms) == 0 {
		return nil
	}
	args := make([]interface{}, len(terms))
	for i, t := range terms {
		args[i] = t
	}
	if err := q.rdb.RPush(ctx, q.key, args...).Err(); err != nil {
		return fmt.Errorf("rpush terms: %w", err)
	}
	return nil
}

// Pop removes and returns the term at the head of the queue.
// An empty queue returns ErrEmpty immediately.
func (q *Queue) Pop(ctx context.Context) (string, error) {
	if q == nil || q.rdb == nil {
		return "", errors.New("frontier is not initialized")
	}
	term, err := q.rdb.LPop(ctx, q.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrEmpty
	}
	if err != nil {
		return "", fmt.Errorf("lpop term: %w", err)
	}
	return term, nil
}

// Len returns the number of pending terms.
func (q *Queue) Len(ctx context.Context) (int64, error) {
	if q == nil || q.rdb == nil {
		return 0, errors.New("frontier is not initialized")
	}
	n, err := q.rdb.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("llen queue: %w", err)
	}
	return n, nil
}

// Snapshot returns a non-destructive point-in-time read of the queue contents.
// 仅用于入队前的 best-effort 去重：快照和后续 Push 之间队列可能已经变化，
// 正确性不依赖它精确。
func (q *Queue) Snapshot(ctx context.Context) (map[string]struct{}, error) {
	if q == nil || q.rdb == nil {
		return nil, errors.New("frontier is not initialized")
	}
	items, err := q.rdb.LRange(ctx, q.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("lrange queue: %w", err)
	}
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		set[item] = struct{}{}
	}
	return set, nil
}
