package activity

import (
	"context"
	"strconv"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Tracker keeps per-user interaction counts by UTC day.
type Tracker interface {
	Record(ctx context.Context, e Event) error
	// Days returns the counts for the given days; days without activity are
	// absent from the map.
	Days(ctx context.Context, userID string, days []string) (map[string]int, error)
}

// MemoryTracker lives for the life of the process.
type MemoryTracker struct {
	mu     sync.Mutex
	counts map[string]map[string]int
}

func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{counts: make(map[string]map[string]int)}
}

func (t *MemoryTracker) Record(_ context.Context, e Event) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	perDay, ok := t.counts[e.UserID]
	if !ok {
		perDay = make(map[string]int)
		t.counts[e.UserID] = perDay
	}
	perDay[e.Day()]++
	return nil
}

func (t *MemoryTracker) Days(_ context.Context, userID string, days []string) (map[string]int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]int)
	for _, d := range days {
		if n := t.counts[userID][d]; n > 0 {
			out[d] = n
		}
	}
	return out, nil
}

// RedisTracker keeps one hash per user, one field per day.
type RedisTracker struct {
	client *redis.Client
	prefix string
}

func NewRedisTracker(client *redis.Client) *RedisTracker {
	return &RedisTracker{client: client, prefix: "studynotion:activity:"}
}

func (t *RedisTracker) Record(ctx context.Context, e Event) error {
	return t.client.HIncrBy(ctx, t.prefix+e.UserID, e.Day(), 1).Err()
}

func (t *RedisTracker) Days(ctx context.Context, userID string, days []string) (map[string]int, error) {
	out := make(map[string]int)
	if len(days) == 0 {
		return out, nil
	}
	vals, err := t.client.HMGet(ctx, t.prefix+userID, days...).Result()
	if err != nil {
		return nil, err
	}
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			out[days[i]] = n
		}
	}
	return out, nil
}
