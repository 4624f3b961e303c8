package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"task-lifecycle-api/models"
)

// RedisCache stores task snapshots as JSON under prefix+id with a fixed TTL.
// A deleted task is kept as a marker until the TTL runs out.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	stats  cacheCounters
}

type cacheCounters struct {
	hits, misses, sets, deletes, errors atomic.Uint64
}

// CacheStats is a point-in-time copy of the cache counters.
type CacheStats struct {
	Hits      uint64  `json:"hits"`
	Misses    uint64  `json:"misses"`
	Sets      uint64  `json:"sets"`
	Deletes   uint64  `json:"deletes"`
	Errors    uint64  `json:"errors"`
	HitRate   float64 `json:"hitRate"`
	TotalGets uint64  `json:"totalGets"`
}

var _ TaskCache = (*RedisCache)(nil)

const deletedMarker = "deleted"

// setIfNewer writes ARGV[1] unless the key holds the deletion marker or a snapshot whose
// version is not older than ARGV[2].
var setIfNewer = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if cur then
	if cur == ARGV[3] then
		return 0
	end
	local ok, doc = pcall(cjson.decode, cur)
	if ok and type(doc) == 'table' and tonumber(doc['version']) ~= nil and tonumber(doc['version']) >= tonumber(ARGV[2]) then
		return 0
	end
end
if tonumber(ARGV[4]) > 0 then
	redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[4])
else
	redis.call('SET', KEYS[1], ARGV[1])
end
return 1
`)

func NewRedisCache(client *redis.Client, prefix string, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, prefix: prefix, ttl: ttl}
}

func (c *RedisCache) key(id int64) string {
	return c.prefix + strconv.FormatInt(id, 10)
}

func (c *RedisCache) Get(ctx context.Context, id int64) (*models.Task, bool, error) {
	data, err := c.client.Get(ctx, c.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			c.stats.misses.Add(1)
			return nil, false, nil
		}
		c.stats.errors.Add(1)
		return nil, false, fmt.Errorf("cache get error: %w", err)
	}

	if string(data) == deletedMarker {
		c.stats.misses.Add(1)
		return nil, false, nil
	}

	var task models.Task
	if err := json.Unmarshal(data, &task); err != nil {
		c.stats.errors.Add(1)
		return nil, false, fmt.Errorf("cache unmarshal error: %w", err)
	}
	c.stats.hits.Add(1)
	return &task, true, nil
}

// Set stores the snapshot unless the cache already holds this or a later version of the task,
// or knows it was deleted.
func (c *RedisCache) Set(ctx context.Context, task *models.Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		c.stats.errors.Add(1)
		return fmt.Errorf("cache marshal error: %w", err)
	}
	applied, err := setIfNewer.Run(ctx, c.client, []string{c.key(task.ID)},
		data, task.Version, deletedMarker, c.ttl.Milliseconds()).Int()
	if err != nil {
		c.stats.errors.Add(1)
		return fmt.Errorf("cache set error: %w", err)
	}
	if applied == 1 {
		c.stats.sets.Add(1)
	}
	return nil
}

// Delete replaces the entry with a deletion marker.
func (c *RedisCache) Delete(ctx context.Context, id int64) error {
	if err := c.client.Set(ctx, c.key(id), deletedMarker, c.ttl).Err(); err != nil {
		c.stats.errors.Add(1)
		return fmt.Errorf("cache delete error: %w", err)
	}
	c.stats.deletes.Add(1)
	return nil
}

func (c *RedisCache) Stats() CacheStats {
	hits := c.stats.hits.Load()
	misses := c.stats.misses.Load()
	total := hits + misses

	var rate float64
	if total > 0 {
		rate = float64(hits) / float64(total) * 100
	}
	return CacheStats{
		Hits:      hits,
		Misses:    misses,
		Sets:      c.stats.sets.Load(),
		Deletes:   c.stats.deletes.Load(),
		Errors:    c.stats.errors.Load(),
		HitRate:   rate,
		TotalGets: total,
	}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
