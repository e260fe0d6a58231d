package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// 以 hash 保存 tokens 與 last_refill，補滿後自動過期
var tokenBucketScript = redis.NewScript(`
local key = KEYS[1]
local capacity = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

local bucket = redis.call('HMGET', key, 'tokens', 'last_refill')
local tokens = tonumber(bucket[1])
local lastRefill = tonumber(bucket[2])

if tokens == nil then
	tokens = capacity
	lastRefill = now
end

local elapsed = (now - lastRefill) / 1000000000
if elapsed > 0 then
	tokens = math.min(capacity, tokens + elapsed * rate)
end

local allowed = 0
if tokens >= 1 then
	tokens = tokens - 1
	allowed = 1
end

redis.call('HSET', key, 'tokens', tostring(tokens), 'last_refill', ARGV[3])
redis.call('EXPIRE', key, ttl)
return allowed
`)

/*
RedisTokenBucket 多個實例共用同一個 redis 時使用
判斷與扣減在 lua 內完成
*/
type RedisTokenBucket struct {
	cf     Config
	client redis.Scripter
	prefix string
	now    func() time.Time
}

type RedisOption func(*RedisTokenBucket)

func WithRedisClock(now func() time.Time) RedisOption {
	return func(r *RedisTokenBucket) {
		r.now = now
	}
}

func NewRedisTokenBucket(client redis.Scripter, prefix string, cf Config, opts ...RedisOption) *RedisTokenBucket {
	if client == nil {
		panic("RedisTokenBucket dependency client is nil")
	}
	r := &RedisTokenBucket{
		cf:     cf,
		client: client,
		prefix: prefix,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var _ Limiter = (*RedisTokenBucket)(nil)

func (r *RedisTokenBucket) key(key string) string {
	if r.prefix == "" {
		return "ratelimit:" + key
	}
	return r.prefix + ":ratelimit:" + key
}

func (r *RedisTokenBucket) Allow(ctx context.Context, key string) (bool, error) {
	ttl := int64(r.cf.fullAfter().Seconds()) + 1
	res, err := tokenBucketScript.Run(ctx, r.client, []string{r.key(key)},
		r.cf.Capacity,
		r.cf.RatePS,
		r.now().UnixNano(),
		ttl,
	).Int64()
	if err != nil {
		return false, fmt.Errorf("rate limit script failed: %w", err)
	}
	return res == 1, nil
}
