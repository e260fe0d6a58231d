package redis

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/RoyceAzure/lab/storefront/pkg/kvstore"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const changesChannel = "changes"

// RedisStore 以 redis string 儲存 JSON 值
// 結構:
//
//	{prefix}:{key}     -> JSON
//	{prefix}:changes   -> pub/sub channel，每次寫入發佈 ChangeEvent
type RedisStore struct {
	client   *redis.Client
	prefix   string
	origin   string
	maxBytes int
	logger   zerolog.Logger
}

type StoreOption func(*RedisStore)

// WithMaxValueBytes 單值大小上限
func WithMaxValueBytes(limit int) StoreOption {
	return func(r *RedisStore) {
		r.maxBytes = limit
	}
}

func WithOrigin(origin string) StoreOption {
	return func(r *RedisStore) {
		r.origin = origin
	}
}

func WithLogger(logger zerolog.Logger) StoreOption {
	return func(r *RedisStore) {
		r.logger = logger
	}
}

func NewRedisStore(client *redis.Client, prefix string, opts ...StoreOption) *RedisStore {
	if client == nil {
		panic("RedisStore dependency client is nil")
	}
	r := &RedisStore{
		client: client,
		prefix: prefix,
		origin: uuid.NewString(),
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var _ kvstore.Store = (*RedisStore)(nil)

func (r *RedisStore) setPrefixKey(key string) string {
	var builder strings.Builder
	builder.Grow(len(r.prefix) + 1 + len(key))
	builder.WriteString(r.prefix)
	builder.WriteString(":")
	builder.WriteString(key)
	return builder.String()
}

func (r *RedisStore) setPrefixKeys(keys ...string) []string {
	out := make([]string, len(keys))
	for i, key := range keys {
		out[i] = r.setPrefixKey(key)
	}
	return out
}

func (r *RedisStore) Origin() string {
	return r.origin
}

func (r *RedisStore) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return wrapError("", "ping failed", err)
	}
	return nil
}

func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := r.client.Get(ctx, r.setPrefixKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, kvstore.ErrNotFound
	}
	if err != nil {
		return nil, wrapError(key, "get failed", err)
	}
	return v, nil
}

// Set 寫入與發佈通知放在同一個 MULTI 內
func (r *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	if err := kvstore.CheckQuota(key, value, r.maxBytes); err != nil {
		return err
	}

	evt, err := r.newEvent(key, kvstore.OpSet)
	if err != nil {
		return err
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.setPrefixKey(key), value, 0)
		pipe.Publish(ctx, r.setPrefixKey(changesChannel), evt)
		return nil
	})
	if err != nil {
		return wrapError(key, "set failed", err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	events := make([][]byte, 0, len(keys))
	for _, key := range keys {
		evt, err := r.newEvent(key, kvstore.OpDelete)
		if err != nil {
			return err
		}
		events = append(events, evt)
	}

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.setPrefixKeys(keys...)...)
		for _, evt := range events {
			pipe.Publish(ctx, r.setPrefixKey(changesChannel), evt)
		}
		return nil
	})
	if err != nil {
		return wrapError(strings.Join(keys, ","), "delete failed", err)
	}
	return nil
}

// Subscribe 訂閱 {prefix}:changes
// 回傳前會等待 redis 確認訂閱，避免漏掉之後的寫入
func (r *RedisStore) Subscribe(ctx context.Context) (<-chan kvstore.ChangeEvent, error) {
	pubsub := r.client.Subscribe(ctx, r.setPrefixKey(changesChannel))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, wrapError(changesChannel, "subscribe failed", err)
	}

	out := make(chan kvstore.ChangeEvent, 64)
	go func() {
		defer close(out)
		defer pubsub.Close()

		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var evt kvstore.ChangeEvent
				if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
					r.logger.Warn().Err(err).Str("channel", msg.Channel).Msg("drop malformed change event")
					continue
				}
				select {
				case out <- evt:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

// Clear 刪除此 prefix 底下所有 key，測試用
func (r *RedisStore) Clear(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, r.setPrefixKey("*"), 100).Result()
		if err != nil {
			return wrapError("*", "scan failed", err)
		}
		if len(keys) > 0 {
			if err := r.client.Del(ctx, keys...).Err(); err != nil {
				return wrapError("*", "clear failed", err)
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

func (r *RedisStore) newEvent(key string, op kvstore.Op) ([]byte, error) {
	b, err := json.Marshal(kvstore.ChangeEvent{
		Key:    key,
		Op:     op,
		Origin: r.origin,
		At:     time.Now().UTC(),
	})
	if err != nil {
		return nil, kvstore.NewStoreError(kvstore.CodeInvalid, key, "encode change event", err)
	}
	return b, nil
}

func wrapError(key, message string, err error) error {
	code := kvstore.CodeConnection
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		code = kvstore.CodeTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		code = kvstore.CodeTimeout
	case strings.HasPrefix(err.Error(), "OOM"):
		// redis maxmemory 滿了
		code = kvstore.CodeQuotaExceeded
	}
	return kvstore.NewStoreError(code, key, message, err)
}
