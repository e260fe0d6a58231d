package ratelimit

import (
	"context"
	"time"
)

// Limiter 以 key 區分的限流器，key 通常是來源 IP
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

type Config struct {
	Capacity int     // bucket 容量，同時也是初始 token 數
	RatePS   float64 // 每秒補充的 token 數
}

func GetDefaultConfig() Config {
	return Config{
		Capacity: 10,
		RatePS:   1,
	}
}

// Enabled 容量為 0 視為關閉限流
func (c Config) Enabled() bool {
	return c.Capacity > 0
}

// refill 依經過時間補充 token，不超過容量
func (c Config) refill(tokens float64, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return tokens
	}
	tokens += elapsed.Seconds() * c.RatePS
	if tokens > float64(c.Capacity) {
		tokens = float64(c.Capacity)
	}
	return tokens
}

// fullAfter 空 bucket 補滿所需時間
func (c Config) fullAfter() time.Duration {
	if c.RatePS <= 0 {
		return time.Hour
	}
	return time.Duration(float64(c.Capacity) / c.RatePS * float64(time.Second))
}
