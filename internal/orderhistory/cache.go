package orderhistory

import (
	"context"
	"fmt"
	"sync"

	"github.com/RoyceAzure/lab/storefront/internal/model"
	"github.com/RoyceAzure/lab/storefront/internal/orderapi"
	"github.com/RoyceAzure/lab/storefront/pkg/util"
	"github.com/rs/zerolog"
)

type State string

const (
	StateIdle     State = "idle"
	StateLoading  State = "loading"
	StateSuccess  State = "success"
	StateDegraded State = "degraded"
)

const DegradedNotice = "Could not load your latest orders. Showing your last saved orders."

type OrderLister interface {
	ListOrders(ctx context.Context, userID string) ([]orderapi.ServerOrder, error)
}

type OrdersRepository interface {
	LoadOrders(ctx context.Context, email string) ([]model.Order, error)
	SaveOrders(ctx context.Context, email string, orders []model.Order) error
}

type FetchRecorder interface {
	OrderFetch(state string)
}

// Result FetchOrders 的結果，Degraded 時 Err 為遠端錯誤
type Result struct {
	Orders []model.Order
	State  State
	Err    error
	Notice string
}

// Cache 遠端訂單的 read-through 快取
type Cache struct {
	api        OrderLister
	repo       OrdersRepository
	normalizer Normalizer
	logger     zerolog.Logger
	recorder   FetchRecorder

	mu    sync.Mutex
	state State
	// Append 與整批覆寫互斥
	writeMu sync.Mutex
}

type Option func(*Cache)

func WithNormalizer(n Normalizer) Option {
	return func(c *Cache) {
		c.normalizer = n
	}
}

func WithRecorder(r FetchRecorder) Option {
	return func(c *Cache) {
		c.recorder = r
	}
}

func NewCache(api OrderLister, repo OrdersRepository, logger zerolog.Logger, opts ...Option) *Cache {
	util.MustNotNil("order history cache", map[string]any{"api": api, "repo": repo})
	c := &Cache{
		api:    api,
		repo:   repo,
		logger: logger,
		state:  StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cache) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Cache) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
	if c.recorder != nil && s != StateLoading {
		c.recorder.OrderFetch(string(s))
	}
}

func (c *Cache) Normalizer() Normalizer {
	return c.normalizer
}

/*
FetchOrders 向遠端取得訂單
成功: 正規化後整批覆寫 orders_{email}
失敗: 回傳最後一次快取的訂單並標記 Degraded，不回傳 error
*/
func (c *Cache) FetchOrders(ctx context.Context, user model.User) Result {
	c.setState(StateLoading)

	remote, err := c.api.ListOrders(ctx, user.ID)
	if err != nil {
		c.logger.Warn().Err(err).Str("email", user.Email).Msg("fetch orders failed, fall back to cache")
		c.setState(StateDegraded)
		return Result{
			Orders: c.Cached(ctx, user.Email),
			State:  StateDegraded,
			Err:    err,
			Notice: DegradedNotice,
		}
	}

	orders := c.normalizer.NormalizeAll(remote)
	c.writeMu.Lock()
	saveErr := c.repo.SaveOrders(ctx, user.Email, orders)
	c.writeMu.Unlock()
	if saveErr != nil {
		// 遠端資料仍然可以顯示，只是快取沒有更新
		c.logger.Error().Err(saveErr).Str("email", user.Email).Msg("failed to replace order cache")
	}

	c.setState(StateSuccess)
	return Result{Orders: orders, State: StateSuccess}
}

// Append 新增一筆已正規化的訂單到快取尾端
func (c *Cache) Append(ctx context.Context, email string, order model.Order) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	orders, err := c.repo.LoadOrders(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to load order cache: %w", err)
	}
	orders = append(orders, order)
	if err := c.repo.SaveOrders(ctx, email, orders); err != nil {
		return fmt.Errorf("failed to append order: %w", err)
	}
	return nil
}

// Cached 讀取失敗時回傳空集合
func (c *Cache) Cached(ctx context.Context, email string) []model.Order {
	orders, err := c.repo.LoadOrders(ctx, email)
	if err != nil {
		c.logger.Warn().Err(err).Str("email", email).Msg("read order cache failed")
		return []model.Order{}
	}
	return orders
}
