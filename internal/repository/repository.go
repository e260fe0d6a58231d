package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/RoyceAzure/lab/storefront/internal/constants"
	"github.com/RoyceAzure/lab/storefront/internal/model"
	"github.com/RoyceAzure/lab/storefront/pkg/kvstore"
	"github.com/RoyceAzure/lab/storefront/pkg/kvstore/memory"
	"github.com/RoyceAzure/lab/storefront/pkg/util"
	"github.com/rs/zerolog"
)

/*
CommerceStateRepository 使用者購物狀態的持久化

Load 系列:
  - key 不存在或內容損壞: 回傳空集合與 nil error，損壞內容會記 warn log
  - 儲存讀取失敗: 回傳 error，由呼叫端決定是否降級

Save 系列寫入整個集合，失敗時回傳 *kvstore.StoreError
*/
type CommerceStateRepository interface {
	LoadCart(ctx context.Context, email string) ([]model.CartLineItem, error)
	SaveCart(ctx context.Context, email string, items []model.CartLineItem) error
	LoadWishlist(ctx context.Context, email string) ([]model.WishlistItem, error)
	SaveWishlist(ctx context.Context, email string, items []model.WishlistItem) error
	LoadOrders(ctx context.Context, email string) ([]model.Order, error)
	SaveOrders(ctx context.Context, email string, orders []model.Order) error
	LoadDeliveryData(ctx context.Context, email string) (*model.DeliveryData, error)
	SaveDeliveryData(ctx context.Context, email string, data model.DeliveryData) error
	ClearDeliveryData(ctx context.Context, email string) error
	// Watch 其他 handle 的寫入通知
	Watch(ctx context.Context) (<-chan kvstore.ChangeEvent, error)
	Origin() string
}

// SessionRepository 登入狀態 (user / isLoggedIn) 的持久化
type SessionRepository interface {
	LoadSession(ctx context.Context) (*model.User, bool, error)
	SaveSession(ctx context.Context, user model.User) error
	ClearSession(ctx context.Context) error
}

var ErrEmptyEmail = errors.New("email is required")

type KVRepository struct {
	store  kvstore.Store
	logger zerolog.Logger
}

var (
	_ CommerceStateRepository = (*KVRepository)(nil)
	_ SessionRepository       = (*KVRepository)(nil)
)

func NewKVRepository(store kvstore.Store, logger zerolog.Logger) *KVRepository {
	util.MustNotNil("repository", map[string]any{"store": store})
	return &KVRepository{store: store, logger: logger}
}

// NewMemoryRepository 程序內儲存，測試使用
func NewMemoryRepository() (*KVRepository, *memory.Backend) {
	backend := memory.NewBackend()
	return NewKVRepository(backend.Open(""), zerolog.Nop()), backend
}

func (r *KVRepository) Origin() string {
	return r.store.Origin()
}

func (r *KVRepository) Watch(ctx context.Context) (<-chan kvstore.ChangeEvent, error) {
	return r.store.Subscribe(ctx)
}

// read key 不存在時回傳 nil, nil
func (r *KVRepository) read(ctx context.Context, key string) ([]byte, error) {
	b, err := r.store.Get(ctx, key)
	if errors.Is(err, kvstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return b, nil
}

func (r *KVRepository) warnMalformed(key string, skipped int, err error) {
	if err != nil {
		r.logger.Warn().Err(err).Str("key", key).Msg("discard malformed persisted value")
		return
	}
	if skipped > 0 {
		r.logger.Warn().Str("key", key).Int("skipped", skipped).Msg("skip malformed entries")
	}
}

func (r *KVRepository) LoadCart(ctx context.Context, email string) ([]model.CartLineItem, error) {
	if email == "" {
		return []model.CartLineItem{}, nil
	}
	key := CartKey(email)
	b, err := r.read(ctx, key)
	if err != nil {
		return []model.CartLineItem{}, err
	}
	items, skipped, err := DecodeCart(b)
	r.warnMalformed(key, skipped, err)
	return items, nil
}

func (r *KVRepository) SaveCart(ctx context.Context, email string, items []model.CartLineItem) error {
	if email == "" {
		return ErrEmptyEmail
	}
	b, err := encodeList(items)
	if err != nil {
		return err
	}
	return r.store.Set(ctx, CartKey(email), b)
}

func (r *KVRepository) LoadWishlist(ctx context.Context, email string) ([]model.WishlistItem, error) {
	if email == "" {
		return []model.WishlistItem{}, nil
	}
	key := WishlistKey(email)
	b, err := r.read(ctx, key)
	if err != nil {
		return []model.WishlistItem{}, err
	}
	items, skipped, err := DecodeWishlist(b)
	r.warnMalformed(key, skipped, err)
	return items, nil
}

func (r *KVRepository) SaveWishlist(ctx context.Context, email string, items []model.WishlistItem) error {
	if email == "" {
		return ErrEmptyEmail
	}
	b, err := encodeList(items)
	if err != nil {
		return err
	}
	return r.store.Set(ctx, WishlistKey(email), b)
}

func (r *KVRepository) LoadOrders(ctx context.Context, email string) ([]model.Order, error) {
	if email == "" {
		return []model.Order{}, nil
	}
	key := OrdersKey(email)
	b, err := r.read(ctx, key)
	if err != nil {
		return []model.Order{}, err
	}
	orders, skipped, err := DecodeOrders(b)
	r.warnMalformed(key, skipped, err)
	return orders, nil
}

func (r *KVRepository) SaveOrders(ctx context.Context, email string, orders []model.Order) error {
	if email == "" {
		return ErrEmptyEmail
	}
	b, err := encodeList(orders)
	if err != nil {
		return err
	}
	return r.store.Set(ctx, OrdersKey(email), b)
}

func (r *KVRepository) LoadDeliveryData(ctx context.Context, email string) (*model.DeliveryData, error) {
	if email == "" {
		return nil, nil
	}
	key := DeliveryKey(email)
	b, err := r.read(ctx, key)
	if err != nil {
		return nil, err
	}
	d, err := DecodeDeliveryData(b)
	r.warnMalformed(key, 0, err)
	return d, nil
}

func (r *KVRepository) SaveDeliveryData(ctx context.Context, email string, data model.DeliveryData) error {
	if email == "" {
		return ErrEmptyEmail
	}
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return r.store.Set(ctx, DeliveryKey(email), b)
}

func (r *KVRepository) ClearDeliveryData(ctx context.Context, email string) error {
	if email == "" {
		return nil
	}
	return r.store.Delete(ctx, DeliveryKey(email))
}

// LoadSession 兩個 key 都有效才視為已登入
func (r *KVRepository) LoadSession(ctx context.Context) (*model.User, bool, error) {
	flag, err := r.read(ctx, constants.IsLoggedInKey)
	if err != nil {
		return nil, false, err
	}
	ub, err := r.read(ctx, constants.UserKey)
	if err != nil {
		return nil, false, err
	}
	if ub == nil {
		return nil, false, nil
	}
	user, err := DecodeUser(ub)
	if err != nil {
		r.warnMalformed(constants.UserKey, 0, err)
		return nil, false, nil
	}
	return user, DecodeFlag(flag), nil
}

func (r *KVRepository) SaveSession(ctx context.Context, user model.User) error {
	b, err := json.Marshal(user)
	if err != nil {
		return err
	}
	if err := r.store.Set(ctx, constants.UserKey, b); err != nil {
		return err
	}
	return r.store.Set(ctx, constants.IsLoggedInKey, []byte("true"))
}

func (r *KVRepository) ClearSession(ctx context.Context) error {
	return r.store.Delete(ctx, constants.UserKey, constants.IsLoggedInKey)
}
