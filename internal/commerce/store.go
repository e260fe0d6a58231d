package commerce

import (
	"context"
	"sync"
	"time"

	"github.com/RoyceAzure/lab/storefront/internal/model"
	"github.com/RoyceAzure/lab/storefront/internal/repository"
	"github.com/RoyceAzure/lab/storefront/internal/session"
	"github.com/RoyceAzure/lab/storefront/pkg/util"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// SessionReader 目前登入的使用者
type SessionReader interface {
	Current() (model.User, bool)
}

// WriteFailureRecorder 寫入失敗計數
type WriteFailureRecorder interface {
	StorageWriteFailed(collection string)
}

type ChangeKind string

const (
	ChangeLoaded   ChangeKind = "loaded"
	ChangeCart     ChangeKind = "cart"
	ChangeWishlist ChangeKind = "wishlist"
	ChangeReloaded ChangeKind = "reloaded"
	ChangeReset    ChangeKind = "reset"
)

type Change struct {
	Kind  ChangeKind
	Email string
}

type Listener func(Change)

// Snapshot 結帳用的購物車快照
type Snapshot struct {
	Email string
	Items []model.CartLineItem
	Total decimal.Decimal
	Count int
}

/*
Store 目前登入使用者的購物車與收藏清單

所有變更都是 write-through:
先把新的集合寫入儲存，成功後才替換記憶體中的狀態，
寫入失敗時回傳錯誤，記憶體與儲存維持一致
*/
type Store struct {
	repo     repository.CommerceStateRepository
	session  SessionReader
	logger   zerolog.Logger
	recorder WriteFailureRecorder
	now      func() time.Time

	mu       sync.Mutex
	email    string
	cart     []model.CartLineItem
	wishlist []model.WishlistItem

	lmu       sync.RWMutex
	listeners map[int]Listener
	nextID    int
}

type Option func(*Store)

func WithRecorder(r WriteFailureRecorder) Option {
	return func(s *Store) {
		s.recorder = r
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

func NewStore(repo repository.CommerceStateRepository, sess SessionReader, logger zerolog.Logger, opts ...Option) *Store {
	util.MustNotNil("commerce store", map[string]any{"repo": repo, "session": sess})
	s := &Store{
		repo:      repo,
		session:   sess,
		logger:    logger,
		now:       time.Now,
		cart:      []model.CartLineItem{},
		wishlist:  []model.WishlistItem{},
		listeners: make(map[int]Listener),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

/*
LoadForUser 讀取使用者的購物車與收藏清單
不存在、損壞或讀取失敗都回傳空集合，不回傳錯誤
*/
func (s *Store) LoadForUser(ctx context.Context, email string) ([]model.CartLineItem, []model.WishlistItem) {
	s.mu.Lock()
	s.loadLocked(ctx, email)
	cart, wishlist := cloneCart(s.cart), cloneWishlist(s.wishlist)
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeLoaded, Email: email})
	return cart, wishlist
}

func (s *Store) loadLocked(ctx context.Context, email string) {
	cart, err := s.repo.LoadCart(ctx, email)
	if err != nil {
		s.logger.Warn().Err(err).Str("email", email).Msg("load cart failed, use empty cart")
		cart = []model.CartLineItem{}
	}
	wishlist, err := s.repo.LoadWishlist(ctx, email)
	if err != nil {
		s.logger.Warn().Err(err).Str("email", email).Msg("load wishlist failed, use empty wishlist")
		wishlist = []model.WishlistItem{}
	}
	s.email = email
	s.cart = cart
	s.wishlist = wishlist
}

// HandleSessionChange 掛在 session.Context.OnChange
func (s *Store) HandleSessionChange(user *model.User) {
	if user == nil {
		s.Reset()
		return
	}
	s.LoadForUser(context.Background(), user.Email)
}

// requireUserLocked 確認已登入，並確保記憶體狀態屬於目前使用者
func (s *Store) requireUserLocked(ctx context.Context) (string, error) {
	user, ok := s.session.Current()
	if !ok {
		return "", session.ErrNotAuthenticated
	}
	if s.email != user.Email {
		s.loadLocked(ctx, user.Email)
	}
	return user.Email, nil
}

func (s *Store) AddToCart(ctx context.Context, product model.Product) error {
	if product.ID == "" {
		return ErrInvalidProduct
	}
	s.mu.Lock()
	email, err := s.requireUserLocked(ctx)
	if err != nil {
		s.mu.Unlock()
		return err
	}

	next := cloneCart(s.cart)
	if i := indexOfLine(next, product.ID); i >= 0 {
		next[i].Quantity++
	} else {
		next = append(next, model.NewCartLineItem(product, s.now().UTC()))
	}
	err = s.commitCartLocked(ctx, email, next)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.notify(Change{Kind: ChangeCart, Email: email})
	return nil
}

func (s *Store) IncreaseQuantity(ctx context.Context, productID string) error {
	return s.adjustQuantity(ctx, productID, 1)
}

// DecreaseQuantity 數量最低為 1，已經是 1 時不做任何事也不寫入
func (s *Store) DecreaseQuantity(ctx context.Context, productID string) error {
	return s.adjustQuantity(ctx, productID, -1)
}

func (s *Store) adjustQuantity(ctx context.Context, productID string, delta int) error {
	s.mu.Lock()
	email, err := s.requireUserLocked(ctx)
	if err != nil {
		s.mu.Unlock()
		return err
	}

	i := indexOfLine(s.cart, productID)
	if i < 0 {
		s.mu.Unlock()
		return ErrItemNotFound
	}
	if s.cart[i].Quantity+delta < 1 {
		s.mu.Unlock()
		return nil
	}

	next := cloneCart(s.cart)
	next[i].Quantity += delta
	err = s.commitCartLocked(ctx, email, next)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.notify(Change{Kind: ChangeCart, Email: email})
	return nil
}

// RemoveFromCart 不論數量直接移除，商品不存在時不寫入
func (s *Store) RemoveFromCart(ctx context.Context, productID string) error {
	s.mu.Lock()
	email, err := s.requireUserLocked(ctx)
	if err != nil {
		s.mu.Unlock()
		return err
	}

	i := indexOfLine(s.cart, productID)
	if i < 0 {
		s.mu.Unlock()
		return nil
	}
	next := make([]model.CartLineItem, 0, len(s.cart)-1)
	next = append(next, s.cart[:i]...)
	next = append(next, s.cart[i+1:]...)
	err = s.commitCartLocked(ctx, email, next)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.notify(Change{Kind: ChangeCart, Email: email})
	return nil
}

// ToggleWishlist 回傳 true 表示加入，false 表示移除
func (s *Store) ToggleWishlist(ctx context.Context, product model.Product) (bool, error) {
	if product.ID == "" {
		return false, ErrInvalidProduct
	}
	s.mu.Lock()
	email, err := s.requireUserLocked(ctx)
	if err != nil {
		s.mu.Unlock()
		return false, err
	}

	var next []model.WishlistItem
	added := false
	if i := indexOfWish(s.wishlist, product.ID); i >= 0 {
		next = make([]model.WishlistItem, 0, len(s.wishlist)-1)
		next = append(next, s.wishlist[:i]...)
		next = append(next, s.wishlist[i+1:]...)
	} else {
		next = append(cloneWishlist(s.wishlist), model.NewWishlistItem(product, s.now().UTC()))
		added = true
	}

	if err := s.repo.SaveWishlist(ctx, email, next); err != nil {
		s.writeFailed("wishlist", email, err)
		s.mu.Unlock()
		return false, err
	}
	s.wishlist = next
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeWishlist, Email: email})
	return added, nil
}

func (s *Store) InWishlist(productID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return indexOfWish(s.wishlist, productID) >= 0
}

/*
ClearCart 結帳成功後清空購物車
記憶體一律清空，再把空集合寫入儲存
*/
func (s *Store) ClearCart(ctx context.Context) error {
	s.mu.Lock()
	email := s.email
	s.cart = []model.CartLineItem{}
	var err error
	if email != "" {
		if err = s.repo.SaveCart(ctx, email, s.cart); err != nil {
			s.writeFailed("cart", email, err)
		}
	}
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeCart, Email: email})
	return err
}

// Reset 登出時丟棄記憶體狀態，不動儲存
func (s *Store) Reset() {
	s.mu.Lock()
	email := s.email
	s.email = ""
	s.cart = []model.CartLineItem{}
	s.wishlist = []model.WishlistItem{}
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeReset, Email: email})
}

func (s *Store) Cart() []model.CartLineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneCart(s.cart)
}

func (s *Store) Wishlist() []model.WishlistItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneWishlist(s.wishlist)
}

// Total 缺少價格視為 0，數量小於 1 視為 1
func (s *Store) Total() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return model.CartTotal(s.cart)
}

// Count 所有商品數量加總，導覽列徽章使用
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cartCount(s.cart)
}

func cartCount(items []model.CartLineItem) int {
	count := 0
	for _, item := range items {
		count += item.Quantity
	}
	return count
}

// View 同一次加鎖取得購物車、總額與數量，不需要登入
func (s *Store) View() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(s.email)
}

func (s *Store) snapshotLocked(email string) Snapshot {
	return Snapshot{Email: email, Items: cloneCart(s.cart), Total: model.CartTotal(s.cart), Count: cartCount(s.cart)}
}

// Snapshot 需要登入，回傳一致的購物車內容與總額
func (s *Store) Snapshot(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	email, err := s.requireUserLocked(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	return s.snapshotLocked(email), nil
}

// Subscribe 註冊狀態變更監聽，回傳取消註冊函式
func (s *Store) Subscribe(l Listener) func() {
	s.lmu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	s.lmu.Unlock()

	return func() {
		s.lmu.Lock()
		delete(s.listeners, id)
		s.lmu.Unlock()
	}
}

func (s *Store) notify(c Change) {
	s.lmu.RLock()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.lmu.RUnlock()

	for _, l := range listeners {
		l(c)
	}
}

func (s *Store) commitCartLocked(ctx context.Context, email string, next []model.CartLineItem) error {
	if err := s.repo.SaveCart(ctx, email, next); err != nil {
		s.writeFailed("cart", email, err)
		return err
	}
	s.cart = next
	return nil
}

func (s *Store) writeFailed(collection, email string, err error) {
	s.logger.Error().Err(err).Str("collection", collection).Str("email", email).Msg("persist failed")
	if s.recorder != nil {
		s.recorder.StorageWriteFailed(collection)
	}
}

func indexOfLine(items []model.CartLineItem, productID string) int {
	for i := range items {
		if items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

func indexOfWish(items []model.WishlistItem, productID string) int {
	for i := range items {
		if items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

func cloneCart(items []model.CartLineItem) []model.CartLineItem {
	out := make([]model.CartLineItem, len(items))
	copy(out, items)
	return out
}

func cloneWishlist(items []model.WishlistItem) []model.WishlistItem {
	out := make([]model.WishlistItem, len(items))
	copy(out, items)
	return out
}
