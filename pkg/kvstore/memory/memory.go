package memory

import (
	"context"
	"sync"
	"time"

	"github.com/RoyceAzure/lab/storefront/pkg/kvstore"
	"github.com/google/uuid"
)

// Backend 程序內共享的儲存空間
// 一個 Backend 可開多個 Store handle，模擬共用同一份儲存的多個分頁
type Backend struct {
	mu       sync.RWMutex
	data     map[string][]byte
	quota    int
	failNext error
	bc       *kvstore.Broadcaster
}

type Option func(*Backend)

// WithQuota 單值大小上限 (bytes)
func WithQuota(limit int) Option {
	return func(b *Backend) {
		b.quota = limit
	}
}

func NewBackend(opts ...Option) *Backend {
	b := &Backend{
		data: make(map[string][]byte),
		bc:   kvstore.NewBroadcaster(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Open 開啟一個新的 handle，origin 為空時自動產生
func (b *Backend) Open(origin string) *Store {
	if origin == "" {
		origin = uuid.NewString()
	}
	return &Store{backend: b, origin: origin}
}

// FailNextWrite 下一次寫入回傳指定錯誤，測試用
func (b *Backend) FailNextWrite(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failNext = err
}

// Raw 直接讀取原始值，測試用
func (b *Backend) Raw(key string) ([]byte, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.data[key]
	return v, ok
}

// PutRaw 直接寫入原始值且不發通知，測試用
func (b *Backend) PutRaw(key string, value []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data[key] = append([]byte(nil), value...)
}

type Store struct {
	backend *Backend
	origin  string
}

// New 建立獨立 Backend 並開啟一個 handle
func New(opts ...Option) *Store {
	return NewBackend(opts...).Open("")
}

var _ kvstore.Store = (*Store)(nil)

func (s *Store) Origin() string {
	return s.origin
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	s.backend.mu.RLock()
	defer s.backend.mu.RUnlock()
	v, ok := s.backend.data[key]
	if !ok {
		return nil, kvstore.ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	s.backend.mu.Lock()
	if err := s.backend.failNext; err != nil {
		s.backend.failNext = nil
		s.backend.mu.Unlock()
		return err
	}
	if err := kvstore.CheckQuota(key, value, s.backend.quota); err != nil {
		s.backend.mu.Unlock()
		return err
	}
	s.backend.data[key] = append([]byte(nil), value...)
	s.backend.mu.Unlock()

	s.backend.bc.Publish(kvstore.ChangeEvent{Key: key, Op: kvstore.OpSet, Origin: s.origin, At: time.Now().UTC()})
	return nil
}

func (s *Store) Delete(ctx context.Context, keys ...string) error {
	s.backend.mu.Lock()
	if err := s.backend.failNext; err != nil {
		s.backend.failNext = nil
		s.backend.mu.Unlock()
		return err
	}
	deleted := make([]string, 0, len(keys))
	for _, key := range keys {
		if _, ok := s.backend.data[key]; ok {
			delete(s.backend.data, key)
			deleted = append(deleted, key)
		}
	}
	s.backend.mu.Unlock()

	for _, key := range deleted {
		s.backend.bc.Publish(kvstore.ChangeEvent{Key: key, Op: kvstore.OpDelete, Origin: s.origin, At: time.Now().UTC()})
	}
	return nil
}

func (s *Store) Subscribe(ctx context.Context) (<-chan kvstore.ChangeEvent, error) {
	return s.backend.bc.Subscribe(ctx), nil
}

func (s *Store) Close() error {
	return nil
}
