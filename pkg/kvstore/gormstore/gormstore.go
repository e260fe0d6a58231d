package gormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/RoyceAzure/lab/storefront/pkg/kvstore"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Entry kv_entries 資料表
type Entry struct {
	Key       string    `gorm:"primaryKey;type:varchar(255)"`
	Value     []byte    `gorm:"not null;type:bytea"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (Entry) TableName() string {
	return "kv_entries"
}

// GormStore 以關聯式資料庫作為持久化儲存
// 變更通知只在同一個程序內扇出，跨程序同步請用 redis 實作
type GormStore struct {
	db       *gorm.DB
	origin   string
	maxBytes int
	bc       *kvstore.Broadcaster
}

type Option func(*GormStore)

func WithMaxValueBytes(limit int) Option {
	return func(s *GormStore) {
		s.maxBytes = limit
	}
}

func WithOrigin(origin string) Option {
	return func(s *GormStore) {
		s.origin = origin
	}
}

// GetDbConn 建立 postgres 連線
func GetDbConn(dbname, host, port, user, pas string) (*gorm.DB, error) {
	dsn := fmt.Sprintf("user=%s password=%s host=%s port=%s dbname=%s sslmode=disable", user, pas, host, port, dbname)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	return db, nil
}

func NewGormStore(db *gorm.DB, opts ...Option) *GormStore {
	if db == nil {
		panic("GormStore dependency db is nil")
	}
	s := &GormStore{
		db:     db,
		origin: uuid.NewString(),
		bc:     kvstore.NewBroadcaster(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ kvstore.Store = (*GormStore)(nil)

// InitMigrate 建立 kv_entries
func (s *GormStore) InitMigrate() error {
	return s.db.AutoMigrate(&Entry{})
}

func (s *GormStore) Origin() string {
	return s.origin
}

func (s *GormStore) Get(ctx context.Context, key string) ([]byte, error) {
	var entry Entry
	err := s.db.WithContext(ctx).Where("key = ?", key).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, kvstore.ErrNotFound
	}
	if err != nil {
		return nil, wrapError(key, "get failed", err)
	}
	return entry.Value, nil
}

// Set upsert
func (s *GormStore) Set(ctx context.Context, key string, value []byte) error {
	if err := kvstore.CheckQuota(key, value, s.maxBytes); err != nil {
		return err
	}

	now := time.Now().UTC()
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&Entry{Key: key, Value: value, UpdatedAt: now}).Error
	if err != nil {
		return wrapError(key, "set failed", err)
	}

	s.bc.Publish(kvstore.ChangeEvent{Key: key, Op: kvstore.OpSet, Origin: s.origin, At: now})
	return nil
}

func (s *GormStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Where("key IN ?", keys).Delete(&Entry{}).Error; err != nil {
		return wrapError(fmt.Sprint(keys), "delete failed", err)
	}

	now := time.Now().UTC()
	for _, key := range keys {
		s.bc.Publish(kvstore.ChangeEvent{Key: key, Op: kvstore.OpDelete, Origin: s.origin, At: now})
	}
	return nil
}

func (s *GormStore) Subscribe(ctx context.Context) (<-chan kvstore.ChangeEvent, error) {
	return s.bc.Subscribe(ctx), nil
}

func (s *GormStore) Close() error {
	s.bc.Close()
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func wrapError(key, message string, err error) error {
	code := kvstore.CodeConnection
	if errors.Is(err, context.DeadlineExceeded) {
		code = kvstore.CodeTimeout
	}
	return kvstore.NewStoreError(code, key, message, err)
}
