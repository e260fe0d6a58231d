package kvstore

import (
	"context"
	"time"
)

// Op 變更類型
type Op string

const (
	OpSet    Op = "set"
	OpDelete Op = "delete"
)

// ChangeEvent 儲存變更通知
// 同一份儲存空間的其他 handle (另一個分頁/程序) 會收到這個事件
// Origin 為寫入者的識別，訂閱端用來忽略自己的寫入
type ChangeEvent struct {
	Key    string    `json:"key"`
	Op     Op        `json:"op"`
	Origin string    `json:"origin"`
	At     time.Time `json:"at"`
}

// Store 持久化 key-value 儲存
// 值一律為 JSON bytes，由上層負責編解碼
type Store interface {
	// Get 取得 key 的值
	//
	// 錯誤:
	//   - ErrNotFound: key 不存在
	//   - *StoreError: 連線或其他儲存錯誤
	Get(ctx context.Context, key string) ([]byte, error)

	// Set 寫入 key，成功後發出 OpSet 變更通知
	//
	// 錯誤:
	//   - *StoreError CodeQuotaExceeded: 超過單值大小上限
	//   - *StoreError: 連線或其他儲存錯誤
	Set(ctx context.Context, key string, value []byte) error

	// Delete 刪除 key，不存在的 key 直接略過
	Delete(ctx context.Context, keys ...string) error

	// Subscribe 訂閱變更通知，ctx 結束時關閉 channel
	Subscribe(ctx context.Context) (<-chan ChangeEvent, error)

	// Origin 此 handle 的寫入者識別
	Origin() string

	Close() error
}
