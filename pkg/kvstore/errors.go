package kvstore

import (
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("key not found")

type ErrorCode int

const (
	CodeUnknown ErrorCode = iota
	CodeConnection
	CodeTimeout
	CodeInvalid
	CodeQuotaExceeded
)

func (c ErrorCode) String() string {
	switch c {
	case CodeConnection:
		return "connection"
	case CodeTimeout:
		return "timeout"
	case CodeInvalid:
		return "invalid"
	case CodeQuotaExceeded:
		return "quota_exceeded"
	default:
		return "unknown"
	}
}

// StoreError 儲存層錯誤
type StoreError struct {
	Code    ErrorCode
	Key     string
	Message string
	Err     error
}

func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("kvstore %s on key %q: %s: %v", e.Code, e.Key, e.Message, e.Err)
	}
	return fmt.Sprintf("kvstore %s on key %q: %s", e.Code, e.Key, e.Message)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func NewStoreError(code ErrorCode, key, message string, err error) error {
	return &StoreError{Code: code, Key: key, Message: message, Err: err}
}

// QuotaError 超過大小上限的錯誤
func QuotaError(key string, size, limit int) error {
	return NewStoreError(CodeQuotaExceeded, key, fmt.Sprintf("value size %d exceeds limit %d", size, limit), nil)
}

// IsQuotaExceeded 判斷是否為容量不足錯誤
func IsQuotaExceeded(err error) bool {
	var se *StoreError
	return errors.As(err, &se) && se.Code == CodeQuotaExceeded
}

// CheckQuota limit <= 0 表示不限制
func CheckQuota(key string, value []byte, limit int) error {
	if limit > 0 && len(value) > limit {
		return QuotaError(key, len(value), limit)
	}
	return nil
}
