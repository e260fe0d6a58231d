package notify

import (
	"errors"
	"fmt"
)

var ErrSenderClosed = errors.New("receipt sender is closed")

// RelayError 送出收據到 relay 失敗
type RelayError struct {
	Operation string
	Topic     string
	Err       error
}

func (e *RelayError) Error() string {
	return fmt.Sprintf("relay operation %s on topic %s failed: %v", e.Operation, e.Topic, e.Err)
}

func (e *RelayError) Unwrap() error {
	return e.Err
}

func NewRelayError(operation, topic string, err error) error {
	return &RelayError{Operation: operation, Topic: topic, Err: err}
}
