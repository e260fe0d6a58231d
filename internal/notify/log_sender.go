package notify

import (
	"context"

	"github.com/rs/zerolog"
)

// LogReceiptSender 沒有設定 KAFKA_BROKERS 時使用，只記錄 log
type LogReceiptSender struct {
	logger zerolog.Logger
}

func NewLogReceiptSender(logger zerolog.Logger) *LogReceiptSender {
	return &LogReceiptSender{logger: logger}
}

func (s *LogReceiptSender) SendReceipt(ctx context.Context, r Receipt) error {
	s.logger.Info().
		Str("order_id", r.OrderID).
		Str("email", r.Email).
		Str("total", r.Total.StringFixed(2)).
		Msg("receipt not relayed, no broker configured")
	return nil
}
