package notify

import (
	"context"
	"encoding/json"
	"net"
	"sync/atomic"
	"time"

	"github.com/RoyceAzure/lab/storefront/pkg/util"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

//go:generate mockgen -source=kafka.go -destination=mock/mock_writer.go -package=mock_notify

// Writer kafka.Writer 的最小介面，測試時以 mock 取代
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// relayMessage mail relay 消費的訊息格式
type relayMessage struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
	OrderID string `json:"orderId"`
}

type KafkaReceiptSender struct {
	writer Writer
	topic  string
	logger zerolog.Logger
	closed atomic.Bool
}

// NewKafkaWriter 同步寫入，送出收據時會 block 到 broker 回應
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		Async:        false,
		MaxAttempts:  3,
		BatchTimeout: 10 * time.Millisecond,
		Transport: &kafka.Transport{
			Dial: func(ctx context.Context, network string, address string) (net.Conn, error) {
				dialer := &kafka.Dialer{
					Timeout:   10 * time.Second,
					DualStack: true,
					KeepAlive: 30 * time.Second,
				}
				return dialer.DialContext(ctx, network, address)
			},
		},
	}
}

func NewKafkaReceiptSender(writer Writer, topic string, logger zerolog.Logger) *KafkaReceiptSender {
	util.MustNotNil("kafka receipt sender", map[string]any{"writer": writer})
	return &KafkaReceiptSender{writer: writer, topic: topic, logger: logger}
}

func (s *KafkaReceiptSender) SendReceipt(ctx context.Context, r Receipt) error {
	if s.closed.Load() {
		return NewRelayError("send", s.topic, ErrSenderClosed)
	}

	html, err := RenderReceiptHTML(r)
	if err != nil {
		return NewRelayError("render", s.topic, err)
	}
	value, err := json.Marshal(relayMessage{To: r.Email, Subject: r.Subject(), HTML: html, OrderID: r.OrderID})
	if err != nil {
		return NewRelayError("encode", s.topic, err)
	}

	msg := kafka.Message{
		Key:   []byte(r.OrderID),
		Value: value,
		Time:  time.Now(),
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return NewRelayError("write", s.topic, err)
	}
	s.logger.Debug().Str("order_id", r.OrderID).Str("topic", s.topic).Msg("receipt relayed")
	return nil
}

func (s *KafkaReceiptSender) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.writer.Close()
}
