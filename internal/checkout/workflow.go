package checkout

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/RoyceAzure/lab/storefront/internal/commerce"
	"github.com/RoyceAzure/lab/storefront/internal/model"
	"github.com/RoyceAzure/lab/storefront/internal/notify"
	"github.com/RoyceAzure/lab/storefront/internal/orderapi"
	"github.com/RoyceAzure/lab/storefront/internal/orderhistory"
	"github.com/RoyceAzure/lab/storefront/internal/session"
	"github.com/RoyceAzure/lab/storefront/pkg/util"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type SessionReader interface {
	Current() (model.User, bool)
}

type Cart interface {
	Snapshot(ctx context.Context) (commerce.Snapshot, error)
	ClearCart(ctx context.Context) error
}

type OrderCreator interface {
	CreateOrder(ctx context.Context, req orderapi.CreateOrderRequest, idempotencyKey string) (*orderapi.ServerOrder, error)
}

type History interface {
	Append(ctx context.Context, email string, order model.Order) error
	Normalizer() orderhistory.Normalizer
}

type DeliveryRepository interface {
	LoadDeliveryData(ctx context.Context, email string) (*model.DeliveryData, error)
	SaveDeliveryData(ctx context.Context, email string, data model.DeliveryData) error
	ClearDeliveryData(ctx context.Context, email string) error
}

type ResultRecorder interface {
	CheckoutResult(result string)
}

// Request 付款頁送出的內容，Delivery 為空時使用先前暫存的配送資料
type Request struct {
	Payment  model.PaymentDetails `json:"payment"`
	Delivery *model.DeliveryData  `json:"deliveryData,omitempty"`
}

type Workflow struct {
	session  SessionReader
	cart     Cart
	api      OrderCreator
	history  History
	delivery DeliveryRepository
	receipts notify.ReceiptSender
	logger   zerolog.Logger
	shopName string
	recorder ResultRecorder
	newKey   func() string

	receiptTimeout time.Duration
	receiptWG      sync.WaitGroup

	inFlight atomic.Bool
}

const defaultReceiptTimeout = 15 * time.Second

type Option func(*Workflow)

func WithShopName(name string) Option {
	return func(w *Workflow) {
		w.shopName = name
	}
}

func WithRecorder(r ResultRecorder) Option {
	return func(w *Workflow) {
		w.recorder = r
	}
}

// WithReceiptTimeout 單次收據送出的上限，與訂單流程分開計算
func WithReceiptTimeout(d time.Duration) Option {
	return func(w *Workflow) {
		w.receiptTimeout = d
	}
}

// WithKeyGenerator 測試時固定 Idempotency-Key
func WithKeyGenerator(f func() string) Option {
	return func(w *Workflow) {
		w.newKey = f
	}
}

func NewWorkflow(
	sess SessionReader,
	cart Cart,
	api OrderCreator,
	history History,
	delivery DeliveryRepository,
	receipts notify.ReceiptSender,
	logger zerolog.Logger,
	opts ...Option,
) *Workflow {
	util.MustNotNil("checkout workflow", map[string]any{
		"session":  sess,
		"cart":     cart,
		"api":      api,
		"history":  history,
		"delivery": delivery,
		"receipts": receipts,
	})
	w := &Workflow{
		session:  sess,
		cart:     cart,
		api:      api,
		history:  history,
		delivery: delivery,
		receipts: receipts,
		logger:   logger,
		newKey:   uuid.NewString,

		receiptTimeout: defaultReceiptTimeout,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// SaveDeliveryData 配送頁送出，驗證後暫存到 deliveryData_{email}
func (w *Workflow) SaveDeliveryData(ctx context.Context, data model.DeliveryData) error {
	user, ok := w.session.Current()
	if !ok {
		return session.ErrNotAuthenticated
	}
	if err := ValidateDelivery(&data); err != nil {
		return err
	}
	return w.delivery.SaveDeliveryData(ctx, user.Email, data)
}

// DeliveryData 目前使用者暫存的配送資料
func (w *Workflow) DeliveryData(ctx context.Context) (*model.DeliveryData, error) {
	user, ok := w.session.Current()
	if !ok {
		return nil, session.ErrNotAuthenticated
	}
	return w.delivery.LoadDeliveryData(ctx, user.Email)
}

/*
Submit 送出訂單

所有前置檢查都在呼叫遠端之前完成:
登入、購物車非空、付款欄位、配送資料

成功後依序寫入訂單快取、清空購物車、清除配送暫存，最後在背景送出收據
收據失敗只記 log，可用 Drain 等待送出結束

錯誤:
  - ErrSubmissionInProgress: 已有一筆送出中
  - session.ErrNotAuthenticated
  - ErrEmptyCart
  - *ValidationError
  - *SubmitError: 遠端失敗，購物車不變
*/
func (w *Workflow) Submit(ctx context.Context, req Request) (*model.Order, error) {
	if !w.inFlight.CompareAndSwap(false, true) {
		return nil, ErrSubmissionInProgress
	}
	defer w.inFlight.Store(false)

	order, err := w.submit(ctx, req)
	w.record(err)
	return order, err
}

func (w *Workflow) submit(ctx context.Context, req Request) (*model.Order, error) {
	user, ok := w.session.Current()
	if !ok {
		return nil, session.ErrNotAuthenticated
	}
	snap, err := w.cart.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if len(snap.Items) == 0 {
		return nil, ErrEmptyCart
	}
	if err := ValidatePayment(req.Payment); err != nil {
		return nil, err
	}

	delivery := req.Delivery
	if delivery == nil {
		delivery, err = w.delivery.LoadDeliveryData(ctx, user.Email)
		if err != nil {
			w.logger.Warn().Err(err).Str("email", user.Email).Msg("load delivery data failed")
			delivery = nil
		}
	}
	if err := ValidateDelivery(delivery); err != nil {
		return nil, err
	}

	payload := orderapi.CreateOrderRequest{
		UserID:        user.ID,
		Items:         snap.Items,
		TotalAmount:   snap.Total,
		Status:        model.OrderStatusPending,
		DeliveryData:  delivery,
		PaymentMethod: req.Payment.Method,
	}
	key := w.newKey()
	created, err := w.api.CreateOrder(ctx, payload, key)
	if err != nil {
		w.logger.Error().Err(err).Str("email", user.Email).Str("idempotency_key", key).Msg("create order failed")
		return nil, &SubmitError{Message: submitFailedMessage, Err: err}
	}

	order := w.history.Normalizer().Normalize(fillFromPayload(*created, payload))
	w.afterSuccess(ctx, user, order)
	return &order, nil
}

// fillFromPayload 遠端回應缺少的欄位用送出的內容補上
func fillFromPayload(so orderapi.ServerOrder, p orderapi.CreateOrderRequest) orderapi.ServerOrder {
	if so.Items == nil {
		so.Items = p.Items
	}
	if so.TotalAmount == nil {
		total := p.TotalAmount
		so.TotalAmount = &total
	}
	if so.Status == "" {
		so.Status = p.Status
	}
	if so.PaymentMethod == "" {
		so.PaymentMethod = p.PaymentMethod
	}
	if so.DeliveryData == nil {
		so.DeliveryData = p.DeliveryData
	}
	return so
}

/*
afterSuccess 訂單已在遠端建立，後續步驟失敗只記 log
呼叫端離開 (ctx 取消) 不影響寫入訂單快取與清空購物車
收據在背景送出，不佔用回應與送出中的旗標
*/
func (w *Workflow) afterSuccess(ctx context.Context, user model.User, order model.Order) {
	ctx = context.WithoutCancel(ctx)

	if err := w.history.Append(ctx, user.Email, order); err != nil {
		w.logger.Error().Err(err).Str("order_id", order.ID).Msg("failed to cache order")
	}
	if err := w.cart.ClearCart(ctx); err != nil {
		w.logger.Error().Err(err).Str("order_id", order.ID).Msg("failed to persist cleared cart")
	}
	if err := w.delivery.ClearDeliveryData(ctx, user.Email); err != nil {
		w.logger.Warn().Err(err).Str("order_id", order.ID).Msg("failed to clear delivery data")
	}

	receipt := notify.NewReceipt(w.shopName, user, order)
	w.receiptWG.Add(1)
	go func() {
		defer w.receiptWG.Done()
		rctx, cancel := context.WithTimeout(ctx, w.receiptTimeout)
		defer cancel()
		if err := w.receipts.SendReceipt(rctx, receipt); err != nil {
			w.logger.Warn().Err(err).Str("order_id", order.ID).Msg("receipt not sent")
		}
	}()

	w.logger.Info().Str("order_id", order.ID).Str("email", user.Email).Str("total", order.TotalAmount.String()).Msg("order placed")
}

// Drain 等待背景中的收據送出完成，關閉收據 sender 前呼叫
func (w *Workflow) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		w.receiptWG.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Workflow) record(err error) {
	if w.recorder == nil {
		return
	}
	var validationErr *ValidationError
	var submitErr *SubmitError
	switch {
	case err == nil:
		w.recorder.CheckoutResult("success")
	case errors.As(err, &validationErr):
		w.recorder.CheckoutResult("invalid")
	case errors.As(err, &submitErr):
		w.recorder.CheckoutResult("failed")
	case errors.Is(err, ErrEmptyCart):
		w.recorder.CheckoutResult("empty_cart")
	default:
		w.recorder.CheckoutResult("rejected")
	}
}
