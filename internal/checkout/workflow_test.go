package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/RoyceAzure/lab/storefront/internal/commerce"
	"github.com/RoyceAzure/lab/storefront/internal/model"
	"github.com/RoyceAzure/lab/storefront/internal/notify"
	"github.com/RoyceAzure/lab/storefront/internal/orderapi"
	"github.com/RoyceAzure/lab/storefront/internal/orderhistory"
	"github.com/RoyceAzure/lab/storefront/internal/repository"
	"github.com/RoyceAzure/lab/storefront/internal/session"
	"github.com/RoyceAzure/lab/storefront/pkg/kvstore"
	"github.com/RoyceAzure/lab/storefront/pkg/kvstore/memory"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

var (
	sam  = model.User{ID: "u1", Name: "Sam", Email: "sam@example.com"}
	lamp = model.Product{ID: "1", Name: "Lamp", Price: decimal.NewFromInt(2200)}

	cardPayment = model.PaymentDetails{
		Method: model.PaymentMethodCreditCard, CardNumber: "4242424242424242", CardName: "Sam Lee", Expiry: "12/30", CVC: "123",
	}
	pickup = model.DeliveryData{
		Country: "TW", DeliveryMethod: model.DeliveryMethodPickup, Name: "Sam", LastName: "Lee", PhoneNumber: "0912345678",
	}
)

type fakeSender struct {
	mu       sync.Mutex
	receipts []notify.Receipt
	err      error
}

func (f *fakeSender) SendReceipt(ctx context.Context, r notify.Receipt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.receipts = append(f.receipts, r)
	return f.err
}

// blockingSender 收到 release 或 ctx 結束才返回
type blockingSender struct {
	release     chan struct{}
	started     chan struct{}
	once        sync.Once
	hasDeadline atomic.Bool
}

func newBlockingSender() *blockingSender {
	return &blockingSender{release: make(chan struct{}), started: make(chan struct{})}
}

func (b *blockingSender) SendReceipt(ctx context.Context, r notify.Receipt) error {
	_, ok := ctx.Deadline()
	b.hasDeadline.Store(ok)
	b.once.Do(func() { close(b.started) })
	select {
	case <-b.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ctxStore 與 go-redis / gorm 相同，ctx 已取消時讀寫直接失敗
type ctxStore struct {
	*memory.Store
}

func (c ctxStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.Store.Get(ctx, key)
}

func (c ctxStore) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.Store.Set(ctx, key, value)
}

func (c ctxStore) Delete(ctx context.Context, keys ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.Store.Delete(ctx, keys...)
}

var _ kvstore.Store = ctxStore{}

// cancelOnCreate 模擬遠端已建立訂單時，呼叫端剛好離開
type cancelOnCreate struct {
	cancel context.CancelFunc
}

func (c cancelOnCreate) CreateOrder(ctx context.Context, req orderapi.CreateOrderRequest, key string) (*orderapi.ServerOrder, error) {
	c.cancel()
	return &orderapi.ServerOrder{ID: "order-1", CreatedAt: "2024-03-01T10:00:00Z"}, nil
}

type resultRecorder struct {
	results []string
}

func (r *resultRecorder) CheckoutResult(result string) {
	r.results = append(r.results, result)
}

type WorkflowTestSuite struct {
	suite.Suite
	ctx      context.Context
	backend  *memory.Backend
	repo     *repository.KVRepository
	session  *session.Context
	store    *commerce.Store
	history  *orderhistory.Cache
	sender   *fakeSender
	recorder *resultRecorder
	workflow *Workflow

	server   *httptest.Server
	handler  http.HandlerFunc
	requests []map[string]any
	keys     []string
}

func (s *WorkflowTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.requests = nil
	s.keys = nil
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"_id":"order-1","createdAt":"2024-03-01T10:00:00Z","status":"pending","totalAmount":2200}}`))
	}
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		s.requests = append(s.requests, body)
		s.keys = append(s.keys, r.Header.Get("Idempotency-Key"))
		s.handler(w, r)
	}))

	s.backend = memory.NewBackend()
	s.repo = repository.NewKVRepository(s.backend.Open(""), zerolog.Nop())
	s.session = session.NewContext(s.repo, zerolog.Nop())
	s.store = commerce.NewStore(s.repo, s.session, zerolog.Nop())
	s.session.OnChange(s.store.HandleSessionChange)

	api := orderapi.NewClient(s.server.URL, 2*time.Second)
	s.history = orderhistory.NewCache(api, s.repo, zerolog.Nop(),
		orderhistory.WithNormalizer(orderhistory.Normalizer{Layout: "1/2/2006", Location: time.UTC}))
	s.sender = &fakeSender{}
	s.recorder = &resultRecorder{}
	s.workflow = NewWorkflow(s.session, s.store, api, s.history, s.repo, s.sender, zerolog.Nop(),
		WithShopName("Storefront"), WithRecorder(s.recorder))

	s.Require().NoError(s.session.Login(s.ctx, sam))
	s.Require().NoError(s.store.AddToCart(s.ctx, lamp))
}

func (s *WorkflowTestSuite) TearDownTest() {
	s.Require().NoError(s.workflow.Drain(s.ctx))
	s.server.Close()
}

func TestWorkflowTestSuite(t *testing.T) {
	suite.Run(t, new(WorkflowTestSuite))
}

func (s *WorkflowTestSuite) TestSubmitSuccess() {
	s.Require().NoError(s.workflow.SaveDeliveryData(s.ctx, pickup))
	before := len(s.history.Cached(s.ctx, sam.Email))

	order, err := s.workflow.Submit(s.ctx, Request{Payment: cardPayment})
	s.Require().NoError(err)
	s.Equal("order-1", order.ID)
	s.Equal("3/1/2024", order.CreatedAt)

	// 送出的 payload
	s.Require().Len(s.requests, 1)
	body := s.requests[0]
	s.Equal("u1", body["userId"])
	s.Equal(float64(2200), body["totalAmount"])
	s.Equal("pending", body["status"])
	s.Equal("credit-card", body["paymentMethod"])
	s.NotEmpty(s.keys[0])
	s.Len(body["items"], 1)

	// 購物車清空並寫入 []
	s.Empty(s.store.Cart())
	raw, ok := s.backend.Raw("cart_sam@example.com")
	s.Require().True(ok)
	s.Equal("[]", string(raw))

	// 訂單快取多一筆
	cached := s.history.Cached(s.ctx, sam.Email)
	s.Require().Len(cached, before+1)
	s.True(cached[len(cached)-1].TotalAmount.Equal(decimal.NewFromInt(2200)))
	s.Equal(model.PaymentMethodCreditCard, cached[len(cached)-1].PaymentMethod)
	s.Require().NotNil(cached[len(cached)-1].DeliveryData)

	// 配送暫存被清除
	d, err := s.workflow.DeliveryData(s.ctx)
	s.Require().NoError(err)
	s.Nil(d)

	s.Require().NoError(s.workflow.Drain(s.ctx))
	s.Require().Len(s.sender.receipts, 1)
	s.Equal("sam@example.com", s.sender.receipts[0].Email)
	s.Equal([]string{"success"}, s.recorder.results)
}

func (s *WorkflowTestSuite) TestSamScenarioPersistsOrder() {
	_, err := s.workflow.Submit(s.ctx, Request{Payment: cardPayment, Delivery: &pickup})
	s.Require().NoError(err)

	raw, ok := s.backend.Raw("orders_sam@example.com")
	s.Require().True(ok)
	var orders []map[string]any
	s.Require().NoError(json.Unmarshal(raw, &orders))
	s.Require().Len(orders, 1)
	s.Equal(float64(2200), orders[0]["totalAmount"])

	cart, ok := s.backend.Raw("cart_sam@example.com")
	s.Require().True(ok)
	s.Equal("[]", string(cart))
}

func (s *WorkflowTestSuite) TestEachSubmissionHasFreshKey() {
	_, err := s.workflow.Submit(s.ctx, Request{Payment: cardPayment, Delivery: &pickup})
	s.Require().NoError(err)
	s.Require().NoError(s.store.AddToCart(s.ctx, lamp))
	_, err = s.workflow.Submit(s.ctx, Request{Payment: cardPayment, Delivery: &pickup})
	s.Require().NoError(err)

	s.Require().Len(s.keys, 2)
	s.NotEqual(s.keys[0], s.keys[1])
	s.Len(s.history.Cached(s.ctx, sam.Email), 2)
}

func (s *WorkflowTestSuite) TestRemoteFailureKeepsCart() {
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"boom"}`))
	}

	_, err := s.workflow.Submit(s.ctx, Request{Payment: cardPayment, Delivery: &pickup})
	var submitErr *SubmitError
	s.Require().ErrorAs(err, &submitErr)
	s.NotEmpty(submitErr.Message)
	var apiErr *orderapi.APIError
	s.ErrorAs(err, &apiErr)

	s.Len(s.store.Cart(), 1)
	s.Len(s.requests, 1)
	s.Empty(s.history.Cached(s.ctx, sam.Email))
	s.Require().NoError(s.workflow.Drain(s.ctx))
	s.Empty(s.sender.receipts)
	s.Equal([]string{"failed"}, s.recorder.results)
}

func (s *WorkflowTestSuite) TestPreconditionsBeforeNetwork() {
	testCases := []struct {
		name  string
		req   Request
		field string
	}{
		{name: "missing card number", req: Request{Payment: model.PaymentDetails{Method: model.PaymentMethodCreditCard, CardName: "a", Expiry: "b", CVC: "c"}, Delivery: &pickup}, field: "cardNumber"},
		{name: "missing cvc", req: Request{Payment: model.PaymentDetails{Method: model.PaymentMethodCreditCard, CardNumber: "1", CardName: "a", Expiry: "b", CVC: " "}, Delivery: &pickup}, field: "cvc"},
		{name: "paypal bad email", req: Request{Payment: model.PaymentDetails{Method: model.PaymentMethodPayPal, Email: "sam@example"}, Delivery: &pickup}, field: "email"},
		{name: "unknown method", req: Request{Payment: model.PaymentDetails{Method: "cash"}, Delivery: &pickup}, field: "paymentMethod"},
		{name: "no delivery data", req: Request{Payment: cardPayment}, field: "deliveryData"},
		{name: "delivery without address", req: Request{Payment: cardPayment, Delivery: &model.DeliveryData{DeliveryMethod: model.DeliveryMethodDelivery, Name: "a", LastName: "b", PhoneNumber: "c"}}, field: "address"},
		{name: "bad delivery method", req: Request{Payment: cardPayment, Delivery: &model.DeliveryData{DeliveryMethod: "drone"}}, field: "deliveryMethod"},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			_, err := s.workflow.Submit(s.ctx, tc.req)
			var validationErr *ValidationError
			s.Require().ErrorAs(err, &validationErr)
			s.Equal(tc.field, validationErr.Field)
		})
	}
	s.Empty(s.requests)
	s.Len(s.store.Cart(), 1)
}

func (s *WorkflowTestSuite) TestGooglePayValidEmail() {
	_, err := s.workflow.Submit(s.ctx, Request{
		Payment:  model.PaymentDetails{Method: model.PaymentMethodGooglePay, Email: "sam@example.com"},
		Delivery: &pickup,
	})
	s.Require().NoError(err)
	s.Equal("google-pay", s.requests[0]["paymentMethod"])
}

func (s *WorkflowTestSuite) TestEmptyCart() {
	s.Require().NoError(s.store.RemoveFromCart(s.ctx, lamp.ID))
	_, err := s.workflow.Submit(s.ctx, Request{Payment: cardPayment, Delivery: &pickup})
	s.ErrorIs(err, ErrEmptyCart)
	s.Empty(s.requests)
	s.Equal([]string{"empty_cart"}, s.recorder.results)
}

func (s *WorkflowTestSuite) TestNotAuthenticated() {
	s.Require().NoError(s.session.Logout(s.ctx))
	_, err := s.workflow.Submit(s.ctx, Request{Payment: cardPayment, Delivery: &pickup})
	s.ErrorIs(err, session.ErrNotAuthenticated)
	s.ErrorIs(s.workflow.SaveDeliveryData(s.ctx, pickup), session.ErrNotAuthenticated)
	s.Empty(s.requests)
}

func (s *WorkflowTestSuite) TestReceiptFailureIsNotFatal() {
	s.sender.err = errors.New("relay down")
	order, err := s.workflow.Submit(s.ctx, Request{Payment: cardPayment, Delivery: &pickup})
	s.Require().NoError(err)
	s.NotNil(order)
	s.Empty(s.store.Cart())
	s.Require().NoError(s.workflow.Drain(s.ctx))
	s.Len(s.sender.receipts, 1)
}

func (s *WorkflowTestSuite) TestSecondSubmitWhileInFlight() {
	release := make(chan struct{})
	entered := make(chan struct{})
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"_id":"order-1"}`))
	}

	done := make(chan error, 1)
	go func() {
		_, err := s.workflow.Submit(s.ctx, Request{Payment: cardPayment, Delivery: &pickup})
		done <- err
	}()

	<-entered
	_, err := s.workflow.Submit(s.ctx, Request{Payment: cardPayment, Delivery: &pickup})
	s.ErrorIs(err, ErrSubmissionInProgress)

	close(release)
	s.NoError(<-done)
	s.Len(s.requests, 1)
	// 回應缺少的欄位由送出內容補上
	cached := s.history.Cached(s.ctx, sam.Email)
	s.Require().Len(cached, 1)
	s.True(cached[0].TotalAmount.Equal(decimal.NewFromInt(2200)))
	s.Equal(model.OrderStatusPending, cached[0].Status)
	s.Len(cached[0].Items, 1)
}

func (s *WorkflowTestSuite) TestSaveDeliveryDataValidates() {
	err := s.workflow.SaveDeliveryData(s.ctx, model.DeliveryData{DeliveryMethod: model.DeliveryMethodPickup})
	var validationErr *ValidationError
	s.Require().ErrorAs(err, &validationErr)
	s.Equal("name", validationErr.Field)

	_, ok := s.backend.Raw("deliveryData_sam@example.com")
	s.False(ok)
}

func (s *WorkflowTestSuite) TestCallerCancelAfterOrderCreated() {
	backend := memory.NewBackend()
	repo := repository.NewKVRepository(ctxStore{backend.Open("")}, zerolog.Nop())
	sess := session.NewContext(repo, zerolog.Nop())
	store := commerce.NewStore(repo, sess, zerolog.Nop())
	sess.OnChange(store.HandleSessionChange)
	history := orderhistory.NewCache(orderapi.NewClient(s.server.URL, time.Second), repo, zerolog.Nop())

	s.Require().NoError(sess.Login(s.ctx, sam))
	s.Require().NoError(store.AddToCart(s.ctx, lamp))
	s.Require().NoError(repo.SaveDeliveryData(s.ctx, sam.Email, pickup))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	workflow := NewWorkflow(sess, store, cancelOnCreate{cancel: cancel}, history, repo, &fakeSender{}, zerolog.Nop())

	order, err := workflow.Submit(ctx, Request{Payment: cardPayment})
	s.Require().NoError(err)
	s.Equal("order-1", order.ID)
	s.Require().NoError(workflow.Drain(s.ctx))

	cart, ok := backend.Raw("cart_sam@example.com")
	s.Require().True(ok)
	s.Equal("[]", string(cart))

	raw, ok := backend.Raw("orders_sam@example.com")
	s.Require().True(ok)
	var orders []map[string]any
	s.Require().NoError(json.Unmarshal(raw, &orders))
	s.Require().Len(orders, 1)
	s.Equal("order-1", orders[0]["_id"])

	_, ok = backend.Raw("deliveryData_sam@example.com")
	s.False(ok)
}

func (s *WorkflowTestSuite) TestReceiptDoesNotHoldSubmit() {
	sender := newBlockingSender()
	workflow := NewWorkflow(s.session, s.store, orderapi.NewClient(s.server.URL, 2*time.Second), s.history, s.repo, sender, zerolog.Nop())

	_, err := workflow.Submit(s.ctx, Request{Payment: cardPayment, Delivery: &pickup})
	s.Require().NoError(err)
	<-sender.started
	s.True(sender.hasDeadline.Load(), "收據送出要有自己的期限")

	// 收據還沒送完，下一筆訂單不會被擋
	s.Require().NoError(s.store.AddToCart(s.ctx, lamp))
	_, err = workflow.Submit(s.ctx, Request{Payment: cardPayment, Delivery: &pickup})
	s.Require().NotErrorIs(err, ErrSubmissionInProgress)

	close(sender.release)
	s.Require().NoError(workflow.Drain(s.ctx))
}

func (s *WorkflowTestSuite) TestReceiptTimeout() {
	sender := newBlockingSender()
	workflow := NewWorkflow(s.session, s.store, orderapi.NewClient(s.server.URL, 2*time.Second), s.history, s.repo, sender, zerolog.Nop(),
		WithReceiptTimeout(50*time.Millisecond))

	_, err := workflow.Submit(s.ctx, Request{Payment: cardPayment, Delivery: &pickup})
	s.Require().NoError(err)

	ctx, cancel := context.WithTimeout(s.ctx, 2*time.Second)
	defer cancel()
	s.Require().NoError(workflow.Drain(ctx))
}

func (s *WorkflowTestSuite) TestDrainRespectsContext() {
	sender := newBlockingSender()
	workflow := NewWorkflow(s.session, s.store, orderapi.NewClient(s.server.URL, 2*time.Second), s.history, s.repo, sender, zerolog.Nop())

	_, err := workflow.Submit(s.ctx, Request{Payment: cardPayment, Delivery: &pickup})
	s.Require().NoError(err)
	<-sender.started

	ctx, cancel := context.WithTimeout(s.ctx, 20*time.Millisecond)
	defer cancel()
	s.ErrorIs(workflow.Drain(ctx), context.DeadlineExceeded)

	close(sender.release)
	s.Require().NoError(workflow.Drain(s.ctx))
}
