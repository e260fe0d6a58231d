package appcontext

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/RoyceAzure/lab/storefront/internal/config"
	"github.com/RoyceAzure/lab/storefront/internal/notify"
	"github.com/RoyceAzure/lab/storefront/pkg/ratelimit"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func memoryConfig() *config.Config {
	return &config.Config{
		ServerPort:      "0",
		LogLevel:        "disabled",
		OrderAPIURL:     "http://localhost:1",
		HTTPTimeout:     time.Second,
		StorageDriver:   "memory",
		KVMaxValueBytes: 1024,
		ReceiptTopic:    "order-receipts",
		DateLayout:      "1/2/2006",
		ShopName:        "Storefront",
	}
}

func TestNewApplicationContext_Memory(t *testing.T) {
	app, err := NewApplicationContext(memoryConfig())
	require.NoError(t, err)
	require.NotNil(t, app.Store)
	require.NotNil(t, app.Checkout)
	require.NotNil(t, app.Server.CartHandler)
	require.IsType(t, &notify.LogReceiptSender{}, app.Receipts)
	require.Nil(t, app.Limiter)

	_, ok := app.Session.Current()
	require.False(t, ok)
	require.NoError(t, app.Shutdown(context.Background()))
}

func TestNewApplicationContext_KafkaReceipts(t *testing.T) {
	cf := memoryConfig()
	cf.KafkaBrokers = "localhost:9092"
	app, err := NewApplicationContext(cf)
	require.NoError(t, err)
	require.IsType(t, &notify.KafkaReceiptSender{}, app.Receipts)
	require.NoError(t, app.Shutdown(context.Background()))
}

func TestNewApplicationContext_UnknownDriver(t *testing.T) {
	cf := memoryConfig()
	cf.StorageDriver = "sqlite"
	_, err := NewApplicationContext(cf)
	require.ErrorIs(t, err, ErrUnknownStorageDriver)
}

func TestNewLogger(t *testing.T) {
	require.Equal(t, zerolog.DebugLevel, NewLogger("DEBUG").GetLevel())
	require.Equal(t, zerolog.InfoLevel, NewLogger("nonsense").GetLevel())
	require.Equal(t, zerolog.InfoLevel, NewLogger("").GetLevel())
}

func TestRouter_RateLimitsSignIn(t *testing.T) {
	cf := memoryConfig()
	cf.RateLimitCap = 1
	cf.RateLimitPS = 0.001
	app, err := NewApplicationContext(cf)
	require.NoError(t, err)
	defer app.Shutdown(context.Background())
	require.IsType(t, &ratelimit.TokenBucket{}, app.Limiter)

	h := app.Router()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	// 第一次因 body 無效被拒，仍會消耗額度
	signin := func() int {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/session/signin", strings.NewReader("{")))
		return rec.Code
	}
	require.NotEqual(t, http.StatusTooManyRequests, signin())
	require.Equal(t, http.StatusTooManyRequests, signin())
}
