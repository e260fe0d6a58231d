package appcontext

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/RoyceAzure/lab/storefront/internal/api"
	"github.com/RoyceAzure/lab/storefront/internal/api/handler"
	"github.com/RoyceAzure/lab/storefront/internal/api/router"
	"github.com/RoyceAzure/lab/storefront/internal/checkout"
	"github.com/RoyceAzure/lab/storefront/internal/commerce"
	"github.com/RoyceAzure/lab/storefront/internal/config"
	"github.com/RoyceAzure/lab/storefront/internal/constants"
	"github.com/RoyceAzure/lab/storefront/internal/metrics"
	"github.com/RoyceAzure/lab/storefront/internal/notify"
	"github.com/RoyceAzure/lab/storefront/internal/orderapi"
	"github.com/RoyceAzure/lab/storefront/internal/orderhistory"
	"github.com/RoyceAzure/lab/storefront/internal/repository"
	"github.com/RoyceAzure/lab/storefront/internal/session"
	"github.com/RoyceAzure/lab/storefront/pkg/kvstore"
	"github.com/RoyceAzure/lab/storefront/pkg/kvstore/gormstore"
	"github.com/RoyceAzure/lab/storefront/pkg/kvstore/memory"
	redisstore "github.com/RoyceAzure/lab/storefront/pkg/kvstore/redis"
	"github.com/RoyceAzure/lab/storefront/pkg/ratelimit"
	"github.com/RoyceAzure/lab/storefront/pkg/util"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var ErrUnknownStorageDriver = errors.New("unknown storage driver")

type ApplicationContext struct {
	Cf       *config.Config
	Logger   zerolog.Logger
	KV       kvstore.Store
	Repo     *repository.KVRepository
	Session  *session.Context
	Store    *commerce.Store
	OrderAPI *orderapi.Client
	History  *orderhistory.Cache
	Receipts notify.ReceiptSender
	Checkout *checkout.Workflow
	Metrics  *metrics.Metrics
	Server   *api.Server
	Limiter  ratelimit.Limiter

	redisClient *goredis.Client
	closers     []func() error
}

func NewApplicationContext(cf *config.Config) (*ApplicationContext, error) {
	app := ApplicationContext{
		Cf:     cf,
		Logger: NewLogger(cf.LogLevel),
	}
	if err := app.Init(); err != nil {
		_ = app.Shutdown(context.Background())
		return nil, err
	}
	return &app, nil
}

// NewLogger 程序共用的 logger，等級無法解析時使用 info
func NewLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stdout).Level(lvl).With().Timestamp().Str("service", "storefront").Logger()
}

func (app *ApplicationContext) Init() error {
	steps := []struct {
		name string
		fn   func() error
	}{
		{"metrics", app.setUpMetrics},
		{"key-value store", app.setUpKVStore},
		{"repository", app.setUpRepository},
		{"session", app.setUpSession},
		{"commerce store", app.setUpCommerceStore},
		{"order api client", app.setUpOrderAPI},
		{"order history", app.setUpHistory},
		{"receipt sender", app.setUpReceiptSender},
		{"checkout workflow", app.setUpCheckout},
		{"rate limiter", app.setUpRateLimiter},
		{"api server", app.setUpServer},
	}
	for _, step := range steps {
		app.Logger.Info().Msgf("Start setup %s", step.name)
		if err := step.fn(); err != nil {
			return fmt.Errorf("setup %s: %w", step.name, err)
		}
		app.Logger.Info().Msgf("Finish setup %s", step.name)
	}

	// 啟動時讀取一次登入狀態，OnChange 已註冊，購物車會一起載入
	if user := app.Session.Restore(context.Background()); user != nil {
		app.Logger.Info().Str("email", user.Email).Msg("session restored")
	}
	return nil
}

func (app *ApplicationContext) setUpMetrics() error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	app.Metrics = metrics.New(reg)
	return nil
}

func (app *ApplicationContext) setUpKVStore() error {
	switch constants.StorageDriver(app.Cf.StorageDriver) {
	case constants.StorageRedis:
		client := redisstore.GetRedisClient(app.Cf.RedisAddr,
			redisstore.WithPassword(app.Cf.RedisPassword),
			redisstore.WithDB(app.Cf.RedisDB))
		store := redisstore.NewRedisStore(client, app.Cf.KVPrefix,
			redisstore.WithMaxValueBytes(app.Cf.KVMaxValueBytes),
			redisstore.WithLogger(app.Logger))
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			return err
		}
		app.KV = store
		app.redisClient = client
	case constants.StoragePostgres:
		db, err := gormstore.GetDbConn(app.Cf.DbName, app.Cf.DbHost, app.Cf.DbPort, app.Cf.DbUser, app.Cf.DbPas)
		if err != nil {
			return err
		}
		store := gormstore.NewGormStore(db, gormstore.WithMaxValueBytes(app.Cf.KVMaxValueBytes))
		if err := store.InitMigrate(); err != nil {
			return err
		}
		app.KV = store
	case constants.StorageMemory:
		app.KV = memory.NewBackend(memory.WithQuota(app.Cf.KVMaxValueBytes)).Open("")
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStorageDriver, app.Cf.StorageDriver)
	}
	app.closers = append(app.closers, app.KV.Close)
	return nil
}

func (app *ApplicationContext) setUpRepository() error {
	app.Repo = repository.NewKVRepository(app.KV, app.Logger.With().Str("component", "repository").Logger())
	return nil
}

func (app *ApplicationContext) setUpSession() error {
	app.Session = session.NewContext(app.Repo, app.Logger.With().Str("component", "session").Logger())
	return nil
}

func (app *ApplicationContext) setUpCommerceStore() error {
	app.Store = commerce.NewStore(app.Repo, app.Session,
		app.Logger.With().Str("component", "commerce").Logger(),
		commerce.WithRecorder(app.Metrics))
	app.Session.OnChange(app.Store.HandleSessionChange)
	return nil
}

func (app *ApplicationContext) setUpOrderAPI() error {
	app.OrderAPI = orderapi.NewClient(app.Cf.OrderAPIURL, app.Cf.HTTPTimeout)
	return nil
}

func (app *ApplicationContext) setUpHistory() error {
	app.History = orderhistory.NewCache(app.OrderAPI, app.Repo,
		app.Logger.With().Str("component", "orderhistory").Logger(),
		orderhistory.WithNormalizer(orderhistory.Normalizer{Layout: app.Cf.DateLayout, Location: time.Local}),
		orderhistory.WithRecorder(app.Metrics))
	return nil
}

// setUpReceiptSender 沒有設定 broker 時只記 log
func (app *ApplicationContext) setUpReceiptSender() error {
	logger := app.Logger.With().Str("component", "notify").Logger()
	brokers := util.SplitCSV(app.Cf.KafkaBrokers)
	if len(brokers) == 0 {
		app.Receipts = notify.NewLogReceiptSender(logger)
		return nil
	}
	sender := notify.NewKafkaReceiptSender(notify.NewKafkaWriter(brokers, app.Cf.ReceiptTopic), app.Cf.ReceiptTopic, logger)
	app.Receipts = sender
	app.closers = append(app.closers, sender.Close)
	return nil
}

func (app *ApplicationContext) setUpCheckout() error {
	app.Checkout = checkout.NewWorkflow(app.Session, app.Store, app.OrderAPI, app.History, app.Repo, app.Receipts,
		app.Logger.With().Str("component", "checkout").Logger(),
		checkout.WithShopName(app.Cf.ShopName),
		checkout.WithRecorder(app.Metrics))
	return nil
}

// setUpRateLimiter 使用 redis 時多個實例共用額度，其他情況只在程序內計算
func (app *ApplicationContext) setUpRateLimiter() error {
	cf := ratelimit.Config{Capacity: app.Cf.RateLimitCap, RatePS: app.Cf.RateLimitPS}
	if !cf.Enabled() {
		return nil
	}
	if app.redisClient != nil {
		app.Limiter = ratelimit.NewRedisTokenBucket(app.redisClient, app.Cf.KVPrefix, cf)
		return nil
	}
	app.Limiter = ratelimit.NewTokenBucket(cf)
	return nil
}

func (app *ApplicationContext) setUpServer() error {
	app.Server = api.NewServer(
		handler.NewSessionHandler(app.Session, app.OrderAPI),
		handler.NewProductHandler(app.OrderAPI),
		handler.NewCartHandler(app.Store),
		handler.NewWishlistHandler(app.Store),
		handler.NewCheckoutHandler(app.Checkout),
		handler.NewOrderHandler(app.History),
	)
	return nil
}

func (app *ApplicationContext) Router() http.Handler {
	return router.SetupRouter(router.Deps{
		Server:   app.Server,
		Guard:    app.Session,
		Observer: app.Metrics,
		Metrics:  app.Metrics.Handler(),
		Limiter:  app.Limiter,
		Logger:   app.Logger.With().Str("component", "http").Logger(),
	})
}

// Shutdown 依建立的相反順序關閉
func (app *ApplicationContext) Shutdown(ctx context.Context) error {
	var errs []error
	// 收據送完才關閉 kafka writer
	if app.Checkout != nil {
		if err := app.Checkout.Drain(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	app.closers = nil
	return errors.Join(errs...)
}
