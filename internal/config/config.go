package config

import (
	"errors"
	"io/fs"
	"log"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	viper "github.com/spf13/viper"
)

/*
初始化與讀取分開
init : 設置 viper watch 與 onConfigChange
read : 一般讀取，需要讀寫鎖
*/
var configSingleton *ConfigSingleTon
var muonce sync.Once

type ConfigSingleTon struct {
	Config *Config
	mu     sync.RWMutex
}

type Config struct {
	ServerPort      string        `mapstructure:"SERVER_PORT"`
	LogLevel        string        `mapstructure:"LOG_LEVEL"`
	OrderAPIURL     string        `mapstructure:"ORDER_API_URL"`
	HTTPTimeout     time.Duration `mapstructure:"HTTP_TIMEOUT"`
	StorageDriver   string        `mapstructure:"STORAGE_DRIVER"`
	RedisAddr       string        `mapstructure:"REDIS_ADDR"`
	RedisPassword   string        `mapstructure:"REDIS_PASSWORD"`
	RedisDB         int           `mapstructure:"REDIS_DB"`
	KVPrefix        string        `mapstructure:"KV_PREFIX"`
	KVMaxValueBytes int           `mapstructure:"KV_MAX_VALUE_BYTES"`
	DbName          string        `mapstructure:"POSTGRES_DB"`
	DbHost          string        `mapstructure:"POSTGRES_HOST"`
	DbPort          string        `mapstructure:"POSTGRES_PORT"`
	DbUser          string        `mapstructure:"POSTGRES_USER"`
	DbPas           string        `mapstructure:"POSTGRES_PASSWORD"`
	KafkaBrokers    string        `mapstructure:"KAFKA_BROKERS"`
	ReceiptTopic    string        `mapstructure:"RECEIPT_TOPIC"`
	DateLayout      string        `mapstructure:"DATE_LAYOUT"`
	ShopName        string        `mapstructure:"SHOP_NAME"`
	RateLimitCap    int           `mapstructure:"RATE_LIMIT_CAPACITY"`
	RateLimitPS     float64       `mapstructure:"RATE_LIMIT_PER_SECOND"`
}

var defaults = map[string]any{
	"SERVER_PORT":           "8080",
	"LOG_LEVEL":             "info",
	"ORDER_API_URL":         "http://localhost:3000",
	"HTTP_TIMEOUT":          "10s",
	"STORAGE_DRIVER":        "redis",
	"REDIS_ADDR":            "localhost:6379",
	"REDIS_PASSWORD":        "",
	"REDIS_DB":              0,
	"KV_PREFIX":             "storefront",
	"KV_MAX_VALUE_BYTES":    5 * 1024 * 1024,
	"POSTGRES_DB":           "storefront",
	"POSTGRES_HOST":         "localhost",
	"POSTGRES_PORT":         "5432",
	"POSTGRES_USER":         "postgres",
	"POSTGRES_PASSWORD":     "",
	"KAFKA_BROKERS":         "",
	"RECEIPT_TOPIC":         "order-receipts",
	"DATE_LAYOUT":           "1/2/2006",
	"SHOP_NAME":             "Storefront",
	"RATE_LIMIT_CAPACITY":   10,
	"RATE_LIMIT_PER_SECOND": 1,
}

func GetConfig() *Config {
	initConfig()
	configSingleton.mu.RLock()
	defer configSingleton.mu.RUnlock()
	return configSingleton.Config
}

func initConfig() {
	if configSingleton == nil {
		muonce.Do(func() {
			configSingleton = &ConfigSingleTon{}
			path := configFilePath()
			cf, found, err := loadConfig(viper.GetViper(), path)
			if err != nil {
				log.Fatalf("error read config: %v", err)
			}
			configSingleton.Config = cf
			if !found {
				return
			}
			viper.WatchConfig()
			viper.OnConfigChange(func(e fsnotify.Event) {
				cf, _, err := loadConfig(viper.GetViper(), path)
				if err != nil {
					log.Printf("failed to reload config file %s: %v", e.Name, err)
					return
				}
				configSingleton.mu.Lock()
				configSingleton.Config = cf
				configSingleton.mu.Unlock()
			})
		})
	}
}

/*
Load 不經過 singleton，給測試或一次性工具使用
檔案不存在時只讀環境變數與預設值
*/
func Load(path string) (*Config, error) {
	cf, _, err := loadConfig(viper.New(), path)
	return cf, err
}

/*
單純回傳錯誤  由外部決定要不要Fatal
*/
func loadConfig(v *viper.Viper, path string) (cf *Config, found bool, err error) {
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.AutomaticEnv()

	found = true
	if path != "" {
		v.SetConfigFile(path)
		if err = v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.Is(err, fs.ErrNotExist) && !errors.As(err, &notFound) {
				return nil, false, err
			}
			found = false
			err = nil
		}
	} else {
		found = false
	}

	cf = &Config{}
	if err = v.Unmarshal(cf); err != nil {
		return nil, found, err
	}
	return cf, found, nil
}

func configFilePath() string {
	if p := os.Getenv("CONFIG_FILE"); p != "" {
		return p
	}
	return ".env"
}
