package constants

// 持久化 key，使用者相關資料以 email 做命名空間
const (
	UserKey         = "user"
	IsLoggedInKey   = "isLoggedIn"
	CartKeyPrefix   = "cart_"
	WishlistPrefix  = "wishlist_"
	OrdersKeyPrefix = "orders_"
	DeliveryPrefix  = "deliveryData_"
)

const (
	DefaultDateLayout = "1/2/2006"
	LoginPath         = "/login"
	// 未登入時顯示給使用者的提示
	AuthRequiredNotice = "Please log in to continue"
)

type StorageDriver string

const (
	StorageRedis    StorageDriver = "redis"
	StoragePostgres StorageDriver = "postgres"
	StorageMemory   StorageDriver = "memory"
)

func IsValidStorageDriver(driver string) bool {
	switch StorageDriver(driver) {
	case StorageRedis, StoragePostgres, StorageMemory:
		return true
	default:
		return false
	}
}

// for api
type ContextKey string

const (
	UserContextKey ContextKey = "user"
)

const (
	NavigationIDHeader   = "X-Navigation-ID"
	RequestIDHeader      = "X-Request-ID"
	IdempotencyKeyHeader = "Idempotency-Key"
)

type RequestID string

const (
	RequestIDKey RequestID = "request_id"
)
