package repository

import (
	"strings"

	"github.com/RoyceAzure/lab/storefront/internal/constants"
)

// KeyKind 持久化 key 的種類
type KeyKind int

const (
	KindUnknown KeyKind = iota
	KindSession
	KindCart
	KindWishlist
	KindOrders
	KindDelivery
)

func CartKey(email string) string {
	return constants.CartKeyPrefix + email
}

func WishlistKey(email string) string {
	return constants.WishlistPrefix + email
}

func OrdersKey(email string) string {
	return constants.OrdersKeyPrefix + email
}

func DeliveryKey(email string) string {
	return constants.DeliveryPrefix + email
}

// ParseKey 反解 key，回傳種類與所屬使用者 email
func ParseKey(key string) (KeyKind, string) {
	switch {
	case key == constants.UserKey || key == constants.IsLoggedInKey:
		return KindSession, ""
	case strings.HasPrefix(key, constants.CartKeyPrefix):
		return KindCart, strings.TrimPrefix(key, constants.CartKeyPrefix)
	case strings.HasPrefix(key, constants.WishlistPrefix):
		return KindWishlist, strings.TrimPrefix(key, constants.WishlistPrefix)
	case strings.HasPrefix(key, constants.OrdersKeyPrefix):
		return KindOrders, strings.TrimPrefix(key, constants.OrdersKeyPrefix)
	case strings.HasPrefix(key, constants.DeliveryPrefix):
		return KindDelivery, strings.TrimPrefix(key, constants.DeliveryPrefix)
	default:
		return KindUnknown, ""
	}
}
