package orderapi

import (
	"context"
	"net/http"
	"net/url"

	"github.com/RoyceAzure/lab/storefront/internal/constants"
	"github.com/RoyceAzure/lab/storefront/internal/model"
	"github.com/shopspring/decimal"
)

// CreateOrderRequest POST /orders 的 payload
type CreateOrderRequest struct {
	UserID        string               `json:"userId"`
	Items         []model.CartLineItem `json:"items"`
	TotalAmount   decimal.Decimal      `json:"totalAmount"`
	Status        string               `json:"status"`
	DeliveryData  *model.DeliveryData  `json:"deliveryData"`
	PaymentMethod model.PaymentMethod  `json:"paymentMethod"`
}

// ServerOrder 遠端回傳的訂單，欄位可能缺少，需要正規化後才存入快取
type ServerOrder struct {
	ID            string               `json:"_id"`
	CreatedAt     string               `json:"createdAt"`
	Status        string               `json:"status"`
	Items         model.OrderItems     `json:"items"`
	TotalAmount   *decimal.Decimal     `json:"totalAmount"`
	PaymentMethod model.PaymentMethod  `json:"paymentMethod"`
	DeliveryData  *model.DeliveryData  `json:"deliveryData"`
}

// CreateOrder idempotencyKey 由呼叫端產生，重複送出時由遠端判斷
func (c *Client) CreateOrder(ctx context.Context, req CreateOrderRequest, idempotencyKey string) (*ServerOrder, error) {
	headers := http.Header{}
	if idempotencyKey != "" {
		headers.Set(constants.IdempotencyKeyHeader, idempotencyKey)
	}
	var order ServerOrder
	if err := c.do(ctx, http.MethodPost, "/orders", nil, req, headers, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *Client) ListOrders(ctx context.Context, userID string) ([]ServerOrder, error) {
	orders := []ServerOrder{}
	q := url.Values{}
	q.Set("userId", userID)
	if err := c.do(ctx, http.MethodGet, "/orders", q, nil, nil, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (c *Client) ListProducts(ctx context.Context) ([]model.Product, error) {
	products := []model.Product{}
	if err := c.do(ctx, http.MethodGet, "/products", nil, nil, nil, &products); err != nil {
		return nil, err
	}
	return products, nil
}
