package model

import "github.com/shopspring/decimal"

const OrderStatusPending = "pending"

// Order 由遠端 Order API 建立，本地只做快取
type Order struct {
	ID            string          `json:"_id"`
	CreatedAt     string          `json:"createdAt"`
	Status        string          `json:"status"`
	Items         OrderItems      `json:"items"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
	PaymentMethod PaymentMethod   `json:"paymentMethod"`
	DeliveryData  *DeliveryData   `json:"deliveryData,omitempty"`
}
