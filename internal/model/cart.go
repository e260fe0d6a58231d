package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartLineItem 購物車商品
// 同一個 ProductID 只會有一筆，Quantity >= 1
type CartLineItem struct {
	ProductID string          `json:"_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	ImageURL  string          `json:"imageUrl"`
	AddedAt   time.Time       `json:"addedAt"`
}

func NewCartLineItem(p Product, now time.Time) CartLineItem {
	return CartLineItem{
		ProductID: p.ID,
		Name:      p.Name,
		Price:     p.Price,
		Quantity:  1,
		ImageURL:  p.ImageURL,
		AddedAt:   now,
	}
}

// Subtotal price * quantity，數量小於 1 視為 1
func (i CartLineItem) Subtotal() decimal.Decimal {
	qty := i.Quantity
	if qty < 1 {
		qty = 1
	}
	return i.Price.Mul(decimal.NewFromInt(int64(qty)))
}

// CartTotal 購物車總金額
func CartTotal(items []CartLineItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Subtotal())
	}
	return total
}

type WishlistItem struct {
	ProductID string          `json:"_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	ImageURL  string          `json:"imageUrl"`
	AddedAt   time.Time       `json:"addedAt"`
}

func NewWishlistItem(p Product, now time.Time) WishlistItem {
	return WishlistItem{
		ProductID: p.ID,
		Name:      p.Name,
		Price:     p.Price,
		ImageURL:  p.ImageURL,
		AddedAt:   now,
	}
}
