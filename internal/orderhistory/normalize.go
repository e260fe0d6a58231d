package orderhistory

import (
	"time"

	"github.com/RoyceAzure/lab/storefront/internal/model"
	"github.com/RoyceAzure/lab/storefront/internal/orderapi"
	"github.com/shopspring/decimal"
)

// Normalizer 把遠端訂單轉成本地快取格式
type Normalizer struct {
	Layout   string
	Location *time.Location
}

/*
Normalize 固定的轉換規則
  - createdAt 轉成顯示用日期，無法解析時保留原字串
  - 缺少 status 視為 pending
  - 缺少 totalAmount 視為 0
  - 缺少陣列視為空陣列
*/
func (n Normalizer) Normalize(so orderapi.ServerOrder) model.Order {
	status := so.Status
	if status == "" {
		status = model.OrderStatusPending
	}
	total := decimal.Zero
	if so.TotalAmount != nil {
		total = *so.TotalAmount
	}
	items := so.Items
	if items == nil {
		items = []model.CartLineItem{}
	}
	return model.Order{
		ID:            so.ID,
		CreatedAt:     n.displayDate(so.CreatedAt),
		Status:        status,
		Items:         items,
		TotalAmount:   total,
		PaymentMethod: so.PaymentMethod,
		DeliveryData:  so.DeliveryData,
	}
}

func (n Normalizer) NormalizeAll(orders []orderapi.ServerOrder) []model.Order {
	out := make([]model.Order, 0, len(orders))
	for _, so := range orders {
		out = append(out, n.Normalize(so))
	}
	return out
}

func (n Normalizer) displayDate(raw string) string {
	if raw == "" {
		return ""
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return raw
	}
	loc := n.Location
	if loc == nil {
		loc = time.Local
	}
	layout := n.Layout
	if layout == "" {
		layout = "1/2/2006"
	}
	return t.In(loc).Format(layout)
}
