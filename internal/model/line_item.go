package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

var ErrMissingProductID = errors.New("line item without _id")

// lineJSON 購物車、收藏、訂單明細共用的寬鬆格式
type lineJSON struct {
	ProductID string           `json:"_id"`
	Name      string           `json:"name"`
	Price     *decimal.Decimal `json:"price"`
	Quantity  flexInt          `json:"quantity"`
	ImageURL  string           `json:"imageUrl"`
	ImageURL2 string           `json:"imageURL"`
	AddedAt   flexTime         `json:"addedAt"`
}

/*
DecodeLineItem 解碼單一商品明細
  - _id 必填，price 無法解析時回傳錯誤
  - quantity 接受整數、小數與數字字串，小於 1 修正為 1
  - 負價格修正為 0，缺少價格視為 0
  - addedAt 接受 RFC3339 字串或毫秒 epoch，其他格式視為零值
*/
func DecodeLineItem(b []byte) (CartLineItem, error) {
	var r lineJSON
	if err := json.Unmarshal(b, &r); err != nil {
		return CartLineItem{}, err
	}
	if r.ProductID == "" {
		return CartLineItem{}, ErrMissingProductID
	}

	price := decimal.Zero
	if r.Price != nil && !r.Price.IsNegative() {
		price = *r.Price
	}
	qty := int(r.Quantity)
	if qty < 1 {
		qty = 1
	}
	image := r.ImageURL
	if image == "" {
		image = r.ImageURL2
	}
	return CartLineItem{
		ProductID: r.ProductID,
		Name:      r.Name,
		Price:     price,
		Quantity:  qty,
		ImageURL:  image,
		AddedAt:   time.Time(r.AddedAt),
	}, nil
}

// OrderItems 訂單明細，單筆壞掉只略過該筆，不讓整張訂單解碼失敗
type OrderItems []CartLineItem

func (o *OrderItems) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*o = nil
		return nil
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(b, &elems); err != nil {
		*o = OrderItems{}
		return nil
	}
	items := make(OrderItems, 0, len(elems))
	for _, e := range elems {
		item, err := DecodeLineItem(e)
		if err != nil {
			continue
		}
		items = append(items, item)
	}
	*o = items
	return nil
}

type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	*f = 0
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		var s string
		if json.Unmarshal(b, &s) != nil {
			return nil
		}
		n = json.Number(s)
	}
	if i, err := n.Int64(); err == nil {
		*f = flexInt(i)
		return nil
	}
	if v, err := strconv.ParseFloat(string(n), 64); err == nil && !math.IsNaN(v) && !math.IsInf(v, 0) {
		*f = flexInt(int64(v))
	}
	return nil
}

type flexTime time.Time

func (f *flexTime) UnmarshalJSON(b []byte) error {
	*f = flexTime{}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			*f = flexTime(t)
		}
		return nil
	}
	var ms json.Number
	if err := json.Unmarshal(b, &ms); err == nil {
		if v, err := ms.Int64(); err == nil {
			*f = flexTime(time.UnixMilli(v).UTC())
		}
	}
	return nil
}
