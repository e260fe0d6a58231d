package repository

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/RoyceAzure/lab/storefront/internal/model"
)

var ErrMalformed = errors.New("malformed persisted value")

// splitArray 頂層必須是 JSON array，單一元素壞掉只略過該元素
func splitArray(b []byte) ([]json.RawMessage, error) {
	if len(strings.TrimSpace(string(b))) == 0 {
		return nil, nil
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(b, &elems); err != nil {
		return nil, errors.Join(ErrMalformed, err)
	}
	return elems, nil
}

/*
DecodeCart 解碼並修正購物車
  - 單筆規則見 model.DecodeLineItem，無法解碼的項目略過
  - 相同 _id 合併，數量相加，保留第一次出現的順序

回傳的 slice 永遠非 nil；頂層格式錯誤時回傳空 slice 與 ErrMalformed
*/
func DecodeCart(b []byte) ([]model.CartLineItem, int, error) {
	items := []model.CartLineItem{}
	elems, err := splitArray(b)
	if err != nil {
		return items, 0, err
	}

	skipped := 0
	index := make(map[string]int, len(elems))
	for _, e := range elems {
		item, err := model.DecodeLineItem(e)
		if err != nil {
			skipped++
			continue
		}
		if i, ok := index[item.ProductID]; ok {
			items[i].Quantity += item.Quantity
			continue
		}
		index[item.ProductID] = len(items)
		items = append(items, item)
	}
	return items, skipped, nil
}

// DecodeWishlist 解碼收藏清單，相同 _id 只保留第一筆
func DecodeWishlist(b []byte) ([]model.WishlistItem, int, error) {
	items := []model.WishlistItem{}
	elems, err := splitArray(b)
	if err != nil {
		return items, 0, err
	}

	skipped := 0
	seen := make(map[string]struct{}, len(elems))
	for _, e := range elems {
		item, err := model.DecodeLineItem(e)
		if err != nil {
			skipped++
			continue
		}
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		items = append(items, model.WishlistItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			Price:     item.Price,
			ImageURL:  item.ImageURL,
			AddedAt:   item.AddedAt,
		})
	}
	return items, skipped, nil
}

// DecodeOrders 解碼訂單快取，壞掉的訂單略過，明細逐筆解碼
// 欄位補值交給 orderhistory 的正規化
func DecodeOrders(b []byte) ([]model.Order, int, error) {
	orders := []model.Order{}
	elems, err := splitArray(b)
	if err != nil {
		return orders, 0, err
	}

	skipped := 0
	for _, e := range elems {
		var o model.Order
		if err := json.Unmarshal(e, &o); err != nil {
			skipped++
			continue
		}
		if o.Items == nil {
			o.Items = model.OrderItems{}
		}
		orders = append(orders, o)
	}
	return orders, skipped, nil
}

// DecodeDeliveryData 空值回傳 nil
func DecodeDeliveryData(b []byte) (*model.DeliveryData, error) {
	if len(strings.TrimSpace(string(b))) == 0 {
		return nil, nil
	}
	var d model.DeliveryData
	if err := json.Unmarshal(b, &d); err != nil {
		return nil, errors.Join(ErrMalformed, err)
	}
	return &d, nil
}

// DecodeUser 使用者必須帶 email 才視為有效
func DecodeUser(b []byte) (*model.User, error) {
	var u model.User
	if err := json.Unmarshal(b, &u); err != nil {
		return nil, errors.Join(ErrMalformed, err)
	}
	if !u.Valid() {
		return nil, ErrMalformed
	}
	return &u, nil
}

// DecodeFlag isLoggedIn 存的是 "true" / "false"
func DecodeFlag(b []byte) bool {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	return s == "true"
}

func encodeList[T any](items []T) ([]byte, error) {
	if items == nil {
		items = []T{}
	}
	return json.Marshal(items)
}
