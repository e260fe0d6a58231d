package model

import "github.com/shopspring/decimal"

func init() {
	// 遠端 API 與既有儲存資料的金額都是 JSON number
	decimal.MarshalJSONWithoutQuotes = true
}
