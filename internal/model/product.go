package model

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID       string          `json:"_id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	ImageURL string          `json:"imageUrl"`
	Category string          `json:"category,omitempty"`
}

// UnmarshalJSON 圖片欄位兩種拼法 imageUrl / imageURL 都接受
func (p *Product) UnmarshalJSON(b []byte) error {
	var raw struct {
		ID        string           `json:"_id"`
		Name      string           `json:"name"`
		Price     *decimal.Decimal `json:"price"`
		ImageURL  string           `json:"imageUrl"`
		ImageURL2 string           `json:"imageURL"`
		Category  string           `json:"category"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	p.ID = raw.ID
	p.Name = raw.Name
	p.Price = decimal.Zero
	if raw.Price != nil {
		p.Price = *raw.Price
	}
	p.ImageURL = raw.ImageURL
	if p.ImageURL == "" {
		p.ImageURL = raw.ImageURL2
	}
	p.Category = raw.Category
	return nil
}
