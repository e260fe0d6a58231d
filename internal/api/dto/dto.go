package dto

import (
	"github.com/RoyceAzure/lab/storefront/internal/model"
	"github.com/shopspring/decimal"
)

type SessionDTO struct {
	User       *model.User `json:"user"`
	IsLoggedIn bool        `json:"isLoggedIn"`
}

type SignInDTO struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type SignUpDTO struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type FaceLoginDTO struct {
	Image string `json:"image"`
}

// CartDTO 購物車頁與導覽列徽章使用
type CartDTO struct {
	Items []model.CartLineItem `json:"items"`
	Total decimal.Decimal      `json:"total"`
	Count int                  `json:"count"`
}

type WishlistDTO struct {
	Items []model.WishlistItem `json:"items"`
}

type ToggleWishlistDTO struct {
	Product model.Product `json:"product"`
}

type ToggleWishlistResult struct {
	Added bool                 `json:"added"`
	Items []model.WishlistItem `json:"items"`
}

type OrdersDTO struct {
	Orders []model.Order `json:"orders"`
	State  string        `json:"state"`
	Notice string        `json:"notice,omitempty"`
}

type HealthDTO struct {
	Status string `json:"status"`
}
