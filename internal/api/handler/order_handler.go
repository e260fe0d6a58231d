package handler

import (
	"net/http"

	"github.com/RoyceAzure/lab/storefront/internal/api/dto"
	"github.com/RoyceAzure/lab/storefront/internal/api/middleware"
	"github.com/RoyceAzure/lab/storefront/internal/api/response"
	"github.com/RoyceAzure/lab/storefront/internal/orderhistory"
	"github.com/RoyceAzure/lab/storefront/internal/session"
)

type OrderHandler struct {
	history *orderhistory.Cache
}

func NewOrderHandler(history *orderhistory.Cache) *OrderHandler {
	if history == nil {
		panic("order handler dependency history is nil")
	}
	return &OrderHandler{history: history}
}

// List 遠端失敗時仍回 200，帶 degraded 狀態與快取的訂單
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		response.FromError(w, session.ErrNotAuthenticated)
		return
	}
	res := h.history.FetchOrders(r.Context(), user)
	response.SuccessJSON(w, http.StatusOK, dto.OrdersDTO{
		Orders: res.Orders,
		State:  string(res.State),
		Notice: res.Notice,
	})
}
