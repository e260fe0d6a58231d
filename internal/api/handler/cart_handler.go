package handler

import (
	"net/http"

	"github.com/RoyceAzure/lab/storefront/internal/api/dto"
	"github.com/RoyceAzure/lab/storefront/internal/api/response"
	"github.com/RoyceAzure/lab/storefront/internal/commerce"
	"github.com/RoyceAzure/lab/storefront/internal/model"
	"github.com/go-chi/chi/v5"
)

type CartHandler struct {
	store *commerce.Store
}

func NewCartHandler(store *commerce.Store) *CartHandler {
	if store == nil {
		panic("cart handler dependency store is nil")
	}
	return &CartHandler{store: store}
}

func (h *CartHandler) view() dto.CartDTO {
	v := h.store.View()
	return dto.CartDTO{Items: v.Items, Total: v.Total, Count: v.Count}
}

func (h *CartHandler) Get(w http.ResponseWriter, r *http.Request) {
	response.SuccessJSON(w, http.StatusOK, h.view())
}

func (h *CartHandler) Add(w http.ResponseWriter, r *http.Request) {
	var product model.Product
	if !decode(w, r, &product) {
		return
	}
	if err := h.store.AddToCart(r.Context(), product); err != nil {
		response.FromError(w, err)
		return
	}
	response.SuccessJSON(w, http.StatusOK, h.view())
}

func (h *CartHandler) Increase(w http.ResponseWriter, r *http.Request) {
	if err := h.store.IncreaseQuantity(r.Context(), chi.URLParam(r, "productID")); err != nil {
		response.FromError(w, err)
		return
	}
	response.SuccessJSON(w, http.StatusOK, h.view())
}

func (h *CartHandler) Decrease(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DecreaseQuantity(r.Context(), chi.URLParam(r, "productID")); err != nil {
		response.FromError(w, err)
		return
	}
	response.SuccessJSON(w, http.StatusOK, h.view())
}

func (h *CartHandler) Remove(w http.ResponseWriter, r *http.Request) {
	if err := h.store.RemoveFromCart(r.Context(), chi.URLParam(r, "productID")); err != nil {
		response.FromError(w, err)
		return
	}
	response.SuccessJSON(w, http.StatusOK, h.view())
}
