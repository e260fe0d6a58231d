package handler

import (
	"net/http"

	"github.com/RoyceAzure/lab/storefront/internal/api/dto"
	"github.com/RoyceAzure/lab/storefront/internal/api/response"
	"github.com/RoyceAzure/lab/storefront/internal/commerce"
)

type WishlistHandler struct {
	store *commerce.Store
}

func NewWishlistHandler(store *commerce.Store) *WishlistHandler {
	if store == nil {
		panic("wishlist handler dependency store is nil")
	}
	return &WishlistHandler{store: store}
}

func (h *WishlistHandler) Get(w http.ResponseWriter, r *http.Request) {
	response.SuccessJSON(w, http.StatusOK, dto.WishlistDTO{Items: h.store.Wishlist()})
}

func (h *WishlistHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	var in dto.ToggleWishlistDTO
	if !decode(w, r, &in) {
		return
	}
	added, err := h.store.ToggleWishlist(r.Context(), in.Product)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.SuccessJSON(w, http.StatusOK, dto.ToggleWishlistResult{Added: added, Items: h.store.Wishlist()})
}
