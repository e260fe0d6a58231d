package handler

import (
	"context"
	"net/http"

	"github.com/RoyceAzure/lab/storefront/internal/api/response"
	"github.com/RoyceAzure/lab/storefront/internal/model"
	"github.com/RoyceAzure/lab/storefront/pkg/util"
)

type ProductLister interface {
	ListProducts(ctx context.Context) ([]model.Product, error)
}

type ProductHandler struct {
	products ProductLister
}

func NewProductHandler(products ProductLister) *ProductHandler {
	util.MustNotNil("product handler", map[string]any{"products": products})
	return &ProductHandler{products: products}
}

func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.ListProducts(r.Context())
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.SuccessJSON(w, http.StatusOK, products)
}
