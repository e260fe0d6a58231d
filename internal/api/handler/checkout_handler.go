package handler

import (
	"net/http"

	"github.com/RoyceAzure/lab/storefront/internal/api/response"
	"github.com/RoyceAzure/lab/storefront/internal/checkout"
	"github.com/RoyceAzure/lab/storefront/internal/model"
)

type CheckoutHandler struct {
	workflow *checkout.Workflow
}

func NewCheckoutHandler(workflow *checkout.Workflow) *CheckoutHandler {
	if workflow == nil {
		panic("checkout handler dependency workflow is nil")
	}
	return &CheckoutHandler{workflow: workflow}
}

func (h *CheckoutHandler) GetDelivery(w http.ResponseWriter, r *http.Request) {
	data, err := h.workflow.DeliveryData(r.Context())
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.SuccessJSON(w, http.StatusOK, data)
}

func (h *CheckoutHandler) SaveDelivery(w http.ResponseWriter, r *http.Request) {
	var data model.DeliveryData
	if !decode(w, r, &data) {
		return
	}
	if err := h.workflow.SaveDeliveryData(r.Context(), data); err != nil {
		response.FromError(w, err)
		return
	}
	response.SuccessJSON(w, http.StatusOK, data)
}

func (h *CheckoutHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req checkout.Request
	if !decode(w, r, &req) {
		return
	}
	order, err := h.workflow.Submit(r.Context(), req)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.SuccessJSON(w, http.StatusCreated, order)
}
