package handler

import (
	"net/http"

	"github.com/RoyceAzure/lab/storefront/internal/api/dto"
	"github.com/RoyceAzure/lab/storefront/internal/api/response"
)

func Health(w http.ResponseWriter, r *http.Request) {
	response.SuccessJSON(w, http.StatusOK, dto.HealthDTO{Status: "ok"})
}
