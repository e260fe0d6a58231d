package response

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/RoyceAzure/lab/storefront/internal/checkout"
	"github.com/RoyceAzure/lab/storefront/internal/commerce"
	"github.com/RoyceAzure/lab/storefront/internal/orderapi"
	"github.com/RoyceAzure/lab/storefront/internal/session"
	"github.com/RoyceAzure/lab/storefront/pkg/kvstore"
)

type Response struct {
	Data any `json:"data"`
}

type ResponseError struct {
	Error    string `json:"error"`
	Field    string `json:"field,omitempty"`
	Redirect string `json:"redirect,omitempty"`
	Notice   string `json:"notice,omitempty"`
}

func SuccessJSON(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, Response{Data: data})
}

func ErrorJSON(w http.ResponseWriter, status int, body ResponseError) {
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

/*
FromError 錯誤對應 HTTP 狀態碼
  - 401 未登入
  - 404 購物車沒有該商品
  - 409 訂單送出中
  - 422 欄位驗證失敗
  - 502 遠端 Order API 失敗
  - 507 儲存空間不足
*/
func FromError(w http.ResponseWriter, err error) {
	status, body := Classify(err)
	ErrorJSON(w, status, body)
}

func Classify(err error) (int, ResponseError) {
	var (
		authErr       *session.AuthRequiredError
		validationErr *checkout.ValidationError
		submitErr     *checkout.SubmitError
		apiErr        *orderapi.APIError
	)

	switch {
	case errors.As(err, &authErr):
		return http.StatusUnauthorized, ResponseError{Error: err.Error(), Redirect: authErr.RedirectTo, Notice: authErr.Notice}
	case errors.Is(err, session.ErrNotAuthenticated):
		return http.StatusUnauthorized, ResponseError{Error: err.Error()}
	case errors.As(err, &validationErr):
		return http.StatusUnprocessableEntity, ResponseError{Error: err.Error(), Field: validationErr.Field}
	case errors.Is(err, checkout.ErrEmptyCart),
		errors.Is(err, commerce.ErrInvalidProduct),
		errors.Is(err, session.ErrInvalidUser):
		return http.StatusUnprocessableEntity, ResponseError{Error: err.Error()}
	case errors.Is(err, commerce.ErrItemNotFound):
		return http.StatusNotFound, ResponseError{Error: err.Error()}
	case errors.Is(err, checkout.ErrSubmissionInProgress):
		return http.StatusConflict, ResponseError{Error: err.Error()}
	case errors.As(err, &submitErr):
		return http.StatusBadGateway, ResponseError{Error: submitErr.Message}
	case errors.As(err, &apiErr):
		// 遠端 4xx (例如帳密錯誤) 直接轉給前端
		if apiErr.Status >= 400 && apiErr.Status < 500 {
			return apiErr.Status, ResponseError{Error: apiErr.Message}
		}
		return http.StatusBadGateway, ResponseError{Error: apiErr.Message}
	case errors.Is(err, orderapi.ErrUnavailable):
		return http.StatusBadGateway, ResponseError{Error: "order service unavailable"}
	case kvstore.IsQuotaExceeded(err):
		return http.StatusInsufficientStorage, ResponseError{Error: "storage quota exceeded"}
	default:
		return http.StatusInternalServerError, ResponseError{Error: "Internal Server Error"}
	}
}
