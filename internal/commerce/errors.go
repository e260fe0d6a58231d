package commerce

import "errors"

var (
	ErrInvalidProduct = errors.New("product id is required")
	ErrItemNotFound   = errors.New("item not in cart")
)
