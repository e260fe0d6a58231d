package session

import (
	"errors"
	"fmt"
)

var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrInvalidUser      = errors.New("user email is required")
)

// AuthRequiredError 需要登入才能存取的資源
// Notice 在同一次導覽中只會帶一次，其餘為空字串
type AuthRequiredError struct {
	RedirectTo string
	Notice     string
}

func (e *AuthRequiredError) Error() string {
	return fmt.Sprintf("authentication required, redirect to %s", e.RedirectTo)
}

func (e *AuthRequiredError) Unwrap() error {
	return ErrNotAuthenticated
}
