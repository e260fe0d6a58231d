package orderapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/RoyceAzure/lab/storefront/internal/model"
)

type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type SignUpRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// FaceLoginRequest Image 為 base64 編碼的臉部影像
type FaceLoginRequest struct {
	Image string `json:"image"`
}

type AuthResult struct {
	User  model.User
	Token string
}

func (c *Client) SignIn(ctx context.Context, req SignInRequest) (*AuthResult, error) {
	return c.authenticate(ctx, "/signin", req)
}

func (c *Client) SignUp(ctx context.Context, req SignUpRequest) (*AuthResult, error) {
	return c.authenticate(ctx, "/signup", req)
}

func (c *Client) LoginFace(ctx context.Context, req FaceLoginRequest) (*AuthResult, error) {
	return c.authenticate(ctx, "/login-face", req)
}

// authenticate 回應可能是 {user, token} 或直接是使用者物件
func (c *Client) authenticate(ctx context.Context, path string, in any) (*AuthResult, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodPost, path, nil, in, nil, &raw); err != nil {
		return nil, err
	}

	var wrapped struct {
		User  *model.User `json:"user"`
		Token string      `json:"token"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("failed to decode auth response: %w", err)
	}
	result := &AuthResult{Token: wrapped.Token}
	if wrapped.User != nil {
		result.User = *wrapped.User
	} else if err := json.Unmarshal(raw, &result.User); err != nil {
		return nil, fmt.Errorf("failed to decode auth response: %w", err)
	}
	if !result.User.Valid() {
		return nil, &APIError{Status: http.StatusBadGateway, Message: "auth response missing user email"}
	}
	return result, nil
}
