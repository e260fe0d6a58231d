package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/RoyceAzure/lab/storefront/internal/api/dto"
	"github.com/RoyceAzure/lab/storefront/internal/api/response"
	"github.com/RoyceAzure/lab/storefront/internal/model"
	"github.com/RoyceAzure/lab/storefront/internal/orderapi"
	"github.com/RoyceAzure/lab/storefront/pkg/util"
)

type Authenticator interface {
	SignIn(ctx context.Context, req orderapi.SignInRequest) (*orderapi.AuthResult, error)
	SignUp(ctx context.Context, req orderapi.SignUpRequest) (*orderapi.AuthResult, error)
	LoginFace(ctx context.Context, req orderapi.FaceLoginRequest) (*orderapi.AuthResult, error)
}

type Session interface {
	Current() (model.User, bool)
	Login(ctx context.Context, user model.User) error
	Logout(ctx context.Context) error
}

type SessionHandler struct {
	session Session
	auth    Authenticator
}

func NewSessionHandler(session Session, auth Authenticator) *SessionHandler {
	util.MustNotNil("session handler", map[string]any{"session": session, "auth": auth})
	return &SessionHandler{session: session, auth: auth}
}

func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, ok := h.session.Current()
	res := dto.SessionDTO{IsLoggedIn: ok}
	if ok {
		res.User = &user
	}
	response.SuccessJSON(w, http.StatusOK, res)
}

func (h *SessionHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var in dto.SignInDTO
	if !decode(w, r, &in) {
		return
	}
	h.login(w, r, func(ctx context.Context) (*orderapi.AuthResult, error) {
		return h.auth.SignIn(ctx, orderapi.SignInRequest{Email: in.Email, Password: in.Password})
	})
}

func (h *SessionHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var in dto.SignUpDTO
	if !decode(w, r, &in) {
		return
	}
	h.login(w, r, func(ctx context.Context) (*orderapi.AuthResult, error) {
		return h.auth.SignUp(ctx, orderapi.SignUpRequest{Name: in.Name, Email: in.Email, Password: in.Password})
	})
}

func (h *SessionHandler) Face(w http.ResponseWriter, r *http.Request) {
	var in dto.FaceLoginDTO
	if !decode(w, r, &in) {
		return
	}
	h.login(w, r, func(ctx context.Context) (*orderapi.AuthResult, error) {
		return h.auth.LoginFace(ctx, orderapi.FaceLoginRequest{Image: in.Image})
	})
}

// login 遠端驗證成功後寫入 session
func (h *SessionHandler) login(w http.ResponseWriter, r *http.Request, authenticate func(context.Context) (*orderapi.AuthResult, error)) {
	ctx := r.Context()
	res, err := authenticate(ctx)
	if err != nil {
		response.FromError(w, err)
		return
	}
	if err := h.session.Login(ctx, res.User); err != nil {
		response.FromError(w, err)
		return
	}
	user := res.User
	response.SuccessJSON(w, http.StatusOK, dto.SessionDTO{User: &user, IsLoggedIn: true})
}

func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.session.Logout(r.Context()); err != nil {
		response.FromError(w, err)
		return
	}
	response.SuccessJSON(w, http.StatusOK, dto.SessionDTO{})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		response.ErrorJSON(w, http.StatusBadRequest, response.ResponseError{Error: "invalid request body"})
		return false
	}
	return true
}
