package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/RoyceAzure/lab/storefront/internal/constants"
	"github.com/RoyceAzure/lab/storefront/internal/model"
	"github.com/RoyceAzure/lab/storefront/internal/repository"
	"github.com/RoyceAzure/lab/storefront/pkg/util"
	"github.com/rs/zerolog"
)

// Listener 登入使用者變更時呼叫，登出時參數為 nil
type Listener func(user *model.User)

// Context 目前登入的使用者，整個程序唯一的來源
type Context struct {
	repo   repository.SessionRepository
	logger zerolog.Logger
	guard  *NoticeGuard

	mu        sync.RWMutex
	user      *model.User
	listeners map[int]Listener
	nextID    int
}

type Option func(*Context)

func WithNoticeGuard(g *NoticeGuard) Option {
	return func(c *Context) {
		c.guard = g
	}
}

func NewContext(repo repository.SessionRepository, logger zerolog.Logger, opts ...Option) *Context {
	util.MustNotNil("session context", map[string]any{"repo": repo})
	c := &Context{
		repo:      repo,
		logger:    logger,
		listeners: make(map[int]Listener),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.guard == nil {
		c.guard = NewNoticeGuard(0)
	}
	return c
}

/*
Restore 啟動時讀取一次持久化的登入狀態
讀取失敗或資料損壞時視為未登入，不回傳錯誤
*/
func (c *Context) Restore(ctx context.Context) *model.User {
	user, loggedIn, err := c.repo.LoadSession(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("restore session failed, treat as logged out")
		user, loggedIn = nil, false
	}
	if !loggedIn {
		user = nil
	}
	c.set(user)
	return c.copyUser(user)
}

func (c *Context) Current() (model.User, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.user == nil {
		return model.User{}, false
	}
	return *c.user, true
}

// Login 先寫入儲存，成功後才切換使用者
func (c *Context) Login(ctx context.Context, user model.User) error {
	if !user.Valid() {
		return ErrInvalidUser
	}
	if err := c.repo.SaveSession(ctx, user); err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}
	c.set(&user)
	c.logger.Info().Str("email", user.Email).Msg("user logged in")
	return nil
}

// Logout 清除 user / isLoggedIn
// 儲存清除失敗時記憶體中的使用者仍會清掉，並回傳錯誤
func (c *Context) Logout(ctx context.Context) error {
	err := c.repo.ClearSession(ctx)
	c.set(nil)
	if err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// Require 需要登入的頁面呼叫
// 未登入時回傳 *AuthRequiredError，提示訊息每個導覽只出現一次
func (c *Context) Require(navigationID string) (model.User, error) {
	if user, ok := c.Current(); ok {
		return user, nil
	}
	authErr := &AuthRequiredError{RedirectTo: constants.LoginPath}
	if c.guard.Fire(navigationID) {
		authErr.Notice = constants.AuthRequiredNotice
	}
	return model.User{}, authErr
}

// OnChange 註冊變更監聽，回傳取消註冊函式
func (c *Context) OnChange(l Listener) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = l
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

func (c *Context) set(user *model.User) {
	c.mu.Lock()
	c.user = c.copyUser(user)
	listeners := make([]Listener, 0, len(c.listeners))
	for _, l := range c.listeners {
		listeners = append(listeners, l)
	}
	c.mu.Unlock()

	// 不持鎖呼叫，監聽者可以再讀 Current
	for _, l := range listeners {
		l(c.copyUser(user))
	}
}

func (c *Context) copyUser(user *model.User) *model.User {
	if user == nil {
		return nil
	}
	u := *user
	return &u
}
