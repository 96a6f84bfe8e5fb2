package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"cortana-grid/internal/store"

	"github.com/google/uuid"
)

// ErrNoSession 无会话或会话已过期
var ErrNoSession = errors.New("no session")

const sessionKeyPrefix = "session:"

// SessionManager 不透明令牌会话：uuid 令牌放 HttpOnly Cookie，
// 令牌 → 用户 ID 的映射放 Redis，每次命中滚动续期。
type SessionManager struct {
	kv         store.KV
	cookieName string
	ttl        time.Duration
}

func NewSessionManager(kv store.KV, cookieName string, ttl time.Duration) *SessionManager {
	return &SessionManager{kv: kv, cookieName: cookieName, ttl: ttl}
}

// Issue 登录成功后发放新会话
func (m *SessionManager) Issue(ctx context.Context, w http.ResponseWriter, userID int64) error {
	token := uuid.NewString()
	if err := m.kv.Set(ctx, sessionKeyPrefix+token, strconv.FormatInt(userID, 10), m.ttl); err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(m.ttl / time.Second),
	})
	return nil
}

// UserID 从请求 Cookie 解析会话，命中后滚动续期。
// 无 Cookie、令牌失效都返回 ErrNoSession。
func (m *SessionManager) UserID(ctx context.Context, r *http.Request) (int64, error) {
	c, err := r.Cookie(m.cookieName)
	if err != nil || c.Value == "" {
		return 0, ErrNoSession
	}
	val, err := m.kv.Get(ctx, sessionKeyPrefix+c.Value)
	if err == store.ErrMiss {
		return 0, ErrNoSession
	}
	if err != nil {
		return 0, err
	}
	userID, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, ErrNoSession
	}
	// 续期失败不影响本次请求
	_ = m.kv.Set(ctx, sessionKeyPrefix+c.Value, val, m.ttl)
	return userID, nil
}

// Destroy 注销会话并清掉 Cookie
func (m *SessionManager) Destroy(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(m.cookieName); err == nil && c.Value != "" {
		_ = m.kv.Del(ctx, sessionKeyPrefix+c.Value)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}
