package httpapi

import (
	"net/http"
	"strings"

	"cortana-grid/internal/auth"
	"cortana-grid/internal/repository"

	"go.uber.org/zap"
)

// Authenticator 请求级认证与鉴权：会话 → 用户 → Principal（延迟加载）。
// 所有受保护路由都经 requireAuth / requirePermission 包装。
type Authenticator struct {
	sessions *SessionManager
	users    repository.UsersRepository
	loader   auth.Loader
	policy   auth.LoadPolicy
	logger   *zap.Logger
}

func NewAuthenticator(
	sessions *SessionManager,
	users repository.UsersRepository,
	loader auth.Loader,
	policy auth.LoadPolicy,
	logger *zap.Logger,
) *Authenticator {
	return &Authenticator{
		sessions: sessions,
		users:    users,
		loader:   loader,
		policy:   policy,
		logger:   logger,
	}
}

type authedHandler func(w http.ResponseWriter, r *http.Request, p *auth.Principal)

// 强制改密期间仍放行的路径（改密本身、当前用户信息、注销）
func allowedDuringMustChange(path string) bool {
	switch path {
	case "/api/v1/auth/change-password", "/api/v1/auth/me", "/api/v1/auth/logout":
		return true
	}
	return false
}

// principal 解析会话并构造已加载的 Principal。
// 失败时由本函数写响应，调用方只需检查 ok。
func (a *Authenticator) principal(w http.ResponseWriter, r *http.Request) (*auth.Principal, bool) {
	ctx := r.Context()

	userID, err := a.sessions.UserID(ctx, r)
	if err == ErrNoSession {
		writeJSON(w, http.StatusUnauthorized, Result[any]{
			Code: ResultSessionExpired, Type: "error", Message: "登录已过期，请重新登录",
		})
		return nil, false
	}
	if err != nil {
		a.logger.Error("会话查询失败", zap.Error(err))
		writeJSON(w, http.StatusOK, Fail("系统繁忙，请稍后重试"))
		return nil, false
	}

	u, err := a.users.GetByID(ctx, userID)
	if err == repository.ErrNotFound {
		// 账号已删除，会话作废
		a.sessions.Destroy(ctx, w, r)
		writeJSON(w, http.StatusUnauthorized, Result[any]{
			Code: ResultSessionExpired, Type: "error", Message: "登录已过期，请重新登录",
		})
		return nil, false
	}
	if err != nil {
		a.logger.Error("加载会话用户失败", zap.Int64("user_id", userID), zap.Error(err))
		writeJSON(w, http.StatusOK, Fail("系统繁忙，请稍后重试"))
		return nil, false
	}
	if !u.IsActive {
		a.sessions.Destroy(ctx, w, r)
		writeJSON(w, http.StatusUnauthorized, Result[any]{
			Code: ResultSessionExpired, Type: "error", Message: "账户已被禁用，请联系管理员",
		})
		return nil, false
	}

	p := auth.NewPrincipal(u)
	if err := p.EnsureLoaded(ctx, a.loader, a.policy, a.logger); err != nil {
		writeJSON(w, http.StatusOK, Fail("权限加载失败，请稍后重试"))
		return nil, false
	}
	return p, true
}

// requireAuth 认证包装。强制改密标志生效期间只放行改密相关路径。
func (a *Authenticator) requireAuth(next authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := a.principal(w, r)
		if !ok {
			return
		}
		if p.MustChangePassword && !allowedDuringMustChange(r.URL.Path) {
			writeJSON(w, http.StatusOK, Fail("首次登录请先修改初始密码"))
			return
		}
		next(w, r, p)
	}
}

// requirePermission 鉴权包装：认证之上再查权限令牌，拒绝记审计日志
func (a *Authenticator) requirePermission(required auth.Token, next authedHandler) http.HandlerFunc {
	return a.requireAuth(func(w http.ResponseWriter, r *http.Request, p *auth.Principal) {
		if !p.HasPermission(required) {
			a.logger.Warn("越权访问被拒绝",
				zap.String("username", p.Username),
				zap.String("permission", required.String()),
				zap.String("path", r.URL.Path),
				zap.String("method", r.Method))
			writeJSON(w, http.StatusForbidden, Fail("无权执行此操作"))
			return
		}
		next(w, r, p)
	})
}

// clientIP 取客户端地址（反代场景优先 X-Forwarded-For 首跳）
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i > 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	return r.RemoteAddr
}
