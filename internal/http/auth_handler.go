package httpapi

import (
	"net/http"
	"sort"

	"cortana-grid/internal/auth"
	"cortana-grid/internal/service"

	"go.uber.org/zap"
)

// AuthHandler 登录、注销、改密、当前用户
type AuthHandler struct {
	auth        *Authenticator
	authService service.AuthService
	logger      *zap.Logger
}

func NewAuthHandler(a *Authenticator, authService service.AuthService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{auth: a, authService: authService, logger: logger}
}

// currentUserView /auth/me 和登录响应共用的用户视图
type currentUserView struct {
	ID                 int64    `json:"id"`
	Username           string   `json:"username"`
	FullName           string   `json:"full_name"`
	MustChangePassword bool     `json:"must_change_password"`
	PageSize           int      `json:"page_size"`
	PreferredCSS       string   `json:"preferred_css"`
	IsAdmin            bool     `json:"is_admin"`
	Roles              []string `json:"roles"`
	Permissions        []string `json:"permissions"`
	ManagedGridIDs     []int64  `json:"managed_grid_ids"`
}

func principalView(p *auth.Principal) currentUserView {
	roles := p.RoleNames()
	sort.Strings(roles)
	grids := p.ManagedGridIDs()
	sort.Slice(grids, func(i, j int) bool { return grids[i] < grids[j] })
	return currentUserView{
		ID:                 p.ID,
		Username:           p.Username,
		FullName:           p.FullName,
		MustChangePassword: p.MustChangePassword,
		PageSize:           p.PageSize,
		PreferredCSS:       p.PreferredCSS,
		IsAdmin:            p.IsAdmin(),
		Roles:              roles,
		Permissions:        p.GrantStrings(),
		ManagedGridIDs:     grids,
	}
}

// Login 用户登录。成功后发放会话 Cookie 并返回用户视图。
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		writeJSON(w, http.StatusOK, Fail("请求格式错误"))
		return
	}

	u, err := h.authService.Login(ctx, req.Username, req.Password)
	if err != nil {
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}

	p := auth.NewPrincipal(u)
	if err := p.EnsureLoaded(ctx, h.auth.loader, h.auth.policy, h.logger); err != nil {
		writeJSON(w, http.StatusOK, Fail("权限加载失败，请稍后重试"))
		return
	}

	if err := h.auth.sessions.Issue(ctx, w, u.ID); err != nil {
		h.logger.Error("发放会话失败", zap.String("username", u.Username), zap.Error(err))
		writeJSON(w, http.StatusOK, Fail("系统繁忙，请稍后重试"))
		return
	}

	h.logger.Info("会话发放",
		zap.String("username", u.Username),
		zap.String("ip", clientIP(r)))
	writeJSON(w, http.StatusOK, Ok(principalView(p)))
}

// Logout 注销。无会话也返回成功。
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.auth.sessions.Destroy(r.Context(), w, r)
	writeJSON(w, http.StatusOK, OkMsg("已退出登录"))
}

// ChangePassword 修改本人密码（强制改密期间放行的路径之一）
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	p, ok := h.auth.principal(w, r)
	if !ok {
		return
	}

	var req struct {
		OldPassword string `json:"old_password"`
		NewPassword string `json:"new_password"`
	}
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		writeJSON(w, http.StatusOK, Fail("请求格式错误"))
		return
	}

	if err := h.authService.ChangePassword(r.Context(), p.ID, req.OldPassword, req.NewPassword); err != nil {
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, OkMsg("密码修改成功"))
}

// CurrentUser 当前登录用户信息
func (h *AuthHandler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	p, ok := h.auth.principal(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, Ok(principalView(p)))
}
