package httpapi

import (
	"net/http"

	"cortana-grid/internal/auth"
	"cortana-grid/internal/domain"
	"cortana-grid/internal/service"

	"go.uber.org/zap"
)

// UserHandler 系统用户管理 + 个人设置
type UserHandler struct {
	users  service.UserService
	logger *zap.Logger

	list          http.HandlerFunc
	create        http.HandlerFunc
	toggle        http.HandlerFunc
	resetPassword http.HandlerFunc
	updateProfile http.HandlerFunc
}

func NewUserHandler(a *Authenticator, users service.UserService, logger *zap.Logger) *UserHandler {
	h := &UserHandler{users: users, logger: logger}
	h.list = a.requirePermission(auth.PermSystemView, h.handleList)
	h.create = a.requirePermission(auth.PermSystemView, h.handleCreate)
	h.toggle = a.requirePermission(auth.PermSystemView, h.handleToggle)
	h.resetPassword = a.requirePermission(auth.PermSystemView, h.handleResetPassword)
	h.updateProfile = a.requireAuth(h.handleUpdateProfile)
	return h
}

// Collection /api/v1/users
func (h *UserHandler) Collection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.list(w, r)
	case http.MethodPost:
		h.create(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// Item /api/v1/users/{id}/{action}
func (h *UserHandler) Item(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	id, action := pathIDAction(r.URL.Path, "/api/v1/users/")
	if id == 0 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	switch action {
	case "toggle":
		h.toggle(w, r)
	case "reset-password":
		h.resetPassword(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// UpdateProfile /api/v1/profile
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	h.updateProfile(w, r)
}

type userView struct {
	ID                 int64    `json:"id"`
	Username           string   `json:"username"`
	FullName           string   `json:"full_name"`
	DisplayName        string   `json:"display_name"`
	Phone              string   `json:"phone"`
	IsActive           bool     `json:"is_active"`
	MustChangePassword bool     `json:"must_change_password"`
	Roles              []string `json:"roles"`
}

func toUserView(u *domain.User) userView {
	roles := u.Roles
	if roles == nil {
		roles = []string{}
	}
	return userView{
		ID:                 u.ID,
		Username:           u.Username,
		FullName:           nullStr(u.FullName),
		DisplayName:        u.DisplayName(),
		Phone:              nullStr(u.Phone),
		IsActive:           u.IsActive,
		MustChangePassword: u.MustChangePassword,
		Roles:              roles,
	}
}

func (h *UserHandler) handleList(w http.ResponseWriter, r *http.Request, _ *auth.Principal) {
	var (
		users []*domain.User
		err   error
	)
	// active=1 给网格负责人选择框用
	if r.URL.Query().Get("active") == "1" {
		users, err = h.users.ListActive(r.Context())
	} else {
		users, err = h.users.List(r.Context())
	}
	if err != nil {
		h.logger.Error("查询用户列表失败", zap.Error(err))
		writeJSON(w, http.StatusOK, Fail("查询失败，请稍后重试"))
		return
	}

	items := make([]userView, 0, len(users))
	for _, u := range users {
		items = append(items, toUserView(u))
	}
	writeJSON(w, http.StatusOK, Ok(items))
}

func (h *UserHandler) handleCreate(w http.ResponseWriter, r *http.Request, p *auth.Principal) {
	var req struct {
		Username string   `json:"username"`
		FullName string   `json:"full_name"`
		Phone    string   `json:"phone"`
		Roles    []string `json:"roles"`
	}
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		writeJSON(w, http.StatusOK, Fail("请求格式错误"))
		return
	}

	msg, err := h.users.Create(r.Context(), p, req.Username, req.FullName, req.Phone, req.Roles)
	if err != nil {
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, OkMsg(msg))
}

func (h *UserHandler) handleToggle(w http.ResponseWriter, r *http.Request, p *auth.Principal) {
	id, _ := pathIDAction(r.URL.Path, "/api/v1/users/")
	msg, err := h.users.ToggleActive(r.Context(), p, id)
	if err != nil {
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, OkMsg(msg))
}

func (h *UserHandler) handleResetPassword(w http.ResponseWriter, r *http.Request, p *auth.Principal) {
	id, _ := pathIDAction(r.URL.Path, "/api/v1/users/")
	password, err := h.users.ResetPassword(r.Context(), p, id)
	if err != nil {
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}
	// 明文只在本次响应出现一次，由操作者转告用户
	writeJSON(w, http.StatusOK, Ok(map[string]any{"password": password}))
}

func (h *UserHandler) handleUpdateProfile(w http.ResponseWriter, r *http.Request, p *auth.Principal) {
	var req struct {
		FullName     string `json:"full_name"`
		Phone        string `json:"phone"`
		PageSize     int    `json:"page_size"`
		PreferredCSS string `json:"preferred_css"`
	}
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		writeJSON(w, http.StatusOK, Fail("请求格式错误"))
		return
	}

	if err := h.users.UpdateProfile(r.Context(), p, req.FullName, req.Phone, req.PageSize, req.PreferredCSS); err != nil {
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, OkMsg("个人设置已保存"))
}
