package httpapi

import (
	"net/http"

	"cortana-grid/internal/auth"
	"cortana-grid/internal/service"

	"go.uber.org/zap"
)

// SettingsHandler 系统设置 + 角色权限管理
type SettingsHandler struct {
	settings service.SettingsService
	roles    service.RolePermissionService
	logger   *zap.Logger

	getGeneral  http.HandlerFunc
	saveGeneral http.HandlerFunc
	listRoles   http.HandlerFunc
	savePerms   http.HandlerFunc
	restore     http.HandlerFunc
}

func NewSettingsHandler(a *Authenticator, settings service.SettingsService, roles service.RolePermissionService, logger *zap.Logger) *SettingsHandler {
	h := &SettingsHandler{settings: settings, roles: roles, logger: logger}
	h.getGeneral = a.requirePermission(auth.PermSystemView, h.handleGetGeneral)
	h.saveGeneral = a.requirePermission(auth.PermSystemView, h.handleSaveGeneral)
	h.listRoles = a.requirePermission(auth.PermSystemView, h.handleListRoles)
	h.savePerms = a.requirePermission(auth.PermManagePermissions, h.handleSavePermissions)
	h.restore = a.requirePermission(auth.PermManagePermissions, h.handleRestoreDefaults)
	return h
}

// General /api/v1/settings/general
func (h *SettingsHandler) General(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.getGeneral(w, r)
	case http.MethodPost:
		h.saveGeneral(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// ListRoles /api/v1/settings/roles
func (h *SettingsHandler) ListRoles(w http.ResponseWriter, r *http.Request) {
	h.listRoles(w, r)
}

// RoleAction /api/v1/settings/roles/{id}/{action}
func (h *SettingsHandler) RoleAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	id, action := pathIDAction(r.URL.Path, "/api/v1/settings/roles/")
	if id == 0 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	switch action {
	case "permissions":
		h.savePerms(w, r)
	case "restore":
		h.restore(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *SettingsHandler) handleGetGeneral(w http.ResponseWriter, r *http.Request, _ *auth.Principal) {
	general, err := h.settings.General(r.Context())
	if err != nil {
		h.logger.Error("查询系统设置失败", zap.Error(err))
		writeJSON(w, http.StatusOK, Fail("查询失败，请稍后重试"))
		return
	}
	writeJSON(w, http.StatusOK, Ok(general))
}

func (h *SettingsHandler) handleSaveGeneral(w http.ResponseWriter, r *http.Request, p *auth.Principal) {
	var req service.GeneralSettings
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		writeJSON(w, http.StatusOK, Fail("请求格式错误"))
		return
	}

	if err := h.settings.SaveGeneral(r.Context(), p, req); err != nil {
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, OkMsg("设置已保存"))
}

func (h *SettingsHandler) handleListRoles(w http.ResponseWriter, r *http.Request, _ *auth.Principal) {
	roles, err := h.roles.ListRolesWithPermissions(r.Context())
	if err != nil {
		h.logger.Error("查询角色权限失败", zap.Error(err))
		writeJSON(w, http.StatusOK, Fail("查询失败，请稍后重试"))
		return
	}

	items := make([]map[string]any, 0, len(roles))
	for _, rp := range roles {
		items = append(items, map[string]any{
			"id":          rp.Role.ID,
			"name":        rp.Role.Name,
			"description": nullStr(rp.Role.Description),
			"permissions": rp.Permissions,
		})
	}
	writeJSON(w, http.StatusOK, Ok(items))
}

func (h *SettingsHandler) handleSavePermissions(w http.ResponseWriter, r *http.Request, p *auth.Principal) {
	id, _ := pathIDAction(r.URL.Path, "/api/v1/settings/roles/")

	var req struct {
		Permissions []string `json:"permissions"`
	}
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		writeJSON(w, http.StatusOK, Fail("请求格式错误"))
		return
	}

	if err := h.roles.SavePermissions(r.Context(), p, id, req.Permissions); err != nil {
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, OkMsg("角色权限已保存"))
}

func (h *SettingsHandler) handleRestoreDefaults(w http.ResponseWriter, r *http.Request, p *auth.Principal) {
	id, _ := pathIDAction(r.URL.Path, "/api/v1/settings/roles/")

	if err := h.roles.RestoreDefaults(r.Context(), p, id); err != nil {
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, OkMsg("已恢复默认权限"))
}
