package httpapi

import (
	"net/http"

	"cortana-grid/internal/auth"
	"cortana-grid/internal/service"

	"go.uber.org/zap"
)

// GridHandler 网格管理接口
type GridHandler struct {
	grids  service.GridService
	logger *zap.Logger

	list        http.HandlerFunc
	create      http.HandlerFunc
	detail      http.HandlerFunc
	rename      http.HandlerFunc
	remove      http.HandlerFunc
	setManagers http.HandlerFunc
	toggle      http.HandlerFunc
}

func NewGridHandler(a *Authenticator, grids service.GridService, logger *zap.Logger) *GridHandler {
	h := &GridHandler{grids: grids, logger: logger}
	h.list = a.requirePermission(auth.PermGridView, h.handleList)
	h.create = a.requirePermission(auth.PermGridEdit, h.handleCreate)
	h.detail = a.requirePermission(auth.PermGridView, h.handleDetail)
	h.rename = a.requirePermission(auth.PermGridEdit, h.handleRename)
	h.remove = a.requirePermission(auth.PermGridDelete, h.handleDelete)
	h.setManagers = a.requirePermission(auth.PermGridEdit, h.handleSetManagers)
	h.toggle = a.requirePermission(auth.PermGridEdit, h.handleToggle)
	return h
}

// Collection /api/v1/grids
func (h *GridHandler) Collection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.list(w, r)
	case http.MethodPost:
		h.create(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// Item /api/v1/grids/{id} 与 /api/v1/grids/{id}/{action}
func (h *GridHandler) Item(w http.ResponseWriter, r *http.Request) {
	if id, action := pathIDAction(r.URL.Path, "/api/v1/grids/"); id != 0 {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		switch action {
		case "managers":
			h.setManagers(w, r)
		case "toggle":
			h.toggle(w, r)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.detail(w, r)
	case http.MethodPut:
		h.rename(w, r)
	case http.MethodDelete:
		h.remove(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

type gridListView struct {
	ID         int64   `json:"id"`
	Name       string  `json:"name"`
	Disabled   bool    `json:"disabled"`
	IsVirtual  bool    `json:"is_virtual"`
	Managers   string  `json:"managers"`
	ManagerIDs []int64 `json:"manager_ids"`
}

func (h *GridHandler) handleList(w http.ResponseWriter, r *http.Request, _ *auth.Principal) {
	// 下拉框场景只要启用中的网格本体
	if r.URL.Query().Get("simple") == "1" {
		grids, err := h.grids.List(r.Context(), false)
		if err != nil {
			h.logger.Error("查询网格列表失败", zap.Error(err))
			writeJSON(w, http.StatusOK, Fail("查询失败，请稍后重试"))
			return
		}
		items := make([]map[string]any, 0, len(grids))
		for _, g := range grids {
			items = append(items, map[string]any{"id": g.ID, "name": g.Name})
		}
		writeJSON(w, http.StatusOK, Ok(items))
		return
	}

	grids, err := h.grids.ListWithManagers(r.Context())
	if err != nil {
		h.logger.Error("查询网格列表失败", zap.Error(err))
		writeJSON(w, http.StatusOK, Fail("查询失败，请稍后重试"))
		return
	}
	items := make([]gridListView, 0, len(grids))
	for _, g := range grids {
		managerIDs := g.ManagerIDs
		if managerIDs == nil {
			managerIDs = []int64{}
		}
		items = append(items, gridListView{
			ID:         g.ID,
			Name:       g.Name,
			Disabled:   g.Disabled,
			IsVirtual:  g.IsVirtual(),
			Managers:   g.Managers,
			ManagerIDs: managerIDs,
		})
	}
	writeJSON(w, http.StatusOK, Ok(items))
}

func (h *GridHandler) handleDetail(w http.ResponseWriter, r *http.Request, _ *auth.Principal) {
	id := pathID(r.URL.Path, "/api/v1/grids/")
	if id == 0 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	detail, err := h.grids.GetDetail(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"id":             detail.ID,
		"name":           detail.Name,
		"disabled":       detail.Disabled,
		"is_virtual":     detail.IsVirtual(),
		"managers":       detail.Managers,
		"building_count": detail.BuildingCount,
		"person_count":   detail.PersonCount,
	}))
}

func (h *GridHandler) handleCreate(w http.ResponseWriter, r *http.Request, p *auth.Principal) {
	var req struct {
		Name string `json:"name"`
	}
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		writeJSON(w, http.StatusOK, Fail("请求格式错误"))
		return
	}

	id, err := h.grids.Create(r.Context(), p, req.Name)
	if err != nil {
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"id": id}))
}

func (h *GridHandler) handleRename(w http.ResponseWriter, r *http.Request, p *auth.Principal) {
	id := pathID(r.URL.Path, "/api/v1/grids/")
	if id == 0 {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		writeJSON(w, http.StatusOK, Fail("请求格式错误"))
		return
	}

	if err := h.grids.Rename(r.Context(), p, id, req.Name); err != nil {
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, OkMsg("保存成功"))
}

func (h *GridHandler) handleSetManagers(w http.ResponseWriter, r *http.Request, p *auth.Principal) {
	id, _ := pathIDAction(r.URL.Path, "/api/v1/grids/")
	if id == 0 {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	var req struct {
		UserIDs []int64 `json:"user_ids"`
	}
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		writeJSON(w, http.StatusOK, Fail("请求格式错误"))
		return
	}

	if err := h.grids.SetManagers(r.Context(), p, id, req.UserIDs); err != nil {
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, OkMsg("网格分配已保存"))
}

func (h *GridHandler) handleToggle(w http.ResponseWriter, r *http.Request, p *auth.Principal) {
	id, _ := pathIDAction(r.URL.Path, "/api/v1/grids/")
	if id == 0 {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	disabled, err := h.grids.ToggleDisabled(r.Context(), p, id)
	if err != nil {
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}
	msg := "网格已启用"
	if disabled {
		msg = "网格已禁用"
	}
	writeJSON(w, http.StatusOK, Result[map[string]any]{
		Code: ResultSuccess, Type: "success", Message: msg,
		Result: map[string]any{"disabled": disabled},
	})
}

func (h *GridHandler) handleDelete(w http.ResponseWriter, r *http.Request, p *auth.Principal) {
	id := pathID(r.URL.Path, "/api/v1/grids/")
	if id == 0 {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	if err := h.grids.Delete(r.Context(), p, id); err != nil {
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, OkMsg("删除成功"))
}
