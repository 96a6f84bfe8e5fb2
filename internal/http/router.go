package httpapi

import (
	"net/http"

	"go.uber.org/zap"
)

// Router 使用标准库 http.ServeMux（避免引入第三方路由依赖）。
// 所有请求经过 panic 兜底，业务 panic 不会打穿进程。
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

// HandleHandler 支持 http.Handler 接口（用于 pprof 等）
func (r *Router) HandleHandler(pattern string, h http.Handler) {
	r.mux.Handle(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("请求处理 panic",
				zap.Any("panic", rec),
				zap.String("path", req.URL.Path),
				zap.String("method", req.Method))
			writeJSON(w, http.StatusInternalServerError, Fail("系统内部错误"))
		}
	}()
	r.mux.ServeHTTP(w, req)
}

// RegisterAuthRoutes 登录/注销/改密/当前用户
func (r *Router) RegisterAuthRoutes(h *AuthHandler) {
	r.Handle("/api/v1/auth/login", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.Login(w, req)
	})
	r.Handle("/api/v1/auth/logout", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.Logout(w, req)
	})
	r.Handle("/api/v1/auth/change-password", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.ChangePassword(w, req)
	})
	r.Handle("/api/v1/auth/me", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.CurrentUser(w, req)
	})
}

// RegisterPersonRoutes 人员管理 + 首页概览
func (r *Router) RegisterPersonRoutes(h *PersonHandler) {
	r.Handle("/api/v1/persons", h.Collection)
	r.Handle("/api/v1/persons/", h.Item)
	r.Handle("/api/v1/overview", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.Overview(w, req)
	})
}

// RegisterBuildingRoutes 小区/建筑管理
func (r *Router) RegisterBuildingRoutes(h *BuildingHandler) {
	r.Handle("/api/v1/buildings", h.Collection)
	r.Handle("/api/v1/buildings/options", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.Options(w, req)
	})
	r.Handle("/api/v1/buildings/", h.Item)
}

// RegisterGridRoutes 网格管理
func (r *Router) RegisterGridRoutes(h *GridHandler) {
	r.Handle("/api/v1/grids", h.Collection)
	r.Handle("/api/v1/grids/", h.Item)
}

// RegisterUserRoutes 系统用户管理 + 个人设置
func (r *Router) RegisterUserRoutes(h *UserHandler) {
	r.Handle("/api/v1/users", h.Collection)
	r.Handle("/api/v1/users/", h.Item)
	r.Handle("/api/v1/profile", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.UpdateProfile(w, req)
	})
}

// RegisterSettingsRoutes 系统设置 + 角色权限
func (r *Router) RegisterSettingsRoutes(h *SettingsHandler) {
	r.Handle("/api/v1/settings/general", h.General)
	r.Handle("/api/v1/settings/roles", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.ListRoles(w, req)
	})
	r.Handle("/api/v1/settings/roles/", h.RoleAction)
}

// RegisterImportExportRoutes Excel 导入导出
func (r *Router) RegisterImportExportRoutes(h *ImportExportHandler) {
	r.Handle("/api/v1/export/persons", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.ExportPersons(w, req)
	})
	r.Handle("/api/v1/export/buildings", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.ExportBuildings(w, req)
	})
	r.Handle("/api/v1/import/persons", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.ImportPersons(w, req)
	})
	r.Handle("/api/v1/import/buildings", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.ImportBuildings(w, req)
	})
	r.Handle("/api/v1/import/status", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.Status(w, req)
	})
}
