package httpapi

import (
	"database/sql"
	"net/http"

	"cortana-grid/internal/auth"
	"cortana-grid/internal/domain"
	"cortana-grid/internal/repository"
	"cortana-grid/internal/service"

	"go.uber.org/zap"
)

// BuildingHandler 小区/建筑管理接口
type BuildingHandler struct {
	buildings service.BuildingService
	guard     *service.Guard
	logger    *zap.Logger

	list    http.HandlerFunc
	options http.HandlerFunc
	create  http.HandlerFunc
	get     http.HandlerFunc
	update  http.HandlerFunc
	remove  http.HandlerFunc
}

func NewBuildingHandler(a *Authenticator, buildings service.BuildingService, guard *service.Guard, logger *zap.Logger) *BuildingHandler {
	h := &BuildingHandler{buildings: buildings, guard: guard, logger: logger}
	h.list = a.requirePermission(auth.PermBuildingView, h.handleList)
	h.options = a.requireAuth(h.handleOptions)
	h.create = a.requirePermission(auth.PermBuildingEdit, h.handleCreate)
	h.get = a.requirePermission(auth.PermBuildingView, h.handleGet)
	h.update = a.requirePermission(auth.PermBuildingEdit, h.handleUpdate)
	h.remove = a.requirePermission(auth.PermBuildingDelete, h.handleDelete)
	return h
}

// Collection /api/v1/buildings
func (h *BuildingHandler) Collection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.list(w, r)
	case http.MethodPost:
		h.create(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// Item /api/v1/buildings/{id}
func (h *BuildingHandler) Item(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.get(w, r)
	case http.MethodPut:
		h.update(w, r)
	case http.MethodDelete:
		h.remove(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// Options /api/v1/buildings/options（人员表单里的建筑下拉框）
func (h *BuildingHandler) Options(w http.ResponseWriter, r *http.Request) {
	h.options(w, r)
}

type buildingView struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	TypeLabel string `json:"type_label"`
	GridID    *int64 `json:"grid_id"`
	GridName  string `json:"grid_name"`

	Address          string   `json:"address"`
	BuildYear        *int64   `json:"build_year"`
	Households       *int64   `json:"households"`
	BuildingsCount   *int64   `json:"buildings_count"`
	ApproxResidents  *int64   `json:"approx_residents"`
	BusinessesCount  *int64   `json:"businesses_count"`
	GroundFloorShops *int64   `json:"ground_floor_shops"`
	HasGasPipeline   bool     `json:"has_gas_pipeline"`
	PropertyFee      string   `json:"property_fee"`
	Elevators        *int64   `json:"elevators"`
	IndoorParking    *int64   `json:"indoor_parking"`
	OutdoorParking   *int64   `json:"outdoor_parking"`
	Latitude         *float64 `json:"latitude"`
	Longitude        *float64 `json:"longitude"`

	SecurityManager      string `json:"security_manager"`
	SecurityManagerPhone string `json:"security_manager_phone"`

	Developer                 string `json:"developer"`
	Constructor               string `json:"constructor"`
	PropertyManagementCompany string `json:"property_management_company"`
	PropertyContactPhone      string `json:"property_contact_phone"`
	OwnersCommitteeContact    string `json:"owners_committee_contact"`
	OwnersCommitteePhone      string `json:"owners_committee_phone"`
	OwnerName                 string `json:"owner_name"`
	OwnerPhone                string `json:"owner_phone"`
	LandlordName              string `json:"landlord_name"`
	LandlordPhone             string `json:"landlord_phone"`
	CommercialType            string `json:"commercial_type"`
	Notes                     string `json:"notes"`
}

func toBuildingView(b *domain.Building) buildingView {
	return buildingView{
		ID:        b.ID,
		Name:      b.Name,
		Type:      b.Type,
		TypeLabel: domain.BuildingTypeLabel(b.Type),
		GridID:    nullInt(b.GridID),
		GridName:  nullStr(b.GridName),

		Address:          nullStr(b.Address),
		BuildYear:        nullInt(b.BuildYear),
		Households:       nullInt(b.Households),
		BuildingsCount:   nullInt(b.BuildingsCount),
		ApproxResidents:  nullInt(b.ApproxResidents),
		BusinessesCount:  nullInt(b.BusinessesCount),
		GroundFloorShops: nullInt(b.GroundFloorShops),
		HasGasPipeline:   b.HasGasPipeline,
		PropertyFee:      nullStr(b.PropertyFee),
		Elevators:        nullInt(b.Elevators),
		IndoorParking:    nullInt(b.IndoorParking),
		OutdoorParking:   nullInt(b.OutdoorParking),
		Latitude:         nullFloat(b.Latitude),
		Longitude:        nullFloat(b.Longitude),

		SecurityManager:      nullStr(b.SecurityManager),
		SecurityManagerPhone: nullStr(b.SecurityManagerPhone),

		Developer:                 nullStr(b.Developer),
		Constructor:               nullStr(b.Constructor),
		PropertyManagementCompany: nullStr(b.PropertyManagementCompany),
		PropertyContactPhone:      nullStr(b.PropertyContactPhone),
		OwnersCommitteeContact:    nullStr(b.OwnersCommitteeContact),
		OwnersCommitteePhone:      nullStr(b.OwnersCommitteePhone),
		OwnerName:                 nullStr(b.OwnerName),
		OwnerPhone:                nullStr(b.OwnerPhone),
		LandlordName:              nullStr(b.LandlordName),
		LandlordPhone:             nullStr(b.LandlordPhone),
		CommercialType:            nullStr(b.CommercialType),
		Notes:                     nullStr(b.Notes),
	}
}

func (h *BuildingHandler) handleList(w http.ResponseWriter, r *http.Request, _ *auth.Principal) {
	q := r.URL.Query()
	filter := repository.BuildingFilter{
		Search: q.Get("search"),
		GridID: int64(parseInt(q.Get("grid_id"), 0)),
		Type:   q.Get("type"),
	}

	buildings, err := h.buildings.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("查询建筑列表失败", zap.Error(err))
		writeJSON(w, http.StatusOK, Fail("查询失败，请稍后重试"))
		return
	}

	items := make([]buildingView, 0, len(buildings))
	for _, b := range buildings {
		items = append(items, toBuildingView(b))
	}
	writeJSON(w, http.StatusOK, Ok(items))
}

func (h *BuildingHandler) handleOptions(w http.ResponseWriter, r *http.Request, _ *auth.Principal) {
	options, err := h.buildings.Options(r.Context())
	if err != nil {
		h.logger.Error("查询建筑选项失败", zap.Error(err))
		writeJSON(w, http.StatusOK, Fail("查询失败，请稍后重试"))
		return
	}
	items := make([]map[string]any, 0, len(options))
	for _, opt := range options {
		items = append(items, map[string]any{"id": opt.ID, "label": opt.Label})
	}
	writeJSON(w, http.StatusOK, Ok(items))
}

func (h *BuildingHandler) handleGet(w http.ResponseWriter, r *http.Request, _ *auth.Principal) {
	id := pathID(r.URL.Path, "/api/v1/buildings/")
	if id == 0 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	b, err := h.buildings.Get(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, Ok(toBuildingView(b)))
}

type buildingPayload struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	GridID int64  `json:"grid_id"`

	Address          string  `json:"address"`
	BuildYear        int64   `json:"build_year"`
	Households       int64   `json:"households"`
	BuildingsCount   int64   `json:"buildings_count"`
	ApproxResidents  int64   `json:"approx_residents"`
	BusinessesCount  int64   `json:"businesses_count"`
	GroundFloorShops int64   `json:"ground_floor_shops"`
	HasGasPipeline   bool    `json:"has_gas_pipeline"`
	PropertyFee      string  `json:"property_fee"`
	Elevators        int64   `json:"elevators"`
	IndoorParking    int64   `json:"indoor_parking"`
	OutdoorParking   int64   `json:"outdoor_parking"`
	Latitude         float64 `json:"latitude"`
	Longitude        float64 `json:"longitude"`

	SecurityManager      string `json:"security_manager"`
	SecurityManagerPhone string `json:"security_manager_phone"`

	Developer                 string `json:"developer"`
	Constructor               string `json:"constructor"`
	PropertyManagementCompany string `json:"property_management_company"`
	PropertyContactPhone      string `json:"property_contact_phone"`
	OwnersCommitteeContact    string `json:"owners_committee_contact"`
	OwnersCommitteePhone      string `json:"owners_committee_phone"`
	OwnerName                 string `json:"owner_name"`
	OwnerPhone                string `json:"owner_phone"`
	LandlordName              string `json:"landlord_name"`
	LandlordPhone             string `json:"landlord_phone"`
	CommercialType            string `json:"commercial_type"`
	Notes                     string `json:"notes"`
}

func optNullInt(v int64) sql.NullInt64 {
	if v == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: v, Valid: true}
}

func (pl *buildingPayload) toDomain() *domain.Building {
	b := &domain.Building{
		Name:   pl.Name,
		Type:   pl.Type,
		GridID: optNullInt(pl.GridID),

		Address:          toNullStr(pl.Address),
		BuildYear:        optNullInt(pl.BuildYear),
		Households:       optNullInt(pl.Households),
		BuildingsCount:   optNullInt(pl.BuildingsCount),
		ApproxResidents:  optNullInt(pl.ApproxResidents),
		BusinessesCount:  optNullInt(pl.BusinessesCount),
		GroundFloorShops: optNullInt(pl.GroundFloorShops),
		HasGasPipeline:   pl.HasGasPipeline,
		PropertyFee:      toNullStr(pl.PropertyFee),
		Elevators:        optNullInt(pl.Elevators),
		IndoorParking:    optNullInt(pl.IndoorParking),
		OutdoorParking:   optNullInt(pl.OutdoorParking),

		SecurityManager:      toNullStr(pl.SecurityManager),
		SecurityManagerPhone: toNullStr(pl.SecurityManagerPhone),

		Developer:                 toNullStr(pl.Developer),
		Constructor:               toNullStr(pl.Constructor),
		PropertyManagementCompany: toNullStr(pl.PropertyManagementCompany),
		PropertyContactPhone:      toNullStr(pl.PropertyContactPhone),
		OwnersCommitteeContact:    toNullStr(pl.OwnersCommitteeContact),
		OwnersCommitteePhone:      toNullStr(pl.OwnersCommitteePhone),
		OwnerName:                 toNullStr(pl.OwnerName),
		OwnerPhone:                toNullStr(pl.OwnerPhone),
		LandlordName:              toNullStr(pl.LandlordName),
		LandlordPhone:             toNullStr(pl.LandlordPhone),
		CommercialType:            toNullStr(pl.CommercialType),
		Notes:                     toNullStr(pl.Notes),
	}
	if pl.Latitude != 0 {
		b.Latitude = sql.NullFloat64{Float64: pl.Latitude, Valid: true}
	}
	if pl.Longitude != 0 {
		b.Longitude = sql.NullFloat64{Float64: pl.Longitude, Valid: true}
	}
	return b
}

func (h *BuildingHandler) handleCreate(w http.ResponseWriter, r *http.Request, p *auth.Principal) {
	var req buildingPayload
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		writeJSON(w, http.StatusOK, Fail("请求格式错误"))
		return
	}

	// 非管理员只能在自己负责的网格下建档
	if !p.IsAdmin() && req.GridID != 0 && !p.ManagesGrid(req.GridID) {
		writeJSON(w, http.StatusForbidden, Fail("无权操作其他网格的数据"))
		return
	}

	id, err := h.buildings.Create(r.Context(), p, req.toDomain())
	if err != nil {
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"id": id}))
}

func buildingPatchFromBody(body map[string]any) domain.BuildingPatch {
	patch := domain.BuildingPatch{
		Name: patchStr(body, "name"),
		Type: patchStr(body, "type"),

		Address:              patchStr(body, "address"),
		BuildYear:            patchInt(body, "build_year"),
		Households:           patchInt(body, "households"),
		ApproxResidents:      patchInt(body, "approx_residents"),
		HasGasPipeline:       patchBool(body, "has_gas_pipeline"),
		PropertyFee:          patchStr(body, "property_fee"),
		SecurityManager:      patchStr(body, "security_manager"),
		SecurityManagerPhone: patchStr(body, "security_manager_phone"),
		Latitude:             patchFloat(body, "latitude"),
		Longitude:            patchFloat(body, "longitude"),
		Notes:                patchStr(body, "notes"),
	}
	// grid_id 出现且为 null/0 → 解除网格绑定
	if raw, ok := body["grid_id"]; ok {
		f, _ := raw.(float64)
		if raw == nil || int64(f) == 0 {
			patch.SetGridNull = true
		} else {
			patch.GridID = sql.NullInt64{Int64: int64(f), Valid: true}
		}
	}
	return patch
}

func (h *BuildingHandler) handleUpdate(w http.ResponseWriter, r *http.Request, p *auth.Principal) {
	id := pathID(r.URL.Path, "/api/v1/buildings/")
	if id == 0 {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	var body map[string]any
	if err := readBodyJSON(r, 1<<20, &body); err != nil {
		writeJSON(w, http.StatusOK, Fail("请求格式错误"))
		return
	}

	ok, err := h.guard.AuthorizeWrite(r.Context(), p, service.GuardTarget{BuildingID: id})
	if err != nil {
		h.logger.Error("网格权限检查失败", zap.Error(err))
		writeJSON(w, http.StatusOK, Fail("系统繁忙，请稍后重试"))
		return
	}
	if !ok {
		writeJSON(w, http.StatusForbidden, Fail("无权操作其他网格的数据"))
		return
	}

	if err := h.buildings.Update(r.Context(), p, id, buildingPatchFromBody(body)); err != nil {
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, OkMsg("保存成功"))
}

func (h *BuildingHandler) handleDelete(w http.ResponseWriter, r *http.Request, p *auth.Principal) {
	id := pathID(r.URL.Path, "/api/v1/buildings/")
	if id == 0 {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	ok, err := h.guard.AuthorizeWrite(r.Context(), p, service.GuardTarget{BuildingID: id})
	if err != nil {
		h.logger.Error("网格权限检查失败", zap.Error(err))
		writeJSON(w, http.StatusOK, Fail("系统繁忙，请稍后重试"))
		return
	}
	if !ok {
		writeJSON(w, http.StatusForbidden, Fail("无权操作其他网格的数据"))
		return
	}

	if err := h.buildings.Delete(r.Context(), p, id); err != nil {
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, OkMsg("删除成功"))
}
