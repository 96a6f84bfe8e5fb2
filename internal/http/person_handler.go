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

// PersonHandler 人员管理接口
type PersonHandler struct {
	persons service.PersonService
	guard   *service.Guard
	logger  *zap.Logger

	list     http.HandlerFunc
	create   http.HandlerFunc
	get      http.HandlerFunc
	update   http.HandlerFunc
	remove   http.HandlerFunc
	overview http.HandlerFunc
}

func NewPersonHandler(a *Authenticator, persons service.PersonService, guard *service.Guard, logger *zap.Logger) *PersonHandler {
	h := &PersonHandler{persons: persons, guard: guard, logger: logger}
	h.list = a.requirePermission(auth.PermPersonView, h.handleList)
	h.create = a.requirePermission(auth.PermPersonEdit, h.handleCreate)
	h.get = a.requirePermission(auth.PermPersonView, h.handleGet)
	h.update = a.requirePermission(auth.PermPersonEdit, h.handleUpdate)
	h.remove = a.requirePermission(auth.PermPersonDelete, h.handleDelete)
	h.overview = a.requireAuth(h.handleOverview)
	return h
}

// Collection /api/v1/persons
func (h *PersonHandler) Collection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.list(w, r)
	case http.MethodPost:
		h.create(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// Item /api/v1/persons/{id}
func (h *PersonHandler) Item(w http.ResponseWriter, r *http.Request) {
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

// Overview /api/v1/overview
func (h *PersonHandler) Overview(w http.ResponseWriter, r *http.Request) {
	h.overview(w, r)
}

// personView 列表/详情响应。Null 字段统一渲染成空串 / null。
type personView struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	IDCard      string `json:"id_card"`
	UniqueID    string `json:"unique_id"`
	Passport    string `json:"passport"`
	OtherIDType string `json:"other_id_type"`
	Gender      string `json:"gender"`
	BirthDate   string `json:"birth_date"`
	Phones      string `json:"phones"`

	PersonType   string `json:"person_type"`
	Relationship string `json:"relationship"`

	LivingBuildingID   *int64 `json:"living_building_id"`
	LivingBuildingName string `json:"living_building_name"`
	BuildingType       string `json:"building_type"`
	GridName           string `json:"grid_name"`
	AddressDetail      string `json:"address_detail"`

	HouseholdBuildingID   *int64 `json:"household_building_id"`
	HouseholdBuildingName string `json:"household_building_name"`
	HouseholdAddress      string `json:"household_address"`
	FamilyID              string `json:"family_id"`
	HouseholdNumber       string `json:"household_number"`
	HouseholdEntryDate    string `json:"household_entry_date"`

	IsSeparated          bool   `json:"is_separated"`
	CurrentResidence     string `json:"current_residence"`
	IsMigratedOut        bool   `json:"is_migrated_out"`
	HouseholdExitDate    string `json:"household_exit_date"`
	MigrationDestination string `json:"migration_destination"`
	IsDeceased           bool   `json:"is_deceased"`
	DeathDate            string `json:"death_date"`

	Nationality     string `json:"nationality"`
	PoliticalStatus string `json:"political_status"`
	MaritalStatus   string `json:"marital_status"`
	Education       string `json:"education"`
	WorkStudy       string `json:"work_study"`
	Health          string `json:"health"`
	Notes           string `json:"notes"`

	IsKeyPerson   bool   `json:"is_key_person"`
	KeyCategories string `json:"key_categories"`
}

func toPersonView(p *domain.Person) personView {
	return personView{
		ID:          p.ID,
		Name:        p.Name,
		IDCard:      nullStr(p.IDCard),
		UniqueID:    nullStr(p.UniqueID),
		Passport:    nullStr(p.Passport),
		OtherIDType: nullStr(p.OtherIDType),
		Gender:      nullStr(p.Gender),
		BirthDate:   nullStr(p.BirthDate),
		Phones:      nullStr(p.Phones),

		PersonType:   p.PersonType,
		Relationship: nullStr(p.Relationship),

		LivingBuildingID:   nullInt(p.LivingBuildingID),
		LivingBuildingName: nullStr(p.LivingBuildingName),
		BuildingType:       nullStr(p.BuildingType),
		GridName:           nullStr(p.GridName),
		AddressDetail:      nullStr(p.AddressDetail),

		HouseholdBuildingID:   nullInt(p.HouseholdBuildingID),
		HouseholdBuildingName: nullStr(p.HouseholdBuildingName),
		HouseholdAddress:      nullStr(p.HouseholdAddress),
		FamilyID:              nullStr(p.FamilyID),
		HouseholdNumber:       nullStr(p.HouseholdNumber),
		HouseholdEntryDate:    nullStr(p.HouseholdEntryDate),

		IsSeparated:          p.IsSeparated,
		CurrentResidence:     nullStr(p.CurrentResidence),
		IsMigratedOut:        p.IsMigratedOut,
		HouseholdExitDate:    nullStr(p.HouseholdExitDate),
		MigrationDestination: nullStr(p.MigrationDestination),
		IsDeceased:           p.IsDeceased,
		DeathDate:            nullStr(p.DeathDate),

		Nationality:     nullStr(p.Nationality),
		PoliticalStatus: nullStr(p.PoliticalStatus),
		MaritalStatus:   nullStr(p.MaritalStatus),
		Education:       nullStr(p.Education),
		WorkStudy:       nullStr(p.WorkStudy),
		Health:          nullStr(p.Health),
		Notes:           nullStr(p.Notes),

		IsKeyPerson:   p.IsKeyPerson,
		KeyCategories: nullStr(p.KeyCategories),
	}
}

func (h *PersonHandler) handleList(w http.ResponseWriter, r *http.Request, p *auth.Principal) {
	q := r.URL.Query()
	filter := repository.PersonFilter{
		Name:             q.Get("name"),
		IDCard:           q.Get("id_card"),
		Building:         q.Get("building"),
		Phone:            q.Get("phone"),
		PersonType:       q.Get("person_type"),
		HouseholdAddress: q.Get("household_address"),
		FamilyID:         q.Get("family_id"),
	}
	page := parseInt(q.Get("page"), 1)
	size := parseInt(q.Get("size"), p.PageSize)
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 200 {
		size = domain.DefaultPageSize
	}

	persons, total, err := h.persons.List(r.Context(), filter, page, size)
	if err != nil {
		h.logger.Error("查询人员列表失败", zap.Error(err))
		writeJSON(w, http.StatusOK, Fail("查询失败，请稍后重试"))
		return
	}

	items := make([]personView, 0, len(persons))
	for _, person := range persons {
		items = append(items, toPersonView(person))
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"items": items,
		"total": total,
		"page":  page,
		"size":  size,
	}))
}

func (h *PersonHandler) handleGet(w http.ResponseWriter, r *http.Request, _ *auth.Principal) {
	id := pathID(r.URL.Path, "/api/v1/persons/")
	if id == 0 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	person, err := h.persons.Get(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, Ok(toPersonView(person)))
}

// personPayload 新增人员请求体
type personPayload struct {
	Name        string `json:"name"`
	IDCard      string `json:"id_card"`
	UniqueID    string `json:"unique_id"`
	Passport    string `json:"passport"`
	OtherIDType string `json:"other_id_type"`
	Gender      string `json:"gender"`
	BirthDate   string `json:"birth_date"`
	Phones      string `json:"phones"`

	PersonType   string `json:"person_type"`
	Relationship string `json:"relationship"`

	LivingBuildingID int64  `json:"living_building_id"`
	AddressDetail    string `json:"address_detail"`

	HouseholdBuildingID int64  `json:"household_building_id"`
	HouseholdAddress    string `json:"household_address"`
	FamilyID            string `json:"family_id"`
	HouseholdNumber     string `json:"household_number"`
	HouseholdEntryDate  string `json:"household_entry_date"`

	IsSeparated          bool   `json:"is_separated"`
	CurrentResidence     string `json:"current_residence"`
	IsMigratedOut        bool   `json:"is_migrated_out"`
	HouseholdExitDate    string `json:"household_exit_date"`
	MigrationDestination string `json:"migration_destination"`
	IsDeceased           bool   `json:"is_deceased"`
	DeathDate            string `json:"death_date"`

	Nationality     string `json:"nationality"`
	PoliticalStatus string `json:"political_status"`
	MaritalStatus   string `json:"marital_status"`
	Education       string `json:"education"`
	WorkStudy       string `json:"work_study"`
	Health          string `json:"health"`
	Notes           string `json:"notes"`

	IsKeyPerson   bool   `json:"is_key_person"`
	KeyCategories string `json:"key_categories"`
}

func (pl *personPayload) toDomain() *domain.Person {
	person := &domain.Person{
		Name:        pl.Name,
		IDCard:      toNullStr(pl.IDCard),
		UniqueID:    toNullStr(pl.UniqueID),
		Passport:    toNullStr(pl.Passport),
		OtherIDType: toNullStr(pl.OtherIDType),
		Gender:      toNullStr(pl.Gender),
		BirthDate:   toNullStr(pl.BirthDate),
		Phones:      toNullStr(pl.Phones),

		PersonType:   pl.PersonType,
		Relationship: toNullStr(pl.Relationship),

		AddressDetail: toNullStr(pl.AddressDetail),

		HouseholdAddress:   toNullStr(pl.HouseholdAddress),
		FamilyID:           toNullStr(pl.FamilyID),
		HouseholdNumber:    toNullStr(pl.HouseholdNumber),
		HouseholdEntryDate: toNullStr(pl.HouseholdEntryDate),

		IsSeparated:          pl.IsSeparated,
		CurrentResidence:     toNullStr(pl.CurrentResidence),
		IsMigratedOut:        pl.IsMigratedOut,
		HouseholdExitDate:    toNullStr(pl.HouseholdExitDate),
		MigrationDestination: toNullStr(pl.MigrationDestination),
		IsDeceased:           pl.IsDeceased,
		DeathDate:            toNullStr(pl.DeathDate),

		Nationality:     toNullStr(pl.Nationality),
		PoliticalStatus: toNullStr(pl.PoliticalStatus),
		MaritalStatus:   toNullStr(pl.MaritalStatus),
		Education:       toNullStr(pl.Education),
		WorkStudy:       toNullStr(pl.WorkStudy),
		Health:          toNullStr(pl.Health),
		Notes:           toNullStr(pl.Notes),

		IsKeyPerson:   pl.IsKeyPerson,
		KeyCategories: toNullStr(pl.KeyCategories),
	}
	if pl.LivingBuildingID != 0 {
		person.LivingBuildingID = sql.NullInt64{Int64: pl.LivingBuildingID, Valid: true}
	}
	if pl.HouseholdBuildingID != 0 {
		person.HouseholdBuildingID = sql.NullInt64{Int64: pl.HouseholdBuildingID, Valid: true}
	}
	return person
}

func (h *PersonHandler) handleCreate(w http.ResponseWriter, r *http.Request, p *auth.Principal) {
	var req personPayload
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		writeJSON(w, http.StatusOK, Fail("请求格式错误"))
		return
	}

	ok, err := h.guard.AuthorizeWrite(r.Context(), p, service.GuardTarget{BuildingID: req.LivingBuildingID})
	if err != nil {
		h.logger.Error("网格权限检查失败", zap.Error(err))
		writeJSON(w, http.StatusOK, Fail("系统繁忙，请稍后重试"))
		return
	}
	if !ok {
		writeJSON(w, http.StatusForbidden, Fail("无权操作其他网格的数据"))
		return
	}

	id, err := h.persons.Create(r.Context(), p, req.toDomain())
	if err != nil {
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"id": id}))
}

// patchFromBody 把部分更新请求体转换为 PersonPatch：
// 只有出现在请求体里的键才会被更新
func personPatchFromBody(body map[string]any) domain.PersonPatch {
	return domain.PersonPatch{
		Name:        patchStr(body, "name"),
		IDCard:      patchStr(body, "id_card"),
		UniqueID:    patchStr(body, "unique_id"),
		Passport:    patchStr(body, "passport"),
		OtherIDType: patchStr(body, "other_id_type"),
		Gender:      patchStr(body, "gender"),
		BirthDate:   patchStr(body, "birth_date"),
		Phones:      patchStr(body, "phones"),

		PersonType:   patchStr(body, "person_type"),
		Relationship: patchStr(body, "relationship"),

		LivingBuildingID: patchInt(body, "living_building_id"),
		AddressDetail:    patchStr(body, "address_detail"),

		HouseholdBuildingID: patchInt(body, "household_building_id"),
		HouseholdAddress:    patchStr(body, "household_address"),
		FamilyID:            patchStr(body, "family_id"),
		HouseholdNumber:     patchStr(body, "household_number"),
		HouseholdEntryDate:  patchStr(body, "household_entry_date"),

		IsSeparated:          patchBool(body, "is_separated"),
		CurrentResidence:     patchStr(body, "current_residence"),
		IsMigratedOut:        patchBool(body, "is_migrated_out"),
		HouseholdExitDate:    patchStr(body, "household_exit_date"),
		MigrationDestination: patchStr(body, "migration_destination"),
		IsDeceased:           patchBool(body, "is_deceased"),
		DeathDate:            patchStr(body, "death_date"),

		Nationality:     patchStr(body, "nationality"),
		PoliticalStatus: patchStr(body, "political_status"),
		MaritalStatus:   patchStr(body, "marital_status"),
		Education:       patchStr(body, "education"),
		WorkStudy:       patchStr(body, "work_study"),
		Health:          patchStr(body, "health"),
		Notes:           patchStr(body, "notes"),

		IsKeyPerson:   patchBool(body, "is_key_person"),
		KeyCategories: patchStr(body, "key_categories"),
	}
}

func (h *PersonHandler) handleUpdate(w http.ResponseWriter, r *http.Request, p *auth.Principal) {
	id := pathID(r.URL.Path, "/api/v1/persons/")
	if id == 0 {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	var body map[string]any
	if err := readBodyJSON(r, 1<<20, &body); err != nil {
		writeJSON(w, http.StatusOK, Fail("请求格式错误"))
		return
	}
	patch := personPatchFromBody(body)

	// 既检查人员当前所在网格，也检查要迁入的目标建筑
	target := service.GuardTarget{PersonID: id}
	if patch.LivingBuildingID.Valid {
		target.BuildingID = patch.LivingBuildingID.Int64
	}
	ok, err := h.guard.AuthorizeWrite(r.Context(), p, target)
	if err != nil {
		h.logger.Error("网格权限检查失败", zap.Error(err))
		writeJSON(w, http.StatusOK, Fail("系统繁忙，请稍后重试"))
		return
	}
	if !ok {
		writeJSON(w, http.StatusForbidden, Fail("无权操作其他网格的数据"))
		return
	}

	if err := h.persons.Update(r.Context(), p, id, patch); err != nil {
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, OkMsg("保存成功"))
}

func (h *PersonHandler) handleDelete(w http.ResponseWriter, r *http.Request, p *auth.Principal) {
	id := pathID(r.URL.Path, "/api/v1/persons/")
	if id == 0 {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	ok, err := h.guard.AuthorizeWrite(r.Context(), p, service.GuardTarget{PersonID: id})
	if err != nil {
		h.logger.Error("网格权限检查失败", zap.Error(err))
		writeJSON(w, http.StatusOK, Fail("系统繁忙，请稍后重试"))
		return
	}
	if !ok {
		writeJSON(w, http.StatusForbidden, Fail("无权操作其他网格的数据"))
		return
	}

	if err := h.persons.Delete(r.Context(), p, id); err != nil {
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, OkMsg("删除成功"))
}

func (h *PersonHandler) handleOverview(w http.ResponseWriter, r *http.Request, _ *auth.Principal) {
	stats, err := h.persons.Overview(r.Context())
	if err != nil {
		h.logger.Error("查询概览统计失败", zap.Error(err))
		writeJSON(w, http.StatusOK, Fail("查询失败，请稍后重试"))
		return
	}
	writeJSON(w, http.StatusOK, Ok(stats))
}
