package service

import (
	"context"
	"sort"
	"strings"
	"testing"

	"cortana-grid/internal/auth"
	"cortana-grid/internal/domain"
	"cortana-grid/internal/repository"

	"github.com/lib/pq"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// ---- 测试主体构造 ----

type stubLoader struct {
	roles []string
	perms map[string][]string
	grids []int64
}

func (l *stubLoader) RoleNamesForUser(ctx context.Context, userID int64) ([]string, error) {
	return l.roles, nil
}
func (l *stubLoader) PermissionsByRole(ctx context.Context, userID int64) (map[string][]string, error) {
	return l.perms, nil
}
func (l *stubLoader) ManagedGridIDs(ctx context.Context, userID int64) ([]int64, error) {
	return l.grids, nil
}

func newTestPrincipal(t *testing.T, id int64, username string, roles []string, grids []int64) *auth.Principal {
	t.Helper()
	p := auth.NewPrincipal(&domain.User{ID: id, Username: username, IsActive: true})
	loader := &stubLoader{roles: roles, grids: grids}
	require.NoError(t, p.EnsureLoaded(context.Background(), loader, auth.FailClosed, zap.NewNop()))
	return p
}

// ---- 建筑 Repository 替身 ----

type fakeBuildingsRepo struct {
	nextID    int64
	buildings map[int64]*domain.Building
	residents map[int64]int
}

func newFakeBuildingsRepo() *fakeBuildingsRepo {
	return &fakeBuildingsRepo{
		nextID:    1,
		buildings: map[int64]*domain.Building{},
		residents: map[int64]int{},
	}
}

var _ repository.BuildingsRepository = (*fakeBuildingsRepo)(nil)

func (f *fakeBuildingsRepo) add(b *domain.Building) *domain.Building {
	b.ID = f.nextID
	f.nextID++
	f.buildings[b.ID] = b
	return b
}

func (f *fakeBuildingsRepo) List(ctx context.Context, filter repository.BuildingFilter) ([]*domain.Building, error) {
	out := []*domain.Building{}
	for _, b := range f.sorted() {
		if b.IsDeleted {
			continue
		}
		if filter.GridID > 0 && (!b.GridID.Valid || b.GridID.Int64 != filter.GridID) {
			continue
		}
		if filter.Type != "" && b.Type != filter.Type {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (f *fakeBuildingsRepo) Get(ctx context.Context, id int64) (*domain.Building, error) {
	b, ok := f.buildings[id]
	if !ok || b.IsDeleted {
		return nil, repository.ErrNotFound
	}
	return b, nil
}

func (f *fakeBuildingsRepo) FindByNameOrAddress(ctx context.Context, q string) ([]*domain.Building, error) {
	exact := []*domain.Building{}
	fuzzy := []*domain.Building{}
	for _, b := range f.sorted() {
		if b.IsDeleted {
			continue
		}
		if b.Name == q {
			exact = append(exact, b)
		} else if strings.Contains(b.Name, q) || (b.Address.Valid && strings.Contains(b.Address.String, q)) {
			fuzzy = append(fuzzy, b)
		}
	}
	return append(exact, fuzzy...), nil
}

func (f *fakeBuildingsRepo) Options(ctx context.Context) ([]*domain.BuildingOption, error) {
	out := []*domain.BuildingOption{}
	for _, b := range f.sorted() {
		if !b.IsDeleted {
			out = append(out, &domain.BuildingOption{ID: b.ID, Label: b.Name})
		}
	}
	return out, nil
}

func (f *fakeBuildingsRepo) Create(ctx context.Context, b *domain.Building) (int64, error) {
	for _, existing := range f.buildings {
		if existing.IsDeleted || existing.Name != b.Name {
			continue
		}
		if existing.GridID.Valid == b.GridID.Valid &&
			(!b.GridID.Valid || existing.GridID.Int64 == b.GridID.Int64) {
			return 0, &pq.Error{Code: "23505", Constraint: repository.ConstraintBuildingNameGrid}
		}
	}
	return f.add(b).ID, nil
}

func (f *fakeBuildingsRepo) Update(ctx context.Context, id int64, patch domain.BuildingPatch) error {
	b, ok := f.buildings[id]
	if !ok || b.IsDeleted {
		return repository.ErrNotFound
	}
	if patch.Name.Valid {
		b.Name = patch.Name.String
	}
	if patch.Type.Valid {
		b.Type = patch.Type.String
	}
	if patch.SetGridNull {
		b.GridID.Valid = false
	} else if patch.GridID.Valid {
		b.GridID = patch.GridID
	}
	return nil
}

func (f *fakeBuildingsRepo) SoftDelete(ctx context.Context, id int64) error {
	if b, ok := f.buildings[id]; ok {
		b.IsDeleted = true
	}
	return nil
}

func (f *fakeBuildingsRepo) ResidentCount(ctx context.Context, id int64) (int, error) {
	return f.residents[id], nil
}

func (f *fakeBuildingsRepo) ListForExport(ctx context.Context, gridIDs []int64) ([]*domain.Building, error) {
	want := map[int64]bool{}
	for _, id := range gridIDs {
		want[id] = true
	}
	out := []*domain.Building{}
	for _, b := range f.sorted() {
		if b.IsDeleted {
			continue
		}
		if len(want) > 0 && (!b.GridID.Valid || !want[b.GridID.Int64]) {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (f *fakeBuildingsRepo) sorted() []*domain.Building {
	out := make([]*domain.Building, 0, len(f.buildings))
	for _, b := range f.buildings {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ---- 人员 Repository 替身 ----

type fakePersonsRepo struct {
	nextID  int64
	persons map[int64]*domain.Person
}

func newFakePersonsRepo() *fakePersonsRepo {
	return &fakePersonsRepo{nextID: 1, persons: map[int64]*domain.Person{}}
}

var _ repository.PersonsRepository = (*fakePersonsRepo)(nil)

func (f *fakePersonsRepo) List(ctx context.Context, filter repository.PersonFilter, page, size int) ([]*domain.Person, int, error) {
	out := []*domain.Person{}
	for _, p := range f.sorted() {
		if p.IsDeleted {
			continue
		}
		if filter.Name != "" && !strings.Contains(p.Name, filter.Name) {
			continue
		}
		out = append(out, p)
	}
	return out, len(out), nil
}

func (f *fakePersonsRepo) Get(ctx context.Context, id int64) (*domain.Person, error) {
	p, ok := f.persons[id]
	if !ok || p.IsDeleted {
		return nil, repository.ErrNotFound
	}
	return p, nil
}

func (f *fakePersonsRepo) Create(ctx context.Context, p *domain.Person) (int64, error) {
	if p.IDCard.Valid && p.IDCard.String != "" {
		for _, existing := range f.persons {
			if !existing.IsDeleted && existing.IDCard.Valid && existing.IDCard.String == p.IDCard.String {
				return 0, &pq.Error{Code: "23505", Constraint: repository.ConstraintPersonIDCard}
			}
		}
	}
	p.ID = f.nextID
	f.nextID++
	f.persons[p.ID] = p
	return p.ID, nil
}

func (f *fakePersonsRepo) Update(ctx context.Context, id int64, patch domain.PersonPatch) error {
	p, ok := f.persons[id]
	if !ok || p.IsDeleted {
		return repository.ErrNotFound
	}
	if patch.Name.Valid {
		p.Name = patch.Name.String
	}
	if patch.LivingBuildingID.Valid {
		p.LivingBuildingID = patch.LivingBuildingID
	}
	if patch.AddressDetail.Valid {
		p.AddressDetail = patch.AddressDetail
	}
	if patch.IsKeyPerson.Valid {
		p.IsKeyPerson = patch.IsKeyPerson.Bool
	}
	return nil
}

func (f *fakePersonsRepo) SoftDelete(ctx context.Context, id int64) error {
	if p, ok := f.persons[id]; ok {
		p.IsDeleted = true
	}
	return nil
}

func (f *fakePersonsRepo) LivingBuildingID(ctx context.Context, personID int64) (int64, error) {
	p, ok := f.persons[personID]
	if !ok || p.IsDeleted {
		return 0, repository.ErrNotFound
	}
	return p.LivingBuildingID.Int64, nil
}

func (f *fakePersonsRepo) ListForExport(ctx context.Context, gridIDs []int64) ([]*domain.Person, error) {
	out := []*domain.Person{}
	for _, p := range f.sorted() {
		if !p.IsDeleted {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePersonsRepo) OverviewStats(ctx context.Context) (*domain.OverviewStats, error) {
	stats := &domain.OverviewStats{}
	for _, p := range f.persons {
		if p.IsDeleted {
			continue
		}
		stats.TotalPersons++
		if p.IsKeyPerson {
			stats.KeyPersons++
		}
	}
	return stats, nil
}

func (f *fakePersonsRepo) sorted() []*domain.Person {
	out := make([]*domain.Person, 0, len(f.persons))
	for _, p := range f.persons {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ---- 网格 Repository 替身 ----

type fakeGridsRepo struct {
	nextID        int64
	grids         map[int64]*domain.Grid
	managers      map[int64][]int64
	buildingCount map[int64]int
}

func newFakeGridsRepo() *fakeGridsRepo {
	return &fakeGridsRepo{
		nextID:        1,
		grids:         map[int64]*domain.Grid{},
		managers:      map[int64][]int64{},
		buildingCount: map[int64]int{},
	}
}

var _ repository.GridsRepository = (*fakeGridsRepo)(nil)

func (f *fakeGridsRepo) add(name string, disabled bool) *domain.Grid {
	g := &domain.Grid{ID: f.nextID, Name: name, Disabled: disabled}
	f.nextID++
	f.grids[g.ID] = g
	return g
}

func (f *fakeGridsRepo) List(ctx context.Context, includeDisabled bool) ([]*domain.Grid, error) {
	out := []*domain.Grid{}
	for _, g := range f.sorted() {
		if !includeDisabled && g.Disabled {
			continue
		}
		out = append(out, g)
	}
	return out, nil
}

func (f *fakeGridsRepo) ListWithManagers(ctx context.Context) ([]*domain.GridListItem, error) {
	out := []*domain.GridListItem{}
	for _, g := range f.sorted() {
		out = append(out, &domain.GridListItem{Grid: *g, ManagerIDs: f.managers[g.ID]})
	}
	return out, nil
}

func (f *fakeGridsRepo) Get(ctx context.Context, id int64) (*domain.Grid, error) {
	g, ok := f.grids[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return g, nil
}

func (f *fakeGridsRepo) GetDetail(ctx context.Context, id int64) (*domain.GridDetail, error) {
	g, err := f.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &domain.GridDetail{Grid: *g, BuildingCount: f.buildingCount[id]}, nil
}

func (f *fakeGridsRepo) Create(ctx context.Context, name string) (int64, error) {
	return f.add(name, false).ID, nil
}

func (f *fakeGridsRepo) Rename(ctx context.Context, id int64, name string) error {
	g, ok := f.grids[id]
	if !ok {
		return repository.ErrNotFound
	}
	g.Name = name
	return nil
}

func (f *fakeGridsRepo) SetManagers(ctx context.Context, gridID int64, userIDs []int64) error {
	f.managers[gridID] = userIDs
	return nil
}

func (f *fakeGridsRepo) ToggleDisabled(ctx context.Context, id int64) (bool, error) {
	g, ok := f.grids[id]
	if !ok {
		return false, repository.ErrNotFound
	}
	g.Disabled = !g.Disabled
	return g.Disabled, nil
}

func (f *fakeGridsRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := f.grids[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.grids, id)
	return nil
}

func (f *fakeGridsRepo) BuildingCount(ctx context.Context, gridID int64) (int, error) {
	return f.buildingCount[gridID], nil
}

func (f *fakeGridsRepo) sorted() []*domain.Grid {
	out := make([]*domain.Grid, 0, len(f.grids))
	for _, g := range f.grids {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ---- 用户 Repository 替身 ----

type fakeUsersRepo struct {
	nextID int64
	users  map[int64]*domain.User
}

func newFakeUsersRepo() *fakeUsersRepo {
	return &fakeUsersRepo{nextID: 1, users: map[int64]*domain.User{}}
}

var _ repository.UsersRepository = (*fakeUsersRepo)(nil)

func (f *fakeUsersRepo) add(u *domain.User) *domain.User {
	u.ID = f.nextID
	f.nextID++
	f.users[u.ID] = u
	return u
}

func (f *fakeUsersRepo) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	u, ok := f.users[id]
	if !ok || u.IsDeleted {
		return nil, repository.ErrNotFound
	}
	return u, nil
}

func (f *fakeUsersRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	for _, u := range f.users {
		if u.Username == username && !u.IsDeleted {
			return u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeUsersRepo) List(ctx context.Context) ([]*domain.User, error) {
	out := []*domain.User{}
	for _, u := range f.users {
		if !u.IsDeleted {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeUsersRepo) ListActive(ctx context.Context) ([]*domain.User, error) {
	all, _ := f.List(ctx)
	out := []*domain.User{}
	for _, u := range all {
		if u.IsActive {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeUsersRepo) Create(ctx context.Context, u *domain.User, roleNames []string) (int64, error) {
	for _, existing := range f.users {
		if existing.Username == u.Username && !existing.IsDeleted {
			return 0, &pq.Error{Code: "23505", Constraint: repository.ConstraintUsername}
		}
	}
	u.Roles = roleNames
	return f.add(u).ID, nil
}

func (f *fakeUsersRepo) UpdatePassword(ctx context.Context, id int64, passwordHash string, mustChange bool) error {
	u, ok := f.users[id]
	if !ok || u.IsDeleted {
		return repository.ErrNotFound
	}
	u.PasswordHash = passwordHash
	u.MustChangePassword = mustChange
	return nil
}

func (f *fakeUsersRepo) UpdateProfile(ctx context.Context, id int64, fullName, phone string, pageSize int, preferredCSS string) error {
	u, ok := f.users[id]
	if !ok || u.IsDeleted {
		return repository.ErrNotFound
	}
	u.FullName.String, u.FullName.Valid = fullName, fullName != ""
	u.Phone.String, u.Phone.Valid = phone, phone != ""
	u.PageSize = pageSize
	return nil
}

func (f *fakeUsersRepo) SetActive(ctx context.Context, id int64, active bool) error {
	u, ok := f.users[id]
	if !ok || u.IsDeleted {
		return repository.ErrNotFound
	}
	u.IsActive = active
	return nil
}

// ---- 设置 Repository 替身 ----

type fakeSettingsRepo struct {
	values map[string]string
}

func newFakeSettingsRepo() *fakeSettingsRepo {
	return &fakeSettingsRepo{values: map[string]string{}}
}

var _ repository.SettingsRepository = (*fakeSettingsRepo)(nil)

func (f *fakeSettingsRepo) Get(ctx context.Context, key, def string) (string, error) {
	if v, ok := f.values[key]; ok {
		return v, nil
	}
	return def, nil
}

func (f *fakeSettingsRepo) Set(ctx context.Context, key, value string) error {
	f.values[key] = value
	return nil
}

func (f *fakeSettingsRepo) All(ctx context.Context) (map[string]string, error) {
	return f.values, nil
}
