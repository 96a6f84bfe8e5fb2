package service

import (
	"context"
	"database/sql"
	"testing"

	"cortana-grid/internal/domain"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func buildingFixture(t *testing.T) (BuildingService, *fakeBuildingsRepo, *fakeGridsRepo) {
	t.Helper()
	buildings := newFakeBuildingsRepo()
	grids := newFakeGridsRepo()
	return NewBuildingService(buildings, grids, zap.NewNop()), buildings, grids
}

func TestBuildingCreate_RequiresNameAndType(t *testing.T) {
	svc, _, _ := buildingFixture(t)
	admin := newTestPrincipal(t, 1, "admin", []string{domain.RoleSuperAdmin}, nil)

	_, err := svc.Create(context.Background(), admin, &domain.Building{Name: "", Type: domain.BuildingCommercial})
	require.EqualError(t, err, "建筑名称和类型不能为空")

	_, err = svc.Create(context.Background(), admin, &domain.Building{Name: "望江苑", Type: "castle"})
	require.ErrorContains(t, err, "未知建筑类型")
}

func TestBuildingCreate_GridMustExist(t *testing.T) {
	svc, _, _ := buildingFixture(t)
	admin := newTestPrincipal(t, 1, "admin", []string{domain.RoleSuperAdmin}, nil)

	_, err := svc.Create(context.Background(), admin, &domain.Building{
		Name:   "望江苑",
		Type:   domain.BuildingResidentialComplex,
		GridID: sql.NullInt64{Int64: 42, Valid: true},
	})
	require.EqualError(t, err, "选择的网格不存在")
}

// 同网格下同名建筑：唯一索引冲突翻译成用户可读消息
func TestBuildingCreate_DuplicateNameInGrid(t *testing.T) {
	svc, _, grids := buildingFixture(t)
	g := grids.add("第一网格", false)
	admin := newTestPrincipal(t, 1, "admin", []string{domain.RoleSuperAdmin}, nil)

	b := &domain.Building{Name: "望江苑", Type: domain.BuildingResidentialComplex,
		GridID: sql.NullInt64{Int64: g.ID, Valid: true}}
	_, err := svc.Create(context.Background(), admin, b)
	require.NoError(t, err)

	dup := &domain.Building{Name: "望江苑", Type: domain.BuildingCommercial,
		GridID: sql.NullInt64{Int64: g.ID, Valid: true}}
	_, err = svc.Create(context.Background(), admin, dup)
	require.EqualError(t, err, "该网格下已存在同名建筑 '望江苑'")
}

func TestBuildingDelete_RefusedWithResidents(t *testing.T) {
	svc, buildings, _ := buildingFixture(t)
	b := buildings.add(&domain.Building{Name: "望江苑", Type: domain.BuildingResidentialComplex})
	buildings.residents[b.ID] = 3
	admin := newTestPrincipal(t, 1, "admin", []string{domain.RoleSuperAdmin}, nil)

	err := svc.Delete(context.Background(), admin, b.ID)
	require.EqualError(t, err, "该建筑下仍有 3 名人员居住，无法删除")

	got, err := svc.Get(context.Background(), b.ID)
	require.NoError(t, err)
	require.False(t, got.IsDeleted)
}

// 软删除单向幂等：重复删除同样成功
func TestBuildingDelete_Idempotent(t *testing.T) {
	svc, buildings, _ := buildingFixture(t)
	b := buildings.add(&domain.Building{Name: "旧仓库", Type: domain.BuildingOthers})
	admin := newTestPrincipal(t, 1, "admin", []string{domain.RoleSuperAdmin}, nil)

	require.NoError(t, svc.Delete(context.Background(), admin, b.ID))
	require.NoError(t, svc.Delete(context.Background(), admin, b.ID))

	_, err := svc.Get(context.Background(), b.ID)
	require.EqualError(t, err, "建筑记录不存在")
}

func TestBuildingUpdate_ClearGrid(t *testing.T) {
	svc, buildings, _ := buildingFixture(t)
	b := buildings.add(&domain.Building{Name: "望江苑", Type: domain.BuildingResidentialComplex,
		GridID: sql.NullInt64{Int64: 7, Valid: true}})
	admin := newTestPrincipal(t, 1, "admin", []string{domain.RoleSuperAdmin}, nil)

	err := svc.Update(context.Background(), admin, b.ID, domain.BuildingPatch{SetGridNull: true})
	require.NoError(t, err)
	require.False(t, buildings.buildings[b.ID].GridID.Valid)
}
