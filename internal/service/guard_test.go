package service

import (
	"context"
	"database/sql"
	"testing"

	"cortana-grid/internal/domain"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func guardFixture(t *testing.T) (*Guard, *fakeBuildingsRepo, *fakePersonsRepo) {
	t.Helper()
	buildings := newFakeBuildingsRepo()
	persons := newFakePersonsRepo()
	return NewGuard(buildings, persons, zap.NewNop()), buildings, persons
}

func TestAuthorizeWrite_AdminBypass(t *testing.T) {
	guard, buildings, _ := guardFixture(t)
	b := buildings.add(&domain.Building{Name: "望江苑", Type: domain.BuildingResidentialComplex,
		GridID: sql.NullInt64{Int64: 7, Valid: true}})

	admin := newTestPrincipal(t, 1, "admin", []string{domain.RoleCommunityAdmin}, nil)
	ok, err := guard.AuthorizeWrite(context.Background(), admin, GuardTarget{BuildingID: b.ID})
	require.NoError(t, err)
	require.True(t, ok)
}

func TestAuthorizeWrite_GridUserOwnGrid(t *testing.T) {
	guard, buildings, _ := guardFixture(t)
	b := buildings.add(&domain.Building{Name: "望江苑", Type: domain.BuildingResidentialComplex,
		GridID: sql.NullInt64{Int64: 7, Valid: true}})

	user := newTestPrincipal(t, 2, "gw01", []string{domain.RoleGridUser}, []int64{7})
	ok, err := guard.AuthorizeWrite(context.Background(), user, GuardTarget{BuildingID: b.ID})
	require.NoError(t, err)
	require.True(t, ok)
}

// 网格用户写非负责网格下的建筑必须被拦下
func TestAuthorizeWrite_GridUserForeignGrid(t *testing.T) {
	guard, buildings, _ := guardFixture(t)
	b := buildings.add(&domain.Building{Name: "望江苑", Type: domain.BuildingResidentialComplex,
		GridID: sql.NullInt64{Int64: 9, Valid: true}})

	user := newTestPrincipal(t, 2, "gw01", []string{domain.RoleGridUser}, []int64{7})
	ok, err := guard.AuthorizeWrite(context.Background(), user, GuardTarget{BuildingID: b.ID})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestAuthorizeWrite_NoManagedGridsDenied(t *testing.T) {
	guard, _, _ := guardFixture(t)
	user := newTestPrincipal(t, 2, "gw01", []string{domain.RoleGridUser}, nil)
	ok, err := guard.AuthorizeWrite(context.Background(), user, GuardTarget{BuildingID: 1})
	require.NoError(t, err)
	require.False(t, ok)
}

// 通过人员间接定位建筑：现住建筑的网格决定结果
func TestAuthorizeWrite_ResolvesViaPerson(t *testing.T) {
	guard, buildings, persons := guardFixture(t)
	b := buildings.add(&domain.Building{Name: "望江苑", Type: domain.BuildingResidentialComplex,
		GridID: sql.NullInt64{Int64: 9, Valid: true}})
	pid, err := persons.Create(context.Background(), &domain.Person{
		Name:             "张三",
		PersonType:       domain.DefaultPersonType,
		LivingBuildingID: sql.NullInt64{Int64: b.ID, Valid: true},
	})
	require.NoError(t, err)

	user := newTestPrincipal(t, 2, "gw01", []string{domain.RoleGridUser}, []int64{7})
	ok, err := guard.AuthorizeWrite(context.Background(), user, GuardTarget{PersonID: pid})
	require.NoError(t, err)
	require.False(t, ok)
}

// 定位不到建筑 → 网格检查不适用，放行
func TestAuthorizeWrite_UnresolvableBuildingAllowed(t *testing.T) {
	guard, _, _ := guardFixture(t)
	user := newTestPrincipal(t, 2, "gw01", []string{domain.RoleGridUser}, []int64{7})

	ok, err := guard.AuthorizeWrite(context.Background(), user, GuardTarget{})
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = guard.AuthorizeWrite(context.Background(), user, GuardTarget{BuildingID: 999})
	require.NoError(t, err)
	require.True(t, ok)
}

// 导入逐行检查比写检查严：建筑必须真实存在且网格在负责集合内
func TestAllowsBuilding(t *testing.T) {
	guard, buildings, _ := guardFixture(t)
	mine := buildings.add(&domain.Building{Name: "甲", Type: domain.BuildingResidentialComplex,
		GridID: sql.NullInt64{Int64: 7, Valid: true}})
	other := buildings.add(&domain.Building{Name: "乙", Type: domain.BuildingResidentialComplex,
		GridID: sql.NullInt64{Int64: 9, Valid: true}})
	noGrid := buildings.add(&domain.Building{Name: "丙", Type: domain.BuildingResidentialComplex})

	user := newTestPrincipal(t, 2, "gw01", []string{domain.RoleGridUser}, []int64{7})
	ctx := context.Background()

	require.True(t, guard.AllowsBuilding(ctx, user, mine.ID))
	require.False(t, guard.AllowsBuilding(ctx, user, other.ID))
	require.False(t, guard.AllowsBuilding(ctx, user, noGrid.ID))
	require.False(t, guard.AllowsBuilding(ctx, user, 999))

	admin := newTestPrincipal(t, 1, "admin", []string{domain.RoleSuperAdmin}, nil)
	require.True(t, guard.AllowsBuilding(ctx, admin, other.ID))
}
