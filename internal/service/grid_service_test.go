package service

import (
	"context"
	"strings"
	"testing"

	"cortana-grid/internal/domain"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func gridFixture(t *testing.T) (GridService, *fakeGridsRepo) {
	t.Helper()
	grids := newFakeGridsRepo()
	return NewGridService(grids, zap.NewNop()), grids
}

func TestGridCreate_NameRules(t *testing.T) {
	svc, _ := gridFixture(t)
	admin := newTestPrincipal(t, 1, "admin", []string{domain.RoleSuperAdmin}, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, admin, "  ")
	require.EqualError(t, err, "网格名称不能为空")

	_, err = svc.Create(ctx, admin, strings.Repeat("网", 51))
	require.EqualError(t, err, "网格名称不能超过50个字符")

	// 50 个字符正好在上限内
	id, err := svc.Create(ctx, admin, strings.Repeat("网", 50))
	require.NoError(t, err)
	require.NotZero(t, id)
}

// "虚拟网格"前缀的系统内置网格对任何角色都拒绝编辑/启停
func TestGrid_VirtualGridProtected(t *testing.T) {
	svc, grids := gridFixture(t)
	g := grids.add("虚拟网格-未分配", false)
	super := newTestPrincipal(t, 1, "root", []string{domain.RoleSuperAdmin}, nil)
	ctx := context.Background()

	err := svc.Rename(ctx, super, g.ID, "新名字")
	require.EqualError(t, err, "系统内置网格不可编辑")

	_, err = svc.ToggleDisabled(ctx, super, g.ID)
	require.EqualError(t, err, "系统内置网格不可操作")

	err = svc.SetManagers(ctx, super, g.ID, []int64{2})
	require.EqualError(t, err, "系统内置网格不可操作")

	err = svc.Delete(ctx, super, g.ID)
	require.EqualError(t, err, "系统内置网格不可操作")
}

func TestGridRename_DisabledRefused(t *testing.T) {
	svc, grids := gridFixture(t)
	g := grids.add("东区", true)
	admin := newTestPrincipal(t, 1, "admin", []string{domain.RoleCommunityAdmin}, nil)

	err := svc.Rename(context.Background(), admin, g.ID, "东一区")
	require.EqualError(t, err, "已禁用的网格不可编辑")
}

// 启停是个纯开关：禁→启→禁来回切
func TestGridToggleDisabled_RoundTrip(t *testing.T) {
	svc, grids := gridFixture(t)
	g := grids.add("东区", false)
	admin := newTestPrincipal(t, 1, "admin", []string{domain.RoleCommunityAdmin}, nil)
	ctx := context.Background()

	disabled, err := svc.ToggleDisabled(ctx, admin, g.ID)
	require.NoError(t, err)
	require.True(t, disabled)

	disabled, err = svc.ToggleDisabled(ctx, admin, g.ID)
	require.NoError(t, err)
	require.False(t, disabled)
}

func TestGridDelete_RefusedWithBuildings(t *testing.T) {
	svc, grids := gridFixture(t)
	g := grids.add("东区", false)
	grids.buildingCount[g.ID] = 4
	admin := newTestPrincipal(t, 1, "admin", []string{domain.RoleCommunityAdmin}, nil)

	err := svc.Delete(context.Background(), admin, g.ID)
	require.EqualError(t, err, "该网格下仍有 4 个建筑，无法删除")
}

func TestGridNotFound(t *testing.T) {
	svc, _ := gridFixture(t)
	admin := newTestPrincipal(t, 1, "admin", []string{domain.RoleCommunityAdmin}, nil)

	_, err := svc.GetDetail(context.Background(), 99)
	require.EqualError(t, err, "网格不存在")

	err = svc.Rename(context.Background(), admin, 99, "x")
	require.EqualError(t, err, "网格不存在")
}
