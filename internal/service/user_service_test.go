package service

import (
	"context"
	"testing"

	"cortana-grid/internal/domain"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// 测试里用直通哈希，bcrypt 成本没必要
func plainHasher(password string) (string, error) {
	return "hash:" + password, nil
}

func userFixture(t *testing.T) (UserService, *fakeUsersRepo) {
	t.Helper()
	users := newFakeUsersRepo()
	return NewUserService(users, plainHasher, zap.NewNop()), users
}

func TestUserCreate_NoSuperAdminViaUI(t *testing.T) {
	svc, _ := userFixture(t)
	admin := newTestPrincipal(t, 1, "admin", []string{domain.RoleSuperAdmin}, nil)

	_, err := svc.Create(context.Background(), admin, "hacker", "", "", []string{domain.RoleSuperAdmin})
	require.EqualError(t, err, "不允许通过此界面分配超级管理员角色")
}

func TestUserCreate_DuplicateUsername(t *testing.T) {
	svc, _ := userFixture(t)
	admin := newTestPrincipal(t, 1, "admin", []string{domain.RoleSuperAdmin}, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, admin, "gw01", "王五", "", []string{domain.RoleGridUser})
	require.NoError(t, err)

	_, err = svc.Create(ctx, admin, "gw01", "", "", []string{domain.RoleGridUser})
	require.EqualError(t, err, "用户名已存在，请选择其他用户名")
}

func TestUserCreate_MustChangePassword(t *testing.T) {
	svc, users := userFixture(t)
	admin := newTestPrincipal(t, 1, "admin", []string{domain.RoleSuperAdmin}, nil)

	msg, err := svc.Create(context.Background(), admin, "gw01", "", "", []string{domain.RoleGridUser})
	require.NoError(t, err)
	require.Contains(t, msg, DefaultUserPassword)

	u, err := users.GetByUsername(context.Background(), "gw01")
	require.NoError(t, err)
	require.True(t, u.MustChangePassword)
	require.True(t, u.IsActive)
}

func TestToggleActive_NeverSelf(t *testing.T) {
	svc, users := userFixture(t)
	users.add(&domain.User{Username: "admin", IsActive: true})
	admin := newTestPrincipal(t, 1, "admin", []string{domain.RoleSuperAdmin}, nil)

	_, err := svc.ToggleActive(context.Background(), admin, 1)
	require.EqualError(t, err, "不能禁用或启用自己的账户")
}

func TestToggleActive_FlipsState(t *testing.T) {
	svc, users := userFixture(t)
	users.add(&domain.User{Username: "admin", IsActive: true})
	target := users.add(&domain.User{Username: "gw01", IsActive: true})
	admin := newTestPrincipal(t, 1, "admin", []string{domain.RoleSuperAdmin}, nil)

	msg, err := svc.ToggleActive(context.Background(), admin, target.ID)
	require.NoError(t, err)
	require.Contains(t, msg, "已禁用")
	require.False(t, users.users[target.ID].IsActive)

	msg, err = svc.ToggleActive(context.Background(), admin, target.ID)
	require.NoError(t, err)
	require.Contains(t, msg, "已启用")
	require.True(t, users.users[target.ID].IsActive)
}

func TestResetPassword_RandomAndForced(t *testing.T) {
	svc, users := userFixture(t)
	users.add(&domain.User{Username: "admin", IsActive: true})
	target := users.add(&domain.User{Username: "gw01", IsActive: true, PasswordHash: "hash:old"})
	admin := newTestPrincipal(t, 1, "admin", []string{domain.RoleSuperAdmin}, nil)

	password, err := svc.ResetPassword(context.Background(), admin, target.ID)
	require.NoError(t, err)
	require.Len(t, password, 12)
	require.Equal(t, "hash:"+password, users.users[target.ID].PasswordHash)
	require.True(t, users.users[target.ID].MustChangePassword)

	// 自己的密码走修改密码流程
	_, err = svc.ResetPassword(context.Background(), admin, 1)
	require.Error(t, err)
}
