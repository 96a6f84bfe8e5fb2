package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cortana-grid/internal/auth"
	"cortana-grid/internal/domain"
	"cortana-grid/internal/repository"

	"go.uber.org/zap"
)

// RoleWithPermissions 角色及其当前权限串
type RoleWithPermissions struct {
	Role        *domain.Role `json:"role"`
	Permissions []string     `json:"permissions"`
}

// RolePermissionService 角色权限管理
type RolePermissionService interface {
	ListRolesWithPermissions(ctx context.Context) ([]*RoleWithPermissions, error)
	SavePermissions(ctx context.Context, p *auth.Principal, roleID int64, permissions []string) error
	RestoreDefaults(ctx context.Context, p *auth.Principal, roleID int64) error
}

type rolePermissionService struct {
	roles  repository.RolesRepository
	logger *zap.Logger
}

func NewRolePermissionService(roles repository.RolesRepository, logger *zap.Logger) RolePermissionService {
	return &rolePermissionService{roles: roles, logger: logger}
}

func (s *rolePermissionService) ListRolesWithPermissions(ctx context.Context) ([]*RoleWithPermissions, error) {
	roles, err := s.roles.ListRoles(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*RoleWithPermissions, 0, len(roles))
	for _, role := range roles {
		perms, err := s.roles.PermissionsForRole(ctx, role.ID)
		if err != nil {
			return nil, err
		}
		if len(perms) == 0 {
			perms = append(perms, auth.DefaultRolePermissions[role.Name]...)
		}
		out = append(out, &RoleWithPermissions{Role: role, Permissions: perms})
	}
	return out, nil
}

// SavePermissions 覆盖保存角色权限。每个权限串先过格式校验，
// 非法串直接整单拒绝而不是静默丢弃。
func (s *rolePermissionService) SavePermissions(ctx context.Context, p *auth.Principal, roleID int64, permissions []string) error {
	role, err := s.roles.GetRole(ctx, roleID)
	if err == repository.ErrNotFound {
		return errors.New("无效的角色ID")
	}
	if err != nil {
		return err
	}

	cleaned := make([]string, 0, len(permissions))
	for _, perm := range permissions {
		perm = strings.TrimSpace(perm)
		if perm == "" {
			continue
		}
		if _, err := auth.ParseToken(perm); err != nil {
			return fmt.Errorf("权限格式非法：%s", perm)
		}
		cleaned = append(cleaned, perm)
	}

	if err := s.roles.SaveRolePermissions(ctx, roleID, cleaned); err != nil {
		return err
	}
	s.logger.Info("保存角色权限",
		zap.String("username", p.Username),
		zap.String("role", role.Name),
		zap.Int("count", len(cleaned)))
	return nil
}

// RestoreDefaults 恢复角色默认权限。超级管理员角色不允许动。
func (s *rolePermissionService) RestoreDefaults(ctx context.Context, p *auth.Principal, roleID int64) error {
	role, err := s.roles.GetRole(ctx, roleID)
	if err == repository.ErrNotFound {
		return errors.New("无效的角色ID")
	}
	if err != nil {
		return err
	}
	if role.Name == domain.RoleSuperAdmin {
		return errors.New("不允许操作超级管理员角色")
	}

	defaults := auth.DefaultRolePermissions[role.Name]
	if err := s.roles.SaveRolePermissions(ctx, roleID, defaults); err != nil {
		return err
	}
	s.logger.Info("恢复角色默认权限",
		zap.String("username", p.Username),
		zap.String("role", role.Name))
	return nil
}
