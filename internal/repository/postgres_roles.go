package repository

import (
	"context"
	"database/sql"
	"strings"

	"cortana-grid/internal/domain"
)

// PostgresRolesRepository 角色/权限 Repository 实现。
// 同时充当 auth.Loader：Principal 延迟加载走这里。
type PostgresRolesRepository struct {
	db *sql.DB
}

func NewPostgresRolesRepository(db *sql.DB) *PostgresRolesRepository {
	return &PostgresRolesRepository{db: db}
}

var _ RolesRepository = (*PostgresRolesRepository)(nil)

// ListRoles 全部角色
func (r *PostgresRolesRepository) ListRoles(ctx context.Context) ([]*domain.Role, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, description FROM roles ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	roles := []*domain.Role{}
	for rows.Next() {
		var role domain.Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Description); err != nil {
			return nil, err
		}
		roles = append(roles, &role)
	}
	return roles, rows.Err()
}

// GetRole 按 ID 取角色
func (r *PostgresRolesRepository) GetRole(ctx context.Context, id int64) (*domain.Role, error) {
	var role domain.Role
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, description FROM roles WHERE id = $1`, id,
	).Scan(&role.ID, &role.Name, &role.Description)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &role, nil
}

// PermissionsForRole 角色的权限串列表
func (r *PostgresRolesRepository) PermissionsForRole(ctx context.Context, roleID int64) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT permission FROM role_permissions WHERE role_id = $1 ORDER BY permission`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	perms := []string{}
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

// SaveRolePermissions 覆盖保存角色权限：一个事务内先删后插
func (r *PostgresRolesRepository) SaveRolePermissions(ctx context.Context, roleID int64, permissions []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM role_permissions WHERE role_id = $1`, roleID); err != nil {
		return err
	}
	for _, p := range permissions {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO role_permissions (role_id, permission) VALUES ($1, $2)
			 ON CONFLICT DO NOTHING`,
			roleID, p); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// RoleNamesForUser 用户的角色名集合
func (r *PostgresRolesRepository) RoleNamesForUser(ctx context.Context, userID int64) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT r.name
		FROM roles r
		JOIN user_roles ur ON r.id = ur.role_id
		WHERE ur.user_id = $1
		ORDER BY r.name`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// PermissionsByRole 用户各角色在库中配置的权限串，按角色名分组。
// 一条权限行都没有的角色不会出现在结果里——默认权限回退按角色单独进行，
// 不能被其他已配置角色的权限行顶掉。
func (r *PostgresRolesRepository) PermissionsByRole(ctx context.Context, userID int64) (map[string][]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT ro.name, rp.permission
		FROM role_permissions rp
		JOIN roles ro ON ro.id = rp.role_id
		JOIN user_roles ur ON ur.role_id = rp.role_id
		WHERE ur.user_id = $1
		ORDER BY ro.name, rp.permission`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byRole := map[string][]string{}
	for rows.Next() {
		var role, perm string
		if err := rows.Scan(&role, &perm); err != nil {
			return nil, err
		}
		byRole[role] = append(byRole[role], perm)
	}
	return byRole, rows.Err()
}

// ManagedGridIDs 用户负责的网格 ID（禁用网格不计入）
func (r *PostgresRolesRepository) ManagedGridIDs(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT g.id
		FROM grids g
		JOIN user_grids ug ON g.id = ug.grid_id
		WHERE ug.user_id = $1 AND g.is_disabled = FALSE
		ORDER BY g.id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
