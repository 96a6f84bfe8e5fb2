package repository

import (
	"context"
	"database/sql"
	"fmt"

	"cortana-grid/internal/domain"

	"github.com/lib/pq"
)

// PostgresUsersRepository 用户 Repository 实现
type PostgresUsersRepository struct {
	db *sql.DB
}

func NewPostgresUsersRepository(db *sql.DB) *PostgresUsersRepository {
	return &PostgresUsersRepository{db: db}
}

var _ UsersRepository = (*PostgresUsersRepository)(nil)

const userColumns = `
	id, username, password_hash, full_name, phone,
	is_active, must_change_password, page_size, preferred_css, is_deleted`

func scanUser(row interface{ Scan(...any) error }) (*domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.PasswordHash,
		&u.FullName,
		&u.Phone,
		&u.IsActive,
		&u.MustChangePassword,
		&u.PageSize,
		&u.PreferredCSS,
		&u.IsDeleted,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByID 按 ID 取用户（已删除的视为不存在）
func (r *PostgresUsersRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1 AND is_deleted = FALSE`, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return u, err
}

// GetByUsername 按用户名取用户（登录用）
func (r *PostgresUsersRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1 AND is_deleted = FALSE`, username))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return u, err
}

// List 全部用户 + 聚合角色名（系统设置页）
func (r *PostgresUsersRepository) List(ctx context.Context) ([]*domain.User, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT
			u.id, u.username, u.password_hash, u.full_name, u.phone,
			u.is_active, u.must_change_password, u.page_size, u.preferred_css, u.is_deleted,
			COALESCE(ARRAY_AGG(r.name) FILTER (WHERE r.name IS NOT NULL), '{}')
		FROM users u
		LEFT JOIN user_roles ur ON u.id = ur.user_id
		LEFT JOIN roles r ON ur.role_id = r.id
		WHERE u.is_deleted = FALSE
		GROUP BY u.id
		ORDER BY u.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []*domain.User{}
	for rows.Next() {
		var u domain.User
		var roles pq.StringArray
		if err := rows.Scan(
			&u.ID, &u.Username, &u.PasswordHash, &u.FullName, &u.Phone,
			&u.IsActive, &u.MustChangePassword, &u.PageSize, &u.PreferredCSS, &u.IsDeleted,
			&roles,
		); err != nil {
			return nil, err
		}
		u.Roles = roles
		users = append(users, &u)
	}
	return users, rows.Err()
}

// ListActive 启用用户列表（网格负责人候选）
func (r *PostgresUsersRepository) ListActive(ctx context.Context) ([]*domain.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE is_active = TRUE AND is_deleted = FALSE
		 ORDER BY username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []*domain.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// Create 新建用户并分配角色（单事务）
func (r *PostgresUsersRepository) Create(ctx context.Context, u *domain.User, roleNames []string) (int64, error) {
	if u.Username == "" || u.PasswordHash == "" {
		return 0, fmt.Errorf("username and password_hash are required")
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	pageSize := u.PageSize
	if pageSize <= 0 {
		pageSize = domain.DefaultPageSize
	}

	var id int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO users (username, password_hash, full_name, phone,
		                   is_active, must_change_password, page_size, preferred_css)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		u.Username, u.PasswordHash, u.FullName, u.Phone,
		u.IsActive, u.MustChangePassword, pageSize, u.PreferredCSS,
	).Scan(&id)
	if err != nil {
		return 0, err
	}

	for _, name := range roleNames {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO user_roles (user_id, role_id)
			SELECT $1, id FROM roles WHERE name = $2
			ON CONFLICT DO NOTHING`,
			id, name,
		); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

// UpdatePassword 更新密码哈希并设置强制改密标志
func (r *PostgresUsersRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string, mustChange bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET password_hash = $1, must_change_password = $2
		 WHERE id = $3 AND is_deleted = FALSE`,
		passwordHash, mustChange, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateProfile 更新个人设置
func (r *PostgresUsersRepository) UpdateProfile(ctx context.Context, id int64, fullName, phone string, pageSize int, preferredCSS string) error {
	if pageSize <= 0 {
		pageSize = domain.DefaultPageSize
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET full_name = $1, phone = $2, page_size = $3, preferred_css = $4
		 WHERE id = $5 AND is_deleted = FALSE`,
		fullName, phone, pageSize, preferredCSS, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetActive 启用/禁用
func (r *PostgresUsersRepository) SetActive(ctx context.Context, id int64, active bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET is_active = $1 WHERE id = $2 AND is_deleted = FALSE`,
		active, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
