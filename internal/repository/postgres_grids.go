package repository

import (
	"context"
	"database/sql"

	"cortana-grid/internal/domain"

	"github.com/lib/pq"
)

// PostgresGridsRepository 网格 Repository 实现
type PostgresGridsRepository struct {
	db *sql.DB
}

func NewPostgresGridsRepository(db *sql.DB) *PostgresGridsRepository {
	return &PostgresGridsRepository{db: db}
}

var _ GridsRepository = (*PostgresGridsRepository)(nil)

// List 网格列表；includeDisabled 为 false 时只返回启用中的
func (r *PostgresGridsRepository) List(ctx context.Context, includeDisabled bool) ([]*domain.Grid, error) {
	query := `SELECT id, name, is_disabled FROM grids`
	if !includeDisabled {
		query += ` WHERE is_disabled = FALSE`
	}
	query += ` ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	grids := []*domain.Grid{}
	for rows.Next() {
		var g domain.Grid
		if err := rows.Scan(&g.ID, &g.Name, &g.Disabled); err != nil {
			return nil, err
		}
		grids = append(grids, &g)
	}
	return grids, rows.Err()
}

// ListWithManagers 管理页列表：负责人显示串（真实姓名优先）+ 负责人 ID
func (r *PostgresGridsRepository) ListWithManagers(ctx context.Context) ([]*domain.GridListItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT
			g.id, g.name, g.is_disabled,
			COALESCE(STRING_AGG(COALESCE(NULLIF(u.full_name, ''), u.username), '、' ORDER BY u.id), ''),
			COALESCE(ARRAY_AGG(u.id ORDER BY u.id) FILTER (WHERE u.id IS NOT NULL), '{}')
		FROM grids g
		LEFT JOIN user_grids ug ON g.id = ug.grid_id
		LEFT JOIN users u ON ug.user_id = u.id AND u.is_deleted = FALSE
		GROUP BY g.id
		ORDER BY g.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []*domain.GridListItem{}
	for rows.Next() {
		var item domain.GridListItem
		var ids pq.Int64Array
		if err := rows.Scan(&item.ID, &item.Name, &item.Disabled, &item.Managers, &ids); err != nil {
			return nil, err
		}
		item.ManagerIDs = ids
		items = append(items, &item)
	}
	return items, rows.Err()
}

// Get 网格基本信息（禁用的也返回，调用方自行判断）
func (r *PostgresGridsRepository) Get(ctx context.Context, id int64) (*domain.Grid, error) {
	var g domain.Grid
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, is_disabled FROM grids WHERE id = $1`, id,
	).Scan(&g.ID, &g.Name, &g.Disabled)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// GetDetail 网格详情：负责人 + 建筑/人员统计
func (r *PostgresGridsRepository) GetDetail(ctx context.Context, id int64) (*domain.GridDetail, error) {
	g, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	detail := &domain.GridDetail{Grid: *g}

	err = r.db.QueryRowContext(ctx, `
		SELECT COALESCE(STRING_AGG(COALESCE(NULLIF(u.full_name, ''), u.username), '、' ORDER BY u.id), '')
		FROM user_grids ug
		JOIN users u ON ug.user_id = u.id AND u.is_deleted = FALSE
		WHERE ug.grid_id = $1`, id,
	).Scan(&detail.Managers)
	if err != nil {
		return nil, err
	}

	err = r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM buildings WHERE grid_id = $1 AND is_deleted = FALSE`, id,
	).Scan(&detail.BuildingCount)
	if err != nil {
		return nil, err
	}

	err = r.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM persons p
		JOIN buildings b ON p.living_building_id = b.id
		WHERE b.grid_id = $1 AND p.is_deleted = FALSE AND b.is_deleted = FALSE`, id,
	).Scan(&detail.PersonCount)
	if err != nil {
		return nil, err
	}
	return detail, nil
}

// Create 新建网格
func (r *PostgresGridsRepository) Create(ctx context.Context, name string) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO grids (name) VALUES ($1) RETURNING id`, name,
	).Scan(&id)
	return id, err
}

// Rename 更新网格名称
func (r *PostgresGridsRepository) Rename(ctx context.Context, id int64, name string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE grids SET name = $1 WHERE id = $2`, name, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetManagers 整体替换网格负责人
func (r *PostgresGridsRepository) SetManagers(ctx context.Context, gridID int64, userIDs []int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM user_grids WHERE grid_id = $1`, gridID); err != nil {
		return err
	}
	for _, uid := range userIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO user_grids (user_id, grid_id) VALUES ($1, $2)
			 ON CONFLICT DO NOTHING`,
			uid, gridID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ToggleDisabled 启用⇄禁用切换，返回切换后的禁用状态
func (r *PostgresGridsRepository) ToggleDisabled(ctx context.Context, id int64) (bool, error) {
	var disabled bool
	err := r.db.QueryRowContext(ctx,
		`UPDATE grids SET is_disabled = NOT is_disabled WHERE id = $1 RETURNING is_disabled`, id,
	).Scan(&disabled)
	if err == sql.ErrNoRows {
		return false, ErrNotFound
	}
	return disabled, err
}

// Delete 物理删除网格；user_grids 关联由外键级联清理
func (r *PostgresGridsRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM grids WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// BuildingCount 网格下未删除建筑数
func (r *PostgresGridsRepository) BuildingCount(ctx context.Context, gridID int64) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM buildings WHERE grid_id = $1 AND is_deleted = FALSE`, gridID,
	).Scan(&count)
	return count, err
}
