package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"cortana-grid/internal/domain"

	"github.com/lib/pq"
)

// PostgresBuildingsRepository 建筑 Repository 实现
type PostgresBuildingsRepository struct {
	db *sql.DB
}

func NewPostgresBuildingsRepository(db *sql.DB) *PostgresBuildingsRepository {
	return &PostgresBuildingsRepository{db: db}
}

var _ BuildingsRepository = (*PostgresBuildingsRepository)(nil)

const buildingColumns = `
	b.id, b.name, b.type, b.grid_id, b.is_deleted,
	b.address, b.build_year, b.households, b.buildings_count, b.approx_residents,
	b.businesses_count, b.ground_floor_shops, b.has_gas_pipeline, b.property_fee,
	b.elevators, b.indoor_parking, b.outdoor_parking,
	b.security_manager, b.security_manager_phone, b.latitude, b.longitude,
	b.developer, b.constructor, b.property_management_company, b.property_contact_phone,
	b.notes, b.owners_committee_contact, b.owners_committee_phone,
	b.owner_name, b.owner_phone, b.landlord_name, b.landlord_phone, b.commercial_type,
	g.name AS grid_name`

func scanBuilding(row interface{ Scan(...any) error }) (*domain.Building, error) {
	var b domain.Building
	err := row.Scan(
		&b.ID, &b.Name, &b.Type, &b.GridID, &b.IsDeleted,
		&b.Address, &b.BuildYear, &b.Households, &b.BuildingsCount, &b.ApproxResidents,
		&b.BusinessesCount, &b.GroundFloorShops, &b.HasGasPipeline, &b.PropertyFee,
		&b.Elevators, &b.IndoorParking, &b.OutdoorParking,
		&b.SecurityManager, &b.SecurityManagerPhone, &b.Latitude, &b.Longitude,
		&b.Developer, &b.Constructor, &b.PropertyManagementCompany, &b.PropertyContactPhone,
		&b.Notes, &b.OwnersCommitteeContact, &b.OwnersCommitteePhone,
		&b.OwnerName, &b.OwnerPhone, &b.LandlordName, &b.LandlordPhone, &b.CommercialType,
		&b.GridName,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// List 建筑列表（LEFT JOIN 网格名）
func (r *PostgresBuildingsRepository) List(ctx context.Context, filter BuildingFilter) ([]*domain.Building, error) {
	where := []string{"b.is_deleted = FALSE"}
	args := []any{}
	argIdx := 1

	if filter.Search != "" {
		where = append(where, fmt.Sprintf("(b.name ILIKE $%d OR COALESCE(b.address,'') ILIKE $%d)", argIdx, argIdx))
		args = append(args, "%"+filter.Search+"%")
		argIdx++
	}
	if filter.GridID > 0 {
		where = append(where, fmt.Sprintf("b.grid_id = $%d", argIdx))
		args = append(args, filter.GridID)
		argIdx++
	}
	if filter.Type != "" {
		where = append(where, fmt.Sprintf("b.type = $%d", argIdx))
		args = append(args, filter.Type)
		argIdx++
	}

	query := `SELECT ` + buildingColumns + `
		FROM buildings b
		LEFT JOIN grids g ON b.grid_id = g.id
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY b.id DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	buildings := []*domain.Building{}
	for rows.Next() {
		b, err := scanBuilding(rows)
		if err != nil {
			return nil, err
		}
		buildings = append(buildings, b)
	}
	return buildings, rows.Err()
}

// Get 单个建筑详情
func (r *PostgresBuildingsRepository) Get(ctx context.Context, id int64) (*domain.Building, error) {
	b, err := scanBuilding(r.db.QueryRowContext(ctx,
		`SELECT `+buildingColumns+`
		 FROM buildings b
		 LEFT JOIN grids g ON b.grid_id = g.id
		 WHERE b.id = $1 AND b.is_deleted = FALSE`, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return b, err
}

// FindByNameOrAddress 导入匹配：名称/地址包含 q 的未删除建筑，
// 名称精确相等优先排列，调用方据此做精确优先 + 多命中判歧义
func (r *PostgresBuildingsRepository) FindByNameOrAddress(ctx context.Context, q string) ([]*domain.Building, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return []*domain.Building{}, nil
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+buildingColumns+`
		 FROM buildings b
		 LEFT JOIN grids g ON b.grid_id = g.id
		 WHERE (b.name ILIKE $1 OR COALESCE(b.address,'') ILIKE $1) AND b.is_deleted = FALSE
		 ORDER BY (b.name = $2) DESC, b.id`,
		"%"+q+"%", q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	buildings := []*domain.Building{}
	for rows.Next() {
		b, err := scanBuilding(rows)
		if err != nil {
			return nil, err
		}
		buildings = append(buildings, b)
	}
	return buildings, rows.Err()
}

// Options 前端下拉框：名称 (类型) - 网格
func (r *PostgresBuildingsRepository) Options(ctx context.Context) ([]*domain.BuildingOption, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT b.id, b.name, b.type, g.name
		FROM buildings b
		LEFT JOIN grids g ON b.grid_id = g.id
		WHERE b.is_deleted = FALSE
		ORDER BY b.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	options := []*domain.BuildingOption{}
	for rows.Next() {
		var id int64
		var name, btype string
		var gridName sql.NullString
		if err := rows.Scan(&id, &name, &btype, &gridName); err != nil {
			return nil, err
		}
		grid := "无网格"
		if gridName.Valid && gridName.String != "" {
			grid = gridName.String
		}
		options = append(options, &domain.BuildingOption{
			ID:    id,
			Label: fmt.Sprintf("%s (%s) - %s", name, domain.BuildingTypeLabel(btype), grid),
		})
	}
	return options, rows.Err()
}

// Create 新建建筑。(name, grid_id) 冲突由 uq_buildings_name_grid 约束拦截，
// 调用方用 IsUniqueViolation 翻译。
func (r *PostgresBuildingsRepository) Create(ctx context.Context, b *domain.Building) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO buildings (
			name, type, grid_id, address, build_year, households, buildings_count,
			approx_residents, businesses_count, ground_floor_shops, has_gas_pipeline,
			property_fee, elevators, indoor_parking, outdoor_parking,
			security_manager, security_manager_phone, latitude, longitude,
			developer, constructor, property_management_company, property_contact_phone,
			notes, owners_committee_contact, owners_committee_phone,
			owner_name, owner_phone, landlord_name, landlord_phone, commercial_type
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30, $31
		)
		RETURNING id`,
		b.Name, b.Type, b.GridID, b.Address, b.BuildYear, b.Households, b.BuildingsCount,
		b.ApproxResidents, b.BusinessesCount, b.GroundFloorShops, b.HasGasPipeline,
		b.PropertyFee, b.Elevators, b.IndoorParking, b.OutdoorParking,
		b.SecurityManager, b.SecurityManagerPhone, b.Latitude, b.Longitude,
		b.Developer, b.Constructor, b.PropertyManagementCompany, b.PropertyContactPhone,
		b.Notes, b.OwnersCommitteeContact, b.OwnersCommitteePhone,
		b.OwnerName, b.OwnerPhone, b.LandlordName, b.LandlordPhone, b.CommercialType,
	).Scan(&id)
	return id, err
}

// Update 部分更新：只对 Valid 的字段生成 SET 子句
func (r *PostgresBuildingsRepository) Update(ctx context.Context, id int64, patch domain.BuildingPatch) error {
	updates := []string{}
	args := []any{id}
	argIdx := 2

	set := func(column string, value any) {
		updates = append(updates, fmt.Sprintf("%s = $%d", column, argIdx))
		args = append(args, value)
		argIdx++
	}

	if patch.Name.Valid {
		set("name", patch.Name.String)
	}
	if patch.Type.Valid {
		set("type", patch.Type.String)
	}
	if patch.SetGridNull {
		updates = append(updates, "grid_id = NULL")
	} else if patch.GridID.Valid {
		set("grid_id", patch.GridID.Int64)
	}
	if patch.Address.Valid {
		set("address", patch.Address)
	}
	if patch.BuildYear.Valid {
		set("build_year", patch.BuildYear)
	}
	if patch.Households.Valid {
		set("households", patch.Households)
	}
	if patch.ApproxResidents.Valid {
		set("approx_residents", patch.ApproxResidents)
	}
	if patch.HasGasPipeline.Valid {
		set("has_gas_pipeline", patch.HasGasPipeline.Bool)
	}
	if patch.PropertyFee.Valid {
		set("property_fee", patch.PropertyFee)
	}
	if patch.SecurityManager.Valid {
		set("security_manager", patch.SecurityManager)
	}
	if patch.SecurityManagerPhone.Valid {
		set("security_manager_phone", patch.SecurityManagerPhone)
	}
	if patch.Latitude.Valid {
		set("latitude", patch.Latitude)
	}
	if patch.Longitude.Valid {
		set("longitude", patch.Longitude)
	}
	if patch.Notes.Valid {
		set("notes", patch.Notes)
	}

	if len(updates) == 0 {
		return nil
	}

	query := fmt.Sprintf(
		`UPDATE buildings SET %s WHERE id = $1 AND is_deleted = FALSE`,
		strings.Join(updates, ", "))
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SoftDelete 软删除。重复删除是空操作，不报错。
func (r *PostgresBuildingsRepository) SoftDelete(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE buildings SET is_deleted = TRUE WHERE id = $1`, id)
	return err
}

// ResidentCount 建筑下未删除的现住人员数
func (r *PostgresBuildingsRepository) ResidentCount(ctx context.Context, id int64) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM persons WHERE living_building_id = $1 AND is_deleted = FALSE`, id,
	).Scan(&count)
	return count, err
}

// ListForExport 导出数据集；gridIDs 非空时按网格过滤
func (r *PostgresBuildingsRepository) ListForExport(ctx context.Context, gridIDs []int64) ([]*domain.Building, error) {
	query := `SELECT ` + buildingColumns + `
		FROM buildings b
		LEFT JOIN grids g ON b.grid_id = g.id
		WHERE b.is_deleted = FALSE`
	args := []any{}
	if len(gridIDs) > 0 {
		query += ` AND b.grid_id = ANY($1)`
		args = append(args, pq.Array(gridIDs))
	}
	query += ` ORDER BY b.id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	buildings := []*domain.Building{}
	for rows.Next() {
		b, err := scanBuilding(rows)
		if err != nil {
			return nil, err
		}
		buildings = append(buildings, b)
	}
	return buildings, rows.Err()
}
