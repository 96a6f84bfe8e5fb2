package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"cortana-grid/internal/domain"

	"github.com/lib/pq"
)

// PostgresPersonsRepository 人员 Repository 实现
type PostgresPersonsRepository struct {
	db *sql.DB
}

func NewPostgresPersonsRepository(db *sql.DB) *PostgresPersonsRepository {
	return &PostgresPersonsRepository{db: db}
}

var _ PersonsRepository = (*PostgresPersonsRepository)(nil)

const personColumns = `
	p.id, p.name, p.id_card, p.unique_id, p.passport, p.other_id_type,
	p.gender, p.birth_date, p.phones, p.person_type, p.relationship,
	p.living_building_id, p.address_detail,
	p.household_building_id, p.household_address, p.family_id, p.household_number, p.household_entry_date,
	p.is_separated, p.current_residence, p.is_migrated_out, p.household_exit_date, p.migration_destination,
	p.is_deceased, p.death_date,
	p.nationality, p.political_status, p.marital_status, p.education, p.work_study, p.health, p.notes,
	p.is_key_person, p.key_categories, p.is_deleted,
	b.name AS building_name, b.type AS building_type, g.name AS grid_name,
	hb.name AS household_building_name`

const personJoins = `
	FROM persons p
	LEFT JOIN buildings b ON p.living_building_id = b.id AND b.is_deleted = FALSE
	LEFT JOIN grids g ON b.grid_id = g.id
	LEFT JOIN buildings hb ON p.household_building_id = hb.id AND hb.is_deleted = FALSE`

func scanPerson(row interface{ Scan(...any) error }) (*domain.Person, error) {
	var p domain.Person
	err := row.Scan(
		&p.ID, &p.Name, &p.IDCard, &p.UniqueID, &p.Passport, &p.OtherIDType,
		&p.Gender, &p.BirthDate, &p.Phones, &p.PersonType, &p.Relationship,
		&p.LivingBuildingID, &p.AddressDetail,
		&p.HouseholdBuildingID, &p.HouseholdAddress, &p.FamilyID, &p.HouseholdNumber, &p.HouseholdEntryDate,
		&p.IsSeparated, &p.CurrentResidence, &p.IsMigratedOut, &p.HouseholdExitDate, &p.MigrationDestination,
		&p.IsDeceased, &p.DeathDate,
		&p.Nationality, &p.PoliticalStatus, &p.MaritalStatus, &p.Education, &p.WorkStudy, &p.Health, &p.Notes,
		&p.IsKeyPerson, &p.KeyCategories, &p.IsDeleted,
		&p.LivingBuildingName, &p.BuildingType, &p.GridName,
		&p.HouseholdBuildingName,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// buildPersonWhere 组装过滤条件，返回 WHERE 片段与参数
func buildPersonWhere(filter PersonFilter) ([]string, []any) {
	where := []string{"p.is_deleted = FALSE"}
	args := []any{}

	like := func(expr, value string) {
		where = append(where, fmt.Sprintf(expr, len(args)+1))
		args = append(args, "%"+value+"%")
	}

	if filter.Name != "" {
		like("p.name ILIKE $%d", filter.Name)
	}
	if filter.IDCard != "" {
		like("COALESCE(p.id_card,'') ILIKE $%d", filter.IDCard)
	}
	if filter.Building != "" {
		like("(COALESCE(b.name,'') ILIKE $%[1]d OR COALESCE(p.address_detail,'') ILIKE $%[1]d)", filter.Building)
	}
	if filter.Phone != "" {
		like("COALESCE(p.phones,'') ILIKE $%d", filter.Phone)
	}
	if filter.PersonType != "" {
		where = append(where, fmt.Sprintf("p.person_type = $%d", len(args)+1))
		args = append(args, filter.PersonType)
	}
	if filter.HouseholdAddress != "" {
		like("COALESCE(p.household_address,'') ILIKE $%d", filter.HouseholdAddress)
	}
	if filter.FamilyID != "" {
		where = append(where, fmt.Sprintf("p.family_id = $%d", len(args)+1))
		args = append(args, filter.FamilyID)
	}
	return where, args
}

// List 人员分页列表，返回当前页数据与总数
func (r *PostgresPersonsRepository) List(ctx context.Context, filter PersonFilter, page, size int) ([]*domain.Person, int, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = domain.DefaultPageSize
	}

	where, args := buildPersonWhere(filter)
	clause := strings.Join(where, " AND ")

	var total int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*)`+personJoins+` WHERE `+clause, args...,
	).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(
		`SELECT %s %s WHERE %s ORDER BY p.id DESC LIMIT $%d OFFSET $%d`,
		personColumns, personJoins, clause, len(args)+1, len(args)+2)
	args = append(args, size, (page-1)*size)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	persons := []*domain.Person{}
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, 0, err
		}
		persons = append(persons, p)
	}
	return persons, total, rows.Err()
}

// Get 单个人员详情
func (r *PostgresPersonsRepository) Get(ctx context.Context, id int64) (*domain.Person, error) {
	p, err := scanPerson(r.db.QueryRowContext(ctx,
		`SELECT `+personColumns+personJoins+` WHERE p.id = $1 AND p.is_deleted = FALSE`, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return p, err
}

// Create 新建人员。id_card 冲突由 uq_persons_id_card 约束拦截。
func (r *PostgresPersonsRepository) Create(ctx context.Context, p *domain.Person) (int64, error) {
	personType := p.PersonType
	if personType == "" {
		personType = domain.DefaultPersonType
	}
	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO persons (
			name, id_card, unique_id, passport, other_id_type,
			gender, birth_date, phones, person_type, relationship,
			living_building_id, address_detail,
			household_building_id, household_address, family_id, household_number, household_entry_date,
			is_separated, current_residence, is_migrated_out, household_exit_date, migration_destination,
			is_deceased, death_date,
			nationality, political_status, marital_status, education, work_study, health, notes,
			is_key_person, key_categories
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19, $20,
			$21, $22, $23, $24, $25, $26, $27, $28, $29, $30, $31, $32, $33
		)
		RETURNING id`,
		p.Name, p.IDCard, p.UniqueID, p.Passport, p.OtherIDType,
		p.Gender, p.BirthDate, p.Phones, personType, p.Relationship,
		p.LivingBuildingID, p.AddressDetail,
		p.HouseholdBuildingID, p.HouseholdAddress, p.FamilyID, p.HouseholdNumber, p.HouseholdEntryDate,
		p.IsSeparated, p.CurrentResidence, p.IsMigratedOut, p.HouseholdExitDate, p.MigrationDestination,
		p.IsDeceased, p.DeathDate,
		p.Nationality, p.PoliticalStatus, p.MaritalStatus, p.Education, p.WorkStudy, p.Health, p.Notes,
		p.IsKeyPerson, p.KeyCategories,
	).Scan(&id)
	return id, err
}

// Update 部分更新：只对 Valid 的字段生成 SET 子句
func (r *PostgresPersonsRepository) Update(ctx context.Context, id int64, patch domain.PersonPatch) error {
	updates := []string{}
	args := []any{id}
	argIdx := 2

	set := func(column string, value any) {
		updates = append(updates, fmt.Sprintf("%s = $%d", column, argIdx))
		args = append(args, value)
		argIdx++
	}

	strFields := []struct {
		column string
		value  sql.NullString
	}{
		{"name", patch.Name},
		{"id_card", patch.IDCard},
		{"unique_id", patch.UniqueID},
		{"passport", patch.Passport},
		{"other_id_type", patch.OtherIDType},
		{"gender", patch.Gender},
		{"birth_date", patch.BirthDate},
		{"phones", patch.Phones},
		{"person_type", patch.PersonType},
		{"relationship", patch.Relationship},
		{"address_detail", patch.AddressDetail},
		{"household_address", patch.HouseholdAddress},
		{"family_id", patch.FamilyID},
		{"household_number", patch.HouseholdNumber},
		{"household_entry_date", patch.HouseholdEntryDate},
		{"current_residence", patch.CurrentResidence},
		{"household_exit_date", patch.HouseholdExitDate},
		{"migration_destination", patch.MigrationDestination},
		{"death_date", patch.DeathDate},
		{"nationality", patch.Nationality},
		{"political_status", patch.PoliticalStatus},
		{"marital_status", patch.MaritalStatus},
		{"education", patch.Education},
		{"work_study", patch.WorkStudy},
		{"health", patch.Health},
		{"notes", patch.Notes},
		{"key_categories", patch.KeyCategories},
	}
	for _, f := range strFields {
		if f.value.Valid {
			if f.column == "name" && f.value.String == "" {
				continue // 姓名不允许清空
			}
			set(f.column, f.value.String)
		}
	}

	if patch.LivingBuildingID.Valid {
		set("living_building_id", patch.LivingBuildingID.Int64)
	}
	if patch.HouseholdBuildingID.Valid {
		set("household_building_id", patch.HouseholdBuildingID.Int64)
	}

	boolFields := []struct {
		column string
		value  sql.NullBool
	}{
		{"is_separated", patch.IsSeparated},
		{"is_migrated_out", patch.IsMigratedOut},
		{"is_deceased", patch.IsDeceased},
		{"is_key_person", patch.IsKeyPerson},
	}
	for _, f := range boolFields {
		if f.value.Valid {
			set(f.column, f.value.Bool)
		}
	}

	if len(updates) == 0 {
		return nil
	}

	query := fmt.Sprintf(
		`UPDATE persons SET %s WHERE id = $1 AND is_deleted = FALSE`,
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
func (r *PostgresPersonsRepository) SoftDelete(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE persons SET is_deleted = TRUE WHERE id = $1`, id)
	return err
}

// LivingBuildingID 网格隔离检查用：人员的现住建筑 ID，未填返回 0
func (r *PostgresPersonsRepository) LivingBuildingID(ctx context.Context, personID int64) (int64, error) {
	var buildingID sql.NullInt64
	err := r.db.QueryRowContext(ctx,
		`SELECT living_building_id FROM persons WHERE id = $1 AND is_deleted = FALSE`, personID,
	).Scan(&buildingID)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	return buildingID.Int64, nil
}

// ListForExport 导出数据集；gridIDs 非空时限定现住建筑所属网格
func (r *PostgresPersonsRepository) ListForExport(ctx context.Context, gridIDs []int64) ([]*domain.Person, error) {
	query := `SELECT ` + personColumns + personJoins + ` WHERE p.is_deleted = FALSE`
	args := []any{}
	if len(gridIDs) > 0 {
		query += ` AND b.grid_id = ANY($1)`
		args = append(args, pq.Array(gridIDs))
	}
	query += ` ORDER BY p.id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	persons := []*domain.Person{}
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, err
		}
		persons = append(persons, p)
	}
	return persons, rows.Err()
}

// OverviewStats 首页概览：人员/建筑/网格/重点人员统计
func (r *PostgresPersonsRepository) OverviewStats(ctx context.Context) (*domain.OverviewStats, error) {
	var stats domain.OverviewStats
	err := r.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM persons WHERE is_deleted = FALSE),
			(SELECT COUNT(*) FROM buildings WHERE is_deleted = FALSE),
			(SELECT COUNT(*) FROM grids WHERE is_disabled = FALSE),
			(SELECT COUNT(*) FROM persons WHERE is_deleted = FALSE AND is_key_person = TRUE)`,
	).Scan(&stats.TotalPersons, &stats.TotalBuildings, &stats.TotalGrids, &stats.KeyPersons)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}
