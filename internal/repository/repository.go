package repository

import (
	"context"
	"errors"

	"cortana-grid/internal/domain"

	"github.com/lib/pq"
)

// ErrNotFound 目标行不存在（含已软删除）
var ErrNotFound = errors.New("record not found")

// 唯一约束名（见 migrations/0001_init.up.sql）
const (
	ConstraintBuildingNameGrid = "uq_buildings_name_grid"
	ConstraintPersonIDCard     = "uq_persons_id_card"
	ConstraintUsername         = "users_username_key"
)

// IsUniqueViolation 判断 err 是否指定唯一约束的冲突（lib/pq 错误码 23505）
func IsUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return constraint == "" || pqErr.Constraint == constraint
	}
	return false
}

// UsersRepository 用户账号存取
type UsersRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	List(ctx context.Context) ([]*domain.User, error)
	ListActive(ctx context.Context) ([]*domain.User, error)
	Create(ctx context.Context, u *domain.User, roleNames []string) (int64, error)
	UpdatePassword(ctx context.Context, id int64, passwordHash string, mustChange bool) error
	UpdateProfile(ctx context.Context, id int64, fullName, phone string, pageSize int, preferredCSS string) error
	SetActive(ctx context.Context, id int64, active bool) error
}

// RolesRepository 角色与权限存取。同时实现 auth.Loader。
type RolesRepository interface {
	ListRoles(ctx context.Context) ([]*domain.Role, error)
	GetRole(ctx context.Context, id int64) (*domain.Role, error)
	PermissionsForRole(ctx context.Context, roleID int64) ([]string, error)
	SaveRolePermissions(ctx context.Context, roleID int64, permissions []string) error

	// auth.Loader
	RoleNamesForUser(ctx context.Context, userID int64) ([]string, error)
	PermissionsByRole(ctx context.Context, userID int64) (map[string][]string, error)
	ManagedGridIDs(ctx context.Context, userID int64) ([]int64, error)
}

// GridsRepository 网格存取
type GridsRepository interface {
	List(ctx context.Context, includeDisabled bool) ([]*domain.Grid, error)
	ListWithManagers(ctx context.Context) ([]*domain.GridListItem, error)
	Get(ctx context.Context, id int64) (*domain.Grid, error)
	GetDetail(ctx context.Context, id int64) (*domain.GridDetail, error)
	Create(ctx context.Context, name string) (int64, error)
	Rename(ctx context.Context, id int64, name string) error
	// SetManagers 整体替换负责人（一个事务内先删后插）
	SetManagers(ctx context.Context, gridID int64, userIDs []int64) error
	// ToggleDisabled 启用⇄禁用，返回切换后的禁用状态
	ToggleDisabled(ctx context.Context, id int64) (bool, error)
	BuildingCount(ctx context.Context, gridID int64) (int, error)
	Delete(ctx context.Context, id int64) error
}

// BuildingFilter 建筑列表过滤
type BuildingFilter struct {
	Search string
	GridID int64
	Type   string
}

// BuildingsRepository 建筑存取
type BuildingsRepository interface {
	List(ctx context.Context, filter BuildingFilter) ([]*domain.Building, error)
	Get(ctx context.Context, id int64) (*domain.Building, error)
	// FindByNameOrAddress 导入匹配：返回名称或地址命中 q 的全部未删除建筑，
	// 名称精确相等的排在最前
	FindByNameOrAddress(ctx context.Context, q string) ([]*domain.Building, error)
	Options(ctx context.Context) ([]*domain.BuildingOption, error)
	Create(ctx context.Context, b *domain.Building) (int64, error)
	Update(ctx context.Context, id int64, patch domain.BuildingPatch) error
	SoftDelete(ctx context.Context, id int64) error
	ResidentCount(ctx context.Context, id int64) (int, error)
	ListForExport(ctx context.Context, gridIDs []int64) ([]*domain.Building, error)
}

// PersonFilter 人员列表过滤
type PersonFilter struct {
	Name             string
	IDCard           string
	Building         string
	Phone            string
	PersonType       string
	HouseholdAddress string
	FamilyID         string
}

// PersonsRepository 人员存取
type PersonsRepository interface {
	List(ctx context.Context, filter PersonFilter, page, size int) ([]*domain.Person, int, error)
	Get(ctx context.Context, id int64) (*domain.Person, error)
	Create(ctx context.Context, p *domain.Person) (int64, error)
	Update(ctx context.Context, id int64, patch domain.PersonPatch) error
	SoftDelete(ctx context.Context, id int64) error
	// LivingBuildingID 网格隔离检查用：返回人员现住建筑 ID（可能为 0）
	LivingBuildingID(ctx context.Context, personID int64) (int64, error)
	ListForExport(ctx context.Context, gridIDs []int64) ([]*domain.Person, error)
	OverviewStats(ctx context.Context) (*domain.OverviewStats, error)
}

// SettingsRepository 系统设置键值存取
type SettingsRepository interface {
	Get(ctx context.Context, key, def string) (string, error)
	Set(ctx context.Context, key, value string) error
	All(ctx context.Context) (map[string]string, error)
}
