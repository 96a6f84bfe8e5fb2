package domain

import "database/sql"

// Role 角色（super_admin / community_admin / grid_user）
type Role struct {
	ID          int64
	Name        string
	Description sql.NullString
}

// 内置角色名。权限串与 role_permission 表的存储格式必须逐字节一致。
const (
	RoleSuperAdmin     = "super_admin"
	RoleCommunityAdmin = "community_admin"
	RoleGridUser       = "grid_user"
)
