package domain

import "database/sql"

// User 系统用户（管理端账号，不是登记的居民）
// 角色、权限、负责网格通过关联表加载，见 auth.Principal
type User struct {
	ID                 int64
	Username           string
	PasswordHash       string
	FullName           sql.NullString
	Phone              sql.NullString
	IsActive           bool
	MustChangePassword bool
	PageSize           int
	PreferredCSS       sql.NullString
	IsDeleted          bool

	// ListUsers 聚合字段（GROUP_CONCAT 角色名）
	Roles []string
}

// DisplayName 前端显示名称：优先真实姓名
func (u *User) DisplayName() string {
	if u.FullName.Valid && u.FullName.String != "" {
		return u.FullName.String
	}
	return u.Username
}
