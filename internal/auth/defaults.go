package auth

import "cortana-grid/internal/domain"

// 代码内写死的检查点令牌
var (
	PermPersonView   = MustToken("resource:person:view")
	PermPersonEdit   = MustToken("resource:person:edit")
	PermPersonDelete = MustToken("resource:person:delete")

	PermBuildingView   = MustToken("resource:building:view")
	PermBuildingEdit   = MustToken("resource:building:edit")
	PermBuildingDelete = MustToken("resource:building:delete")

	PermGridView   = MustToken("resource:grid:view")
	PermGridEdit   = MustToken("resource:grid:edit")
	PermGridDelete = MustToken("resource:grid:delete")

	PermImportExport      = MustToken("import_export:all")
	PermSystemView        = MustToken("system:view")
	PermManagePermissions = MustToken("system:manage_permissions")
)

// DefaultRolePermissions 角色默认权限兜底：数据库里某角色一条权限都没配时
// 使用，防止误配置把整个角色锁死。存储串必须与 role_permission 表格式一致。
var DefaultRolePermissions = map[string][]string{
	domain.RoleSuperAdmin: {"*:*"},
	domain.RoleCommunityAdmin: {
		"resource:person:*", "resource:building:*", "resource:grid:*",
		"import_export:all", "system:view",
	},
	domain.RoleGridUser: {
		"resource:person:view", "resource:person:edit", "resource:person:delete",
		"resource:building:view", "resource:grid:view",
	},
}
