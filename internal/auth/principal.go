package auth

import (
	"context"

	"cortana-grid/internal/domain"

	"go.uber.org/zap"
)

// Loader 负责从存储层取出主体的角色/权限/负责网格。
// repository.PostgresRolesRepository 实现了该接口。
type Loader interface {
	RoleNamesForUser(ctx context.Context, userID int64) ([]string, error)
	// PermissionsByRole 按角色名分组返回各角色在库中配置的权限串。
	// 没有权限行的角色可以不出现在结果里。
	PermissionsByRole(ctx context.Context, userID int64) (map[string][]string, error)
	ManagedGridIDs(ctx context.Context, userID int64) ([]int64, error)
}

// LoadPolicy 权限加载失败时的策略
type LoadPolicy int

const (
	// FailClosed 加载失败返回错误，请求被拒（默认）
	FailClosed LoadPolicy = iota
	// FailOpen 加载失败授予 super_admin 等效权限。
	// 旧系统的"永不锁死"保险策略，仅在运维显式要求可用性优先时开启。
	FailOpen
)

// Principal 请求作用域的已认证主体。
// 角色/权限/负责网格延迟加载：每个请求 EnsureLoaded 一次，之后的所有
// 鉴权检查复用缓存结果，不会重复查库。
// 不是并发安全的——一个 Principal 只属于一个请求。
type Principal struct {
	ID                 int64
	Username           string
	FullName           string
	Active             bool
	MustChangePassword bool
	PageSize           int
	PreferredCSS       string

	loaded bool
	roles  map[string]bool
	grants []Token
	grids  map[int64]bool
}

// NewPrincipal 从用户行构造未加载的主体
func NewPrincipal(u *domain.User) *Principal {
	p := &Principal{
		ID:                 u.ID,
		Username:           u.Username,
		Active:             u.IsActive,
		MustChangePassword: u.MustChangePassword,
		PageSize:           u.PageSize,
	}
	if u.FullName.Valid {
		p.FullName = u.FullName.String
	}
	if u.PreferredCSS.Valid {
		p.PreferredCSS = u.PreferredCSS.String
	}
	return p
}

// EnsureLoaded 加载角色、权限和负责网格（幂等）。
// 每个在库里没配置任何权限行的角色，单独回退到它的 DefaultRolePermissions；
// 配置过的角色只用库里的配置。
// 加载出错时按 policy 处理：FailClosed 返回错误；FailOpen 授予 super_admin。
func (p *Principal) EnsureLoaded(ctx context.Context, l Loader, policy LoadPolicy, logger *zap.Logger) error {
	if p == nil || p.loaded {
		return nil
	}

	roles, err := l.RoleNamesForUser(ctx, p.ID)
	if err == nil {
		var byRole map[string][]string
		byRole, err = l.PermissionsByRole(ctx, p.ID)
		if err == nil {
			var grids []int64
			grids, err = l.ManagedGridIDs(ctx, p.ID)
			if err == nil {
				p.apply(roles, byRole, grids, logger)
				return nil
			}
		}
	}

	if policy == FailOpen {
		// 保险策略：异常时给最高权限，防止管理员被锁死
		logger.Error("权限加载失败，按 fail-open 策略授予超级权限",
			zap.String("username", p.Username), zap.Error(err))
		p.apply([]string{domain.RoleSuperAdmin},
			map[string][]string{domain.RoleSuperAdmin: {AllToken.String()}}, nil, logger)
		return nil
	}
	logger.Error("权限加载失败，拒绝请求",
		zap.String("username", p.Username), zap.Error(err))
	return err
}

func (p *Principal) apply(roles []string, byRole map[string][]string, grids []int64, logger *zap.Logger) {
	p.roles = make(map[string]bool, len(roles))
	for _, r := range roles {
		p.roles[r] = true
	}

	// 逐角色取库里的配置；该角色一条都没配 → 硬编码默认权限兜底。
	// 兜底按角色独立判断：一个配置过的角色不会挡掉另一个未配置角色的默认权限。
	seen := map[string]bool{}
	p.grants = p.grants[:0]
	for _, r := range roles {
		perms := byRole[r]
		if len(perms) == 0 {
			perms = DefaultRolePermissions[r]
		}
		for _, s := range perms {
			if seen[s] {
				continue
			}
			seen[s] = true
			t, err := ParseToken(s)
			if err != nil {
				logger.Warn("忽略格式非法的权限串",
					zap.String("username", p.Username), zap.String("permission", s))
				continue
			}
			p.grants = append(p.grants, t)
		}
	}

	p.grids = make(map[int64]bool, len(grids))
	for _, id := range grids {
		p.grids[id] = true
	}
	p.loaded = true
}

// Loaded 是否已完成延迟加载
func (p *Principal) Loaded() bool {
	return p != nil && p.loaded
}

// HasPermission 权限检查。未认证（nil）或未加载时 fail closed。
func (p *Principal) HasPermission(required Token) bool {
	if p == nil || !p.loaded {
		return false
	}
	if p.roles[domain.RoleSuperAdmin] {
		return true
	}
	for _, g := range p.grants {
		if g.Covers(required) {
			return true
		}
	}
	return false
}

// HasRole 角色检查
func (p *Principal) HasRole(name string) bool {
	return p != nil && p.loaded && p.roles[name]
}

// IsAdmin 管理员层级（超级管理员或社区管理员），绕过网格数据隔离
func (p *Principal) IsAdmin() bool {
	return p.HasRole(domain.RoleSuperAdmin) || p.HasRole(domain.RoleCommunityAdmin)
}

// ManagesGrid 是否负责指定网格
func (p *Principal) ManagesGrid(gridID int64) bool {
	return p != nil && p.loaded && p.grids[gridID]
}

// RoleNames 角色名列表（当前用户信息接口用）
func (p *Principal) RoleNames() []string {
	if p == nil || !p.loaded {
		return nil
	}
	names := make([]string, 0, len(p.roles))
	for name := range p.roles {
		names = append(names, name)
	}
	return names
}

// GrantStrings 已授予权限串列表（前端菜单控制用）
func (p *Principal) GrantStrings() []string {
	if p == nil || !p.loaded {
		return nil
	}
	out := make([]string, 0, len(p.grants))
	for _, g := range p.grants {
		out = append(out, g.String())
	}
	return out
}

// ManagedGridIDs 负责网格 ID 列表（导出过滤用）
func (p *Principal) ManagedGridIDs() []int64 {
	if p == nil || !p.loaded {
		return nil
	}
	ids := make([]int64, 0, len(p.grids))
	for id := range p.grids {
		ids = append(ids, id)
	}
	return ids
}

// ManagedGridCount 负责网格数量
func (p *Principal) ManagedGridCount() int {
	if p == nil || !p.loaded {
		return 0
	}
	return len(p.grids)
}
