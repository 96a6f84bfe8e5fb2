package service

import (
	"context"

	"cortana-grid/internal/auth"
	"cortana-grid/internal/domain"
	"cortana-grid/internal/repository"

	"go.uber.org/zap"
)

// GuardTarget 写操作的目标定位。BuildingID 直接指定建筑；
// 只有 PersonID 时通过人员的现住建筑间接定位。
type GuardTarget struct {
	BuildingID int64
	PersonID   int64
}

// Guard 网格数据隔离检查。
// 管理员层级（super_admin / community_admin）直通；grid_user 只能操作
// 自己负责网格下的建筑/人员；无法定位到建筑的请求不做网格检查。
type Guard struct {
	buildings repository.BuildingsRepository
	persons   repository.PersonsRepository
	logger    *zap.Logger
}

func NewGuard(buildings repository.BuildingsRepository, persons repository.PersonsRepository, logger *zap.Logger) *Guard {
	return &Guard{buildings: buildings, persons: persons, logger: logger}
}

// AuthorizeWrite 判断主体能否写 target 指向的数据。
// 返回 false 表示越网格操作被拒；基础设施错误单独返回。
func (g *Guard) AuthorizeWrite(ctx context.Context, p *auth.Principal, target GuardTarget) (bool, error) {
	if p == nil || !p.Loaded() {
		return false, nil
	}
	if p.IsAdmin() {
		return true, nil
	}
	if !p.HasRole(domain.RoleGridUser) || p.ManagedGridCount() == 0 {
		return false, nil
	}

	buildingID := target.BuildingID
	if buildingID == 0 && target.PersonID != 0 {
		id, err := g.persons.LivingBuildingID(ctx, target.PersonID)
		if err == repository.ErrNotFound {
			return true, nil
		}
		if err != nil {
			return false, err
		}
		buildingID = id
	}
	// 定位不到建筑 → 网格检查不适用
	if buildingID == 0 {
		return true, nil
	}

	b, err := g.buildings.Get(ctx, buildingID)
	if err == repository.ErrNotFound {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	if b.GridID.Valid && !p.ManagesGrid(b.GridID.Int64) {
		g.logger.Warn("网格隔离拦截越权写操作",
			zap.String("username", p.Username),
			zap.Int64("building_id", buildingID),
			zap.Int64("grid_id", b.GridID.Int64))
		return false, nil
	}
	return true, nil
}

// AllowsBuilding 导入逐行检查：建筑必须存在且其网格在主体负责集合内。
// 与 AuthorizeWrite 不同，定位失败这里按拒绝处理。
func (g *Guard) AllowsBuilding(ctx context.Context, p *auth.Principal, buildingID int64) bool {
	if p == nil || !p.Loaded() {
		return false
	}
	if p.IsAdmin() {
		return true
	}
	if !p.HasRole(domain.RoleGridUser) || p.ManagedGridCount() == 0 {
		return false
	}
	b, err := g.buildings.Get(ctx, buildingID)
	if err != nil {
		if err != repository.ErrNotFound {
			g.logger.Error("网格权限检查失败", zap.Error(err))
		}
		return false
	}
	return b.GridID.Valid && p.ManagesGrid(b.GridID.Int64)
}
