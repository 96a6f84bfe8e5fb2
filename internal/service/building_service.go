package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cortana-grid/internal/auth"
	"cortana-grid/internal/domain"
	"cortana-grid/internal/repository"

	"go.uber.org/zap"
)

// BuildingService 小区/建筑管理
type BuildingService interface {
	List(ctx context.Context, filter repository.BuildingFilter) ([]*domain.Building, error)
	Get(ctx context.Context, id int64) (*domain.Building, error)
	Options(ctx context.Context) ([]*domain.BuildingOption, error)
	Create(ctx context.Context, p *auth.Principal, b *domain.Building) (int64, error)
	Update(ctx context.Context, p *auth.Principal, id int64, patch domain.BuildingPatch) error
	Delete(ctx context.Context, p *auth.Principal, id int64) error
}

type buildingService struct {
	buildings repository.BuildingsRepository
	grids     repository.GridsRepository
	logger    *zap.Logger
}

func NewBuildingService(buildings repository.BuildingsRepository, grids repository.GridsRepository, logger *zap.Logger) BuildingService {
	return &buildingService{buildings: buildings, grids: grids, logger: logger}
}

func (s *buildingService) List(ctx context.Context, filter repository.BuildingFilter) ([]*domain.Building, error) {
	return s.buildings.List(ctx, filter)
}

func (s *buildingService) Get(ctx context.Context, id int64) (*domain.Building, error) {
	b, err := s.buildings.Get(ctx, id)
	if err == repository.ErrNotFound {
		return nil, errors.New("建筑记录不存在")
	}
	return b, err
}

func (s *buildingService) Options(ctx context.Context) ([]*domain.BuildingOption, error) {
	return s.buildings.Options(ctx)
}

// Create 新增建筑。同网格内同名冲突由数据库唯一索引拦截，
// 先查后插的竞态窗口不存在。
func (s *buildingService) Create(ctx context.Context, p *auth.Principal, b *domain.Building) (int64, error) {
	b.Name = strings.TrimSpace(b.Name)
	b.Type = strings.TrimSpace(b.Type)
	if b.Name == "" || b.Type == "" {
		return 0, errors.New("建筑名称和类型不能为空")
	}
	if !domain.IsValidBuildingType(b.Type) {
		return 0, fmt.Errorf("未知建筑类型 '%s'", b.Type)
	}
	if b.GridID.Valid {
		if _, err := s.grids.Get(ctx, b.GridID.Int64); err != nil {
			if err == repository.ErrNotFound {
				return 0, errors.New("选择的网格不存在")
			}
			return 0, err
		}
	}

	id, err := s.buildings.Create(ctx, b)
	if err != nil {
		if repository.IsUniqueViolation(err, repository.ConstraintBuildingNameGrid) {
			return 0, fmt.Errorf("该网格下已存在同名建筑 '%s'", b.Name)
		}
		return 0, err
	}

	s.logger.Info("新增建筑",
		zap.String("username", p.Username),
		zap.String("name", b.Name),
		zap.String("type", b.Type),
		zap.Int64("building_id", id))
	return id, nil
}

// Update 编辑建筑
func (s *buildingService) Update(ctx context.Context, p *auth.Principal, id int64, patch domain.BuildingPatch) error {
	if patch.Name.Valid && strings.TrimSpace(patch.Name.String) == "" {
		return errors.New("建筑名称和类型不能为空")
	}
	if patch.Type.Valid && !domain.IsValidBuildingType(patch.Type.String) {
		return fmt.Errorf("未知建筑类型 '%s'", patch.Type.String)
	}
	if !patch.SetGridNull && patch.GridID.Valid {
		if _, err := s.grids.Get(ctx, patch.GridID.Int64); err != nil {
			if err == repository.ErrNotFound {
				return errors.New("选择的网格不存在")
			}
			return err
		}
	}

	err := s.buildings.Update(ctx, id, patch)
	if err == repository.ErrNotFound {
		return errors.New("建筑记录不存在")
	}
	if repository.IsUniqueViolation(err, repository.ConstraintBuildingNameGrid) {
		return fmt.Errorf("该网格下已存在同名建筑 '%s'", patch.Name.String)
	}
	if err != nil {
		return err
	}

	s.logger.Info("编辑建筑",
		zap.String("username", p.Username),
		zap.Int64("building_id", id))
	return nil
}

// Delete 软删除。有人员居住时拒绝；对已删除建筑重复删除仍返回成功。
func (s *buildingService) Delete(ctx context.Context, p *auth.Principal, id int64) error {
	count, err := s.buildings.ResidentCount(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("该建筑下仍有 %d 名人员居住，无法删除", count)
	}

	if err := s.buildings.SoftDelete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("删除建筑",
		zap.String("username", p.Username),
		zap.Int64("building_id", id))
	return nil
}
