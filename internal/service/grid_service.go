package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"cortana-grid/internal/auth"
	"cortana-grid/internal/domain"
	"cortana-grid/internal/repository"

	"go.uber.org/zap"
)

// 网格名称上限（字符数，非字节数）
const maxGridNameLen = 50

// GridService 网格管理。以"虚拟网格"开头的系统内置网格对任何角色都拒绝
// 编辑和启停操作。
type GridService interface {
	List(ctx context.Context, includeDisabled bool) ([]*domain.Grid, error)
	ListWithManagers(ctx context.Context) ([]*domain.GridListItem, error)
	GetDetail(ctx context.Context, id int64) (*domain.GridDetail, error)
	Create(ctx context.Context, p *auth.Principal, name string) (int64, error)
	Rename(ctx context.Context, p *auth.Principal, id int64, name string) error
	SetManagers(ctx context.Context, p *auth.Principal, id int64, userIDs []int64) error
	ToggleDisabled(ctx context.Context, p *auth.Principal, id int64) (bool, error)
	Delete(ctx context.Context, p *auth.Principal, id int64) error
}

type gridService struct {
	grids  repository.GridsRepository
	logger *zap.Logger
}

func NewGridService(grids repository.GridsRepository, logger *zap.Logger) GridService {
	return &gridService{grids: grids, logger: logger}
}

func (s *gridService) List(ctx context.Context, includeDisabled bool) ([]*domain.Grid, error) {
	return s.grids.List(ctx, includeDisabled)
}

func (s *gridService) ListWithManagers(ctx context.Context) ([]*domain.GridListItem, error) {
	return s.grids.ListWithManagers(ctx)
}

func (s *gridService) GetDetail(ctx context.Context, id int64) (*domain.GridDetail, error) {
	detail, err := s.grids.GetDetail(ctx, id)
	if err == repository.ErrNotFound {
		return nil, errors.New("网格不存在")
	}
	return detail, err
}

func validateGridName(name string) error {
	if name == "" {
		return errors.New("网格名称不能为空")
	}
	if utf8.RuneCountInString(name) > maxGridNameLen {
		return errors.New("网格名称不能超过50个字符")
	}
	return nil
}

func (s *gridService) Create(ctx context.Context, p *auth.Principal, name string) (int64, error) {
	name = strings.TrimSpace(name)
	if err := validateGridName(name); err != nil {
		return 0, err
	}

	id, err := s.grids.Create(ctx, name)
	if err != nil {
		return 0, err
	}
	s.logger.Info("新增网格",
		zap.String("username", p.Username),
		zap.String("name", name),
		zap.Int64("grid_id", id))
	return id, nil
}

func (s *gridService) Rename(ctx context.Context, p *auth.Principal, id int64, name string) error {
	grid, err := s.grids.Get(ctx, id)
	if err == repository.ErrNotFound {
		return errors.New("网格不存在")
	}
	if err != nil {
		return err
	}
	if grid.IsVirtual() {
		return errors.New("系统内置网格不可编辑")
	}
	if grid.Disabled {
		return errors.New("已禁用的网格不可编辑")
	}

	name = strings.TrimSpace(name)
	if err := validateGridName(name); err != nil {
		return err
	}

	if err := s.grids.Rename(ctx, id, name); err != nil {
		return err
	}
	s.logger.Info("编辑网格",
		zap.String("username", p.Username),
		zap.Int64("grid_id", id),
		zap.String("name", name))
	return nil
}

func (s *gridService) SetManagers(ctx context.Context, p *auth.Principal, id int64, userIDs []int64) error {
	grid, err := s.grids.Get(ctx, id)
	if err == repository.ErrNotFound {
		return errors.New("网格不存在")
	}
	if err != nil {
		return err
	}
	if grid.IsVirtual() {
		return errors.New("系统内置网格不可操作")
	}

	if err := s.grids.SetManagers(ctx, id, userIDs); err != nil {
		return err
	}
	s.logger.Info("网格分配保存",
		zap.String("username", p.Username),
		zap.Int64("grid_id", id),
		zap.Int("manager_count", len(userIDs)))
	return nil
}

// ToggleDisabled 启用⇄禁用切换，返回切换后的禁用状态
func (s *gridService) ToggleDisabled(ctx context.Context, p *auth.Principal, id int64) (bool, error) {
	grid, err := s.grids.Get(ctx, id)
	if err == repository.ErrNotFound {
		return false, errors.New("网格不存在")
	}
	if err != nil {
		return false, err
	}
	if grid.IsVirtual() {
		return false, errors.New("系统内置网格不可操作")
	}

	disabled, err := s.grids.ToggleDisabled(ctx, id)
	if err != nil {
		return false, err
	}
	action := "启用"
	if disabled {
		action = "禁用"
	}
	s.logger.Info("切换网格状态",
		zap.String("username", p.Username),
		zap.Int64("grid_id", id),
		zap.String("action", action))
	return disabled, nil
}

// Delete 删除网格。仍有建筑绑定时拒绝。
func (s *gridService) Delete(ctx context.Context, p *auth.Principal, id int64) error {
	grid, err := s.grids.Get(ctx, id)
	if err == repository.ErrNotFound {
		return errors.New("网格不存在")
	}
	if err != nil {
		return err
	}
	if grid.IsVirtual() {
		return errors.New("系统内置网格不可操作")
	}

	count, err := s.grids.BuildingCount(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("该网格下仍有 %d 个建筑，无法删除", count)
	}

	if err := s.grids.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("删除网格",
		zap.String("username", p.Username),
		zap.Int64("grid_id", id),
		zap.String("name", grid.Name))
	return nil
}
