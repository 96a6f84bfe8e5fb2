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

// PersonService 人员管理
type PersonService interface {
	List(ctx context.Context, filter repository.PersonFilter, page, size int) ([]*domain.Person, int, error)
	Get(ctx context.Context, id int64) (*domain.Person, error)
	Create(ctx context.Context, p *auth.Principal, person *domain.Person) (int64, error)
	Update(ctx context.Context, p *auth.Principal, id int64, patch domain.PersonPatch) error
	Delete(ctx context.Context, p *auth.Principal, id int64) error
	Overview(ctx context.Context) (*domain.OverviewStats, error)
}

type personService struct {
	persons   repository.PersonsRepository
	buildings repository.BuildingsRepository
	logger    *zap.Logger
}

func NewPersonService(persons repository.PersonsRepository, buildings repository.BuildingsRepository, logger *zap.Logger) PersonService {
	return &personService{persons: persons, buildings: buildings, logger: logger}
}

func (s *personService) List(ctx context.Context, filter repository.PersonFilter, page, size int) ([]*domain.Person, int, error) {
	return s.persons.List(ctx, filter, page, size)
}

func (s *personService) Get(ctx context.Context, id int64) (*domain.Person, error) {
	person, err := s.persons.Get(ctx, id)
	if err == repository.ErrNotFound {
		return nil, errors.New("人员记录不存在")
	}
	return person, err
}

// Create 新增人员。现住建筑必须可解析，现住详细门牌必填。
func (s *personService) Create(ctx context.Context, p *auth.Principal, person *domain.Person) (int64, error) {
	person.Name = strings.TrimSpace(person.Name)
	if person.Name == "" {
		return 0, errors.New("姓名不能为空")
	}
	if !person.LivingBuildingID.Valid || person.LivingBuildingID.Int64 == 0 {
		return 0, errors.New("请选择现住小区/建筑")
	}
	if _, err := s.buildings.Get(ctx, person.LivingBuildingID.Int64); err != nil {
		if err == repository.ErrNotFound {
			return 0, errors.New("选择的现住建筑不存在")
		}
		return 0, err
	}
	if !person.AddressDetail.Valid || strings.TrimSpace(person.AddressDetail.String) == "" {
		return 0, errors.New("现住详细门牌不能为空")
	}
	// 户籍建筑可选，给了就必须有效
	if person.HouseholdBuildingID.Valid && person.HouseholdBuildingID.Int64 != 0 {
		if _, err := s.buildings.Get(ctx, person.HouseholdBuildingID.Int64); err != nil {
			if err == repository.ErrNotFound {
				return 0, errors.New("选择的户籍建筑不存在")
			}
			return 0, err
		}
	}

	id, err := s.persons.Create(ctx, person)
	if err != nil {
		if repository.IsUniqueViolation(err, repository.ConstraintPersonIDCard) {
			return 0, fmt.Errorf("身份证号 %s 已存在", person.IDCard.String)
		}
		return 0, err
	}

	s.logger.Info("新增人员",
		zap.String("username", p.Username),
		zap.String("name", person.Name),
		zap.Int64("person_id", id))
	return id, nil
}

// Update 部分更新。被修改的现住建筑/门牌仍受创建时的同一套校验。
func (s *personService) Update(ctx context.Context, p *auth.Principal, id int64, patch domain.PersonPatch) error {
	if patch.Name.Valid && strings.TrimSpace(patch.Name.String) == "" {
		return errors.New("姓名不能为空")
	}
	if patch.LivingBuildingID.Valid {
		if _, err := s.buildings.Get(ctx, patch.LivingBuildingID.Int64); err != nil {
			if err == repository.ErrNotFound {
				return errors.New("选择的现住建筑不存在")
			}
			return err
		}
	}
	if patch.AddressDetail.Valid && strings.TrimSpace(patch.AddressDetail.String) == "" {
		return errors.New("现住详细门牌不能为空")
	}
	if patch.HouseholdBuildingID.Valid && patch.HouseholdBuildingID.Int64 != 0 {
		if _, err := s.buildings.Get(ctx, patch.HouseholdBuildingID.Int64); err != nil {
			if err == repository.ErrNotFound {
				return errors.New("选择的户籍建筑不存在")
			}
			return err
		}
	}

	err := s.persons.Update(ctx, id, patch)
	if err == repository.ErrNotFound {
		return errors.New("人员记录不存在")
	}
	if repository.IsUniqueViolation(err, repository.ConstraintPersonIDCard) {
		return fmt.Errorf("身份证号 %s 已存在", patch.IDCard.String)
	}
	if err != nil {
		return err
	}

	s.logger.Info("编辑人员",
		zap.String("username", p.Username),
		zap.Int64("person_id", id))
	return nil
}

// Delete 软删除，单向且幂等：重复删除同样返回成功
func (s *personService) Delete(ctx context.Context, p *auth.Principal, id int64) error {
	if err := s.persons.SoftDelete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("删除人员",
		zap.String("username", p.Username),
		zap.Int64("person_id", id))
	return nil
}

func (s *personService) Overview(ctx context.Context) (*domain.OverviewStats, error) {
	return s.persons.OverviewStats(ctx)
}
