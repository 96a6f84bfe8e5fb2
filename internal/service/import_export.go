package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"cortana-grid/internal/auth"
	"cortana-grid/internal/domain"
	"cortana-grid/internal/repository"

	"go.uber.org/zap"
)

// ImportSummary 一次导入的结果汇总。逐行处理，任何一行失败都不中断
// 整批；Message 里带最多 5 条失败原因示例，完整列表进日志。
type ImportSummary struct {
	Total   int    `json:"total"`
	Success int    `json:"success"`
	Failed  int    `json:"failed"`
	Message string `json:"message"`
}

// ExportFile 导出产物
type ExportFile struct {
	Filename string
	Content  []byte
}

// ImportStatus 导入状态。后台任务不在范围内，永远报告空闲。
type ImportStatus struct {
	Running bool   `json:"running"`
	Message string `json:"message"`
}

var (
	errBuildingNotFound  = errors.New("building not found")
	errBuildingAmbiguous = errors.New("building match ambiguous")
)

// ImportExportService 人员/建筑 Excel 导入导出
type ImportExportService interface {
	ExportPersons(ctx context.Context, p *auth.Principal) (*ExportFile, error)
	ImportPersons(ctx context.Context, p *auth.Principal, data []byte) (*ImportSummary, error)
	ExportBuildings(ctx context.Context, p *auth.Principal) (*ExportFile, error)
	ImportBuildings(ctx context.Context, p *auth.Principal, data []byte) (*ImportSummary, error)
	Status(ctx context.Context) *ImportStatus
}

type importExportService struct {
	persons   repository.PersonsRepository
	buildings repository.BuildingsRepository
	grids     repository.GridsRepository
	guard     *Guard
	logger    *zap.Logger
}

func NewImportExportService(
	persons repository.PersonsRepository,
	buildings repository.BuildingsRepository,
	grids repository.GridsRepository,
	guard *Guard,
	logger *zap.Logger,
) ImportExportService {
	return &importExportService{
		persons:   persons,
		buildings: buildings,
		grids:     grids,
		guard:     guard,
		logger:    logger,
	}
}

func (s *importExportService) Status(ctx context.Context) *ImportStatus {
	return &ImportStatus{Running: false, Message: "当前没有进行中的导入任务"}
}

// exportScope 导出范围：管理员全量（nil），其他人限定负责网格。
// restricted 且网格集为空 → 导出空文件。
func exportScope(p *auth.Principal) (gridIDs []int64, restricted bool) {
	if p.IsAdmin() {
		return nil, false
	}
	return p.ManagedGridIDs(), true
}

// exportFilename 文件名前缀 + 单网格名（如果恰好只负责一个）+ 时间戳
func (s *importExportService) exportFilename(ctx context.Context, prefix string, gridIDs []int64, restricted bool) string {
	if restricted && len(gridIDs) == 1 {
		grid, err := s.grids.Get(ctx, gridIDs[0])
		if err == nil {
			prefix += "_" + grid.Name
		} else {
			prefix += "_未知网格"
		}
	}
	return fmt.Sprintf("%s_%s.xlsx", prefix, time.Now().Format("20060102_150405"))
}

// resolveBuilding 按名称/地址解析建筑：精确名称命中优先；否则唯一的
// 模糊命中生效；多个模糊命中按歧义处理而不是随便取第一个。
func (s *importExportService) resolveBuilding(ctx context.Context, q string) (*domain.Building, error) {
	matches, err := s.buildings.FindByNameOrAddress(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, errBuildingNotFound
	}
	if matches[0].Name == q {
		return matches[0], nil
	}
	if len(matches) == 1 {
		return matches[0], nil
	}
	return nil, errBuildingAmbiguous
}

// summarize 组装导入结果消息并落日志
func (s *importExportService) summarize(kind, username string, total, success int, failReasons []string) *ImportSummary {
	failed := total - success
	msg := fmt.Sprintf("%s导入完成：成功 %d 条，失败 %d 条", kind, success, failed)
	if len(failReasons) > 0 {
		sample := failReasons
		if len(sample) > 5 {
			sample = sample[:5]
		}
		msg += "；失败原因示例：" + strings.Join(sample, "；")
		if len(failReasons) > 5 {
			msg += "（更多错误请查看服务器日志）"
		}
	}

	s.logger.Info("导入完成",
		zap.String("kind", kind),
		zap.String("username", username),
		zap.Int("success", success),
		zap.Int("failed", failed),
		zap.Strings("fail_reasons", failReasons))

	return &ImportSummary{
		Total:   total,
		Success: success,
		Failed:  failed,
		Message: msg,
	}
}

func ns(v string) sql.NullString {
	v = strings.TrimSpace(v)
	if v == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: v, Valid: true}
}

func nsVal(v sql.NullString) string {
	if v.Valid {
		return v.String
	}
	return ""
}

func niVal(v sql.NullInt64) any {
	if v.Valid {
		return v.Int64
	}
	return ""
}

func nfVal(v sql.NullFloat64) any {
	if v.Valid {
		return v.Float64
	}
	return ""
}
