package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"cortana-grid/internal/auth"
	"cortana-grid/internal/domain"
	"cortana-grid/internal/repository"

	"go.uber.org/zap"
)

// buildingRequiredColumns 导入模板必填列
var buildingRequiredColumns = []string{"小区/建筑名称", "类型", "所属网格"}

// buildingTypeAliases 导入时中文类型 → 存储键。"其他" 映射到住宅小区
// 是沿用至今的历史行为，导入方依赖它。
var buildingTypeAliases = map[string]string{
	"住宅小区":  domain.BuildingResidentialComplex,
	"商业建筑":  domain.BuildingCommercial,
	"商业大厦":  domain.BuildingCommercial,
	"大型出租房": domain.BuildingLargeRental,
	"公寓":    domain.BuildingLargeRental,
	"私人住宅":  domain.BuildingPrivateResidence,
	"其他":    domain.BuildingResidentialComplex,
}

// buildingTypeFromLabel 精确命中别名表，否则双向包含模糊匹配
func buildingTypeFromLabel(label string) (string, bool) {
	if key, ok := buildingTypeAliases[label]; ok {
		return key, true
	}
	for alias, key := range buildingTypeAliases {
		if strings.Contains(label, alias) || strings.Contains(alias, label) {
			return key, true
		}
	}
	return "", false
}

// ExportBuildings 导出建筑数据。非管理员只导出负责网格内的建筑。
func (s *importExportService) ExportBuildings(ctx context.Context, p *auth.Principal) (*ExportFile, error) {
	gridIDs, restricted := exportScope(p)

	var buildings []*domain.Building
	if !restricted || len(gridIDs) > 0 {
		var err error
		buildings, err = s.buildings.ListForExport(ctx, gridIDs)
		if err != nil {
			return nil, err
		}
	}

	rows := make([][]any, 0, len(buildings))
	for _, item := range buildings {
		gridName := nsVal(item.GridName)
		if gridName == "" {
			gridName = "无网格"
		}
		rows = append(rows, []any{
			item.Name,
			domain.BuildingTypeLabel(item.Type),
			gridName,
			nsVal(item.Address),
			niVal(item.BuildYear),
			niVal(item.Households),
			niVal(item.BuildingsCount),
			niVal(item.ApproxResidents),
			niVal(item.BusinessesCount),
			niVal(item.GroundFloorShops),
			boolToCN(item.HasGasPipeline),
			nsVal(item.PropertyFee),
			niVal(item.Elevators),
			niVal(item.IndoorParking),
			niVal(item.OutdoorParking),
			nsVal(item.SecurityManager),
			nsVal(item.SecurityManagerPhone),
			nfVal(item.Latitude),
			nfVal(item.Longitude),
			nsVal(item.Developer),
			nsVal(item.Constructor),
			nsVal(item.PropertyManagementCompany),
			nsVal(item.PropertyContactPhone),
			nsVal(item.Notes),
			nsVal(item.OwnersCommitteeContact),
			nsVal(item.OwnersCommitteePhone),
			nsVal(item.OwnerName),
			nsVal(item.OwnerPhone),
			nsVal(item.LandlordName),
			nsVal(item.LandlordPhone),
			nsVal(item.CommercialType),
		})
	}

	content, err := buildWorkbook("Building", BuildingColumns, rows)
	if err != nil {
		return nil, err
	}

	filename := s.exportFilename(ctx, "小区建筑数据", gridIDs, restricted)
	s.logger.Info("导出建筑数据",
		zap.String("username", p.Username),
		zap.String("filename", filename),
		zap.Int("count", len(rows)))
	return &ExportFile{Filename: filename, Content: content}, nil
}

// ImportBuildings 逐行导入建筑（名称/类型/网格三项）。
// 同网格同名冲突由唯一索引拦截后按行失败记录。
func (s *importExportService) ImportBuildings(ctx context.Context, p *auth.Principal, data []byte) (*ImportSummary, error) {
	table, err := readSheetTable(data, BuildingColumns)
	if err != nil {
		return nil, fmt.Errorf("导入失败：文件读取或处理异常（%s）", err)
	}

	if missing := table.missingColumns(buildingRequiredColumns); len(missing) > 0 {
		return nil, fmt.Errorf("建筑导入：Excel 模板列不匹配，请下载最新\"小区/建筑模板\"")
	}

	grids, err := s.grids.List(ctx, false)
	if err != nil {
		return nil, err
	}
	gridByName := make(map[string]*domain.Grid, len(grids))
	for _, g := range grids {
		gridByName[strings.ToLower(strings.TrimSpace(g.Name))] = g
	}

	successCount := 0
	failReasons := []string{}

	for i, row := range table.rows {
		rowNum := table.firstDataRow + i

		name := table.cell(row, "小区/建筑名称")
		typeCN := table.cell(row, "类型")
		gridName := table.cell(row, "所属网格")

		if name == "" {
			failReasons = append(failReasons, fmt.Sprintf("第 %d 行：小区/建筑名称为空", rowNum))
			continue
		}
		if typeCN == "" {
			failReasons = append(failReasons, fmt.Sprintf("第 %d 行：类型为空（%s）", rowNum, name))
			continue
		}
		if gridName == "" {
			failReasons = append(failReasons, fmt.Sprintf("第 %d 行：所属网格为空（%s）", rowNum, name))
			continue
		}

		typeKey, ok := buildingTypeFromLabel(typeCN)
		if !ok {
			failReasons = append(failReasons, fmt.Sprintf("第 %d 行：未知建筑类型 '%s'（%s）", rowNum, typeCN, name))
			continue
		}

		grid, reason := resolveGrid(gridByName, gridName)
		if grid == nil {
			failReasons = append(failReasons, fmt.Sprintf("第 %d 行：%s（%s）", rowNum, reason, name))
			continue
		}

		if !p.IsAdmin() && !p.ManagesGrid(grid.ID) {
			failReasons = append(failReasons, fmt.Sprintf("第 %d 行：无权操作网格 '%s'（%s）", rowNum, gridName, name))
			continue
		}

		b := &domain.Building{
			Name:   name,
			Type:   typeKey,
			GridID: sql.NullInt64{Int64: grid.ID, Valid: true},
		}
		if _, err := s.buildings.Create(ctx, b); err != nil {
			if repository.IsUniqueViolation(err, repository.ConstraintBuildingNameGrid) {
				failReasons = append(failReasons, fmt.Sprintf("第 %d 行：该网格下已存在同名建筑 '%s'", rowNum, name))
			} else {
				failReasons = append(failReasons,
					fmt.Sprintf("第 %d 行：数据库错误 (%s): %s", rowNum, name, truncate(err.Error(), 50)))
			}
			continue
		}
		successCount++
	}

	return s.summarize("建筑", p.Username, len(table.rows), successCount, failReasons), nil
}

// resolveGrid 网格名解析：大小写不敏感精确匹配优先，
// 其次双向包含模糊匹配；模糊命中多个按歧义拒绝。
func resolveGrid(gridByName map[string]*domain.Grid, name string) (*domain.Grid, string) {
	lower := strings.ToLower(strings.TrimSpace(name))
	if g, ok := gridByName[lower]; ok {
		return g, ""
	}
	var matches []*domain.Grid
	for gname, g := range gridByName {
		if strings.Contains(gname, lower) || strings.Contains(lower, gname) {
			matches = append(matches, g)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], ""
	case 0:
		return nil, fmt.Sprintf("未找到网格 '%s'", name)
	default:
		return nil, "网格名称模糊匹配到多个"
	}
}
