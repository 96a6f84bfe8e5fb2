package service

import (
	"context"
	"database/sql"
	"fmt"

	"cortana-grid/internal/auth"
	"cortana-grid/internal/domain"
	"cortana-grid/internal/repository"

	"go.uber.org/zap"
)

// personRequiredColumns 导入模板必填列
var personRequiredColumns = []string{"姓名", "现住小区/建筑", "现住详细门牌"}

// ExportPersons 导出人员数据。非管理员只导出负责网格内的人员。
func (s *importExportService) ExportPersons(ctx context.Context, p *auth.Principal) (*ExportFile, error) {
	gridIDs, restricted := exportScope(p)

	var persons []*domain.Person
	if !restricted || len(gridIDs) > 0 {
		var err error
		persons, err = s.persons.ListForExport(ctx, gridIDs)
		if err != nil {
			return nil, err
		}
	}

	rows := make([][]any, 0, len(persons))
	for _, item := range persons {
		gridName := nsVal(item.GridName)
		if gridName == "" {
			gridName = "无网格"
		}
		rows = append(rows, []any{
			item.Name,
			nsVal(item.IDCard),
			nsVal(item.UniqueID),
			nsVal(item.Passport),
			nsVal(item.OtherIDType),
			nsVal(item.Gender),
			nsVal(item.BirthDate),
			nsVal(item.Phones),
			nsVal(item.LivingBuildingName),
			nsVal(item.AddressDetail),
			gridName,
			nsVal(item.Relationship),
			item.PersonType,
			boolToCN(item.IsKeyPerson),
			nsVal(item.KeyCategories),
			nsVal(item.HouseholdBuildingName),
			nsVal(item.HouseholdAddress),
			nsVal(item.FamilyID),
			nsVal(item.HouseholdNumber),
			nsVal(item.HouseholdEntryDate),
			boolToCN(item.IsSeparated),
			nsVal(item.CurrentResidence),
			boolToCN(item.IsMigratedOut),
			nsVal(item.HouseholdExitDate),
			nsVal(item.MigrationDestination),
			boolToCN(item.IsDeceased),
			nsVal(item.DeathDate),
			nsVal(item.Nationality),
			nsVal(item.PoliticalStatus),
			nsVal(item.MaritalStatus),
			nsVal(item.Education),
			nsVal(item.WorkStudy),
			nsVal(item.Health),
			nsVal(item.Notes),
		})
	}

	content, err := buildWorkbook("人员数据", PersonColumns, rows)
	if err != nil {
		return nil, err
	}

	filename := s.exportFilename(ctx, "人员数据", gridIDs, restricted)
	s.logger.Info("导出人员数据",
		zap.String("username", p.Username),
		zap.String("filename", filename),
		zap.Int("count", len(rows)))
	return &ExportFile{Filename: filename, Content: content}, nil
}

// ImportPersons 逐行导入人员。单行失败只记原因不中断；
// 身份证重复的行按"自动跳过"计入失败。
func (s *importExportService) ImportPersons(ctx context.Context, p *auth.Principal, data []byte) (*ImportSummary, error) {
	table, err := readSheetTable(data, PersonColumns)
	if err != nil {
		return nil, fmt.Errorf("导入失败：文件读取或处理异常（%s）", err)
	}

	if missing := table.missingColumns(personRequiredColumns); len(missing) > 0 {
		return nil, fmt.Errorf("导入失败：缺少必填列 %s。请使用最新导出模板，确保包含这些列",
			joinCN(missing))
	}

	successCount := 0
	failReasons := []string{}

	for i, row := range table.rows {
		rowNum := table.firstDataRow + i

		name := table.cell(row, "姓名")
		if name == "" {
			failReasons = append(failReasons, fmt.Sprintf("第 %d 行：姓名为空，跳过", rowNum))
			continue
		}

		livingName := table.cell(row, "现住小区/建筑")
		if livingName == "" {
			failReasons = append(failReasons, fmt.Sprintf("第 %d 行：现住小区/建筑为空（%s）", rowNum, name))
			continue
		}
		living, err := s.resolveBuilding(ctx, livingName)
		if err == errBuildingNotFound {
			failReasons = append(failReasons, fmt.Sprintf("第 %d 行：未找到现住建筑 '%s'（%s）", rowNum, livingName, name))
			continue
		}
		if err == errBuildingAmbiguous {
			failReasons = append(failReasons, fmt.Sprintf("第 %d 行：现住建筑 '%s' 匹配到多个，请使用完整名称（%s）", rowNum, livingName, name))
			continue
		}
		if err != nil {
			return nil, err
		}

		if !s.guard.AllowsBuilding(ctx, p, living.ID) {
			failReasons = append(failReasons, fmt.Sprintf("第 %d 行：无权操作该网格建筑 '%s'（%s）", rowNum, livingName, name))
			continue
		}

		addressDetail := table.cell(row, "现住详细门牌")
		if addressDetail == "" {
			failReasons = append(failReasons, fmt.Sprintf("第 %d 行：现住详细门牌为空（%s）", rowNum, name))
			continue
		}

		// 户籍建筑可选，解析不出来就留空
		var householdBuildingID sql.NullInt64
		if householdName := table.cell(row, "户籍小区/建筑"); householdName != "" {
			if hb, err := s.resolveBuilding(ctx, householdName); err == nil {
				householdBuildingID = sql.NullInt64{Int64: hb.ID, Valid: true}
			} else if err != errBuildingNotFound && err != errBuildingAmbiguous {
				return nil, err
			}
		}

		personType := table.cell(row, "人员类型")
		if personType == "" {
			personType = domain.DefaultPersonType
		}

		person := &domain.Person{
			Name:                name,
			IDCard:              ns(table.cell(row, "身份证号")),
			UniqueID:            ns(table.cell(row, "唯一标识")),
			Passport:            ns(table.cell(row, "护照/其他证件号码")),
			OtherIDType:         ns(table.cell(row, "其他证件类型")),
			Gender:              ns(parseGender(table.cell(row, "性别"))),
			BirthDate:           ns(table.cell(row, "出生日期")),
			Phones:              ns(table.cell(row, "联系电话")),
			PersonType:          personType,
			Relationship:        ns(table.cell(row, "与其他人员关系")),
			LivingBuildingID:    sql.NullInt64{Int64: living.ID, Valid: true},
			AddressDetail:       sql.NullString{String: addressDetail, Valid: true},
			HouseholdBuildingID: householdBuildingID,
			HouseholdAddress:    ns(table.cell(row, "户籍详细地址")),
			FamilyID:            ns(table.cell(row, "户编号")),
			HouseholdNumber:     ns(table.cell(row, "户号")),
			HouseholdEntryDate:  ns(table.cell(row, "户籍迁入日期")),
			IsSeparated:         parseLenientBool(table.cell(row, "是否人户分离")),
			CurrentResidence:    ns(table.cell(row, "实际居住地")),
			IsMigratedOut:       parseLenientBool(table.cell(row, "是否已迁出")),
			HouseholdExitDate:   ns(table.cell(row, "迁出日期")),
			MigrationDestination: ns(table.cell(row, "迁往地")),
			IsDeceased:          parseLenientBool(table.cell(row, "是否已死亡")),
			DeathDate:           ns(table.cell(row, "死亡日期")),
			Nationality:         ns(table.cell(row, "民族")),
			PoliticalStatus:     ns(table.cell(row, "政治面貌")),
			MaritalStatus:       ns(table.cell(row, "婚姻状况")),
			Education:           ns(table.cell(row, "文化程度")),
			WorkStudy:           ns(table.cell(row, "工作/学习情况")),
			Health:              ns(table.cell(row, "健康状况")),
			Notes:               ns(table.cell(row, "备注")),
			IsKeyPerson:         parseLenientBool(table.cell(row, "是否重点人员")),
			KeyCategories:       ns(table.cell(row, "重点类别")),
		}

		if _, err := s.persons.Create(ctx, person); err != nil {
			if repository.IsUniqueViolation(err, repository.ConstraintPersonIDCard) {
				idCard := nsVal(person.IDCard)
				if idCard == "" {
					idCard = "(空)"
				}
				failReasons = append(failReasons,
					fmt.Sprintf("第 %d 行：身份证号 %s 已存在（重复人员，自动跳过）", rowNum, idCard))
			} else {
				failReasons = append(failReasons, fmt.Sprintf("第 %d 行：%s", rowNum, truncate(err.Error(), 120)))
			}
			continue
		}
		successCount++
	}

	return s.summarize("人员", p.Username, len(table.rows), successCount, failReasons), nil
}

func joinCN(items []string) string {
	out := ""
	for i, item := range items {
		if i > 0 {
			out += "、"
		}
		out += item
	}
	return out
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}
