package service

import (
	"bytes"
	"context"
	"database/sql"
	"strings"
	"testing"

	"cortana-grid/internal/domain"
	"cortana-grid/internal/repository"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

func importExportFixture(t *testing.T) (ImportExportService, *fakePersonsRepo, *fakeBuildingsRepo, *fakeGridsRepo) {
	t.Helper()
	persons := newFakePersonsRepo()
	buildings := newFakeBuildingsRepo()
	grids := newFakeGridsRepo()
	guard := NewGuard(buildings, persons, zap.NewNop())
	svc := NewImportExportService(persons, buildings, grids, guard, zap.NewNop())
	return svc, persons, buildings, grids
}

// buildImportFile 按共享列定义造一个导入文件：表头 + 注释行 + 数据行
func buildImportFile(t *testing.T, cols []Column, rows []map[string]string) []byte {
	t.Helper()
	data := make([][]any, 0, len(rows))
	for _, r := range rows {
		row := make([]any, len(cols))
		for i, c := range cols {
			row[i] = r[c.Header]
		}
		data = append(data, row)
	}
	content, err := buildWorkbook("导入", cols, data)
	require.NoError(t, err)
	return content
}

func TestExportPersons_HeaderAndHintRows(t *testing.T) {
	svc, persons, buildings, _ := importExportFixture(t)
	b := buildings.add(&domain.Building{Name: "望江苑", Type: domain.BuildingResidentialComplex})
	_, err := persons.Create(context.Background(), &domain.Person{
		Name:             "张三",
		PersonType:       domain.DefaultPersonType,
		LivingBuildingID: sql.NullInt64{Int64: b.ID, Valid: true},
		AddressDetail:    sql.NullString{String: "1单元101室", Valid: true},
		IsKeyPerson:      true,
	})
	require.NoError(t, err)

	admin := newTestPrincipal(t, 1, "admin", []string{domain.RoleSuperAdmin}, nil)
	file, err := svc.ExportPersons(context.Background(), admin)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(file.Filename, "人员数据_"))
	require.True(t, strings.HasSuffix(file.Filename, ".xlsx"))

	f, err := excelize.OpenReader(bytes.NewReader(file.Content))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("人员数据")
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(rows), 3)

	// 第 1 行表头、第 2 行注释与共享列定义逐列一致
	for i, col := range PersonColumns {
		require.Equal(t, col.Header, rows[0][i])
		require.Equal(t, col.Hint, rows[1][i])
	}

	require.Equal(t, "张三", rows[2][0])
	require.Equal(t, "是", rows[2][13]) // 是否重点人员
}

// 导出再导入应整批成功（同名建筑直接精确命中）
func TestPersonRoundTrip(t *testing.T) {
	svc, persons, buildings, _ := importExportFixture(t)
	b := buildings.add(&domain.Building{Name: "望江苑", Type: domain.BuildingResidentialComplex})
	admin := newTestPrincipal(t, 1, "admin", []string{domain.RoleSuperAdmin}, nil)
	ctx := context.Background()

	_, err := persons.Create(ctx, &domain.Person{
		Name:             "张三",
		IDCard:           sql.NullString{String: "110101199001011234", Valid: true},
		PersonType:       domain.DefaultPersonType,
		LivingBuildingID: sql.NullInt64{Int64: b.ID, Valid: true},
		AddressDetail:    sql.NullString{String: "1单元101室", Valid: true},
		LivingBuildingName: sql.NullString{String: "望江苑", Valid: true},
	})
	require.NoError(t, err)

	file, err := svc.ExportPersons(ctx, admin)
	require.NoError(t, err)

	// 清空再导回
	persons.persons = map[int64]*domain.Person{}
	summary, err := svc.ImportPersons(ctx, admin, file.Content)
	require.NoError(t, err)
	require.Equal(t, 1, summary.Total)
	require.Equal(t, 1, summary.Success)
	require.Equal(t, 0, summary.Failed)

	restored, _, err := persons.List(ctx, repository.PersonFilter{}, 1, 20)
	require.NoError(t, err)
	require.Len(t, restored, 1)
	require.Equal(t, "张三", restored[0].Name)
	require.Equal(t, b.ID, restored[0].LivingBuildingID.Int64)
}

func TestImportPersons_MissingRequiredColumns(t *testing.T) {
	svc, _, _, _ := importExportFixture(t)
	admin := newTestPrincipal(t, 1, "admin", []string{domain.RoleSuperAdmin}, nil)

	cols := []Column{{"姓名", "必填，真实姓名"}, {"联系电话", "可选"}}
	content := buildImportFile(t, cols, []map[string]string{{"姓名": "张三"}})

	_, err := svc.ImportPersons(context.Background(), admin, content)
	require.ErrorContains(t, err, "缺少必填列")
	require.ErrorContains(t, err, "现住小区/建筑")
}

// 建筑名模糊匹配到多个 → 该行失败，不是随便选一个
func TestImportPersons_AmbiguousBuilding(t *testing.T) {
	svc, persons, buildings, _ := importExportFixture(t)
	buildings.add(&domain.Building{Name: "阳光苑一期", Type: domain.BuildingResidentialComplex})
	buildings.add(&domain.Building{Name: "阳光苑二期", Type: domain.BuildingResidentialComplex})
	admin := newTestPrincipal(t, 1, "admin", []string{domain.RoleSuperAdmin}, nil)

	content := buildImportFile(t, PersonColumns, []map[string]string{
		{"姓名": "张三", "现住小区/建筑": "阳光苑", "现住详细门牌": "101"},
	})
	summary, err := svc.ImportPersons(context.Background(), admin, content)
	require.NoError(t, err)
	require.Equal(t, 0, summary.Success)
	require.Equal(t, 1, summary.Failed)
	require.Contains(t, summary.Message, "匹配到多个")
	require.Empty(t, persons.persons)
}

// 精确命中优先于模糊命中：存在同名建筑时不算歧义
func TestImportPersons_ExactMatchWins(t *testing.T) {
	svc, persons, buildings, _ := importExportFixture(t)
	exact := buildings.add(&domain.Building{Name: "阳光苑", Type: domain.BuildingResidentialComplex})
	buildings.add(&domain.Building{Name: "阳光苑一期", Type: domain.BuildingResidentialComplex})
	admin := newTestPrincipal(t, 1, "admin", []string{domain.RoleSuperAdmin}, nil)

	content := buildImportFile(t, PersonColumns, []map[string]string{
		{"姓名": "张三", "现住小区/建筑": "阳光苑", "现住详细门牌": "101"},
	})
	summary, err := svc.ImportPersons(context.Background(), admin, content)
	require.NoError(t, err)
	require.Equal(t, 1, summary.Success)
	require.Equal(t, exact.ID, persons.persons[1].LivingBuildingID.Int64)
}

// 网格用户逐行权限：非负责网格的行失败，其余行照常入库
func TestImportPersons_PerRowGridPermission(t *testing.T) {
	svc, persons, buildings, _ := importExportFixture(t)
	buildings.add(&domain.Building{Name: "甲苑", Type: domain.BuildingResidentialComplex,
		GridID: sql.NullInt64{Int64: 7, Valid: true}})
	buildings.add(&domain.Building{Name: "乙苑", Type: domain.BuildingResidentialComplex,
		GridID: sql.NullInt64{Int64: 9, Valid: true}})
	user := newTestPrincipal(t, 2, "gw01", []string{domain.RoleGridUser}, []int64{7})

	content := buildImportFile(t, PersonColumns, []map[string]string{
		{"姓名": "张三", "现住小区/建筑": "甲苑", "现住详细门牌": "101"},
		{"姓名": "李四", "现住小区/建筑": "乙苑", "现住详细门牌": "202"},
	})
	summary, err := svc.ImportPersons(context.Background(), user, content)
	require.NoError(t, err)
	require.Equal(t, 1, summary.Success)
	require.Equal(t, 1, summary.Failed)
	require.Contains(t, summary.Message, "无权操作该网格建筑 '乙苑'")
	require.Len(t, persons.persons, 1)
}

// 身份证重复的行按"自动跳过"计入失败，批次继续
func TestImportPersons_DuplicateSkipped(t *testing.T) {
	svc, persons, buildings, _ := importExportFixture(t)
	buildings.add(&domain.Building{Name: "甲苑", Type: domain.BuildingResidentialComplex})
	admin := newTestPrincipal(t, 1, "admin", []string{domain.RoleSuperAdmin}, nil)

	content := buildImportFile(t, PersonColumns, []map[string]string{
		{"姓名": "张三", "身份证号": "110101199001011234", "现住小区/建筑": "甲苑", "现住详细门牌": "101"},
		{"姓名": "张三三", "身份证号": "110101199001011234", "现住小区/建筑": "甲苑", "现住详细门牌": "101"},
		{"姓名": "李四", "现住小区/建筑": "甲苑", "现住详细门牌": "202"},
	})
	summary, err := svc.ImportPersons(context.Background(), admin, content)
	require.NoError(t, err)
	require.Equal(t, 3, summary.Total)
	require.Equal(t, 2, summary.Success)
	require.Equal(t, 1, summary.Failed)
	require.Contains(t, summary.Message, "重复人员，自动跳过")
	require.Len(t, persons.persons, 2)
}

func TestImportPersons_LenientParsing(t *testing.T) {
	svc, persons, buildings, _ := importExportFixture(t)
	buildings.add(&domain.Building{Name: "甲苑", Type: domain.BuildingResidentialComplex})
	admin := newTestPrincipal(t, 1, "admin", []string{domain.RoleSuperAdmin}, nil)

	content := buildImportFile(t, PersonColumns, []map[string]string{
		{"姓名": "张三", "现住小区/建筑": "甲苑", "现住详细门牌": "101",
			"性别": "M", "是否重点人员": "重点", "是否已迁出": "不知道", "人员类型": ""},
	})
	summary, err := svc.ImportPersons(context.Background(), admin, content)
	require.NoError(t, err)
	require.Equal(t, 1, summary.Success)

	p := persons.persons[1]
	require.Equal(t, "男", p.Gender.String)
	require.True(t, p.IsKeyPerson)
	require.False(t, p.IsMigratedOut)
	require.Equal(t, domain.DefaultPersonType, p.PersonType)
}

func TestImportBuildings_TypeAliasesAndConflicts(t *testing.T) {
	svc, _, buildings, grids := importExportFixture(t)
	g := grids.add("第一网格", false)
	admin := newTestPrincipal(t, 1, "admin", []string{domain.RoleSuperAdmin}, nil)

	content := buildImportFile(t, BuildingColumns, []map[string]string{
		{"小区/建筑名称": "望江苑", "类型": "住宅小区", "所属网格": "第一网格"},
		{"小区/建筑名称": "城市广场", "类型": "商业大厦", "所属网格": "第一网格"},
		{"小区/建筑名称": "望江苑", "类型": "公寓", "所属网格": "第一网格"}, // 同网格同名
		{"小区/建筑名称": "白房子", "类型": "城堡", "所属网格": "第一网格"},
		{"小区/建筑名称": "黑房子", "类型": "住宅小区", "所属网格": "不存在的网格"},
	})
	summary, err := svc.ImportBuildings(context.Background(), admin, content)
	require.NoError(t, err)
	require.Equal(t, 5, summary.Total)
	require.Equal(t, 2, summary.Success)
	require.Equal(t, 3, summary.Failed)
	require.Contains(t, summary.Message, "已存在同名建筑 '望江苑'")
	require.Contains(t, summary.Message, "未知建筑类型 '城堡'")
	require.Contains(t, summary.Message, "未找到网格")

	list, err := buildings.List(context.Background(), repository.BuildingFilter{GridID: g.ID})
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, domain.BuildingCommercial, list[1].Type)
}

func TestExportBuildings_GridScope(t *testing.T) {
	svc, _, buildings, grids := importExportFixture(t)
	g1 := grids.add("东区", false)
	g2 := grids.add("西区", false)
	buildings.add(&domain.Building{Name: "甲苑", Type: domain.BuildingResidentialComplex,
		GridID: sql.NullInt64{Int64: g1.ID, Valid: true},
		GridName: sql.NullString{String: g1.Name, Valid: true}})
	buildings.add(&domain.Building{Name: "乙苑", Type: domain.BuildingResidentialComplex,
		GridID: sql.NullInt64{Int64: g2.ID, Valid: true},
		GridName: sql.NullString{String: g2.Name, Valid: true}})

	user := newTestPrincipal(t, 2, "gw01", []string{domain.RoleGridUser}, []int64{g1.ID})
	file, err := svc.ExportBuildings(context.Background(), user)
	require.NoError(t, err)
	// 单网格负责人的文件名带网格名
	require.True(t, strings.HasPrefix(file.Filename, "小区建筑数据_东区_"))

	f, err := excelize.OpenReader(bytes.NewReader(file.Content))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Building")
	require.NoError(t, err)
	require.Len(t, rows, 3) // 表头 + 注释 + 自己网格的 1 行
	require.Equal(t, "甲苑", rows[2][0])
	require.Equal(t, "住宅小区", rows[2][1])
}

// 导出"类型"列用标准中文名（商业建筑/大型出租房），和老系统的导出保持一致
func TestExportBuildings_TypeLabels(t *testing.T) {
	svc, _, buildings, _ := importExportFixture(t)
	buildings.add(&domain.Building{Name: "城市广场", Type: domain.BuildingCommercial})
	buildings.add(&domain.Building{Name: "幸福公寓", Type: domain.BuildingLargeRental})

	admin := newTestPrincipal(t, 1, "admin", []string{domain.RoleSuperAdmin}, nil)
	file, err := svc.ExportBuildings(context.Background(), admin)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(file.Content))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Building")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	require.Equal(t, "商业建筑", rows[2][1])
	require.Equal(t, "大型出租房", rows[3][1])
}

// 没有任何负责网格的非管理员导出空文件
func TestExportPersons_NoManagedGridsEmpty(t *testing.T) {
	svc, persons, buildings, _ := importExportFixture(t)
	b := buildings.add(&domain.Building{Name: "甲苑", Type: domain.BuildingResidentialComplex})
	_, err := persons.Create(context.Background(), &domain.Person{
		Name: "张三", PersonType: domain.DefaultPersonType,
		LivingBuildingID: sql.NullInt64{Int64: b.ID, Valid: true},
	})
	require.NoError(t, err)

	user := newTestPrincipal(t, 2, "gw01", []string{domain.RoleGridUser}, nil)
	file, err := svc.ExportPersons(context.Background(), user)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(file.Content))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("人员数据")
	require.NoError(t, err)
	require.Len(t, rows, 2) // 只有表头和注释
}

func TestImportStatus_AlwaysIdle(t *testing.T) {
	svc, _, _, _ := importExportFixture(t)
	status := svc.Status(context.Background())
	require.False(t, status.Running)
}
