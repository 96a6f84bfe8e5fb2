package service

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Column 导入导出共用的列定义。Header 是冻结的交换格式：
// 导出写它，导入按它定位列，两边不可能漂移。
type Column struct {
	Header string
	Hint   string
}

func headersOf(cols []Column) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.Header
	}
	return out
}

// PersonColumns 人员导入导出列（34 列，顺序即文件列序）
var PersonColumns = []Column{
	{"姓名", "必填，真实姓名"},
	{"身份证号", "可选，18位身份证号（无证可留空）"},
	{"唯一标识", "系统内部唯一标识（可选）"},
	{"护照/其他证件号码", "护照或其他证件号码"},
	{"其他证件类型", "护照/军人证/港澳通行证等"},
	{"性别", "男/女（支持：男、M、1；女、F、0）"},
	{"出生日期", "格式：YYYYMMDD"},
	{"联系电话", "多个用;分隔，可选"},
	{"现住小区/建筑", "系统内现住建筑名称（必填）"},
	{"现住详细门牌", "如1单元101室（必填）"},
	{"所属网格", "自动关联，无需填写"},
	{"与其他人员关系", "如：户主、配偶、子女、父母、租户（可选）"},
	{"人员类型", "常住人口/流动人口"},
	{"是否重点人员", "是/否 或 1/0"},
	{"重点类别", "多个类别用,分隔，如独居老人,低保户"},
	{"户籍小区/建筑", "本社区户籍建筑名称（可选）"},
	{"户籍详细地址", "外地户籍填写完整地址"},
	{"户编号", "家庭编号（如001、A001）"},
	{"户号", "户口本户号"},
	{"户籍迁入日期", "格式：YYYYMMDD"},
	{"是否人户分离", "是/否 或 1/0"},
	{"实际居住地", "人户分离时的实际居住地址"},
	{"是否已迁出", "是/否 或 1/0"},
	{"迁出日期", "格式：YYYYMMDD"},
	{"迁往地", "迁往省市区"},
	{"是否已死亡", "是/否 或 1/0"},
	{"死亡日期", "格式：YYYYMMDD"},
	{"民族", "如汉族、回族"},
	{"政治面貌", "如中共党员、群众"},
	{"婚姻状况", "未婚/已婚/离异/丧偶"},
	{"文化程度", "小学/初中/高中/本科等"},
	{"工作/学习情况", "在职/在校/退休/无业等"},
	{"健康状况", "健康/良好/慢性病/残疾等"},
	{"备注", "其他补充信息"},
}

// BuildingColumns 建筑导入导出列（31 列）
var BuildingColumns = []Column{
	{"小区/建筑名称", "必填，在网格内唯一"},
	{"类型", "住宅小区/商业建筑/大型出租房/私人住宅"},
	{"所属网格", "必填，网格名称"},
	{"详细地址", "完整街道门牌号"},
	{"建成年份", "如2015"},
	{"户数", "总户数"},
	{"楼栋数", "楼栋数量"},
	{"约居住人数", "预估居住人数"},
	{"企业数", "含居家办公企业"},
	{"底商数", "底商店铺数量"},
	{"是否通燃气", "1=是，0=否"},
	{"物业费标准", "如2.5元/㎡/月"},
	{"电梯数", "电梯总数"},
	{"室内车位数", "室内停车位"},
	{"室外车位数", "室外停车位"},
	{"安全负责人", "安全负责人姓名"},
	{"安全负责人电话", "联系电话"},
	{"纬度", "可选，十进制纬度"},
	{"经度", "可选，十进制经度"},
	{"开发商", "开发商名称"},
	{"施工单位", "施工单位名称"},
	{"物业公司", "物业公司全称"},
	{"物业联系电话", "物业联系电话"},
	{"备注", "其他补充信息"},
	{"业委会联系人", "住宅小区专用"},
	{"业委会联系电话", "住宅小区专用"},
	{"业主姓名", "私人住宅专用"},
	{"业主电话", "私人住宅专用"},
	{"房东姓名", "大型出租房专用"},
	{"房东电话", "大型出租房专用"},
	{"商业类型", "商业建筑专用（如商场、写字楼）"},
}

// buildWorkbook 生成双表头工作簿：第 1 行表头（加粗居中），第 2 行
// 填写注释，数据从第 3 行开始，表头两行冻结。
func buildWorkbook(sheetName string, cols []Column, rows [][]any) ([]byte, error) {
	f := excelize.NewFile()
	// WriteTo 之前不能 Close

	index, err := f.NewSheet(sheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}
	hintStyle, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{
			Vertical: "center",
			WrapText: true,
		},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create hint style: %w", err)
	}

	for i, col := range cols {
		headerCell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		hintCell, err := excelize.CoordinatesToCellName(i+1, 2)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(sheetName, headerCell, col.Header); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header cell %s: %w", headerCell, err)
		}
		if err := f.SetCellStyle(sheetName, headerCell, headerCell, headerStyle); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header style: %w", err)
		}
		if err := f.SetCellValue(sheetName, hintCell, col.Hint); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set hint cell %s: %w", hintCell, err)
		}
		if err := f.SetCellStyle(sheetName, hintCell, hintCell, hintStyle); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set hint style: %w", err)
		}

		// 列宽按表头/注释长度估算，封顶 50
		width := float64(len([]rune(col.Header))*2 + 4)
		if w := float64(len([]rune(col.Hint)) + 4); w > width {
			width = w
		}
		if width > 50 {
			width = 50
		}
		colName, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert column number: %w", err)
		}
		if err := f.SetColWidth(sheetName, colName, colName, width); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}

	for rowIdx, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, rowIdx+3)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write row %d: %w", rowIdx+3, err)
		}
	}

	// 冻结表头和注释两行
	if err := f.SetPanes(sheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      2,
		TopLeftCell: "A3",
		ActivePane:  "bottomLeft",
	}); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to freeze panes: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to serialize workbook: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// sheetTable 读入的表格：表头名 → 列号映射，数据行按文件行号索引
type sheetTable struct {
	colIndex map[string]int
	rows     [][]string
	// firstDataRow 首个数据行在文件中的行号（1 起）
	firstDataRow int
}

// readSheetTable 解析上传的工作簿首个工作表。
// 第 1 行是表头；第 2 行若与 cols 的注释文本一致则按注释行跳过。
func readSheetTable(data []byte, cols []Column) (*sheetTable, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("无法读取 Excel 文件：%w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("Excel 文件中没有工作表")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("Excel 文件内容为空")
	}

	t := &sheetTable{colIndex: map[string]int{}, firstDataRow: 2}
	for i, header := range rows[0] {
		header = strings.TrimSpace(header)
		if header != "" {
			t.colIndex[header] = i
		}
	}

	body := rows[1:]
	if len(body) > 0 && len(cols) > 0 && len(body[0]) > 0 &&
		strings.TrimSpace(body[0][0]) == cols[0].Hint {
		body = body[1:]
		t.firstDataRow = 3
	}
	t.rows = body
	return t, nil
}

// cell 按表头名取单元格值（去除首尾空白，列缺失返回空串）
func (t *sheetTable) cell(row []string, header string) string {
	idx, ok := t.colIndex[header]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// hasColumns 检查必填列是否齐全，返回缺失的列名
func (t *sheetTable) missingColumns(required []string) []string {
	missing := []string{}
	for _, name := range required {
		if _, ok := t.colIndex[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

// parseLenientBool 宽松布尔解析（大小写不敏感），识别不了的一律 false
func parseLenientBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "是", "true", "yes", "y", "有", "重点", "是重点":
		return true
	}
	return false
}

// parseGender 性别归一化为 男/女，识别不了返回空串
func parseGender(v string) string {
	switch strings.TrimSpace(v) {
	case "男", "男性", "M", "m", "1", "男士":
		return "男"
	case "女", "女性", "F", "f", "0", "女士":
		return "女"
	}
	return ""
}

// boolToCN 布尔转导出显示
func boolToCN(v bool) string {
	if v {
		return "是"
	}
	return "否"
}
