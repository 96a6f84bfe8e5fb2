package domain

import "strings"

// Grid 网格：社区的地理/行政分区，下辖建筑，由若干用户负责
type Grid struct {
	ID       int64
	Name     string
	Disabled bool
}

// GridListItem 网格管理页行：负责人显示串 + 负责人 ID 列表
type GridListItem struct {
	Grid
	Managers   string
	ManagerIDs []int64
}

// GridDetail 网格详情：附建筑/人员统计
type GridDetail struct {
	Grid
	Managers      string
	BuildingCount int
	PersonCount   int
}

// VirtualGridPrefix 系统内置网格名前缀，带此前缀的网格不可编辑/禁用
const VirtualGridPrefix = "虚拟网格"

// IsVirtual 是否系统内置网格
func (g *Grid) IsVirtual() bool {
	return strings.HasPrefix(g.Name, VirtualGridPrefix)
}
