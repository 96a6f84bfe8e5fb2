package domain

import "database/sql"

// 建筑类型枚举（数据库存储键）
const (
	BuildingResidentialComplex = "residential_complex"
	BuildingCommercial         = "commercial"
	BuildingLargeRental        = "large_rental"
	BuildingPrivateResidence   = "private_residence"
	BuildingPublic             = "public"
	BuildingOthers             = "others"
)

// BuildingTypeLabels 类型键 → 前端/导出中文显示
var BuildingTypeLabels = map[string]string{
	BuildingResidentialComplex: "住宅小区",
	BuildingCommercial:         "商业建筑",
	BuildingLargeRental:        "大型出租房",
	BuildingPrivateResidence:   "私人住宅",
	BuildingPublic:             "公共设施",
	BuildingOthers:             "其他",
}

// BuildingTypeLabel 类型键转中文；未知键原样返回，空键返回"未知类型"
func BuildingTypeLabel(key string) string {
	if label, ok := BuildingTypeLabels[key]; ok {
		return label
	}
	if key == "" {
		return "未知类型"
	}
	return key
}

// IsValidBuildingType 校验类型键是否在枚举内
func IsValidBuildingType(key string) bool {
	_, ok := BuildingTypeLabels[key]
	return ok
}

// Building 小区/建筑。(name, grid_id) 在未删除行中唯一，由部分唯一索引保证。
type Building struct {
	ID        int64
	Name      string
	Type      string
	GridID    sql.NullInt64
	IsDeleted bool

	Address                   sql.NullString
	BuildYear                 sql.NullInt64
	Households                sql.NullInt64
	BuildingsCount            sql.NullInt64
	ApproxResidents           sql.NullInt64
	BusinessesCount           sql.NullInt64
	GroundFloorShops          sql.NullInt64
	HasGasPipeline            bool
	PropertyFee               sql.NullString
	Elevators                 sql.NullInt64
	IndoorParking             sql.NullInt64
	OutdoorParking            sql.NullInt64
	SecurityManager           sql.NullString
	SecurityManagerPhone      sql.NullString
	Latitude                  sql.NullFloat64
	Longitude                 sql.NullFloat64
	Developer                 sql.NullString
	Constructor               sql.NullString
	PropertyManagementCompany sql.NullString
	PropertyContactPhone      sql.NullString
	Notes                     sql.NullString
	OwnersCommitteeContact    sql.NullString
	OwnersCommitteePhone      sql.NullString
	OwnerName                 sql.NullString
	OwnerPhone                sql.NullString
	LandlordName              sql.NullString
	LandlordPhone             sql.NullString
	CommercialType            sql.NullString

	// LEFT JOIN grid 显示字段
	GridName sql.NullString
}

// BuildingPatch 部分更新：只有 Valid 的字段会进 SET 子句
type BuildingPatch struct {
	Name   sql.NullString
	Type   sql.NullString
	GridID sql.NullInt64
	// SetGridNull 为 true 时把 grid_id 置 NULL（与"未提供"区分开）
	SetGridNull bool

	Address              sql.NullString
	BuildYear            sql.NullInt64
	Households           sql.NullInt64
	ApproxResidents      sql.NullInt64
	HasGasPipeline       sql.NullBool
	PropertyFee          sql.NullString
	SecurityManager      sql.NullString
	SecurityManagerPhone sql.NullString
	Latitude             sql.NullFloat64
	Longitude            sql.NullFloat64
	Notes                sql.NullString
}

// BuildingOption 前端下拉框选项
type BuildingOption struct {
	ID    int64
	Label string
}
