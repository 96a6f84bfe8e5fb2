package domain

import "database/sql"

// Person 登记人员。现住地址（living_building_id + address_detail）与
// 户籍地址（household_building_id + household_address）是两个独立引用。
type Person struct {
	ID        int64
	Name      string
	IDCard    sql.NullString
	UniqueID  sql.NullString
	Passport  sql.NullString
	OtherIDType sql.NullString
	Gender    sql.NullString
	BirthDate sql.NullString
	Phones    sql.NullString

	PersonType   string
	Relationship sql.NullString

	LivingBuildingID sql.NullInt64
	AddressDetail    sql.NullString

	HouseholdBuildingID sql.NullInt64
	HouseholdAddress    sql.NullString
	FamilyID            sql.NullString
	HouseholdNumber     sql.NullString
	HouseholdEntryDate  sql.NullString

	IsSeparated          bool
	CurrentResidence     sql.NullString
	IsMigratedOut        bool
	HouseholdExitDate    sql.NullString
	MigrationDestination sql.NullString
	IsDeceased           bool
	DeathDate            sql.NullString

	Nationality     sql.NullString
	PoliticalStatus sql.NullString
	MaritalStatus   sql.NullString
	Education       sql.NullString
	WorkStudy       sql.NullString
	Health          sql.NullString
	Notes           sql.NullString

	IsKeyPerson   bool
	KeyCategories sql.NullString

	IsDeleted bool

	// LEFT JOIN 显示字段
	LivingBuildingName    sql.NullString
	BuildingType          sql.NullString
	GridName              sql.NullString
	HouseholdBuildingName sql.NullString
}

// DefaultPersonType 人员类型缺省值
const DefaultPersonType = "常住人口"

// PersonPatch 部分更新：只有 Valid 的字段会进 SET 子句。
// 布尔字段用 sql.NullBool 区分"未提供"和"设为 false"。
type PersonPatch struct {
	Name        sql.NullString
	IDCard      sql.NullString
	UniqueID    sql.NullString
	Passport    sql.NullString
	OtherIDType sql.NullString
	Gender      sql.NullString
	BirthDate   sql.NullString
	Phones      sql.NullString

	PersonType   sql.NullString
	Relationship sql.NullString

	LivingBuildingID sql.NullInt64
	AddressDetail    sql.NullString

	HouseholdBuildingID sql.NullInt64
	HouseholdAddress    sql.NullString
	FamilyID            sql.NullString
	HouseholdNumber     sql.NullString
	HouseholdEntryDate  sql.NullString

	IsSeparated          sql.NullBool
	CurrentResidence     sql.NullString
	IsMigratedOut        sql.NullBool
	HouseholdExitDate    sql.NullString
	MigrationDestination sql.NullString
	IsDeceased           sql.NullBool
	DeathDate            sql.NullString

	Nationality     sql.NullString
	PoliticalStatus sql.NullString
	MaritalStatus   sql.NullString
	Education       sql.NullString
	WorkStudy       sql.NullString
	Health          sql.NullString
	Notes           sql.NullString

	IsKeyPerson   sql.NullBool
	KeyCategories sql.NullString
}

// OverviewStats 首页概览统计
type OverviewStats struct {
	TotalPersons   int `json:"total_persons"`
	TotalBuildings int `json:"total_buildings"`
	TotalGrids     int `json:"total_grids"`
	KeyPersons     int `json:"key_persons"`
}
