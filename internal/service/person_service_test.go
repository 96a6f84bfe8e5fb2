package service

import (
	"context"
	"database/sql"
	"testing"

	"cortana-grid/internal/domain"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func personFixture(t *testing.T) (PersonService, *fakePersonsRepo, *fakeBuildingsRepo) {
	t.Helper()
	persons := newFakePersonsRepo()
	buildings := newFakeBuildingsRepo()
	return NewPersonService(persons, buildings, zap.NewNop()), persons, buildings
}

func TestPersonCreate_RequiresLivingBuildingAndAddress(t *testing.T) {
	svc, _, buildings := personFixture(t)
	admin := newTestPrincipal(t, 1, "admin", []string{domain.RoleSuperAdmin}, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, admin, &domain.Person{Name: ""})
	require.EqualError(t, err, "姓名不能为空")

	_, err = svc.Create(ctx, admin, &domain.Person{Name: "张三"})
	require.EqualError(t, err, "请选择现住小区/建筑")

	_, err = svc.Create(ctx, admin, &domain.Person{
		Name:             "张三",
		LivingBuildingID: sql.NullInt64{Int64: 42, Valid: true},
	})
	require.EqualError(t, err, "选择的现住建筑不存在")

	b := buildings.add(&domain.Building{Name: "望江苑", Type: domain.BuildingResidentialComplex})
	_, err = svc.Create(ctx, admin, &domain.Person{
		Name:             "张三",
		LivingBuildingID: sql.NullInt64{Int64: b.ID, Valid: true},
	})
	require.EqualError(t, err, "现住详细门牌不能为空")

	id, err := svc.Create(ctx, admin, &domain.Person{
		Name:             "张三",
		LivingBuildingID: sql.NullInt64{Int64: b.ID, Valid: true},
		AddressDetail:    sql.NullString{String: "1单元101室", Valid: true},
	})
	require.NoError(t, err)
	require.NotZero(t, id)
}

// 身份证唯一冲突给出带号码的提示
func TestPersonCreate_DuplicateIDCard(t *testing.T) {
	svc, _, buildings := personFixture(t)
	b := buildings.add(&domain.Building{Name: "望江苑", Type: domain.BuildingResidentialComplex})
	admin := newTestPrincipal(t, 1, "admin", []string{domain.RoleSuperAdmin}, nil)
	ctx := context.Background()

	newPerson := func(name string) *domain.Person {
		return &domain.Person{
			Name:             name,
			IDCard:           sql.NullString{String: "110101199001011234", Valid: true},
			LivingBuildingID: sql.NullInt64{Int64: b.ID, Valid: true},
			AddressDetail:    sql.NullString{String: "1单元101室", Valid: true},
		}
	}
	_, err := svc.Create(ctx, admin, newPerson("张三"))
	require.NoError(t, err)

	_, err = svc.Create(ctx, admin, newPerson("李四"))
	require.EqualError(t, err, "身份证号 110101199001011234 已存在")
}

func TestPersonUpdate_PatchValidation(t *testing.T) {
	svc, persons, buildings := personFixture(t)
	b := buildings.add(&domain.Building{Name: "望江苑", Type: domain.BuildingResidentialComplex})
	admin := newTestPrincipal(t, 1, "admin", []string{domain.RoleSuperAdmin}, nil)
	ctx := context.Background()

	pid, err := persons.Create(ctx, &domain.Person{
		Name:             "张三",
		PersonType:       domain.DefaultPersonType,
		LivingBuildingID: sql.NullInt64{Int64: b.ID, Valid: true},
		AddressDetail:    sql.NullString{String: "1单元101室", Valid: true},
	})
	require.NoError(t, err)

	err = svc.Update(ctx, admin, pid, domain.PersonPatch{
		AddressDetail: sql.NullString{String: "  ", Valid: true},
	})
	require.EqualError(t, err, "现住详细门牌不能为空")

	err = svc.Update(ctx, admin, pid, domain.PersonPatch{
		LivingBuildingID: sql.NullInt64{Int64: 42, Valid: true},
	})
	require.EqualError(t, err, "选择的现住建筑不存在")

	// 未提供的字段不动
	err = svc.Update(ctx, admin, pid, domain.PersonPatch{
		IsKeyPerson: sql.NullBool{Bool: true, Valid: true},
	})
	require.NoError(t, err)
	require.Equal(t, "张三", persons.persons[pid].Name)
	require.True(t, persons.persons[pid].IsKeyPerson)
}

// 软删除单向幂等
func TestPersonDelete_Idempotent(t *testing.T) {
	svc, persons, buildings := personFixture(t)
	b := buildings.add(&domain.Building{Name: "望江苑", Type: domain.BuildingResidentialComplex})
	admin := newTestPrincipal(t, 1, "admin", []string{domain.RoleSuperAdmin}, nil)
	ctx := context.Background()

	pid, err := persons.Create(ctx, &domain.Person{
		Name:             "张三",
		PersonType:       domain.DefaultPersonType,
		LivingBuildingID: sql.NullInt64{Int64: b.ID, Valid: true},
	})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, admin, pid))
	require.NoError(t, svc.Delete(ctx, admin, pid))

	_, err = svc.Get(ctx, pid)
	require.EqualError(t, err, "人员记录不存在")
}
