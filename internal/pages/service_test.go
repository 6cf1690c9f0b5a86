package pages

import (
	"context"
	"testing"
	"time"

	"github.com/anoixa/pattern-vault/database/dbtest"
	"github.com/anoixa/pattern-vault/database/models"
	groupsRepo "github.com/anoixa/pattern-vault/database/repo/groups"
	pagesRepo "github.com/anoixa/pattern-vault/database/repo/pages"
	"github.com/anoixa/pattern-vault/internal/access"
	"github.com/anoixa/pattern-vault/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	db     *gorm.DB
	svc    *Service
	groups *groupsRepo.Repository
	users  []models.User
	group  *models.Group
}

func setup(t *testing.T) fixture {
	t.Helper()
	db := dbtest.Open(t)
	groups := groupsRepo.NewRepository(db)
	users := dbtest.SeedUsers(t, db, 3)

	g := &models.Group{Name: "team", InviteCode: "TEAM01", AdminID: users[0].ID}
	require.NoError(t, groups.CreateWithAdmin(context.Background(), g))
	require.NoError(t, groups.AddMember(context.Background(), g.ID, users[1].ID))

	svc := NewService(pagesRepo.NewRepository(db), access.NewGuard(groups))
	return fixture{db: db, svc: svc, groups: groups, users: users, group: g}
}

func TestCreateDefaultsTitle(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	p, err := f.svc.Create(ctx, f.users[0].ID, access.Personal(), "")
	require.NoError(t, err)
	assert.Equal(t, DefaultPersonalTitle, p.Title)
	assert.Nil(t, p.GroupID)

	p, err = f.svc.Create(ctx, f.users[1].ID, access.Group(f.group.ID), "  ")
	require.NoError(t, err)
	assert.Equal(t, DefaultGroupTitle, p.Title)
	require.NotNil(t, p.GroupID)
	assert.Equal(t, f.group.ID, *p.GroupID)
}

func TestScopeIsolation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	outsider := f.users[2].ID

	shared, err := f.svc.Create(ctx, f.users[0].ID, access.Group(f.group.ID), "Plans")
	require.NoError(t, err)
	// 外部用户有一个同名个人页面
	own, err := f.svc.Create(ctx, outsider, access.Personal(), "Plans")
	require.NoError(t, err)

	_, err = f.svc.List(ctx, outsider, access.Group(f.group.ID))
	assert.ErrorIs(t, err, errs.ErrAuthorization)
	_, err = f.svc.Create(ctx, outsider, access.Group(f.group.ID), "sneaky")
	assert.ErrorIs(t, err, errs.ErrAuthorization)
	_, err = f.svc.Get(ctx, outsider, shared.ID)
	assert.ErrorIs(t, err, errs.ErrAuthorization)
	assert.ErrorIs(t, f.svc.Delete(ctx, outsider, shared.ID), errs.ErrAuthorization)

	// 个人页面对其他人不可见，即使同在一个群组
	_, err = f.svc.Get(ctx, f.users[0].ID, own.ID)
	assert.ErrorIs(t, err, errs.ErrAuthorization)

	personal, err := f.svc.List(ctx, outsider, access.Personal())
	require.NoError(t, err)
	require.Len(t, personal, 1)
	assert.Equal(t, own.ID, personal[0].ID)

	groupPages, err := f.svc.List(ctx, f.users[1].ID, access.Group(f.group.ID))
	require.NoError(t, err)
	require.Len(t, groupPages, 1)
	assert.Equal(t, shared.ID, groupPages[0].ID)
}

func TestUpdateAndDelete(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	p, err := f.svc.Create(ctx, f.users[0].ID, access.Group(f.group.ID), "draft")
	require.NoError(t, err)
	before := p.LastEdited

	time.Sleep(5 * time.Millisecond)
	content := "hello"
	updated, err := f.svc.Update(ctx, f.users[1].ID, p.ID, nil, &content)
	require.NoError(t, err)
	assert.Equal(t, "draft", updated.Title)
	assert.Equal(t, "hello", updated.Content)
	assert.True(t, updated.LastEdited.After(before))

	empty := " "
	_, err = f.svc.Update(ctx, f.users[1].ID, p.ID, &empty, nil)
	assert.ErrorIs(t, err, errs.ErrValidation)

	// 离开群组后失去编辑权
	_, err = f.groups.Leave(ctx, f.group.ID, f.users[1].ID)
	require.NoError(t, err)
	_, err = f.svc.Update(ctx, f.users[1].ID, p.ID, nil, &content)
	assert.ErrorIs(t, err, errs.ErrAuthorization)

	require.NoError(t, f.svc.Delete(ctx, f.users[0].ID, p.ID))
	_, err = f.svc.Get(ctx, f.users[0].ID, p.ID)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestUnknownGroup(t *testing.T) {
	f := setup(t)
	_, err := f.svc.List(context.Background(), f.users[0].ID, access.Group(9999))
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

// deleteGroupAfterMembershipCheck 在第一次成员关系查询之后删除群组
// 模拟创建请求通过权限检查后、写入之前群组被管理员删除
func deleteGroupAfterMembershipCheck(t *testing.T, f fixture) {
	t.Helper()
	fired := false
	err := f.db.Callback().Query().After("gorm:query").Register("test:delete_group", func(tx *gorm.DB) {
		if fired || tx.Statement.Table != "group_memberships" {
			return
		}
		fired = true
		_, err := f.groups.Delete(context.Background(), f.group.ID, f.users[0].ID)
		assert.NoError(t, err)
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.db.Callback().Query().Remove("test:delete_group") })
}

func TestCreateAfterConcurrentGroupDelete(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	deleteGroupAfterMembershipCheck(t, f)
	_, err := f.svc.Create(ctx, f.users[1].ID, access.Group(f.group.ID), "late")
	assert.ErrorIs(t, err, errs.ErrNotFound)

	var orphans int64
	require.NoError(t, f.db.Model(&models.Page{}).Where("group_id = ?", f.group.ID).Count(&orphans).Error)
	assert.Zero(t, orphans)

	violations, err := f.groups.CheckInvariants(ctx)
	require.NoError(t, err)
	assert.Empty(t, violations)
}
