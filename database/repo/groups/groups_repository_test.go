package groups

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/anoixa/pattern-vault/database/dbtest"
	"github.com/anoixa/pattern-vault/database/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func seedUsers(t *testing.T, db *gorm.DB, n int) []models.User {
	t.Helper()
	users := make([]models.User, n)
	for i := range users {
		users[i] = models.User{Email: fmt.Sprintf("user%d@example.com", i), PasswordHash: "x"}
		require.NoError(t, db.Create(&users[i]).Error)
	}
	return users
}

func newGroup(t *testing.T, repo *Repository, adminID uint, code string) *models.Group {
	t.Helper()
	g := &models.Group{Name: "group " + code, InviteCode: code, AdminID: adminID}
	require.NoError(t, repo.CreateWithAdmin(context.Background(), g))
	return g
}

func assertConsistent(t *testing.T, repo *Repository) {
	t.Helper()
	violations, err := repo.CheckInvariants(context.Background())
	require.NoError(t, err)
	assert.Empty(t, violations)
}

func TestCreateWithAdmin(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	ctx := context.Background()
	users := seedUsers(t, db, 1)

	g := newGroup(t, repo, users[0].ID, "ABC123")
	assert.NotZero(t, g.ID)

	ok, err := repo.IsMember(ctx, g.ID, users[0].ID)
	require.NoError(t, err)
	assert.True(t, ok)

	exists, err := repo.InviteCodeExists(ctx, "ABC123")
	require.NoError(t, err)
	assert.True(t, exists)

	err = repo.CreateWithAdmin(ctx, &models.Group{Name: "dup", InviteCode: "ABC123", AdminID: users[0].ID})
	assert.ErrorIs(t, err, ErrInviteCodeTaken)

	ids, err := repo.ListMemberIDs(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{users[0].ID}, ids)

	assertConsistent(t, repo)
}

func TestAddMember(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	ctx := context.Background()
	users := seedUsers(t, db, 2)
	g := newGroup(t, repo, users[0].ID, "JOIN01")

	require.NoError(t, repo.AddMember(ctx, g.ID, users[1].ID))
	assert.ErrorIs(t, repo.AddMember(ctx, g.ID, users[1].ID), ErrAlreadyMember)
	assert.ErrorIs(t, repo.AddMember(ctx, g.ID, users[0].ID), ErrAlreadyMember)
	assert.ErrorIs(t, repo.AddMember(ctx, 9999, users[1].ID), ErrGroupNotFound)

	members, err := repo.ListMembers(ctx, g.ID)
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, users[0].Email, members[0].Email)
	assert.True(t, members[0].IsAdmin)
	assert.False(t, members[1].IsAdmin)

	assertConsistent(t, repo)
}

func TestAddMemberConcurrentSameUser(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	ctx := context.Background()
	users := seedUsers(t, db, 2)
	g := newGroup(t, repo, users[0].ID, "RACE01")

	const attempts = 10
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = repo.AddMember(ctx, g.ID, users[1].ID)
		}(i)
	}
	wg.Wait()

	success := 0
	for _, err := range errs {
		if err == nil {
			success++
		} else {
			assert.ErrorIs(t, err, ErrAlreadyMember)
		}
	}
	assert.Equal(t, 1, success)

	var count int64
	require.NoError(t, db.Model(&models.GroupMembership{}).Where("group_id = ? AND user_id = ?", g.ID, users[1].ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestLeaveMember(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	ctx := context.Background()
	users := seedUsers(t, db, 3)
	g := newGroup(t, repo, users[0].ID, "LEAVE1")
	require.NoError(t, repo.AddMember(ctx, g.ID, users[1].ID))

	res, err := repo.Leave(ctx, g.ID, users[1].ID)
	require.NoError(t, err)
	assert.False(t, res.GroupDeleted)
	assert.Zero(t, res.NewAdminID)

	ok, err := repo.IsMember(ctx, g.ID, users[1].ID)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = repo.Leave(ctx, g.ID, users[2].ID)
	assert.ErrorIs(t, err, ErrNotMember)
	_, err = repo.Leave(ctx, 9999, users[0].ID)
	assert.ErrorIs(t, err, ErrGroupNotFound)

	assertConsistent(t, repo)
}

func TestLeaveAdminPromotesOldestMember(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	ctx := context.Background()
	users := seedUsers(t, db, 3)
	g := newGroup(t, repo, users[0].ID, "PROMO1")
	require.NoError(t, repo.AddMember(ctx, g.ID, users[1].ID))
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, repo.AddMember(ctx, g.ID, users[2].ID))

	res, err := repo.Leave(ctx, g.ID, users[0].ID)
	require.NoError(t, err)
	assert.False(t, res.GroupDeleted)
	assert.Equal(t, users[1].ID, res.NewAdminID)

	updated, err := repo.GetByID(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, users[1].ID, updated.AdminID)

	assertConsistent(t, repo)
}

func TestLeaveSoleAdminDeletesGroup(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	ctx := context.Background()
	users := seedUsers(t, db, 1)
	g := newGroup(t, repo, users[0].ID, "SOLO01")

	groupID := g.ID
	require.NoError(t, db.Create(&models.Page{OwnerID: users[0].ID, GroupID: &groupID, Title: "notes", LastEdited: time.Now()}).Error)

	res, err := repo.Leave(ctx, g.ID, users[0].ID)
	require.NoError(t, err)
	assert.True(t, res.GroupDeleted)

	_, err = repo.GetByID(ctx, g.ID)
	assert.ErrorIs(t, err, ErrGroupNotFound)

	var pages int64
	require.NoError(t, db.Model(&models.Page{}).Count(&pages).Error)
	assert.Zero(t, pages)

	assertConsistent(t, repo)
}

func TestDeleteCascades(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	ctx := context.Background()
	users := seedUsers(t, db, 2)
	g := newGroup(t, repo, users[0].ID, "CASC01")
	require.NoError(t, repo.AddMember(ctx, g.ID, users[1].ID))

	groupID := g.ID
	album := models.Album{OwnerID: users[1].ID, GroupID: &groupID, Name: "trip"}
	require.NoError(t, db.Create(&album).Error)
	require.NoError(t, db.Create(&models.AlbumPhoto{AlbumID: album.ID, Filename: "a.jpg", StorageKey: "photos/a.jpg", UploadedAt: time.Now()}).Error)
	require.NoError(t, db.Create(&models.Page{OwnerID: users[1].ID, GroupID: &groupID, Title: "plan", LastEdited: time.Now()}).Error)

	personal := models.Album{OwnerID: users[1].ID, Name: "mine"}
	require.NoError(t, db.Create(&personal).Error)

	_, err := repo.Delete(ctx, g.ID, users[1].ID)
	assert.ErrorIs(t, err, ErrNotAdmin)

	keys, err := repo.Delete(ctx, g.ID, users[0].ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"photos/a.jpg"}, keys)

	for _, uid := range []uint{users[0].ID, users[1].ID} {
		ok, err := repo.IsMember(ctx, g.ID, uid)
		require.NoError(t, err)
		assert.False(t, ok)
	}

	var albums, photos, pages int64
	require.NoError(t, db.Model(&models.Album{}).Count(&albums).Error)
	require.NoError(t, db.Model(&models.AlbumPhoto{}).Count(&photos).Error)
	require.NoError(t, db.Model(&models.Page{}).Count(&pages).Error)
	assert.Equal(t, int64(1), albums)
	assert.Zero(t, photos)
	assert.Zero(t, pages)

	_, err = repo.Delete(ctx, g.ID, users[0].ID)
	assert.ErrorIs(t, err, ErrGroupNotFound)

	assertConsistent(t, repo)
}

func TestCheckInvariantsReportsViolations(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	users := seedUsers(t, db, 2)

	// 绕过仓库直接写入，模拟不一致的数据
	require.NoError(t, db.Create(&models.Group{Name: "broken", InviteCode: "BROKE1", AdminID: users[0].ID}).Error)
	require.NoError(t, db.Create(&models.GroupMembership{UserID: users[1].ID, GroupID: 4242, JoinedAt: time.Now()}).Error)

	violations, err := repo.CheckInvariants(context.Background())
	require.NoError(t, err)

	rules := make(map[string]bool)
	for _, v := range violations {
		rules[v.Rule] = true
	}
	assert.True(t, rules["admin_is_member"])
	assert.True(t, rules["membership_group_exists"])
	assert.False(t, rules["membership_user_exists"])
}

func TestLockMembership(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	ctx := context.Background()
	users := seedUsers(t, db, 2)
	g := newGroup(t, repo, users[0].ID, "LOCK01")

	err := db.Transaction(func(tx *gorm.DB) error {
		return LockMembership(tx, g.ID, users[0].ID)
	})
	assert.NoError(t, err)
	err = db.Transaction(func(tx *gorm.DB) error {
		return LockMembership(tx, g.ID, users[1].ID)
	})
	assert.ErrorIs(t, err, ErrNotMember)

	_, err = repo.Delete(ctx, g.ID, users[0].ID)
	require.NoError(t, err)
	err = db.Transaction(func(tx *gorm.DB) error {
		return LockMembership(tx, g.ID, users[0].ID)
	})
	assert.ErrorIs(t, err, ErrGroupNotFound)
	assert.ErrorIs(t, repo.AddMember(ctx, g.ID, users[1].ID), ErrGroupNotFound)
	assertConsistent(t, repo)
}
