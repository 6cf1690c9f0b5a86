package groups

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/anoixa/pattern-vault/database/dbtest"
	"github.com/anoixa/pattern-vault/database/models"
	groupsRepo "github.com/anoixa/pattern-vault/database/repo/groups"
	"github.com/anoixa/pattern-vault/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type recordingRemover struct {
	mu   sync.Mutex
	keys []string
}

func (r *recordingRemover) RemoveFiles(keys []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys = append(r.keys, keys...)
}

func sequence(codes ...string) CodeGenerator {
	i := 0
	return func() (string, error) {
		if i >= len(codes) {
			return codes[len(codes)-1], nil
		}
		c := codes[i]
		i++
		return c, nil
	}
}

func newService(t *testing.T) (*Service, *groupsRepo.Repository, *gorm.DB, *recordingRemover) {
	t.Helper()
	db := dbtest.Open(t)
	repo := groupsRepo.NewRepository(db)
	remover := &recordingRemover{}
	return NewService(repo, remover), repo, db, remover
}

func assertConsistent(t *testing.T, repo *groupsRepo.Repository) {
	t.Helper()
	violations, err := repo.CheckInvariants(context.Background())
	require.NoError(t, err)
	assert.Empty(t, violations)
}

func TestGroupLifecycle(t *testing.T) {
	svc, repo, db, remover := newService(t)
	ctx := context.Background()
	users := dbtest.SeedUsers(t, db, 3)

	detail, err := svc.CreateGroup(ctx, users[0].ID, "  Family  ")
	require.NoError(t, err)
	assert.Equal(t, "Family", detail.Name)
	assert.Len(t, detail.InviteCode, models.InviteCodeLength)
	require.Len(t, detail.Members, 1)
	assert.True(t, detail.Members[0].IsAdmin)
	assertConsistent(t, repo)

	summary, err := svc.JoinGroup(ctx, users[1].ID, " "+strings.ToLower(detail.InviteCode)+" ")
	require.NoError(t, err)
	assert.Equal(t, detail.ID, summary.ID)
	assertConsistent(t, repo)

	_, err = svc.JoinGroup(ctx, users[1].ID, detail.InviteCode)
	assert.ErrorIs(t, err, errs.ErrValidation)

	_, err = svc.GetGroup(ctx, users[2].ID, detail.ID)
	assert.ErrorIs(t, err, errs.ErrAuthorization)

	got, err := svc.GetGroup(ctx, users[1].ID, detail.ID)
	require.NoError(t, err)
	assert.Len(t, got.Members, 2)

	list, err := svc.ListUserGroups(ctx, users[1].ID)
	require.NoError(t, err)
	require.Len(t, list, 1)

	assert.ErrorIs(t, svc.DeleteGroup(ctx, users[1].ID, detail.ID), errs.ErrAuthorization)

	res, err := svc.LeaveGroup(ctx, users[1].ID, detail.ID)
	require.NoError(t, err)
	assert.False(t, res.GroupDeleted)
	assertConsistent(t, repo)

	_, err = svc.LeaveGroup(ctx, users[1].ID, detail.ID)
	assert.ErrorIs(t, err, errs.ErrAuthorization)

	album := &models.Album{OwnerID: users[0].ID, GroupID: &detail.ID, Name: "trip"}
	require.NoError(t, db.Create(album).Error)
	require.NoError(t, db.Create(&models.AlbumPhoto{AlbumID: album.ID, Filename: "a.png", StorageKey: "photos/a.png"}).Error)

	require.NoError(t, svc.DeleteGroup(ctx, users[0].ID, detail.ID))
	assert.Equal(t, []string{"photos/a.png"}, remover.keys)
	assertConsistent(t, repo)

	_, err = svc.GetGroup(ctx, users[0].ID, detail.ID)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestAdminLeavePromotesOldestMember(t *testing.T) {
	svc, repo, db, _ := newService(t)
	ctx := context.Background()
	users := dbtest.SeedUsers(t, db, 3)

	detail, err := svc.CreateGroup(ctx, users[0].ID, "club")
	require.NoError(t, err)
	_, err = svc.JoinGroup(ctx, users[1].ID, detail.InviteCode)
	require.NoError(t, err)
	_, err = svc.JoinGroup(ctx, users[2].ID, detail.InviteCode)
	require.NoError(t, err)

	res, err := svc.LeaveGroup(ctx, users[0].ID, detail.ID)
	require.NoError(t, err)
	assert.Equal(t, users[1].ID, res.NewAdminID)
	assertConsistent(t, repo)

	got, err := svc.GetGroup(ctx, users[1].ID, detail.ID)
	require.NoError(t, err)
	assert.Equal(t, users[1].ID, got.AdminID)

	_, err = svc.LeaveGroup(ctx, users[1].ID, detail.ID)
	require.NoError(t, err)
	res, err = svc.LeaveGroup(ctx, users[2].ID, detail.ID)
	require.NoError(t, err)
	assert.True(t, res.GroupDeleted)
	assertConsistent(t, repo)
}

func TestCreateGroup_InviteCodeCollisionRetry(t *testing.T) {
	svc, _, db, _ := newService(t)
	ctx := context.Background()
	users := dbtest.SeedUsers(t, db, 2)

	svc.WithCodeGenerator(sequence("AAAAAA"))
	first, err := svc.CreateGroup(ctx, users[0].ID, "one")
	require.NoError(t, err)
	assert.Equal(t, "AAAAAA", first.InviteCode)

	svc.WithCodeGenerator(sequence("AAAAAA", "AAAAAA", "BBBBBB"))
	second, err := svc.CreateGroup(ctx, users[1].ID, "two")
	require.NoError(t, err)
	assert.Equal(t, "BBBBBB", second.InviteCode)
}

func TestCreateGroup_InviteCodeExhaustion(t *testing.T) {
	svc, _, db, _ := newService(t)
	ctx := context.Background()
	users := dbtest.SeedUsers(t, db, 1)

	svc.WithCodeGenerator(sequence("ZZZZZZ"))
	_, err := svc.CreateGroup(ctx, users[0].ID, "taken")
	require.NoError(t, err)

	calls := 0
	svc.WithCodeGenerator(func() (string, error) {
		calls++
		return "ZZZZZZ", nil
	})
	_, err = svc.CreateGroup(ctx, users[0].ID, "again")
	assert.ErrorIs(t, err, errs.ErrServer)
	assert.Equal(t, MaxInviteCodeAttempts, calls)

	svc.WithCodeGenerator(func() (string, error) { return "", errors.New("entropy") })
	_, err = svc.CreateGroup(ctx, users[0].ID, "broken")
	assert.ErrorIs(t, err, errs.ErrServer)
}

func TestCreateGroup_Validation(t *testing.T) {
	svc, _, db, _ := newService(t)
	users := dbtest.SeedUsers(t, db, 1)

	for _, name := range []string{"", "   ", strings.Repeat("x", MaxNameLength+1)} {
		_, err := svc.CreateGroup(context.Background(), users[0].ID, name)
		assert.ErrorIs(t, err, errs.ErrValidation)
	}
}

func TestJoinGroup_InvalidCode(t *testing.T) {
	svc, _, db, _ := newService(t)
	users := dbtest.SeedUsers(t, db, 1)

	for _, code := range []string{"", "ABC", "NOPE00"} {
		_, err := svc.JoinGroup(context.Background(), users[0].ID, code)
		assert.ErrorIs(t, err, errs.ErrNotFound, code)
	}
}

func TestGenerateInviteCode(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := GenerateInviteCode()
		require.NoError(t, err)
		assert.Regexp(t, `^[A-Z0-9]{6}$`, code)
	}
}
