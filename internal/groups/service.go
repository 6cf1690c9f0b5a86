package groups

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/anoixa/pattern-vault/database/models"
	groupsRepo "github.com/anoixa/pattern-vault/database/repo/groups"
	"github.com/anoixa/pattern-vault/internal/errs"
)

// MaxNameLength 群组名称最大长度
const MaxNameLength = 100

// Detail 群组详情
type Detail struct {
	ID         uint                `json:"id"`
	Name       string              `json:"name"`
	InviteCode string              `json:"invite_code"`
	AdminID    uint                `json:"admin_id"`
	CreatedAt  time.Time           `json:"created_at"`
	Members    []groupsRepo.Member `json:"members"`
}

// Summary 群组摘要
type Summary struct {
	ID      uint   `json:"id"`
	Name    string `json:"name"`
	AdminID uint   `json:"admin_id"`
}

// LeaveResult 退出结果
type LeaveResult struct {
	GroupDeleted bool `json:"group_deleted"`
	NewAdminID   uint `json:"new_admin_id,omitempty"`
}

// FileRemover 群组删除后异步清理照片文件
type FileRemover interface {
	RemoveFiles(keys []string)
}

// Service 群组服务
type Service struct {
	repo     *groupsRepo.Repository
	remover  FileRemover
	generate CodeGenerator
}

// NewService 创建群组服务
func NewService(repo *groupsRepo.Repository, remover FileRemover) *Service {
	return &Service{
		repo:     repo,
		remover:  remover,
		generate: GenerateInviteCode,
	}
}

// WithCodeGenerator 替换邀请码生成器
func (s *Service) WithCodeGenerator(gen CodeGenerator) *Service {
	s.generate = gen
	return s
}

// CreateGroup 创建群组，创建者成为管理员和唯一成员
func (s *Service) CreateGroup(ctx context.Context, ownerID uint, name string) (*Detail, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > MaxNameLength {
		return nil, errs.Validation("group name must be between 1 and 100 characters")
	}

	for attempt := 1; attempt <= MaxInviteCodeAttempts; attempt++ {
		code, err := s.generate()
		if err != nil {
			return nil, errs.Server("failed to generate invite code", err)
		}

		taken, err := s.repo.InviteCodeExists(ctx, code)
		if err != nil {
			return nil, errs.Server("failed to check invite code", err)
		}
		if taken {
			continue
		}

		group := &models.Group{Name: name, InviteCode: code, AdminID: ownerID}
		err = s.repo.CreateWithAdmin(ctx, group)
		if errors.Is(err, groupsRepo.ErrInviteCodeTaken) {
			continue
		}
		if err != nil {
			return nil, errs.Server("failed to create group", err)
		}

		log.Printf("[Groups] Group %d created by user %d", group.ID, ownerID)
		return s.detail(ctx, group)
	}

	log.Printf("[Groups] Could not find a free invite code after %d attempts", MaxInviteCodeAttempts)
	return nil, errs.Server("failed to allocate invite code", nil)
}

// JoinGroup 通过邀请码加入群组
func (s *Service) JoinGroup(ctx context.Context, userID uint, inviteCode string) (*Summary, error) {
	code := NormalizeInviteCode(inviteCode)
	if len(code) != models.InviteCodeLength {
		return nil, errs.NotFound("invalid invite code")
	}

	group, err := s.repo.GetByInviteCode(ctx, code)
	if err != nil {
		if errors.Is(err, groupsRepo.ErrGroupNotFound) {
			return nil, errs.NotFound("invalid invite code")
		}
		return nil, errs.Server("failed to find group", err)
	}

	if err := s.repo.AddMember(ctx, group.ID, userID); err != nil {
		switch {
		case errors.Is(err, groupsRepo.ErrAlreadyMember):
			return nil, errs.Validation("already a member of this group")
		case errors.Is(err, groupsRepo.ErrGroupNotFound):
			return nil, errs.NotFound("invalid invite code")
		default:
			return nil, errs.Server("failed to join group", err)
		}
	}

	log.Printf("[Groups] User %d joined group %d", userID, group.ID)
	return &Summary{ID: group.ID, Name: group.Name, AdminID: group.AdminID}, nil
}

// GetGroup 成员才能查看群组详情
func (s *Service) GetGroup(ctx context.Context, callerID, groupID uint) (*Detail, error) {
	group, err := s.repo.GetByID(ctx, groupID)
	if err != nil {
		return nil, mapRepoError(err)
	}

	ok, err := s.repo.IsMember(ctx, groupID, callerID)
	if err != nil {
		return nil, errs.Server("failed to check membership", err)
	}
	if !ok {
		return nil, errs.Authorization("not a member of this group")
	}

	return s.detail(ctx, group)
}

// ListUserGroups 调用者所在的群组
func (s *Service) ListUserGroups(ctx context.Context, userID uint) ([]Summary, error) {
	groups, err := s.repo.ListForUser(ctx, userID)
	if err != nil {
		return nil, errs.Server("failed to list groups", err)
	}

	out := make([]Summary, 0, len(groups))
	for _, g := range groups {
		out = append(out, Summary{ID: g.ID, Name: g.Name, AdminID: g.AdminID})
	}
	return out, nil
}

// LeaveGroup 退出群组，管理员退出时由最早加入的成员接任
func (s *Service) LeaveGroup(ctx context.Context, userID, groupID uint) (*LeaveResult, error) {
	res, err := s.repo.Leave(ctx, groupID, userID)
	if err != nil {
		return nil, mapRepoError(err)
	}

	if res.GroupDeleted {
		log.Printf("[Groups] Group %d deleted after its last member %d left", groupID, userID)
		s.removeFiles(res.StorageKeys)
	} else if res.NewAdminID != 0 {
		log.Printf("[Groups] User %d left group %d, user %d promoted to admin", userID, groupID, res.NewAdminID)
	}

	return &LeaveResult{GroupDeleted: res.GroupDeleted, NewAdminID: res.NewAdminID}, nil
}

// DeleteGroup 仅管理员可删除，群组资源一并删除
func (s *Service) DeleteGroup(ctx context.Context, requesterID, groupID uint) error {
	keys, err := s.repo.Delete(ctx, groupID, requesterID)
	if err != nil {
		return mapRepoError(err)
	}

	log.Printf("[Groups] Group %d deleted by admin %d", groupID, requesterID)
	s.removeFiles(keys)
	return nil
}

func (s *Service) removeFiles(keys []string) {
	if len(keys) == 0 || s.remover == nil {
		return
	}
	s.remover.RemoveFiles(keys)
}

func (s *Service) detail(ctx context.Context, group *models.Group) (*Detail, error) {
	members, err := s.repo.ListMembers(ctx, group.ID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return &Detail{
		ID:         group.ID,
		Name:       group.Name,
		InviteCode: group.InviteCode,
		AdminID:    group.AdminID,
		CreatedAt:  group.CreatedAt,
		Members:    members,
	}, nil
}

func mapRepoError(err error) error {
	switch {
	case errors.Is(err, groupsRepo.ErrGroupNotFound):
		return errs.NotFound("group not found")
	case errors.Is(err, groupsRepo.ErrNotMember):
		return errs.Authorization("not a member of this group")
	case errors.Is(err, groupsRepo.ErrNotAdmin):
		return errs.Authorization("only the group admin can do this")
	default:
		return errs.Server("group operation failed", err)
	}
}
