// Package access 个人/群组作用域的访问控制
// 成员关系每次都从数据库读取，不经过缓存
package access

import (
	"context"
	"errors"
	"log"

	"github.com/anoixa/pattern-vault/database/models"
	groupsRepo "github.com/anoixa/pattern-vault/database/repo/groups"
	"github.com/anoixa/pattern-vault/internal/errs"
)

// Scope 资源作用域，GroupID 为 nil 表示个人作用域
type Scope struct {
	GroupID *uint
}

// Personal 个人作用域
func Personal() Scope {
	return Scope{}
}

// Group 群组作用域
func Group(id uint) Scope {
	return Scope{GroupID: &id}
}

// IsPersonal 是否为个人作用域
func (s Scope) IsPersonal() bool {
	return s.GroupID == nil
}

func (s Scope) String() string {
	if s.GroupID == nil {
		return "personal"
	}
	return "group"
}

var (
	errGroupNotFound = errs.NotFound("group not found")
	errNotMember     = errs.Authorization("you are not a member of this group")
	errNotOwner      = errs.Authorization("access denied")
	errNotAdmin      = errs.Authorization("only the group admin can do this")
)

// Guard 访问控制
type Guard struct {
	groups *groupsRepo.Repository
}

// NewGuard 创建访问控制
func NewGuard(groups *groupsRepo.Repository) *Guard {
	return &Guard{groups: groups}
}

// ResolveScope 检查调用者能否在该作用域内操作
func (g *Guard) ResolveScope(ctx context.Context, callerID uint, scope Scope) error {
	if scope.IsPersonal() {
		return nil
	}

	if _, err := g.groups.GetByID(ctx, *scope.GroupID); err != nil {
		if errors.Is(err, groupsRepo.ErrGroupNotFound) {
			return errGroupNotFound
		}
		return errs.Server("failed to load group", err)
	}
	return g.requireMember(ctx, callerID, *scope.GroupID)
}

// AuthorizeResource 检查调用者能否访问某个资源
// 个人资源只有所有者可访问，群组资源需要当前仍是成员
func (g *Guard) AuthorizeResource(ctx context.Context, callerID, ownerID uint, groupID *uint) error {
	if groupID == nil {
		if ownerID != callerID {
			log.Printf("[Access] user %d denied personal resource of user %d", callerID, ownerID)
			return errNotOwner
		}
		return nil
	}
	return g.requireMember(ctx, callerID, *groupID)
}

// RequireAdmin 要求调用者是群组管理员
func (g *Guard) RequireAdmin(ctx context.Context, callerID, groupID uint) (*models.Group, error) {
	group, err := g.groups.GetByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, groupsRepo.ErrGroupNotFound) {
			return nil, errGroupNotFound
		}
		return nil, errs.Server("failed to load group", err)
	}
	if group.AdminID != callerID {
		return nil, errNotAdmin
	}
	return group, nil
}

// ScopeError 将仓库在事务内复查群组时返回的错误转换为与 ResolveScope 一致的错误
// 不是群组错误时返回 nil
func ScopeError(err error) error {
	switch {
	case errors.Is(err, groupsRepo.ErrGroupNotFound):
		return errGroupNotFound
	case errors.Is(err, groupsRepo.ErrNotMember):
		return errNotMember
	}
	return nil
}

func (g *Guard) requireMember(ctx context.Context, callerID, groupID uint) error {
	ok, err := g.groups.IsMember(ctx, groupID, callerID)
	if err != nil {
		return errs.Server("failed to check membership", err)
	}
	if !ok {
		log.Printf("[Access] user %d is not a member of group %d", callerID, groupID)
		return errNotMember
	}
	return nil
}
