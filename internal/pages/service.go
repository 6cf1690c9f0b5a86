package pages

import (
	"context"
	"errors"
	"log"
	"strings"
	"unicode/utf8"

	"github.com/anoixa/pattern-vault/database/models"
	pagesRepo "github.com/anoixa/pattern-vault/database/repo/pages"
	"github.com/anoixa/pattern-vault/internal/access"
	"github.com/anoixa/pattern-vault/internal/errs"
)

const (
	// MaxTitleLength 标题最大长度
	MaxTitleLength = 200

	DefaultPersonalTitle = "Untitled Page"
	DefaultGroupTitle    = "Untitled Group Page"
)

var errPageNotFound = errs.NotFound("page not found")

// Service 页面服务，所有操作先经过访问控制
type Service struct {
	repo  *pagesRepo.Repository
	guard *access.Guard
}

// NewService 创建页面服务
func NewService(repo *pagesRepo.Repository, guard *access.Guard) *Service {
	return &Service{repo: repo, guard: guard}
}

// List 作用域内的页面，最近编辑的在前
func (s *Service) List(ctx context.Context, callerID uint, scope access.Scope) ([]models.Page, error) {
	if err := s.guard.ResolveScope(ctx, callerID, scope); err != nil {
		return nil, err
	}

	var (
		pages []models.Page
		err   error
	)
	if scope.IsPersonal() {
		pages, err = s.repo.ListPersonal(ctx, callerID)
	} else {
		pages, err = s.repo.ListByGroup(ctx, *scope.GroupID)
	}
	if err != nil {
		return nil, errs.Server("failed to list pages", err)
	}
	return pages, nil
}

// Create 在作用域内创建页面，标题为空时使用默认标题
func (s *Service) Create(ctx context.Context, callerID uint, scope access.Scope, title string) (*models.Page, error) {
	if err := s.guard.ResolveScope(ctx, callerID, scope); err != nil {
		return nil, err
	}

	title = strings.TrimSpace(title)
	if title == "" {
		title = DefaultPersonalTitle
		if !scope.IsPersonal() {
			title = DefaultGroupTitle
		}
	}
	if err := validateTitle(title); err != nil {
		return nil, err
	}

	page := &models.Page{OwnerID: callerID, GroupID: scope.GroupID, Title: title}
	if err := s.repo.Create(ctx, page); err != nil {
		if scopeErr := access.ScopeError(err); scopeErr != nil {
			return nil, scopeErr
		}
		return nil, errs.Server("failed to create page", err)
	}

	log.Printf("[Pages] Page %d created by user %d (%s)", page.ID, callerID, scope)
	return page, nil
}

// Get 获取页面
func (s *Service) Get(ctx context.Context, callerID, pageID uint) (*models.Page, error) {
	return s.authorized(ctx, callerID, pageID)
}

// Update 更新标题或内容，nil 字段保持不变
func (s *Service) Update(ctx context.Context, callerID, pageID uint, title, content *string) (*models.Page, error) {
	if _, err := s.authorized(ctx, callerID, pageID); err != nil {
		return nil, err
	}

	if title != nil {
		trimmed := strings.TrimSpace(*title)
		if trimmed == "" {
			return nil, errs.Validation("title cannot be empty")
		}
		if err := validateTitle(trimmed); err != nil {
			return nil, err
		}
		title = &trimmed
	}

	page, err := s.repo.Update(ctx, pageID, title, content)
	if err != nil {
		if errors.Is(err, pagesRepo.ErrPageNotFound) {
			return nil, errPageNotFound
		}
		return nil, errs.Server("failed to update page", err)
	}
	return page, nil
}

// Delete 删除页面
func (s *Service) Delete(ctx context.Context, callerID, pageID uint) error {
	if _, err := s.authorized(ctx, callerID, pageID); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, pageID); err != nil {
		if errors.Is(err, pagesRepo.ErrPageNotFound) {
			return errPageNotFound
		}
		return errs.Server("failed to delete page", err)
	}

	log.Printf("[Pages] Page %d deleted by user %d", pageID, callerID)
	return nil
}

func (s *Service) authorized(ctx context.Context, callerID, pageID uint) (*models.Page, error) {
	page, err := s.repo.GetByID(ctx, pageID)
	if err != nil {
		if errors.Is(err, pagesRepo.ErrPageNotFound) {
			return nil, errPageNotFound
		}
		return nil, errs.Server("failed to load page", err)
	}
	if err := s.guard.AuthorizeResource(ctx, callerID, page.OwnerID, page.GroupID); err != nil {
		return nil, err
	}
	return page, nil
}

func validateTitle(title string) error {
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return errs.Validation("title must be at most 200 characters")
	}
	return nil
}
