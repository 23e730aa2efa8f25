package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"memo-service/internal/domain"
	"memo-service/internal/repository"
)

// MemoService exposes memo operations on behalf of an authenticated owner.
// The owner id must come from the session, never from request payloads.
type MemoService interface {
	Create(ctx context.Context, ownerID int64, title, content string) (*domain.Memo, error)
	List(ctx context.Context, ownerID int64) ([]domain.Memo, error)
	Update(ctx context.Context, ownerID, id int64, title, content string) (*domain.Memo, error)
	Delete(ctx context.Context, ownerID, id int64) error
}

type memoService struct {
	memos repository.MemoRepository
}

func NewMemoService(memos repository.MemoRepository) MemoService {
	return &memoService{memos: memos}
}

func (s *memoService) Create(ctx context.Context, ownerID int64, title, content string) (*domain.Memo, error) {
	if ownerID <= 0 {
		return nil, domain.ErrUnauthenticated
	}
	if err := validateMemo(title, content); err != nil {
		return nil, err
	}

	memo := &domain.Memo{
		UserID:  ownerID,
		Title:   title,
		Content: content,
	}
	if _, err := s.memos.Create(ctx, memo); err != nil {
		return nil, err
	}
	return memo, nil
}

func (s *memoService) List(ctx context.Context, ownerID int64) ([]domain.Memo, error) {
	if ownerID <= 0 {
		return nil, domain.ErrUnauthenticated
	}
	return s.memos.ListByOwner(ctx, ownerID)
}

func (s *memoService) Update(ctx context.Context, ownerID, id int64, title, content string) (*domain.Memo, error) {
	if ownerID <= 0 {
		return nil, domain.ErrUnauthenticated
	}
	if id <= 0 {
		return nil, fmt.Errorf("memo %d: %w", id, domain.ErrNotFound)
	}
	if err := validateMemo(title, content); err != nil {
		return nil, err
	}
	return s.memos.Update(ctx, ownerID, id, title, content)
}

func (s *memoService) Delete(ctx context.Context, ownerID, id int64) error {
	if ownerID <= 0 {
		return domain.ErrUnauthenticated
	}
	if id <= 0 {
		return fmt.Errorf("memo %d: %w", id, domain.ErrNotFound)
	}
	return s.memos.Delete(ctx, ownerID, id)
}

func validateMemo(title, content string) error {
	switch {
	case strings.TrimSpace(title) == "":
		return fmt.Errorf("%w: title is required", domain.ErrValidation)
	case utf8.RuneCountInString(title) > domain.MaxTitleLength:
		return fmt.Errorf("%w: title must be at most %d characters", domain.ErrValidation, domain.MaxTitleLength)
	case strings.TrimSpace(content) == "":
		return fmt.Errorf("%w: content is required", domain.ErrValidation)
	case utf8.RuneCountInString(content) > domain.MaxContentLength:
		return fmt.Errorf("%w: content must be at most %d characters", domain.ErrValidation, domain.MaxContentLength)
	}
	return nil
}
