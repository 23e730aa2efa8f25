package repository

import (
	"context"

	"memo-service/internal/domain"
)

// MemoRepository persists memos. Every method is scoped by owner: a memo that
// belongs to another user is reported as domain.ErrNotFound.
type MemoRepository interface {
	Create(ctx context.Context, memo *domain.Memo) (int64, error)
	ListByOwner(ctx context.Context, ownerID int64) ([]domain.Memo, error)
	Update(ctx context.Context, ownerID, id int64, title, content string) (*domain.Memo, error)
	Delete(ctx context.Context, ownerID, id int64) error
}
