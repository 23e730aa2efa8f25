package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"memo-service/internal/domain"
	"memo-service/internal/repository"
)

const memoColumns = `id, user_id, title, content, created_at, updated_at`

type MemoRepository struct {
	db *sql.DB
}

func NewMemoRepository(db *sql.DB) repository.MemoRepository {
	return &MemoRepository{db: db}
}

func (r *MemoRepository) Create(ctx context.Context, memo *domain.Memo) (int64, error) {
	now := time.Now().UTC()
	memo.CreatedAt = now
	memo.UpdatedAt = now

	res, err := r.db.ExecContext(ctx, `
INSERT INTO memos (user_id, title, content, created_at, updated_at)
VALUES (?, ?, ?, ?, ?)`,
		memo.UserID,
		memo.Title,
		memo.Content,
		memo.CreatedAt,
		memo.UpdatedAt,
	)
	if err != nil {
		return 0, storeError("insert memo", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, storeError("memo last insert id", err)
	}
	memo.ID = id
	return id, nil
}

func (r *MemoRepository) ListByOwner(ctx context.Context, ownerID int64) ([]domain.Memo, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+memoColumns+`
FROM memos
WHERE user_id = ?
ORDER BY id ASC`, ownerID)
	if err != nil {
		return nil, storeError("query memos", err)
	}
	defer rows.Close()

	memos := []domain.Memo{}
	for rows.Next() {
		memo, err := scanMemo(rows)
		if err != nil {
			return nil, err
		}
		memos = append(memos, *memo)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("iterate memos", err)
	}

	return memos, nil
}

// Update rewrites title and content with a single statement constrained by
// both id and owner, then reads the row back under the same constraint.
func (r *MemoRepository) Update(ctx context.Context, ownerID, id int64, title, content string) (*domain.Memo, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storeError("begin tx", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
UPDATE memos
SET title=?, content=?, updated_at=?
WHERE id=? AND user_id=?`,
		title,
		content,
		time.Now().UTC(),
		id,
		ownerID,
	)
	if err != nil {
		return nil, storeError("update memo", err)
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return nil, storeError("memo update rows affected", err)
	}
	if aff == 0 {
		return nil, fmt.Errorf("memo %d: %w", id, domain.ErrNotFound)
	}

	row := tx.QueryRowContext(ctx, `
SELECT `+memoColumns+`
FROM memos
WHERE id=? AND user_id=?`,
		id,
		ownerID,
	)
	memo, err := scanMemo(row)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, storeError("commit memo update", err)
	}
	return memo, nil
}

func (r *MemoRepository) Delete(ctx context.Context, ownerID, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM memos WHERE id=? AND user_id=?`, id, ownerID)
	if err != nil {
		return storeError("delete memo", err)
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return storeError("memo delete rows affected", err)
	}
	if aff == 0 {
		return fmt.Errorf("memo %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

func scanMemo(scanner interface {
	Scan(dest ...any) error
}) (*domain.Memo, error) {
	var memo domain.Memo
	if err := scanner.Scan(
		&memo.ID,
		&memo.UserID,
		&memo.Title,
		&memo.Content,
		&memo.CreatedAt,
		&memo.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("memo: %w", domain.ErrNotFound)
		}
		return nil, storeError("scan memo", err)
	}
	return &memo, nil
}
