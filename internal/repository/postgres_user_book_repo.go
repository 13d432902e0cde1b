package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	txStdLib "github.com/Thiht/transactor/stdlib"

	"github.com/quietly/quietly/internal/model"
)

// PostgresUserBookRepo はPostgreSQLを使用した本棚リポジトリ。
type PostgresUserBookRepo struct {
	dbGetter txStdLib.DBGetter
}

// NewPostgresUserBookRepo はPostgresUserBookRepoを生成する。
func NewPostgresUserBookRepo(dbGetter txStdLib.DBGetter) *PostgresUserBookRepo {
	return &PostgresUserBookRepo{dbGetter: dbGetter}
}

const userBookWithBookSelect = `
	SELECT ub.id, ub.user_id, ub.book_id, ub.status, ub.current_page, ub.rating,
	       ub.started_at, ub.completed_at, ub.created_at, ub.updated_at,
	       b.id, b.title, b.author, COALESCE(b.isbn, ''), b.total_pages, b.cover_url, b.created_at, b.updated_at
	FROM user_books ub
	INNER JOIN books b ON b.id = ub.book_id`

func scanUserBookWithBook(row interface{ Scan(...any) error }, ub *model.UserBookWithBook) error {
	var status string
	err := row.Scan(
		&ub.ID, &ub.UserID, &ub.BookID, &status, &ub.CurrentPage, &ub.Rating,
		&ub.StartedAt, &ub.CompletedAt, &ub.CreatedAt, &ub.UpdatedAt,
		&ub.Book.ID, &ub.Book.Title, &ub.Book.Author, &ub.Book.ISBN, &ub.Book.TotalPages,
		&ub.Book.CoverURL, &ub.Book.CreatedAt, &ub.Book.UpdatedAt,
	)
	ub.Status = model.BookStatus(status)
	return err
}

// FindByUserAndBook はユーザーIDと本IDで本棚の本を取得する。見つからない場合はnilを返す。
func (r *PostgresUserBookRepo) FindByUserAndBook(ctx context.Context, userID, bookID string) (*model.UserBookWithBook, error) {
	ub := &model.UserBookWithBook{}
	err := scanUserBookWithBook(r.dbGetter(ctx).QueryRowContext(ctx,
		userBookWithBookSelect+` WHERE ub.user_id = $1 AND ub.book_id = $2`,
		userID, bookID,
	), ub)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user book: %w", err)
	}
	return ub, nil
}

// ListByUser はユーザーの本棚を更新日時の降順で返す。statusがnilの場合は全件を返す。
func (r *PostgresUserBookRepo) ListByUser(ctx context.Context, userID string, status *model.BookStatus) ([]model.UserBookWithBook, error) {
	query := userBookWithBookSelect + ` WHERE ub.user_id = $1`
	args := []any{userID}
	if status != nil {
		query += ` AND ub.status = $2`
		args = append(args, string(*status))
	}
	query += ` ORDER BY ub.updated_at DESC`

	rows, err := r.dbGetter(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list user books: %w", err)
	}
	defer rows.Close()

	var result []model.UserBookWithBook
	for rows.Next() {
		var ub model.UserBookWithBook
		if err := scanUserBookWithBook(rows, &ub); err != nil {
			return nil, fmt.Errorf("failed to scan user book: %w", err)
		}
		result = append(result, ub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate user books: %w", err)
	}
	return result, nil
}

// Create は本棚に本を追加する。(user_id, book_id) が重複する場合はErrDuplicateを返す。
func (r *PostgresUserBookRepo) Create(ctx context.Context, ub *model.UserBook) error {
	_, err := r.dbGetter(ctx).ExecContext(ctx,
		`INSERT INTO user_books (id, user_id, book_id, status, current_page, rating, started_at, completed_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		ub.ID, ub.UserID, ub.BookID, string(ub.Status), ub.CurrentPage, ub.Rating,
		ub.StartedAt, ub.CompletedAt, ub.CreatedAt, ub.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to create user book: %w", err)
	}
	return nil
}

// Update は状態、現在ページ、評価、開始・読了日時を更新する。
func (r *PostgresUserBookRepo) Update(ctx context.Context, ub *model.UserBook) error {
	result, err := r.dbGetter(ctx).ExecContext(ctx,
		`UPDATE user_books
		 SET status = $3, current_page = $4, rating = $5, started_at = $6, completed_at = $7, updated_at = $8
		 WHERE user_id = $1 AND book_id = $2`,
		ub.UserID, ub.BookID, string(ub.Status), ub.CurrentPage, ub.Rating,
		ub.StartedAt, ub.CompletedAt, ub.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update user book: %w", err)
	}
	return expectAffected(result)
}

// AdvanceCurrentPage は現在ページがpageより小さい場合のみpageに進める。
// 本の総ページ数が登録されていれば、それを超えて進めない。
func (r *PostgresUserBookRepo) AdvanceCurrentPage(ctx context.Context, userID, bookID string, page int) error {
	if _, err := r.dbGetter(ctx).ExecContext(ctx,
		`UPDATE user_books ub
		 SET current_page = LEAST($3::int, COALESCE(b.total_pages, $3::int)), updated_at = now()
		 FROM books b
		 WHERE b.id = ub.book_id AND ub.user_id = $1 AND ub.book_id = $2
		   AND ub.current_page < LEAST($3::int, COALESCE(b.total_pages, $3::int))`,
		userID, bookID, page,
	); err != nil {
		return fmt.Errorf("failed to advance current page: %w", err)
	}
	return nil
}

// Delete は本棚から本を削除する。対象がない場合はErrNotUpdatedを返す。
func (r *PostgresUserBookRepo) Delete(ctx context.Context, userID, bookID string) error {
	result, err := r.dbGetter(ctx).ExecContext(ctx,
		`DELETE FROM user_books WHERE user_id = $1 AND book_id = $2`, userID, bookID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete user book: %w", err)
	}
	return expectAffected(result)
}

// DeleteByUserID はユーザーの本棚を全て削除する。
func (r *PostgresUserBookRepo) DeleteByUserID(ctx context.Context, userID string) error {
	if _, err := r.dbGetter(ctx).ExecContext(ctx,
		`DELETE FROM user_books WHERE user_id = $1`, userID,
	); err != nil {
		return fmt.Errorf("failed to delete user books: %w", err)
	}
	return nil
}

// CountCompletedInRange は completed_at が [start, end) にある読了済みの本の数を返す。
func (r *PostgresUserBookRepo) CountCompletedInRange(ctx context.Context, userID string, start, end time.Time) (int, error) {
	var count int
	err := r.dbGetter(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM user_books
		 WHERE user_id = $1 AND status = 'completed'
		   AND completed_at >= $2 AND completed_at < $3`,
		userID, start, end,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count completed books: %w", err)
	}
	return count, nil
}

// CountCompleted は読了済みの本の総数を返す。
func (r *PostgresUserBookRepo) CountCompleted(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.dbGetter(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM user_books WHERE user_id = $1 AND status = 'completed'`,
		userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count completed books: %w", err)
	}
	return count, nil
}

// compile-time interface check
var _ UserBookRepository = (*PostgresUserBookRepo)(nil)
