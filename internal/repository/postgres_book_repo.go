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

// PostgresBookRepo はPostgreSQLを使用した書誌情報リポジトリ。
type PostgresBookRepo struct {
	dbGetter txStdLib.DBGetter
}

// NewPostgresBookRepo はPostgresBookRepoを生成する。
func NewPostgresBookRepo(dbGetter txStdLib.DBGetter) *PostgresBookRepo {
	return &PostgresBookRepo{dbGetter: dbGetter}
}

const bookColumns = `id, title, author, COALESCE(isbn, ''), total_pages, cover_url, created_at, updated_at`

func scanBook(row interface{ Scan(...any) error }, b *model.Book) error {
	return row.Scan(&b.ID, &b.Title, &b.Author, &b.ISBN, &b.TotalPages, &b.CoverURL, &b.CreatedAt, &b.UpdatedAt)
}

// FindByID は指定IDの本を取得する。見つからない場合はnilを返す。
func (r *PostgresBookRepo) FindByID(ctx context.Context, id string) (*model.Book, error) {
	book := &model.Book{}
	err := scanBook(r.dbGetter(ctx).QueryRowContext(ctx,
		`SELECT `+bookColumns+` FROM books WHERE id = $1`, id,
	), book)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find book: %w", err)
	}
	return book, nil
}

// FindByISBN はISBNで本を検索する。見つからない場合はnilを返す。
func (r *PostgresBookRepo) FindByISBN(ctx context.Context, isbn string) (*model.Book, error) {
	book := &model.Book{}
	err := scanBook(r.dbGetter(ctx).QueryRowContext(ctx,
		`SELECT `+bookColumns+` FROM books WHERE isbn = $1`, isbn,
	), book)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find book by isbn: %w", err)
	}
	return book, nil
}

// Create は本を作成する。ISBNが重複する場合はErrDuplicateを返す。
func (r *PostgresBookRepo) Create(ctx context.Context, book *model.Book) error {
	var isbn *string
	if book.ISBN != "" {
		isbn = &book.ISBN
	}
	_, err := r.dbGetter(ctx).ExecContext(ctx,
		`INSERT INTO books (id, title, author, isbn, total_pages, cover_url, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		book.ID, book.Title, book.Author, isbn, book.TotalPages, book.CoverURL, book.CreatedAt, book.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to create book: %w", err)
	}
	return nil
}

// DeleteUnreferenced はどのuser_booksからも参照されていない本を削除し、削除件数を返す。
func (r *PostgresBookRepo) DeleteUnreferenced(ctx context.Context, olderThan time.Time) (int64, error) {
	result, err := r.dbGetter(ctx).ExecContext(ctx,
		`DELETE FROM books b
		 WHERE b.created_at < $1
		   AND NOT EXISTS (SELECT 1 FROM user_books ub WHERE ub.book_id = b.id)`,
		olderThan,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete unreferenced books: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

// compile-time interface check
var _ BookRepository = (*PostgresBookRepo)(nil)
