package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	txStdLib "github.com/Thiht/transactor/stdlib"

	"github.com/quietly/quietly/internal/model"
)

// PostgresNoteRepo はPostgreSQLを使用したメモリポジトリ。
type PostgresNoteRepo struct {
	dbGetter txStdLib.DBGetter
}

// NewPostgresNoteRepo はPostgresNoteRepoを生成する。
func NewPostgresNoteRepo(dbGetter txStdLib.DBGetter) *PostgresNoteRepo {
	return &PostgresNoteRepo{dbGetter: dbGetter}
}

const noteColumns = `id, user_id, book_id, kind, content, page, created_at, updated_at`

func scanNote(row interface{ Scan(...any) error }, n *model.Note) error {
	var kind string
	err := row.Scan(&n.ID, &n.UserID, &n.BookID, &kind, &n.Content, &n.Page, &n.CreatedAt, &n.UpdatedAt)
	n.Kind = model.NoteKind(kind)
	return err
}

// Create はメモを作成する。
func (r *PostgresNoteRepo) Create(ctx context.Context, n *model.Note) error {
	_, err := r.dbGetter(ctx).ExecContext(ctx,
		`INSERT INTO notes (id, user_id, book_id, kind, content, page, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		n.ID, n.UserID, n.BookID, string(n.Kind), n.Content, n.Page, n.CreatedAt, n.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create note: %w", err)
	}
	return nil
}

// FindByID は指定IDのメモを取得する。見つからない場合はnilを返す。
func (r *PostgresNoteRepo) FindByID(ctx context.Context, id string) (*model.Note, error) {
	n := &model.Note{}
	err := scanNote(r.dbGetter(ctx).QueryRowContext(ctx,
		`SELECT `+noteColumns+` FROM notes WHERE id = $1`, id,
	), n)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find note: %w", err)
	}
	return n, nil
}

// ListByUserAndBook は本に紐づくメモを作成日時の昇順で返す。
func (r *PostgresNoteRepo) ListByUserAndBook(ctx context.Context, userID, bookID string) ([]*model.Note, error) {
	rows, err := r.dbGetter(ctx).QueryContext(ctx,
		`SELECT `+noteColumns+` FROM notes
		 WHERE user_id = $1 AND book_id = $2
		 ORDER BY created_at`,
		userID, bookID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	defer rows.Close()

	var notes []*model.Note
	for rows.Next() {
		n := &model.Note{}
		if err := scanNote(rows, n); err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate notes: %w", err)
	}
	return notes, nil
}

// Delete は指定IDのメモを削除する。
func (r *PostgresNoteRepo) Delete(ctx context.Context, id string) error {
	result, err := r.dbGetter(ctx).ExecContext(ctx,
		`DELETE FROM notes WHERE id = $1`, id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}
	return expectAffected(result)
}

// DeleteByUserAndBook はユーザーの特定の本のメモを全て削除する。
func (r *PostgresNoteRepo) DeleteByUserAndBook(ctx context.Context, userID, bookID string) error {
	if _, err := r.dbGetter(ctx).ExecContext(ctx,
		`DELETE FROM notes WHERE user_id = $1 AND book_id = $2`, userID, bookID,
	); err != nil {
		return fmt.Errorf("failed to delete notes of book: %w", err)
	}
	return nil
}

// DeleteByUserID はユーザーの全メモを削除する。
func (r *PostgresNoteRepo) DeleteByUserID(ctx context.Context, userID string) error {
	if _, err := r.dbGetter(ctx).ExecContext(ctx,
		`DELETE FROM notes WHERE user_id = $1`, userID,
	); err != nil {
		return fmt.Errorf("failed to delete notes: %w", err)
	}
	return nil
}

// compile-time interface check
var _ NoteRepository = (*PostgresNoteRepo)(nil)
