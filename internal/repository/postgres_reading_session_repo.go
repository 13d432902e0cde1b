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

// PostgresReadingSessionRepo はPostgreSQLを使用した読書セッションリポジトリ。
type PostgresReadingSessionRepo struct {
	dbGetter txStdLib.DBGetter
}

// NewPostgresReadingSessionRepo はPostgresReadingSessionRepoを生成する。
func NewPostgresReadingSessionRepo(dbGetter txStdLib.DBGetter) *PostgresReadingSessionRepo {
	return &PostgresReadingSessionRepo{dbGetter: dbGetter}
}

const readingSessionColumns = `id, user_id, book_id, started_at, paused_at, total_paused_seconds, ended_at,
	start_page, end_page, duration_seconds, pages_read, notes, created_at, updated_at`

func scanReadingSession(row interface{ Scan(...any) error }, s *model.ReadingSession) error {
	return row.Scan(
		&s.ID, &s.UserID, &s.BookID, &s.StartedAt, &s.PausedAt, &s.TotalPausedSeconds, &s.EndedAt,
		&s.StartPage, &s.EndPage, &s.DurationSeconds, &s.PagesRead, &s.Notes, &s.CreatedAt, &s.UpdatedAt,
	)
}

// Create は読書セッションを作成する。
// sessions_one_open_per_book インデックスに違反する場合はErrDuplicateを返す。
func (r *PostgresReadingSessionRepo) Create(ctx context.Context, s *model.ReadingSession) error {
	_, err := r.dbGetter(ctx).ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, book_id, started_at, total_paused_seconds, start_page, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		s.ID, s.UserID, s.BookID, s.StartedAt, s.TotalPausedSeconds, s.StartPage, s.CreatedAt, s.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to create reading session: %w", err)
	}
	return nil
}

// FindByID は指定IDの読書セッションを取得する。見つからない場合はnilを返す。
func (r *PostgresReadingSessionRepo) FindByID(ctx context.Context, id string) (*model.ReadingSession, error) {
	s := &model.ReadingSession{}
	err := scanReadingSession(r.dbGetter(ctx).QueryRowContext(ctx,
		`SELECT `+readingSessionColumns+` FROM sessions WHERE id = $1`, id,
	), s)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find reading session: %w", err)
	}
	return s, nil
}

// FindOpenByUserAndBook は未終了の読書セッションを取得する。見つからない場合はnilを返す。
func (r *PostgresReadingSessionRepo) FindOpenByUserAndBook(ctx context.Context, userID, bookID string) (*model.ReadingSession, error) {
	s := &model.ReadingSession{}
	err := scanReadingSession(r.dbGetter(ctx).QueryRowContext(ctx,
		`SELECT `+readingSessionColumns+` FROM sessions
		 WHERE user_id = $1 AND book_id = $2 AND ended_at IS NULL
		 ORDER BY started_at DESC
		 LIMIT 1`,
		userID, bookID,
	), s)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find open reading session: %w", err)
	}
	return s, nil
}

// ListByUser はユーザーの読書セッションを開始日時の降順で返す。
func (r *PostgresReadingSessionRepo) ListByUser(ctx context.Context, userID, bookID string, limit int) ([]*model.ReadingSession, error) {
	query := `SELECT ` + readingSessionColumns + ` FROM sessions WHERE user_id = $1`
	args := []any{userID}
	if bookID != "" {
		args = append(args, bookID)
		query += fmt.Sprintf(` AND book_id = $%d`, len(args))
	}
	args = append(args, limit)
	query += fmt.Sprintf(` ORDER BY started_at DESC LIMIT $%d`, len(args))

	rows, err := r.dbGetter(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list reading sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*model.ReadingSession
	for rows.Next() {
		s := &model.ReadingSession{}
		if err := scanReadingSession(rows, s); err != nil {
			return nil, fmt.Errorf("failed to scan reading session: %w", err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reading sessions: %w", err)
	}
	return sessions, nil
}

// MarkPaused は計測中のセッションを一時停止にする。
func (r *PostgresReadingSessionRepo) MarkPaused(ctx context.Context, id string, pausedAt time.Time) error {
	result, err := r.dbGetter(ctx).ExecContext(ctx,
		`UPDATE sessions SET paused_at = $2, updated_at = $2
		 WHERE id = $1 AND ended_at IS NULL AND paused_at IS NULL`,
		id, pausedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to pause reading session: %w", err)
	}
	return expectAffected(result)
}

// MarkResumed は一時停止中のセッションを再開し、累積停止秒数を更新する。
func (r *PostgresReadingSessionRepo) MarkResumed(ctx context.Context, id string, totalPausedSeconds int64, at time.Time) error {
	result, err := r.dbGetter(ctx).ExecContext(ctx,
		`UPDATE sessions SET paused_at = NULL, total_paused_seconds = $2, updated_at = $3
		 WHERE id = $1 AND ended_at IS NULL AND paused_at IS NOT NULL`,
		id, totalPausedSeconds, at,
	)
	if err != nil {
		return fmt.Errorf("failed to resume reading session: %w", err)
	}
	return expectAffected(result)
}

// MarkEnded は未終了のセッションを終了し、終了時の計算結果を保存する。
func (r *PostgresReadingSessionRepo) MarkEnded(ctx context.Context, s *model.ReadingSession) error {
	result, err := r.dbGetter(ctx).ExecContext(ctx,
		`UPDATE sessions
		 SET paused_at = NULL, total_paused_seconds = $2, ended_at = $3, end_page = $4,
		     duration_seconds = $5, pages_read = $6, notes = $7, updated_at = $3
		 WHERE id = $1 AND ended_at IS NULL`,
		s.ID, s.TotalPausedSeconds, s.EndedAt, s.EndPage, s.DurationSeconds, s.PagesRead, s.Notes,
	)
	if err != nil {
		return fmt.Errorf("failed to end reading session: %w", err)
	}
	return expectAffected(result)
}

// DeleteOpen は未終了のセッションを削除する。
func (r *PostgresReadingSessionRepo) DeleteOpen(ctx context.Context, id string) error {
	result, err := r.dbGetter(ctx).ExecContext(ctx,
		`DELETE FROM sessions WHERE id = $1 AND ended_at IS NULL`, id,
	)
	if err != nil {
		return fmt.Errorf("failed to cancel reading session: %w", err)
	}
	return expectAffected(result)
}

// Delete は状態に関わらずセッションを削除する。
func (r *PostgresReadingSessionRepo) Delete(ctx context.Context, id string) error {
	result, err := r.dbGetter(ctx).ExecContext(ctx,
		`DELETE FROM sessions WHERE id = $1`, id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete reading session: %w", err)
	}
	return expectAffected(result)
}

// DeleteByUserAndBook はユーザーの特定の本のセッションを全て削除する。
func (r *PostgresReadingSessionRepo) DeleteByUserAndBook(ctx context.Context, userID, bookID string) error {
	if _, err := r.dbGetter(ctx).ExecContext(ctx,
		`DELETE FROM sessions WHERE user_id = $1 AND book_id = $2`, userID, bookID,
	); err != nil {
		return fmt.Errorf("failed to delete reading sessions of book: %w", err)
	}
	return nil
}

// DeleteByUserID はユーザーの全セッションを削除する。
func (r *PostgresReadingSessionRepo) DeleteByUserID(ctx context.Context, userID string) error {
	if _, err := r.dbGetter(ctx).ExecContext(ctx,
		`DELETE FROM sessions WHERE user_id = $1`, userID,
	); err != nil {
		return fmt.Errorf("failed to delete reading sessions: %w", err)
	}
	return nil
}

// ListStartDates はセッションを開始した日付（locにおける暦日）を重複なく昇順で返す。
func (r *PostgresReadingSessionRepo) ListStartDates(ctx context.Context, userID string, loc *time.Location) ([]time.Time, error) {
	rows, err := r.dbGetter(ctx).QueryContext(ctx,
		`SELECT DISTINCT (started_at AT TIME ZONE $2)::date AS d
		 FROM sessions
		 WHERE user_id = $1
		 ORDER BY d`,
		userID, loc.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list session dates: %w", err)
	}
	defer rows.Close()

	var dates []time.Time
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("failed to scan session date: %w", err)
		}
		dates = append(dates, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate session dates: %w", err)
	}
	return dates, nil
}

// SumDurationInRange は started_at が [start, end) にある終了済みセッションの読書秒数の合計を返す。
func (r *PostgresReadingSessionRepo) SumDurationInRange(ctx context.Context, userID string, start, end time.Time) (int64, error) {
	var total int64
	err := r.dbGetter(ctx).QueryRowContext(ctx,
		`SELECT COALESCE(SUM(duration_seconds), 0) FROM sessions
		 WHERE user_id = $1 AND ended_at IS NOT NULL
		   AND started_at >= $2 AND started_at < $3`,
		userID, start, end,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum reading duration: %w", err)
	}
	return total, nil
}

// Totals は終了済みセッションの件数、読書秒数、ページ数の累計を返す。
func (r *PostgresReadingSessionRepo) Totals(ctx context.Context, userID string) (model.ReadingTotals, error) {
	var t model.ReadingTotals
	err := r.dbGetter(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(duration_seconds), 0), COALESCE(SUM(pages_read), 0)
		 FROM sessions
		 WHERE user_id = $1 AND ended_at IS NOT NULL`,
		userID,
	).Scan(&t.CompletedSessions, &t.TotalSeconds, &t.PagesRead)
	if err != nil {
		return model.ReadingTotals{}, fmt.Errorf("failed to load reading totals: %w", err)
	}
	return t, nil
}

// compile-time interface check
var _ ReadingSessionRepository = (*PostgresReadingSessionRepo)(nil)
