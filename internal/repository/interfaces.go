// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/quietly/quietly/internal/model"
)

var (
	// ErrNotUpdated は状態条件付きの更新・削除が1行も対象にしなかったことを表す。
	// 呼び出し側は不正な状態遷移として扱う。
	ErrNotUpdated = errors.New("no row matched the update condition")

	// ErrDuplicate は一意制約違反を表す。
	ErrDuplicate = errors.New("unique constraint violation")
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// CreateWithIdentity はユーザーとidentityを同一トランザクションで作成する。
	CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error

	// UpdateProfile はIdPから受け取ったメールアドレスと表示名で上書きする。
	// 対象ユーザーがいない場合はErrNotUpdatedを返す。
	UpdateProfile(ctx context.Context, id, email, name string, updatedAt time.Time) error

	// DeleteByID は指定IDのユーザーを削除する。
	// 関連するidentitiesはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// IdentityRepository は外部IdP紐付け情報の永続化インターフェース。
type IdentityRepository interface {
	// FindBySubject はIdPとsubの組でidentityを検索する。見つからない場合はnilを返す。
	FindBySubject(ctx context.Context, provider model.Provider, subject string) (*model.Identity, error)
}

// AuthSessionRepository はログインセッションの永続化インターフェース。
type AuthSessionRepository interface {
	// Create はログインセッションを作成する。
	Create(ctx context.Context, session *model.AuthSession) error
	// FindByID は指定IDのログインセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.AuthSession, error)
	// DeleteByID は指定IDのログインセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全ログインセッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
	// DeleteExpired はbefore時点で期限切れのログインセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// BookRepository は書誌情報の永続化インターフェース。
type BookRepository interface {
	// FindByID は指定IDの本を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Book, error)
	// FindByISBN はISBNで本を検索する。見つからない場合はnilを返す。
	FindByISBN(ctx context.Context, isbn string) (*model.Book, error)
	// Create は本を作成する。
	Create(ctx context.Context, book *model.Book) error
	// DeleteUnreferenced はどのuser_booksからも参照されていない本を削除し、削除件数を返す。
	// olderThanより後に作成された本は対象外とする。
	DeleteUnreferenced(ctx context.Context, olderThan time.Time) (int64, error)
}

// UserBookRepository はユーザーの本棚の永続化インターフェース。
type UserBookRepository interface {
	// FindByUserAndBook はユーザーIDと本IDで本棚の本を取得する。見つからない場合はnilを返す。
	FindByUserAndBook(ctx context.Context, userID, bookID string) (*model.UserBookWithBook, error)
	// ListByUser はユーザーの本棚を更新日時の降順で返す。statusがnilの場合は全件を返す。
	ListByUser(ctx context.Context, userID string, status *model.BookStatus) ([]model.UserBookWithBook, error)
	// Create は本棚に本を追加する。(user_id, book_id) が重複する場合はErrDuplicateを返す。
	Create(ctx context.Context, userBook *model.UserBook) error
	// Update は状態、現在ページ、評価、開始・読了日時を更新する。
	Update(ctx context.Context, userBook *model.UserBook) error
	// AdvanceCurrentPage は現在ページがpageより小さい場合のみpageに進める。総ページ数は超えない。
	AdvanceCurrentPage(ctx context.Context, userID, bookID string, page int) error
	// Delete は本棚から本を削除する。対象がない場合はErrNotUpdatedを返す。
	Delete(ctx context.Context, userID, bookID string) error
	// DeleteByUserID はユーザーの本棚を全て削除する。
	DeleteByUserID(ctx context.Context, userID string) error
	// CountCompletedInRange は completed_at が [start, end) にある読了済みの本の数を返す。
	CountCompletedInRange(ctx context.Context, userID string, start, end time.Time) (int, error)
	// CountCompleted は読了済みの本の総数を返す。
	CountCompleted(ctx context.Context, userID string) (int, error)
}

// ReadingSessionRepository は読書セッションの永続化インターフェース。
// 状態を変更するメソッドは ended_at IS NULL と遷移元の状態を条件に1行だけ更新し、
// 条件に一致しない場合はErrNotUpdatedを返す。
type ReadingSessionRepository interface {
	// Create は読書セッションを作成する。
	// 同じユーザーと本で未終了のセッションが既にある場合はErrDuplicateを返す。
	Create(ctx context.Context, session *model.ReadingSession) error
	// FindByID は指定IDの読書セッションを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.ReadingSession, error)
	// FindOpenByUserAndBook は未終了の読書セッションを取得する。見つからない場合はnilを返す。
	FindOpenByUserAndBook(ctx context.Context, userID, bookID string) (*model.ReadingSession, error)
	// ListByUser はユーザーの読書セッションを開始日時の降順で返す。bookIDが空の場合は全ての本を対象とする。
	ListByUser(ctx context.Context, userID, bookID string, limit int) ([]*model.ReadingSession, error)
	// MarkPaused は計測中のセッションを一時停止にする。
	MarkPaused(ctx context.Context, id string, pausedAt time.Time) error
	// MarkResumed は一時停止中のセッションを再開し、累積停止秒数を更新する。
	MarkResumed(ctx context.Context, id string, totalPausedSeconds int64, at time.Time) error
	// MarkEnded は未終了のセッションを終了し、終了時の計算結果を保存する。
	MarkEnded(ctx context.Context, session *model.ReadingSession) error
	// DeleteOpen は未終了のセッションを削除する（取り消し）。
	DeleteOpen(ctx context.Context, id string) error
	// Delete は状態に関わらずセッションを削除する。対象がない場合はErrNotUpdatedを返す。
	Delete(ctx context.Context, id string) error
	// DeleteByUserAndBook はユーザーの特定の本のセッションを全て削除する。
	DeleteByUserAndBook(ctx context.Context, userID, bookID string) error
	// DeleteByUserID はユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
	// ListStartDates はセッションを開始した日付（locにおける暦日）を重複なく返す。
	// 戻り値の各要素は年月日のみが意味を持つ。
	ListStartDates(ctx context.Context, userID string, loc *time.Location) ([]time.Time, error)
	// SumDurationInRange は started_at が [start, end) にある終了済みセッションの読書秒数の合計を返す。
	SumDurationInRange(ctx context.Context, userID string, start, end time.Time) (int64, error)
	// Totals は終了済みセッションの件数、読書秒数、ページ数の累計を返す。
	Totals(ctx context.Context, userID string) (model.ReadingTotals, error)
}

// GoalRepository は読書目標の永続化インターフェース。
type GoalRepository interface {
	// Upsert は (user_id, goal_type) をキーに目標を作成または更新し、保存後の値を返す。
	Upsert(ctx context.Context, goal *model.ReadingGoal) (*model.ReadingGoal, error)
	// FindByID は指定IDの目標を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.ReadingGoal, error)
	// ListByUser はユーザーの目標一覧を返す。
	ListByUser(ctx context.Context, userID string) ([]*model.ReadingGoal, error)
	// Delete は指定IDの目標を削除する。
	Delete(ctx context.Context, id string) error
	// DeleteByUserID はユーザーの全目標を削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// NoteRepository はメモ・引用の永続化インターフェース。
type NoteRepository interface {
	// Create はメモを作成する。
	Create(ctx context.Context, note *model.Note) error
	// FindByID は指定IDのメモを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Note, error)
	// ListByUserAndBook は本に紐づくメモを作成日時の昇順で返す。
	ListByUserAndBook(ctx context.Context, userID, bookID string) ([]*model.Note, error)
	// Delete は指定IDのメモを削除する。
	Delete(ctx context.Context, id string) error
	// DeleteByUserAndBook はユーザーの特定の本のメモを全て削除する。
	DeleteByUserAndBook(ctx context.Context, userID, bookID string) error
	// DeleteByUserID はユーザーの全メモを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}
