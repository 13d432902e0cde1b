package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/quietly/quietly/internal/clock"
	"github.com/quietly/quietly/internal/metrics"
	"github.com/quietly/quietly/internal/model"
	"github.com/quietly/quietly/internal/repository"
	"github.com/quietly/quietly/internal/security"
)

// 状態遷移の名前。メトリクスのラベルとエラーメッセージに使う。
const (
	transitionStart  = "start"
	transitionPause  = "pause"
	transitionResume = "resume"
	transitionEnd    = "end"
	transitionCancel = "cancel"
)

// ServiceConfig は読書セッションサービスの設定。
type ServiceConfig struct {
	ListLimit     int // 一覧取得の最大件数
	NoteMaxLength int // セッションメモの最大文字数
}

// Service は読書セッションのライフサイクルを管理する。
// 各遷移は永続化済みの行を読み直してから、状態を条件にした1回の更新で反映する。
// 書き込みが成功するまで戻り値の状態は進めない。
type Service struct {
	sessionRepo  repository.ReadingSessionRepository
	userBookRepo repository.UserBookRepository
	sanitizer    security.TextSanitizer
	metrics      metrics.MetricsCollector
	clock        clock.Clock
	config       ServiceConfig
}

// NewService はServiceを生成する。metricsはnilでもよい。
func NewService(
	sessionRepo repository.ReadingSessionRepository,
	userBookRepo repository.UserBookRepository,
	sanitizer security.TextSanitizer,
	collector metrics.MetricsCollector,
	clk clock.Clock,
	config ServiceConfig,
) *Service {
	if config.ListLimit <= 0 {
		config.ListLimit = 50
	}
	if config.NoteMaxLength <= 0 {
		config.NoteMaxLength = 10000
	}
	return &Service{
		sessionRepo:  sessionRepo,
		userBookRepo: userBookRepo,
		sanitizer:    sanitizer,
		metrics:      collector,
		clock:        clk,
		config:       config,
	}
}

// Start は本の読書セッションを開始する。
// 本が本棚にない場合はBOOK_NOT_FOUND、同じ本で未終了のセッションがある場合はACTIVE_SESSION_EXISTSを返す。
// startPageを省略した場合は本棚の現在ページ（1以上のとき）を開始ページとする。
func (s *Service) Start(ctx context.Context, userID, bookID string, startPage *int) (*model.ReadingSession, error) {
	if userID == "" {
		return nil, model.NewNotAuthenticatedError()
	}
	if startPage != nil && *startPage < 0 {
		return nil, model.NewValidationError("開始ページは0以上で指定してください")
	}

	userBook, err := s.userBookRepo.FindByUserAndBook(ctx, userID, bookID)
	if err != nil {
		return nil, fmt.Errorf("本棚の取得に失敗しました: %w", err)
	}
	if userBook == nil {
		return nil, model.NewBookNotFoundError(bookID)
	}

	open, err := s.sessionRepo.FindOpenByUserAndBook(ctx, userID, bookID)
	if err != nil {
		return nil, fmt.Errorf("進行中セッションの確認に失敗しました: %w", err)
	}
	if open != nil {
		return nil, model.NewActiveSessionExistsError(bookID)
	}

	if startPage != nil {
		if err := checkWithinBook(userBook, "開始ページ", *startPage); err != nil {
			return nil, err
		}
	}

	if startPage == nil && userBook.CurrentPage > 0 {
		page := userBook.CurrentPage
		startPage = &page
	}

	now := s.clock.Now()
	sess := &model.ReadingSession{
		ID:        uuid.NewString(),
		UserID:    userID,
		BookID:    bookID,
		StartedAt: now,
		StartPage: startPage,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.sessionRepo.Create(ctx, sess); err != nil {
		// 確認と作成の間に別端末が開始した場合
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, model.NewActiveSessionExistsError(bookID)
		}
		return nil, fmt.Errorf("読書セッションの作成に失敗しました: %w", err)
	}

	s.recordTransition(transitionStart)
	slog.InfoContext(ctx, "読書セッションを開始しました",
		slog.String("user_id", userID),
		slog.String("session_id", sess.ID),
		slog.String("book_id", bookID),
	)
	return sess, nil
}

// Pause は計測中のセッションを一時停止する。
func (s *Service) Pause(ctx context.Context, userID, sessionID string) (*model.ReadingSession, error) {
	sess, err := s.loadOwned(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if state := sess.State(); state != model.SessionStateActive {
		return nil, model.NewInvalidTransitionError(state, transitionPause)
	}

	now := s.clock.Now()
	if err := s.sessionRepo.MarkPaused(ctx, sess.ID, now); err != nil {
		return nil, s.transitionError(err, sess, transitionPause)
	}

	updated := *sess
	updated.PausedAt = &now
	updated.UpdatedAt = now

	s.recordTransition(transitionPause)
	slog.InfoContext(ctx, "読書セッションを一時停止しました",
		slog.String("user_id", userID),
		slog.String("session_id", sess.ID),
	)
	return &updated, nil
}

// Resume は一時停止中のセッションを再開する。
// 停止していた区間を累積停止秒数に加算し、一時停止時刻をクリアする。
func (s *Service) Resume(ctx context.Context, userID, sessionID string) (*model.ReadingSession, error) {
	sess, err := s.loadOwned(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if state := sess.State(); state != model.SessionStatePaused {
		return nil, model.NewInvalidTransitionError(state, transitionResume)
	}

	now := s.clock.Now()
	total := FoldPause(now, *sess.PausedAt, sess.TotalPausedSeconds)
	if err := s.sessionRepo.MarkResumed(ctx, sess.ID, total, now); err != nil {
		return nil, s.transitionError(err, sess, transitionResume)
	}

	updated := *sess
	updated.PausedAt = nil
	updated.TotalPausedSeconds = total
	updated.UpdatedAt = now

	s.recordTransition(transitionResume)
	slog.InfoContext(ctx, "読書セッションを再開しました",
		slog.String("user_id", userID),
		slog.String("session_id", sess.ID),
		slog.Int64("total_paused_seconds", total),
	)
	return &updated, nil
}

// End はセッションを終了する。一時停止中の場合は最後の停止区間を加算してから終了する。
// 読書秒数とページ数を確定させ、終了ページが本棚の現在ページより進んでいれば更新する。
func (s *Service) End(ctx context.Context, userID, sessionID string, endPage *int, notes *string) (*model.ReadingSession, error) {
	sess, err := s.loadOwned(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	state := sess.State()
	if state == model.SessionStateEnded {
		return nil, model.NewInvalidTransitionError(state, transitionEnd)
	}

	if endPage != nil {
		if *endPage < 0 {
			return nil, model.NewValidationError("終了ページは0以上で指定してください")
		}
		if sess.StartPage != nil && *endPage < *sess.StartPage {
			return nil, model.NewValidationError(fmt.Sprintf("終了ページ（%d）が開始ページ（%d）より前です", *endPage, *sess.StartPage))
		}
		userBook, err := s.userBookRepo.FindByUserAndBook(ctx, userID, sess.BookID)
		if err != nil {
			return nil, fmt.Errorf("本棚の取得に失敗しました: %w", err)
		}
		if err := checkWithinBook(userBook, "終了ページ", *endPage); err != nil {
			return nil, err
		}
	}

	cleanNotes, err := s.sanitizeNotes(notes)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	total := sess.TotalPausedSeconds
	if sess.PausedAt != nil {
		total = FoldPause(now, *sess.PausedAt, total)
	}
	duration := DurationSeconds(sess.StartedAt, now, total)

	updated := *sess
	updated.PausedAt = nil
	updated.TotalPausedSeconds = total
	updated.EndedAt = &now
	updated.EndPage = endPage
	updated.DurationSeconds = &duration
	updated.PagesRead = PagesRead(sess.StartPage, endPage)
	updated.Notes = cleanNotes
	updated.UpdatedAt = now

	if err := s.sessionRepo.MarkEnded(ctx, &updated); err != nil {
		return nil, s.transitionError(err, sess, transitionEnd)
	}

	if endPage != nil {
		// セッションの終了は確定済みのため、本棚の更新失敗はログのみ
		if err := s.userBookRepo.AdvanceCurrentPage(ctx, userID, sess.BookID, *endPage); err != nil {
			slog.WarnContext(ctx, "本棚の現在ページ更新に失敗しました",
				slog.String("user_id", userID),
				slog.String("book_id", sess.BookID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.recordTransition(transitionEnd)
	if s.metrics != nil {
		s.metrics.RecordSessionDuration(duration)
	}
	slog.InfoContext(ctx, "読書セッションを終了しました",
		slog.String("user_id", userID),
		slog.String("session_id", sess.ID),
		slog.Int64("duration_seconds", duration),
	)
	return &updated, nil
}

// checkWithinBook はpageが本の総ページ数を超えていないか確認する。総ページ数が未登録なら制限しない。
func checkWithinBook(userBook *model.UserBookWithBook, label string, page int) error {
	if userBook == nil || userBook.Book.TotalPages == nil {
		return nil
	}
	if total := *userBook.Book.TotalPages; page > total {
		return model.NewValidationError(fmt.Sprintf("%s（%d）が総ページ数（%d）を超えています", label, page, total))
	}
	return nil
}

// Cancel は未終了のセッションを記録せずに取り消す。行は削除され、読書時間は計上されない。
func (s *Service) Cancel(ctx context.Context, userID, sessionID string) error {
	sess, err := s.loadOwned(ctx, userID, sessionID)
	if err != nil {
		return err
	}
	if state := sess.State(); state == model.SessionStateEnded {
		return model.NewInvalidTransitionError(state, transitionCancel)
	}

	if err := s.sessionRepo.DeleteOpen(ctx, sess.ID); err != nil {
		return s.transitionError(err, sess, transitionCancel)
	}

	s.recordTransition(transitionCancel)
	slog.InfoContext(ctx, "読書セッションを取り消しました",
		slog.String("user_id", userID),
		slog.String("session_id", sess.ID),
	)
	return nil
}

// Get は指定IDのセッションを返す。
func (s *Service) Get(ctx context.Context, userID, sessionID string) (*model.ReadingSession, error) {
	return s.loadOwned(ctx, userID, sessionID)
}

// GetActive は本の未終了セッションを返す。存在しない場合はnilを返す。
func (s *Service) GetActive(ctx context.Context, userID, bookID string) (*model.ReadingSession, error) {
	if userID == "" {
		return nil, model.NewNotAuthenticatedError()
	}
	sess, err := s.sessionRepo.FindOpenByUserAndBook(ctx, userID, bookID)
	if err != nil {
		return nil, fmt.Errorf("進行中セッションの取得に失敗しました: %w", err)
	}
	return sess, nil
}

// List はユーザーのセッションを開始日時の降順で返す。bookIDが空の場合は全ての本を対象とする。
// limitが0以下または上限を超える場合は上限件数を使う。
func (s *Service) List(ctx context.Context, userID, bookID string, limit int) ([]*model.ReadingSession, error) {
	if userID == "" {
		return nil, model.NewNotAuthenticatedError()
	}
	if limit <= 0 || limit > s.config.ListLimit {
		limit = s.config.ListLimit
	}
	sessions, err := s.sessionRepo.ListByUser(ctx, userID, bookID, limit)
	if err != nil {
		return nil, fmt.Errorf("読書セッション一覧の取得に失敗しました: %w", err)
	}
	return sessions, nil
}

// Delete は状態に関わらずセッションを削除する。
func (s *Service) Delete(ctx context.Context, userID, sessionID string) error {
	sess, err := s.loadOwned(ctx, userID, sessionID)
	if err != nil {
		return err
	}
	if err := s.sessionRepo.Delete(ctx, sess.ID); err != nil {
		if errors.Is(err, repository.ErrNotUpdated) {
			return model.NewSessionNotFoundError(sessionID)
		}
		return fmt.Errorf("読書セッションの削除に失敗しました: %w", err)
	}
	slog.InfoContext(ctx, "読書セッションを削除しました",
		slog.String("user_id", userID),
		slog.String("session_id", sessionID),
	)
	return nil
}

// Elapsed はセッションの現在の経過秒数を返す。終了済みの場合は確定した読書秒数を返す。
func (s *Service) Elapsed(sess *model.ReadingSession) int64 {
	return ElapsedAt(sess, s.clock.Now())
}

// ElapsedAt はnow時点でのセッションの経過秒数を返す。
func ElapsedAt(sess *model.ReadingSession, now time.Time) int64 {
	if sess.EndedAt != nil {
		if sess.DurationSeconds != nil {
			return *sess.DurationSeconds
		}
		return DurationSeconds(sess.StartedAt, *sess.EndedAt, sess.TotalPausedSeconds)
	}
	return ElapsedSeconds(now, sess.StartedAt, sess.PausedAt, sess.TotalPausedSeconds)
}

// loadOwned はセッションを読み直し、所有者を確認する。
// 他のユーザーのセッションは存在しないものとして扱う。
func (s *Service) loadOwned(ctx context.Context, userID, sessionID string) (*model.ReadingSession, error) {
	if userID == "" {
		return nil, model.NewNotAuthenticatedError()
	}
	sess, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("読書セッションの取得に失敗しました: %w", err)
	}
	if sess == nil || sess.UserID != userID {
		return nil, model.NewSessionNotFoundError(sessionID)
	}
	return sess, nil
}

// transitionError は状態条件付き更新のエラーを変換する。
// 条件に一致しなかった場合は読み直してから更新までの間に別端末が状態を変えたことを意味する。
func (s *Service) transitionError(err error, sess *model.ReadingSession, transition string) error {
	if errors.Is(err, repository.ErrNotUpdated) {
		return model.NewInvalidTransitionError(sess.State(), transition)
	}
	return fmt.Errorf("読書セッションの更新に失敗しました（%s）: %w", transition, err)
}

func (s *Service) sanitizeNotes(notes *string) (*string, error) {
	if notes == nil {
		return nil, nil
	}
	clean := s.sanitizer.Sanitize(*notes)
	if clean == "" {
		return nil, nil
	}
	if utf8.RuneCountInString(clean) > s.config.NoteMaxLength {
		return nil, model.NewValidationError(fmt.Sprintf("メモは%d文字以内で入力してください", s.config.NoteMaxLength))
	}
	return &clean, nil
}

func (s *Service) recordTransition(transition string) {
	if s.metrics != nil {
		s.metrics.RecordSessionTransition(transition)
	}
}
