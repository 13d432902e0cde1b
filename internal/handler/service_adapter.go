package handler

import (
	"context"

	"github.com/quietly/quietly/internal/goal"
	"github.com/quietly/quietly/internal/library"
	"github.com/quietly/quietly/internal/model"
	"github.com/quietly/quietly/internal/note"
	"github.com/quietly/quietly/internal/session"
	"github.com/quietly/quietly/internal/streak"
	"github.com/quietly/quietly/internal/user"
)

// BookServiceAdapter は library.Service を BookServiceInterface に適合させるアダプタ。
type BookServiceAdapter struct {
	svc *library.Service
}

// NewBookServiceAdapter はBookServiceAdapterを生成する。
func NewBookServiceAdapter(svc *library.Service) *BookServiceAdapter {
	return &BookServiceAdapter{svc: svc}
}

// AddBook は本を本棚に追加しhandlerレスポンス型で返す。
func (a *BookServiceAdapter) AddBook(ctx context.Context, userID string, req addBookRequest) (*bookResponse, error) {
	ub, err := a.svc.AddBook(ctx, userID, library.AddBookInput{
		Title:      req.Title,
		Author:     req.Author,
		ISBN:       req.ISBN,
		TotalPages: req.TotalPages,
		CoverURL:   req.CoverURL,
	})
	return bookResult(ub, err)
}

// ListBooks は本棚の一覧をhandlerレスポンス型で返す。
func (a *BookServiceAdapter) ListBooks(ctx context.Context, userID, status string) ([]bookResponse, error) {
	books, err := a.svc.ListUserBooks(ctx, userID, status)
	if err != nil {
		return nil, err
	}
	results := make([]bookResponse, len(books))
	for i := range books {
		results[i] = toBookResponse(&books[i])
	}
	return results, nil
}

// GetBook は本棚の本をhandlerレスポンス型で返す。
func (a *BookServiceAdapter) GetBook(ctx context.Context, userID, bookID string) (*bookResponse, error) {
	return bookResult(a.svc.GetUserBook(ctx, userID, bookID))
}

// UpdateStatus は読書状態を変更する。
func (a *BookServiceAdapter) UpdateStatus(ctx context.Context, userID, bookID, status string) (*bookResponse, error) {
	return bookResult(a.svc.UpdateStatus(ctx, userID, bookID, status))
}

// UpdateProgress は現在ページを更新する。
func (a *BookServiceAdapter) UpdateProgress(ctx context.Context, userID, bookID string, page int) (*bookResponse, error) {
	return bookResult(a.svc.UpdateProgress(ctx, userID, bookID, page))
}

// Rate は評価を設定する。
func (a *BookServiceAdapter) Rate(ctx context.Context, userID, bookID string, rating *int) (*bookResponse, error) {
	return bookResult(a.svc.Rate(ctx, userID, bookID, rating))
}

// RemoveBook は本棚から本を削除する。
func (a *BookServiceAdapter) RemoveBook(ctx context.Context, userID, bookID string) error {
	return a.svc.RemoveUserBook(ctx, userID, bookID)
}

func bookResult(ub *model.UserBookWithBook, err error) (*bookResponse, error) {
	if err != nil {
		return nil, err
	}
	resp := toBookResponse(ub)
	return &resp, nil
}

// toBookResponse は本棚の本をhandlerのレスポンス型に変換する。
func toBookResponse(ub *model.UserBookWithBook) bookResponse {
	return bookResponse{
		ID:          ub.Book.ID,
		Title:       ub.Book.Title,
		Author:      ub.Book.Author,
		ISBN:        ub.Book.ISBN,
		TotalPages:  ub.Book.TotalPages,
		CoverURL:    ub.Book.CoverURL,
		Status:      string(ub.Status),
		CurrentPage: ub.CurrentPage,
		Rating:      ub.Rating,
		StartedAt:   ub.StartedAt,
		CompletedAt: ub.CompletedAt,
		AddedAt:     ub.CreatedAt,
		UpdatedAt:   ub.UpdatedAt,
	}
}

// NoteServiceAdapter は note.Service を NoteServiceInterface に適合させるアダプタ。
type NoteServiceAdapter struct {
	svc *note.Service
}

// NewNoteServiceAdapter はNoteServiceAdapterを生成する。
func NewNoteServiceAdapter(svc *note.Service) *NoteServiceAdapter {
	return &NoteServiceAdapter{svc: svc}
}

// CreateNote はメモを作成しhandlerレスポンス型で返す。
func (a *NoteServiceAdapter) CreateNote(ctx context.Context, userID, bookID string, req createNoteRequest) (*noteResponse, error) {
	n, err := a.svc.Create(ctx, userID, bookID, note.CreateInput{
		Kind:    req.Kind,
		Content: req.Content,
		Page:    req.Page,
	})
	if err != nil {
		return nil, err
	}
	resp := toNoteResponse(n)
	return &resp, nil
}

// ListNotes は本のメモ一覧を返す。
func (a *NoteServiceAdapter) ListNotes(ctx context.Context, userID, bookID string) ([]noteResponse, error) {
	notes, err := a.svc.List(ctx, userID, bookID)
	if err != nil {
		return nil, err
	}
	results := make([]noteResponse, len(notes))
	for i, n := range notes {
		results[i] = toNoteResponse(n)
	}
	return results, nil
}

// DeleteNote はメモを削除する。
func (a *NoteServiceAdapter) DeleteNote(ctx context.Context, userID, noteID string) error {
	return a.svc.Delete(ctx, userID, noteID)
}

func toNoteResponse(n *model.Note) noteResponse {
	return noteResponse{
		ID:        n.ID,
		BookID:    n.BookID,
		Kind:      string(n.Kind),
		Content:   n.Content,
		Page:      n.Page,
		CreatedAt: n.CreatedAt,
	}
}

// SessionServiceAdapter は session.Service を SessionServiceInterface に適合させるアダプタ。
// 応答のたびにサービスの時計で経過秒数を計算する。
type SessionServiceAdapter struct {
	svc *session.Service
}

// NewSessionServiceAdapter はSessionServiceAdapterを生成する。
func NewSessionServiceAdapter(svc *session.Service) *SessionServiceAdapter {
	return &SessionServiceAdapter{svc: svc}
}

// Start は読書セッションを開始する。
func (a *SessionServiceAdapter) Start(ctx context.Context, userID, bookID string, startPage *int) (*sessionResponse, error) {
	return a.result(a.svc.Start(ctx, userID, bookID, startPage))
}

// Pause はセッションを一時停止する。
func (a *SessionServiceAdapter) Pause(ctx context.Context, userID, sessionID string) (*sessionResponse, error) {
	return a.result(a.svc.Pause(ctx, userID, sessionID))
}

// Resume はセッションを再開する。
func (a *SessionServiceAdapter) Resume(ctx context.Context, userID, sessionID string) (*sessionResponse, error) {
	return a.result(a.svc.Resume(ctx, userID, sessionID))
}

// End はセッションを終了する。
func (a *SessionServiceAdapter) End(ctx context.Context, userID, sessionID string, endPage *int, notes *string) (*sessionResponse, error) {
	return a.result(a.svc.End(ctx, userID, sessionID, endPage, notes))
}

// Cancel はセッションを取り消す。
func (a *SessionServiceAdapter) Cancel(ctx context.Context, userID, sessionID string) error {
	return a.svc.Cancel(ctx, userID, sessionID)
}

// Get はセッションを返す。
func (a *SessionServiceAdapter) Get(ctx context.Context, userID, sessionID string) (*sessionResponse, error) {
	return a.result(a.svc.Get(ctx, userID, sessionID))
}

// GetActive は本の進行中セッションを返す。存在しない場合はnilを返す。
func (a *SessionServiceAdapter) GetActive(ctx context.Context, userID, bookID string) (*sessionResponse, error) {
	sess, err := a.svc.GetActive(ctx, userID, bookID)
	if err != nil || sess == nil {
		return nil, err
	}
	return a.result(sess, nil)
}

// List はセッション一覧を返す。
func (a *SessionServiceAdapter) List(ctx context.Context, userID, bookID string, limit int) ([]sessionResponse, error) {
	sessions, err := a.svc.List(ctx, userID, bookID, limit)
	if err != nil {
		return nil, err
	}
	results := make([]sessionResponse, len(sessions))
	for i, sess := range sessions {
		results[i] = toSessionResponse(sess, a.svc.Elapsed(sess))
	}
	return results, nil
}

// Delete はセッションを削除する。
func (a *SessionServiceAdapter) Delete(ctx context.Context, userID, sessionID string) error {
	return a.svc.Delete(ctx, userID, sessionID)
}

func (a *SessionServiceAdapter) result(sess *model.ReadingSession, err error) (*sessionResponse, error) {
	if err != nil {
		return nil, err
	}
	resp := toSessionResponse(sess, a.svc.Elapsed(sess))
	return &resp, nil
}

// toSessionResponse は読書セッションをhandlerのレスポンス型に変換する。
func toSessionResponse(sess *model.ReadingSession, elapsed int64) sessionResponse {
	return sessionResponse{
		ID:                 sess.ID,
		BookID:             sess.BookID,
		State:              string(sess.State()),
		StartedAt:          sess.StartedAt,
		PausedAt:           sess.PausedAt,
		TotalPausedSeconds: sess.TotalPausedSeconds,
		EndedAt:            sess.EndedAt,
		StartPage:          sess.StartPage,
		EndPage:            sess.EndPage,
		DurationSeconds:    sess.DurationSeconds,
		PagesRead:          sess.PagesRead,
		Notes:              sess.Notes,
		ElapsedSeconds:     elapsed,
	}
}

// GoalServiceAdapter は goal.Service を GoalServiceInterface に適合させるアダプタ。
type GoalServiceAdapter struct {
	svc *goal.Service
}

// NewGoalServiceAdapter はGoalServiceAdapterを生成する。
func NewGoalServiceAdapter(svc *goal.Service) *GoalServiceAdapter {
	return &GoalServiceAdapter{svc: svc}
}

// ListGoals は目標を現在の進捗付きで返す。
func (a *GoalServiceAdapter) ListGoals(ctx context.Context, userID string) ([]goalResponse, error) {
	goals, err := a.svc.ListNow(ctx, userID)
	if err != nil {
		return nil, err
	}
	return toGoalResponses(goals), nil
}

// UpsertGoal は目標を作成または更新する。
func (a *GoalServiceAdapter) UpsertGoal(ctx context.Context, userID, goalType string, targetValue int) (*goalResponse, error) {
	g, err := a.svc.Upsert(ctx, userID, goalType, targetValue)
	if err != nil {
		return nil, err
	}
	resp := toGoalResponse(*g)
	return &resp, nil
}

// DeleteGoal は目標を削除する。
func (a *GoalServiceAdapter) DeleteGoal(ctx context.Context, userID, goalID string) error {
	return a.svc.Delete(ctx, userID, goalID)
}

func toGoalResponse(g goal.GoalWithProgress) goalResponse {
	return goalResponse{
		ID:           g.Goal.ID,
		GoalType:     string(g.Goal.GoalType),
		TargetValue:  g.Progress.TargetValue,
		CurrentValue: g.Progress.CurrentValue,
		Completed:    g.Progress.Completed(),
		PeriodStart:  g.Progress.PeriodStart,
		PeriodEnd:    g.Progress.PeriodEnd,
	}
}

func toGoalResponses(goals []goal.GoalWithProgress) []goalResponse {
	results := make([]goalResponse, len(goals))
	for i, g := range goals {
		results[i] = toGoalResponse(g)
	}
	return results
}

// StatsServiceAdapter はストリークと目標のサービスを StatsServiceInterface にまとめるアダプタ。
type StatsServiceAdapter struct {
	streaks *streak.Service
	goals   *goal.Service
}

// NewStatsServiceAdapter はStatsServiceAdapterを生成する。
func NewStatsServiceAdapter(streaks *streak.Service, goals *goal.Service) *StatsServiceAdapter {
	return &StatsServiceAdapter{streaks: streaks, goals: goals}
}

// Stats はストリーク、累計実績、目標の進捗を返す。
func (a *StatsServiceAdapter) Stats(ctx context.Context, userID string) (*statsResponse, error) {
	st, err := a.streaks.Stats(ctx, userID)
	if err != nil {
		return nil, err
	}
	goals, err := a.goals.ListNow(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &statsResponse{
		CurrentStreak:     st.CurrentStreak,
		LongestStreak:     st.LongestStreak,
		TotalMinutes:      st.Totals.TotalSeconds / 60,
		CompletedSessions: st.Totals.CompletedSessions,
		PagesRead:         st.Totals.PagesRead,
		CompletedBooks:    st.Totals.CompletedBooks,
		Goals:             toGoalResponses(goals),
	}, nil
}

// UserServiceAdapter は user.Service を UserServiceInterface に適合させるアダプタ。
type UserServiceAdapter struct {
	svc *user.Service
}

// NewUserServiceAdapter はUserServiceAdapterを生成する。
func NewUserServiceAdapter(svc *user.Service) *UserServiceAdapter {
	return &UserServiceAdapter{svc: svc}
}

// Withdraw はユーザーの退会処理を実行する。
func (a *UserServiceAdapter) Withdraw(ctx context.Context, userID string) error {
	return a.svc.Withdraw(ctx, userID)
}

// --- compile-time interface checks ---

var _ BookServiceInterface = (*BookServiceAdapter)(nil)
var _ NoteServiceInterface = (*NoteServiceAdapter)(nil)
var _ SessionServiceInterface = (*SessionServiceAdapter)(nil)
var _ GoalServiceInterface = (*GoalServiceAdapter)(nil)
var _ StatsServiceInterface = (*StatsServiceAdapter)(nil)
var _ UserServiceInterface = (*UserServiceAdapter)(nil)
