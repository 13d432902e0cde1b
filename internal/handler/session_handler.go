package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/quietly/quietly/internal/model"
)

// SessionServiceInterface は読書セッションハンドラーが必要とするサービスインターフェース。
// 返されるセッションには応答時点の経過秒数が含まれる。
type SessionServiceInterface interface {
	Start(ctx context.Context, userID, bookID string, startPage *int) (*sessionResponse, error)
	Pause(ctx context.Context, userID, sessionID string) (*sessionResponse, error)
	Resume(ctx context.Context, userID, sessionID string) (*sessionResponse, error)
	End(ctx context.Context, userID, sessionID string, endPage *int, notes *string) (*sessionResponse, error)
	Cancel(ctx context.Context, userID, sessionID string) error
	Get(ctx context.Context, userID, sessionID string) (*sessionResponse, error)
	// GetActive は本の未終了セッションを返す。存在しない場合はnilを返す。
	GetActive(ctx context.Context, userID, bookID string) (*sessionResponse, error)
	List(ctx context.Context, userID, bookID string, limit int) ([]sessionResponse, error)
	Delete(ctx context.Context, userID, sessionID string) error
}

// SessionHandler は読書セッションのHTTPハンドラー。
type SessionHandler struct {
	service SessionServiceInterface
}

// NewSessionHandler はSessionHandlerを生成する。
func NewSessionHandler(service SessionServiceInterface) *SessionHandler {
	return &SessionHandler{service: service}
}

type startSessionRequest struct {
	BookID    string `json:"book_id"`
	StartPage *int   `json:"start_page"`
}

type endSessionRequest struct {
	EndPage *int    `json:"end_page"`
	Notes   *string `json:"notes"`
}

// sessionResponse は読書セッションのAPIレスポンス。
// elapsed_secondsは応答時点で計算した経過秒数で、保存はされない。
type sessionResponse struct {
	ID                 string     `json:"id"`
	BookID             string     `json:"book_id"`
	State              string     `json:"state"`
	StartedAt          time.Time  `json:"started_at"`
	PausedAt           *time.Time `json:"paused_at"`
	TotalPausedSeconds int64      `json:"total_paused_seconds"`
	EndedAt            *time.Time `json:"ended_at"`
	StartPage          *int       `json:"start_page"`
	EndPage            *int       `json:"end_page"`
	DurationSeconds    *int64     `json:"duration_seconds"`
	PagesRead          *int       `json:"pages_read"`
	Notes              *string    `json:"notes"`
	ElapsedSeconds     int64      `json:"elapsed_seconds"`
}

// Start は読書セッションを開始する。
// POST /api/sessions
func (h *SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req startSessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	bookID, ok := bookIDValue(w, req.BookID)
	if !ok {
		return
	}

	sess, err := h.service.Start(r.Context(), userID, bookID, req.StartPage)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, sess)
}

// Pause は計測中のセッションを一時停止する。
// POST /api/sessions/{id}/pause
func (h *SessionHandler) Pause(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Pause)
}

// Resume は一時停止中のセッションを再開する。
// POST /api/sessions/{id}/resume
func (h *SessionHandler) Resume(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Resume)
}

// End はセッションを終了する。
// POST /api/sessions/{id}/end
func (h *SessionHandler) End(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	sessionID, ok := idParam(w, r, "id", model.NewSessionNotFoundError)
	if !ok {
		return
	}

	// ボディは省略可能
	var req endSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("リクエストボディの解析に失敗しました"))
		return
	}

	sess, err := h.service.End(r.Context(), userID, sessionID, req.EndPage, req.Notes)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, sess)
}

// Cancel は未終了のセッションを記録せずに破棄する。
// POST /api/sessions/{id}/cancel
func (h *SessionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	sessionID, ok := idParam(w, r, "id", model.NewSessionNotFoundError)
	if !ok {
		return
	}

	if err := h.service.Cancel(r.Context(), userID, sessionID); err != nil {
		handleServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Get はセッションを返す。
// GET /api/sessions/{id}
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Get)
}

// GetActive は本の進行中セッションを返す。存在しない場合はnullを返す。
// GET /api/sessions/active?book_id=xxx
func (h *SessionHandler) GetActive(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	bookID, ok := bookIDValue(w, r.URL.Query().Get("book_id"))
	if !ok {
		return
	}

	sess, err := h.service.GetActive(r.Context(), userID, bookID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, sess)
}

// List はセッションの一覧を開始日時の降順で返す。
// GET /api/sessions?book_id=xxx&limit=20
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	bookID := strings.TrimSpace(q.Get("book_id"))
	if bookID != "" {
		if _, err := uuid.Parse(bookID); err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("book_idが不正です"))
			return
		}
	}

	limit := 0
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("limitは0以上の整数で指定してください"))
			return
		}
		limit = n
	}

	sessions, err := h.service.List(r.Context(), userID, bookID, limit)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, sessions)
}

// Delete は状態に関わらずセッションを削除する。
// DELETE /api/sessions/{id}
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	sessionID, ok := idParam(w, r, "id", model.NewSessionNotFoundError)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), userID, sessionID); err != nil {
		handleServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// transition はセッションIDだけを受け取る操作を実行し、結果のセッションを返す。
func (h *SessionHandler) transition(
	w http.ResponseWriter,
	r *http.Request,
	op func(ctx context.Context, userID, sessionID string) (*sessionResponse, error),
) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	sessionID, ok := idParam(w, r, "id", model.NewSessionNotFoundError)
	if !ok {
		return
	}

	sess, err := op(r.Context(), userID, sessionID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, sess)
}

// bookIDValue はリクエストで指定された本のIDを検証する。
// 未指定の場合は400、UUIDでない場合は存在しない本として404を書き込む。
func bookIDValue(w http.ResponseWriter, raw string) (string, bool) {
	bookID := strings.TrimSpace(raw)
	if bookID == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("book_idを指定してください"))
		return "", false
	}
	if _, err := uuid.Parse(bookID); err != nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewBookNotFoundError(bookID))
		return "", false
	}
	return bookID, true
}
