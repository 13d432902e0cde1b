package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/quietly/quietly/internal/model"
)

// NoteServiceInterface はメモハンドラーが必要とするサービスインターフェース。
type NoteServiceInterface interface {
	CreateNote(ctx context.Context, userID, bookID string, req createNoteRequest) (*noteResponse, error)
	ListNotes(ctx context.Context, userID, bookID string) ([]noteResponse, error)
	DeleteNote(ctx context.Context, userID, noteID string) error
}

// NoteHandler はメモ・引用のHTTPハンドラー。
type NoteHandler struct {
	service NoteServiceInterface
}

// NewNoteHandler はNoteHandlerを生成する。
func NewNoteHandler(service NoteServiceInterface) *NoteHandler {
	return &NoteHandler{service: service}
}

// createNoteRequest はメモ作成リクエストのボディ。kindは note | quote。
type createNoteRequest struct {
	Kind    string `json:"kind"`
	Content string `json:"content"`
	Page    *int   `json:"page"`
}

type noteResponse struct {
	ID        string    `json:"id"`
	BookID    string    `json:"book_id"`
	Kind      string    `json:"kind"`
	Content   string    `json:"content"`
	Page      *int      `json:"page"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateNote は本にメモを追加する。
// POST /api/books/{id}/notes
func (h *NoteHandler) CreateNote(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	bookID, ok := idParam(w, r, "id", model.NewBookNotFoundError)
	if !ok {
		return
	}

	var req createNoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	note, err := h.service.CreateNote(r.Context(), userID, bookID, req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, note)
}

// ListNotes は本のメモ一覧を返す。
// GET /api/books/{id}/notes
func (h *NoteHandler) ListNotes(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	bookID, ok := idParam(w, r, "id", model.NewBookNotFoundError)
	if !ok {
		return
	}

	notes, err := h.service.ListNotes(r.Context(), userID, bookID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, notes)
}

// DeleteNote はメモを削除する。
// DELETE /api/notes/{id}
func (h *NoteHandler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	noteID, ok := idParam(w, r, "id", model.NewNoteNotFoundError)
	if !ok {
		return
	}

	if err := h.service.DeleteNote(r.Context(), userID, noteID); err != nil {
		handleServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
