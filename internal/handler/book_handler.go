package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/quietly/quietly/internal/model"
)

// BookServiceInterface は本棚ハンドラーが必要とするサービスインターフェース。
type BookServiceInterface interface {
	// AddBook は本を「読みたい」状態で本棚に追加する。
	AddBook(ctx context.Context, userID string, req addBookRequest) (*bookResponse, error)
	// ListBooks は本棚の本を返す。statusが空の場合は全件。
	ListBooks(ctx context.Context, userID, status string) ([]bookResponse, error)
	// GetBook は本棚の本を1冊返す。
	GetBook(ctx context.Context, userID, bookID string) (*bookResponse, error)
	// UpdateStatus は読書状態を変更する。
	UpdateStatus(ctx context.Context, userID, bookID, status string) (*bookResponse, error)
	// UpdateProgress は現在ページを更新する。
	UpdateProgress(ctx context.Context, userID, bookID string, page int) (*bookResponse, error)
	// Rate は評価を設定する。nilの場合は評価を消す。
	Rate(ctx context.Context, userID, bookID string, rating *int) (*bookResponse, error)
	// RemoveBook は本棚から本を削除する（セッションとメモも削除）。
	RemoveBook(ctx context.Context, userID, bookID string) error
}

// BookHandler は本棚管理のHTTPハンドラー。
type BookHandler struct {
	service BookServiceInterface
}

// NewBookHandler はBookHandlerを生成する。
func NewBookHandler(service BookServiceInterface) *BookHandler {
	return &BookHandler{service: service}
}

// addBookRequest は本の追加リクエストのボディ。
type addBookRequest struct {
	Title      string `json:"title"`
	Author     string `json:"author"`
	ISBN       string `json:"isbn"`
	TotalPages *int   `json:"total_pages"`
	CoverURL   string `json:"cover_url"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

type updateProgressRequest struct {
	CurrentPage *int `json:"current_page"`
}

type rateRequest struct {
	Rating *int `json:"rating"`
}

// bookResponse は本棚の本のAPIレスポンス。idは書誌情報のID。
type bookResponse struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Author      string     `json:"author"`
	ISBN        string     `json:"isbn,omitempty"`
	TotalPages  *int       `json:"total_pages"`
	CoverURL    string     `json:"cover_url,omitempty"`
	Status      string     `json:"status"`
	CurrentPage int        `json:"current_page"`
	Rating      *int       `json:"rating"`
	StartedAt   *time.Time `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`
	AddedAt     time.Time  `json:"added_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// AddBook は本を本棚に追加する。
// POST /api/books
func (h *BookHandler) AddBook(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req addBookRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	book, err := h.service.AddBook(r.Context(), userID, req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, book)
}

// ListBooks は本棚の本の一覧を返す。
// GET /api/books?status=reading
func (h *BookHandler) ListBooks(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	books, err := h.service.ListBooks(r.Context(), userID, r.URL.Query().Get("status"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, books)
}

// GetBook は本棚の本を返す。
// GET /api/books/{id}
func (h *BookHandler) GetBook(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	bookID, ok := idParam(w, r, "id", model.NewBookNotFoundError)
	if !ok {
		return
	}

	book, err := h.service.GetBook(r.Context(), userID, bookID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, book)
}

// UpdateStatus は読書状態を変更する。
// PATCH /api/books/{id}/status
func (h *BookHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	bookID, ok := idParam(w, r, "id", model.NewBookNotFoundError)
	if !ok {
		return
	}

	var req updateStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	book, err := h.service.UpdateStatus(r.Context(), userID, bookID, req.Status)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, book)
}

// UpdateProgress は現在ページを更新する。
// PATCH /api/books/{id}/progress
func (h *BookHandler) UpdateProgress(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	bookID, ok := idParam(w, r, "id", model.NewBookNotFoundError)
	if !ok {
		return
	}

	var req updateProgressRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.CurrentPage == nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("current_pageを指定してください"))
		return
	}

	book, err := h.service.UpdateProgress(r.Context(), userID, bookID, *req.CurrentPage)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, book)
}

// Rate は評価を設定する。
// PUT /api/books/{id}/rating
func (h *BookHandler) Rate(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	bookID, ok := idParam(w, r, "id", model.NewBookNotFoundError)
	if !ok {
		return
	}

	var req rateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	book, err := h.service.Rate(r.Context(), userID, bookID, req.Rating)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, book)
}

// RemoveBook は本棚から本を削除する。
// DELETE /api/books/{id}
func (h *BookHandler) RemoveBook(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	bookID, ok := idParam(w, r, "id", model.NewBookNotFoundError)
	if !ok {
		return
	}

	if err := h.service.RemoveBook(r.Context(), userID, bookID); err != nil {
		handleServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
