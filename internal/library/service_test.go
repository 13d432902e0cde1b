package library

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Thiht/transactor"

	"github.com/quietly/quietly/internal/clock"
	"github.com/quietly/quietly/internal/model"
	"github.com/quietly/quietly/internal/repository"
	"github.com/quietly/quietly/internal/security"
)

// --- モック ---

type mockBookRepo struct {
	findByISBNFn func(ctx context.Context, isbn string) (*model.Book, error)
	createFn     func(ctx context.Context, book *model.Book) error
}

func (m *mockBookRepo) FindByID(ctx context.Context, id string) (*model.Book, error) { return nil, nil }
func (m *mockBookRepo) FindByISBN(ctx context.Context, isbn string) (*model.Book, error) {
	if m.findByISBNFn != nil {
		return m.findByISBNFn(ctx, isbn)
	}
	return nil, nil
}
func (m *mockBookRepo) Create(ctx context.Context, book *model.Book) error {
	if m.createFn != nil {
		return m.createFn(ctx, book)
	}
	return nil
}
func (m *mockBookRepo) DeleteUnreferenced(ctx context.Context, olderThan time.Time) (int64, error) {
	return 0, nil
}

type mockUserBookRepo struct {
	repository.UserBookRepository
	findByUserAndBookFn func(ctx context.Context, userID, bookID string) (*model.UserBookWithBook, error)
	listByUserFn        func(ctx context.Context, userID string, status *model.BookStatus) ([]model.UserBookWithBook, error)
	createFn            func(ctx context.Context, ub *model.UserBook) error
	updateFn            func(ctx context.Context, ub *model.UserBook) error
	deleteFn            func(ctx context.Context, userID, bookID string) error
}

func (m *mockUserBookRepo) FindByUserAndBook(ctx context.Context, userID, bookID string) (*model.UserBookWithBook, error) {
	if m.findByUserAndBookFn != nil {
		return m.findByUserAndBookFn(ctx, userID, bookID)
	}
	return nil, nil
}
func (m *mockUserBookRepo) ListByUser(ctx context.Context, userID string, status *model.BookStatus) ([]model.UserBookWithBook, error) {
	if m.listByUserFn != nil {
		return m.listByUserFn(ctx, userID, status)
	}
	return nil, nil
}
func (m *mockUserBookRepo) Create(ctx context.Context, ub *model.UserBook) error {
	if m.createFn != nil {
		return m.createFn(ctx, ub)
	}
	return nil
}
func (m *mockUserBookRepo) Update(ctx context.Context, ub *model.UserBook) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, ub)
	}
	return nil
}
func (m *mockUserBookRepo) Delete(ctx context.Context, userID, bookID string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, userID, bookID)
	}
	return nil
}

type mockSessionRepo struct {
	repository.ReadingSessionRepository
	deleteByUserAndBookFn func(ctx context.Context, userID, bookID string) error
}

func (m *mockSessionRepo) DeleteByUserAndBook(ctx context.Context, userID, bookID string) error {
	if m.deleteByUserAndBookFn != nil {
		return m.deleteByUserAndBookFn(ctx, userID, bookID)
	}
	return nil
}

type mockNoteRepo struct {
	repository.NoteRepository
	deleteByUserAndBookFn func(ctx context.Context, userID, bookID string) error
}

func (m *mockNoteRepo) DeleteByUserAndBook(ctx context.Context, userID, bookID string) error {
	if m.deleteByUserAndBookFn != nil {
		return m.deleteByUserAndBookFn(ctx, userID, bookID)
	}
	return nil
}

type mockTransactor struct {
	calls int
}

func (m *mockTransactor) WithinTransaction(ctx context.Context, fn func(context.Context) error) error {
	m.calls++
	return fn(ctx)
}

var _ transactor.Transactor = (*mockTransactor)(nil)

// --- ヘルパー ---

var testNow = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

type deps struct {
	books     *mockBookRepo
	userBooks *mockUserBookRepo
	sessions  *mockSessionRepo
	notes     *mockNoteRepo
	tx        *mockTransactor
}

func newDeps() *deps {
	return &deps{
		books:     &mockBookRepo{},
		userBooks: &mockUserBookRepo{},
		sessions:  &mockSessionRepo{},
		notes:     &mockNoteRepo{},
		tx:        &mockTransactor{},
	}
}

func (d *deps) service() *Service {
	return NewService(d.books, d.userBooks, d.sessions, d.notes, d.tx, security.NewTextSanitizer(), &clock.Fixed{T: testNow})
}

func shelved(status model.BookStatus, totalPages *int) func(ctx context.Context, userID, bookID string) (*model.UserBookWithBook, error) {
	return func(ctx context.Context, userID, bookID string) (*model.UserBookWithBook, error) {
		if userID != "user-1" || bookID != "book-1" {
			return nil, nil
		}
		return &model.UserBookWithBook{
			UserBook: model.UserBook{ID: "ub-1", UserID: userID, BookID: bookID, Status: status},
			Book:     model.Book{ID: bookID, Title: "吾輩は猫である", TotalPages: totalPages},
		}, nil
	}
}

func intPtr(v int) *int { return &v }

// --- テスト ---

func TestService_AddBook_NewBook(t *testing.T) {
	d := newDeps()
	var createdBook *model.Book
	var createdUserBook *model.UserBook
	d.books.createFn = func(ctx context.Context, book *model.Book) error {
		createdBook = book
		return nil
	}
	d.userBooks.createFn = func(ctx context.Context, ub *model.UserBook) error {
		createdUserBook = ub
		return nil
	}

	got, err := d.service().AddBook(context.Background(), "user-1", AddBookInput{
		Title:      "  <i>坊っちゃん</i> ",
		Author:     "夏目漱石",
		ISBN:       "978-4-10-101003-3",
		TotalPages: intPtr(220),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if createdBook == nil || createdBook.Title != "坊っちゃん" {
		t.Fatalf("created book = %+v, want sanitized title", createdBook)
	}
	if createdBook.ISBN != "9784101010033" {
		t.Errorf("ISBN = %s, want normalized 9784101010033", createdBook.ISBN)
	}
	if createdUserBook == nil || createdUserBook.Status != model.BookStatusWantToRead {
		t.Fatalf("user book = %+v, want want_to_read", createdUserBook)
	}
	if createdUserBook.BookID != createdBook.ID {
		t.Error("user book should reference the created book")
	}
	if got.Book.Title != "坊っちゃん" || got.UserID != "user-1" {
		t.Errorf("result = %+v", got)
	}
	if d.tx.calls != 1 {
		t.Errorf("transaction calls = %d, want 1", d.tx.calls)
	}
}

func TestService_AddBook_ReusesBookByISBN(t *testing.T) {
	d := newDeps()
	d.books.findByISBNFn = func(ctx context.Context, isbn string) (*model.Book, error) {
		return &model.Book{ID: "existing", Title: "既存の本", ISBN: isbn}, nil
	}
	d.books.createFn = func(ctx context.Context, book *model.Book) error {
		t.Error("book should not be created when ISBN exists")
		return nil
	}

	got, err := d.service().AddBook(context.Background(), "user-1", AddBookInput{Title: "別のタイトル", ISBN: "9784101010033"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.BookID != "existing" || got.Book.Title != "既存の本" {
		t.Errorf("result = %+v, want existing book", got)
	}
}

func TestService_AddBook_Duplicate(t *testing.T) {
	d := newDeps()
	d.userBooks.createFn = func(ctx context.Context, ub *model.UserBook) error {
		return repository.ErrDuplicate
	}

	_, err := d.service().AddBook(context.Background(), "user-1", AddBookInput{Title: "坊っちゃん"})
	if !model.HasCode(err, model.ErrCodeDuplicateBook) {
		t.Fatalf("expected DUPLICATE_BOOK, got %v", err)
	}
}

func TestService_AddBook_Validation(t *testing.T) {
	tests := []struct {
		name     string
		userID   string
		in       AddBookInput
		wantCode string
	}{
		{"未ログイン", "", AddBookInput{Title: "x"}, model.ErrCodeNotAuthenticated},
		{"タイトルなし", "user-1", AddBookInput{Title: "   "}, model.ErrCodeValidation},
		{"タグのみのタイトル", "user-1", AddBookInput{Title: "<b></b>"}, model.ErrCodeValidation},
		{"総ページ数0", "user-1", AddBookInput{Title: "x", TotalPages: intPtr(0)}, model.ErrCodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newDeps()
			_, err := d.service().AddBook(context.Background(), tt.userID, tt.in)
			if !model.HasCode(err, tt.wantCode) {
				t.Fatalf("expected %s, got %v", tt.wantCode, err)
			}
			if d.tx.calls != 0 {
				t.Error("no transaction should start on validation failure")
			}
		})
	}
}

func TestService_ListUserBooks(t *testing.T) {
	d := newDeps()
	var gotStatus *model.BookStatus
	d.userBooks.listByUserFn = func(ctx context.Context, userID string, status *model.BookStatus) ([]model.UserBookWithBook, error) {
		gotStatus = status
		return nil, nil
	}
	svc := d.service()

	books, err := svc.ListUserBooks(context.Background(), "user-1", "reading")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotStatus == nil || *gotStatus != model.BookStatusReading {
		t.Errorf("status filter = %v, want reading", gotStatus)
	}
	if books == nil || len(books) != 0 {
		t.Errorf("books = %v, want empty slice", books)
	}

	if _, err := svc.ListUserBooks(context.Background(), "user-1", ""); err != nil || gotStatus != nil {
		t.Errorf("empty status should list all: filter=%v err=%v", gotStatus, err)
	}

	_, err = svc.ListUserBooks(context.Background(), "user-1", "finished")
	if !model.HasCode(err, model.ErrCodeValidation) {
		t.Errorf("expected VALIDATION_ERROR, got %v", err)
	}
}

func TestService_GetUserBook_NotFound(t *testing.T) {
	d := newDeps()
	d.userBooks.findByUserAndBookFn = shelved(model.BookStatusReading, nil)

	_, err := d.service().GetUserBook(context.Background(), "user-2", "book-1")
	if !model.HasCode(err, model.ErrCodeBookNotFound) {
		t.Fatalf("expected BOOK_NOT_FOUND, got %v", err)
	}
}

func TestService_UpdateStatus(t *testing.T) {
	completedEarlier := testNow.Add(-48 * time.Hour)

	tests := []struct {
		name            string
		from            model.BookStatus
		fromCompletedAt *time.Time
		to              string
		wantCompletedAt *time.Time
		wantStarted     bool
	}{
		{"読了にすると読了日時を記録", model.BookStatusReading, nil, "completed", &testNow, true},
		{"読了のまま更新しても読了日時は変わらない", model.BookStatusCompleted, &completedEarlier, "completed", &completedEarlier, true},
		{"読了から戻すと読了日時を消す", model.BookStatusCompleted, &completedEarlier, "reading", nil, true},
		{"読みたいに戻す", model.BookStatusCompleted, &completedEarlier, "want_to_read", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newDeps()
			d.userBooks.findByUserAndBookFn = func(ctx context.Context, userID, bookID string) (*model.UserBookWithBook, error) {
				return &model.UserBookWithBook{UserBook: model.UserBook{
					UserID: userID, BookID: bookID, Status: tt.from, CompletedAt: tt.fromCompletedAt,
				}}, nil
			}
			var saved *model.UserBook
			d.userBooks.updateFn = func(ctx context.Context, ub *model.UserBook) error {
				saved = ub
				return nil
			}

			got, err := d.service().UpdateStatus(context.Background(), "user-1", "book-1", tt.to)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if saved == nil || string(saved.Status) != tt.to {
				t.Fatalf("saved = %+v, want status %s", saved, tt.to)
			}
			switch {
			case tt.wantCompletedAt == nil && got.CompletedAt != nil:
				t.Errorf("CompletedAt = %v, want nil", got.CompletedAt)
			case tt.wantCompletedAt != nil && (got.CompletedAt == nil || !got.CompletedAt.Equal(*tt.wantCompletedAt)):
				t.Errorf("CompletedAt = %v, want %v", got.CompletedAt, *tt.wantCompletedAt)
			}
			if tt.wantStarted && got.StartedAt == nil {
				t.Error("StartedAt should be set")
			}
		})
	}
}

func TestService_UpdateStatus_InvalidStatus(t *testing.T) {
	d := newDeps()
	_, err := d.service().UpdateStatus(context.Background(), "user-1", "book-1", "abandoned")
	if !model.HasCode(err, model.ErrCodeValidation) {
		t.Fatalf("expected VALIDATION_ERROR, got %v", err)
	}
}

func TestService_UpdateProgress(t *testing.T) {
	d := newDeps()
	d.userBooks.findByUserAndBookFn = shelved(model.BookStatusReading, intPtr(300))
	svc := d.service()

	got, err := svc.UpdateProgress(context.Background(), "user-1", "book-1", 300)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.CurrentPage != 300 {
		t.Errorf("CurrentPage = %d, want 300", got.CurrentPage)
	}

	for _, page := range []int{-1, 301} {
		if _, err := svc.UpdateProgress(context.Background(), "user-1", "book-1", page); !model.HasCode(err, model.ErrCodeValidation) {
			t.Errorf("page %d: expected VALIDATION_ERROR, got %v", page, err)
		}
	}
}

func TestService_Rate(t *testing.T) {
	d := newDeps()
	d.userBooks.findByUserAndBookFn = shelved(model.BookStatusCompleted, nil)
	svc := d.service()

	got, err := svc.Rate(context.Background(), "user-1", "book-1", intPtr(5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Rating == nil || *got.Rating != 5 {
		t.Errorf("Rating = %v, want 5", got.Rating)
	}

	got, err = svc.Rate(context.Background(), "user-1", "book-1", nil)
	if err != nil || got.Rating != nil {
		t.Errorf("nil rating should clear: rating=%v err=%v", got, err)
	}

	for _, r := range []int{0, 6} {
		if _, err := svc.Rate(context.Background(), "user-1", "book-1", intPtr(r)); !model.HasCode(err, model.ErrCodeValidation) {
			t.Errorf("rating %d: expected VALIDATION_ERROR, got %v", r, err)
		}
	}
}

func TestService_Update_StoreErrorIsWrapped(t *testing.T) {
	d := newDeps()
	d.userBooks.findByUserAndBookFn = shelved(model.BookStatusReading, nil)
	storeErr := errors.New("deadlock")
	d.userBooks.updateFn = func(ctx context.Context, ub *model.UserBook) error { return storeErr }

	_, err := d.service().UpdateProgress(context.Background(), "user-1", "book-1", 10)
	if !errors.Is(err, storeErr) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
}

func TestService_RemoveUserBook(t *testing.T) {
	d := newDeps()
	d.userBooks.findByUserAndBookFn = shelved(model.BookStatusReading, nil)

	var order []string
	d.notes.deleteByUserAndBookFn = func(ctx context.Context, userID, bookID string) error {
		order = append(order, "notes")
		return nil
	}
	d.sessions.deleteByUserAndBookFn = func(ctx context.Context, userID, bookID string) error {
		order = append(order, "sessions")
		return nil
	}
	d.userBooks.deleteFn = func(ctx context.Context, userID, bookID string) error {
		order = append(order, "user_book")
		return nil
	}

	if err := d.service().RemoveUserBook(context.Background(), "user-1", "book-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"notes", "sessions", "user_book"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %s, want %s", i, order[i], want[i])
		}
	}
	if d.tx.calls != 1 {
		t.Errorf("transaction calls = %d, want 1", d.tx.calls)
	}
}

func TestService_RemoveUserBook_FailureStopsTransaction(t *testing.T) {
	d := newDeps()
	d.userBooks.findByUserAndBookFn = shelved(model.BookStatusReading, nil)
	d.sessions.deleteByUserAndBookFn = func(ctx context.Context, userID, bookID string) error {
		return errors.New("lock timeout")
	}
	deleted := false
	d.userBooks.deleteFn = func(ctx context.Context, userID, bookID string) error {
		deleted = true
		return nil
	}

	if err := d.service().RemoveUserBook(context.Background(), "user-1", "book-1"); err == nil {
		t.Fatal("expected error")
	}
	if deleted {
		t.Error("user book should not be deleted after a failed step")
	}
}

func TestService_RemoveUserBook_NotFound(t *testing.T) {
	d := newDeps()
	d.userBooks.findByUserAndBookFn = shelved(model.BookStatusReading, nil)

	err := d.service().RemoveUserBook(context.Background(), "user-1", "book-9")
	if !model.HasCode(err, model.ErrCodeBookNotFound) {
		t.Fatalf("expected BOOK_NOT_FOUND, got %v", err)
	}
	if d.tx.calls != 0 {
		t.Error("no transaction should start for a missing book")
	}
}
