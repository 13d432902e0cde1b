package user

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Thiht/transactor"

	"github.com/quietly/quietly/internal/model"
	"github.com/quietly/quietly/internal/repository"
)

// --- モック ---

// recorder は削除の呼び出し順を記録する。failOnが一致した削除はエラーを返す。
type recorder struct {
	calls  []string
	failOn string
}

func (r *recorder) record(name string) error {
	r.calls = append(r.calls, name)
	if name == r.failOn {
		return errors.New("delete failed: " + name)
	}
	return nil
}

type mockUserRepo struct {
	rec        *recorder
	findByIDFn func(ctx context.Context, id string) (*model.User, error)
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	return m.findByIDFn(ctx, id)
}
func (m *mockUserRepo) CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error {
	return nil
}
func (m *mockUserRepo) UpdateProfile(ctx context.Context, id, email, name string, updatedAt time.Time) error {
	return nil
}
func (m *mockUserRepo) DeleteByID(ctx context.Context, id string) error {
	return m.rec.record("users")
}

type mockAuthSessionRepo struct {
	repository.AuthSessionRepository
	rec *recorder
}

func (m *mockAuthSessionRepo) DeleteByUserID(ctx context.Context, userID string) error {
	return m.rec.record("auth_sessions")
}

type mockNoteRepo struct {
	repository.NoteRepository
	rec *recorder
}

func (m *mockNoteRepo) DeleteByUserID(ctx context.Context, userID string) error {
	return m.rec.record("notes")
}

type mockGoalRepo struct {
	repository.GoalRepository
	rec *recorder
}

func (m *mockGoalRepo) DeleteByUserID(ctx context.Context, userID string) error {
	return m.rec.record("reading_goals")
}

type mockSessionRepo struct {
	repository.ReadingSessionRepository
	rec *recorder
}

func (m *mockSessionRepo) DeleteByUserID(ctx context.Context, userID string) error {
	return m.rec.record("sessions")
}

type mockUserBookRepo struct {
	repository.UserBookRepository
	rec *recorder
}

func (m *mockUserBookRepo) DeleteByUserID(ctx context.Context, userID string) error {
	return m.rec.record("user_books")
}

// mockTransactor はトランザクション内で返されたエラーを記録する。
type mockTransactor struct {
	calls      int
	rolledBack bool
}

func (m *mockTransactor) WithinTransaction(ctx context.Context, fn func(context.Context) error) error {
	m.calls++
	if err := fn(ctx); err != nil {
		m.rolledBack = true
		return err
	}
	return nil
}

var _ transactor.Transactor = (*mockTransactor)(nil)

func newTestService(rec *recorder, tx *mockTransactor, found bool) *Service {
	users := &mockUserRepo{
		rec: rec,
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			if !found {
				return nil, nil
			}
			return &model.User{ID: id, Email: "test@example.com", CreatedAt: time.Now()}, nil
		},
	}
	return NewService(
		users,
		&mockAuthSessionRepo{rec: rec},
		&mockNoteRepo{rec: rec},
		&mockGoalRepo{rec: rec},
		&mockSessionRepo{rec: rec},
		&mockUserBookRepo{rec: rec},
		tx,
	)
}

// --- テスト ---

// TestService_Withdraw は退会処理が全関連データを1つのトランザクションで削除することを検証する。
func TestService_Withdraw(t *testing.T) {
	rec := &recorder{}
	tx := &mockTransactor{}

	if err := newTestService(rec, tx, true).Withdraw(context.Background(), "user-1"); err != nil {
		t.Fatalf("Withdraw returned error: %v", err)
	}

	want := []string{"notes", "reading_goals", "sessions", "user_books", "auth_sessions", "users"}
	if len(rec.calls) != len(want) {
		t.Fatalf("calls = %v, want %v", rec.calls, want)
	}
	for i := range want {
		if rec.calls[i] != want[i] {
			t.Errorf("calls[%d] = %s, want %s", i, rec.calls[i], want[i])
		}
	}
	if tx.calls != 1 || tx.rolledBack {
		t.Errorf("transaction calls = %d, rolledBack = %v", tx.calls, tx.rolledBack)
	}
}

// TestService_Withdraw_FailureRollsBack は途中の削除が失敗した場合に以降の削除を行わないことを検証する。
func TestService_Withdraw_FailureRollsBack(t *testing.T) {
	rec := &recorder{failOn: "sessions"}
	tx := &mockTransactor{}

	err := newTestService(rec, tx, true).Withdraw(context.Background(), "user-1")
	if err == nil {
		t.Fatal("expected error")
	}
	if !tx.rolledBack {
		t.Error("transaction should be rolled back")
	}
	for _, c := range rec.calls {
		if c == "users" || c == "user_books" {
			t.Errorf("%s should not be deleted after a failure", c)
		}
	}
}

// TestService_Withdraw_UserNotFound は存在しないユーザーの退会がエラーになることを検証する。
func TestService_Withdraw_UserNotFound(t *testing.T) {
	rec := &recorder{}
	tx := &mockTransactor{}

	err := newTestService(rec, tx, false).Withdraw(context.Background(), "nonexistent-user")
	if !model.HasCode(err, model.ErrCodeUserNotFound) {
		t.Fatalf("expected USER_NOT_FOUND, got %v", err)
	}
	if tx.calls != 0 || len(rec.calls) != 0 {
		t.Error("nothing should be deleted for a missing user")
	}

	if err := newTestService(rec, tx, true).Withdraw(context.Background(), ""); !model.HasCode(err, model.ErrCodeNotAuthenticated) {
		t.Errorf("expected NOT_AUTHENTICATED, got %v", err)
	}
}
