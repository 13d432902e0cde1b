package repository

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 各Postgres実装がリポジトリインターフェースを満たすことを検証
var (
	_ UserRepository           = (*PostgresUserRepo)(nil)
	_ IdentityRepository       = (*PostgresIdentityRepo)(nil)
	_ AuthSessionRepository    = (*PostgresAuthSessionRepo)(nil)
	_ BookRepository           = (*PostgresBookRepo)(nil)
	_ UserBookRepository       = (*PostgresUserBookRepo)(nil)
	_ ReadingSessionRepository = (*PostgresReadingSessionRepo)(nil)
	_ GoalRepository           = (*PostgresGoalRepo)(nil)
	_ NoteRepository           = (*PostgresNoteRepo)(nil)
)

func TestNewPostgresRepos_Initialize(t *testing.T) {
	assert.NotNil(t, NewPostgresUserRepo(nil, nil))
	assert.NotNil(t, NewPostgresIdentityRepo(nil))
	assert.NotNil(t, NewPostgresAuthSessionRepo(nil))
	assert.NotNil(t, NewPostgresBookRepo(nil))
	assert.NotNil(t, NewPostgresUserBookRepo(nil))
	assert.NotNil(t, NewPostgresReadingSessionRepo(nil))
	assert.NotNil(t, NewPostgresGoalRepo(nil))
	assert.NotNil(t, NewPostgresNoteRepo(nil))
}

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "unique violation", err: &pq.Error{Code: "23505"}, want: true},
		{name: "wrapped unique violation", err: fmt.Errorf("insert: %w", &pq.Error{Code: "23505"}), want: true},
		{name: "foreign key violation", err: &pq.Error{Code: "23503"}, want: false},
		{name: "plain error", err: errors.New("boom"), want: false},
		{name: "nil", err: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isUniqueViolation(tt.err))
		})
	}
}

// errResult はRowsAffectedが失敗するsql.Result。
type errResult struct{}

func (errResult) LastInsertId() (int64, error) { return 0, nil }
func (errResult) RowsAffected() (int64, error) { return 0, errors.New("driver failure") }

func TestExpectAffected(t *testing.T) {
	t.Run("one row", func(t *testing.T) {
		assert.NoError(t, expectAffected(driver.RowsAffected(1)))
	})

	t.Run("zero rows", func(t *testing.T) {
		err := expectAffected(driver.RowsAffected(0))
		assert.ErrorIs(t, err, ErrNotUpdated)
	})

	t.Run("driver error", func(t *testing.T) {
		err := expectAffected(errResult{})
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrNotUpdated)
		assert.Contains(t, err.Error(), "driver failure")
	})
}
