// Package note は本に紐づくメモと引用のドメインロジックを提供する。
package note

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/quietly/quietly/internal/clock"
	"github.com/quietly/quietly/internal/model"
	"github.com/quietly/quietly/internal/repository"
	"github.com/quietly/quietly/internal/security"
)

// CreateInput はメモ作成時の入力。
type CreateInput struct {
	Kind    string
	Content string
	Page    *int
}

// Service はメモ・引用の作成、一覧、削除を行う。
type Service struct {
	noteRepo     repository.NoteRepository
	userBookRepo repository.UserBookRepository
	sanitizer    security.TextSanitizer
	clock        clock.Clock
	maxLength    int
}

// NewService はServiceを生成する。maxLengthはサニタイズ後の最大文字数。
func NewService(
	noteRepo repository.NoteRepository,
	userBookRepo repository.UserBookRepository,
	sanitizer security.TextSanitizer,
	clk clock.Clock,
	maxLength int,
) *Service {
	if maxLength <= 0 {
		maxLength = 10000
	}
	return &Service{
		noteRepo:     noteRepo,
		userBookRepo: userBookRepo,
		sanitizer:    sanitizer,
		clock:        clk,
		maxLength:    maxLength,
	}
}

// Create は本棚の本にメモを追加する。種別を省略した場合はメモとして扱う。
func (s *Service) Create(ctx context.Context, userID, bookID string, in CreateInput) (*model.Note, error) {
	if userID == "" {
		return nil, model.NewNotAuthenticatedError()
	}

	kind := model.NoteKindNote
	switch model.NoteKind(in.Kind) {
	case "", model.NoteKindNote:
	case model.NoteKindQuote:
		kind = model.NoteKindQuote
	default:
		return nil, model.NewValidationError(fmt.Sprintf("不明なメモ種別です: %s", in.Kind))
	}
	if in.Page != nil && *in.Page < 0 {
		return nil, model.NewValidationError("ページは0以上で指定してください")
	}

	content := s.sanitizer.Sanitize(in.Content)
	if content == "" {
		return nil, model.NewValidationError("内容を入力してください")
	}
	if utf8.RuneCountInString(content) > s.maxLength {
		return nil, model.NewValidationError(fmt.Sprintf("内容は%d文字以内で入力してください", s.maxLength))
	}

	if err := s.ensureShelved(ctx, userID, bookID); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	n := &model.Note{
		ID:        uuid.NewString(),
		UserID:    userID,
		BookID:    bookID,
		Kind:      kind,
		Content:   content,
		Page:      in.Page,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.noteRepo.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("メモの作成に失敗しました: %w", err)
	}

	slog.InfoContext(ctx, "メモを作成しました",
		slog.String("user_id", userID),
		slog.String("book_id", bookID),
		slog.String("note_id", n.ID),
		slog.String("kind", string(kind)),
	)
	return n, nil
}

// List は本のメモを作成日時の昇順で返す。
func (s *Service) List(ctx context.Context, userID, bookID string) ([]*model.Note, error) {
	if userID == "" {
		return nil, model.NewNotAuthenticatedError()
	}
	if err := s.ensureShelved(ctx, userID, bookID); err != nil {
		return nil, err
	}
	notes, err := s.noteRepo.ListByUserAndBook(ctx, userID, bookID)
	if err != nil {
		return nil, fmt.Errorf("メモ一覧の取得に失敗しました: %w", err)
	}
	if notes == nil {
		notes = []*model.Note{}
	}
	return notes, nil
}

// Delete はメモを削除する。他のユーザーのメモは存在しないものとして扱う。
func (s *Service) Delete(ctx context.Context, userID, noteID string) error {
	if userID == "" {
		return model.NewNotAuthenticatedError()
	}
	n, err := s.noteRepo.FindByID(ctx, noteID)
	if err != nil {
		return fmt.Errorf("メモの取得に失敗しました: %w", err)
	}
	if n == nil || n.UserID != userID {
		return model.NewNoteNotFoundError(noteID)
	}
	if err := s.noteRepo.Delete(ctx, noteID); err != nil {
		if errors.Is(err, repository.ErrNotUpdated) {
			return model.NewNoteNotFoundError(noteID)
		}
		return fmt.Errorf("メモの削除に失敗しました: %w", err)
	}
	return nil
}

func (s *Service) ensureShelved(ctx context.Context, userID, bookID string) error {
	ub, err := s.userBookRepo.FindByUserAndBook(ctx, userID, bookID)
	if err != nil {
		return fmt.Errorf("本棚の取得に失敗しました: %w", err)
	}
	if ub == nil {
		return model.NewBookNotFoundError(bookID)
	}
	return nil
}
