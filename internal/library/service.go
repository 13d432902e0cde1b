// Package library はユーザーの本棚（書誌情報と読書状態）のドメインロジックを提供する。
package library

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Thiht/transactor"
	"github.com/google/uuid"

	"github.com/quietly/quietly/internal/clock"
	"github.com/quietly/quietly/internal/model"
	"github.com/quietly/quietly/internal/repository"
	"github.com/quietly/quietly/internal/security"
)

// AddBookInput は本棚に本を追加する際の入力。
type AddBookInput struct {
	Title      string
	Author     string
	ISBN       string
	TotalPages *int
	CoverURL   string
}

// Service は本棚の本の追加・更新・削除を行う。
type Service struct {
	bookRepo     repository.BookRepository
	userBookRepo repository.UserBookRepository
	sessionRepo  repository.ReadingSessionRepository
	noteRepo     repository.NoteRepository
	tx           transactor.Transactor
	sanitizer    security.TextSanitizer
	clock        clock.Clock
}

// NewService はServiceを生成する。
func NewService(
	bookRepo repository.BookRepository,
	userBookRepo repository.UserBookRepository,
	sessionRepo repository.ReadingSessionRepository,
	noteRepo repository.NoteRepository,
	tx transactor.Transactor,
	sanitizer security.TextSanitizer,
	clk clock.Clock,
) *Service {
	return &Service{
		bookRepo:     bookRepo,
		userBookRepo: userBookRepo,
		sessionRepo:  sessionRepo,
		noteRepo:     noteRepo,
		tx:           tx,
		sanitizer:    sanitizer,
		clock:        clk,
	}
}

// AddBook は本を「読みたい」状態で本棚に追加する。
// ISBNが登録済みの本は書誌情報を共有し、既に本棚にある場合はDUPLICATE_BOOKを返す。
func (s *Service) AddBook(ctx context.Context, userID string, in AddBookInput) (*model.UserBookWithBook, error) {
	if userID == "" {
		return nil, model.NewNotAuthenticatedError()
	}
	title := s.sanitizer.Sanitize(in.Title)
	if title == "" {
		return nil, model.NewValidationError("タイトルを入力してください")
	}
	if in.TotalPages != nil && *in.TotalPages <= 0 {
		return nil, model.NewValidationError("総ページ数は1以上で指定してください")
	}
	isbn := normalizeISBN(in.ISBN)

	now := s.clock.Now()
	var result *model.UserBookWithBook

	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var book *model.Book
		if isbn != "" {
			found, err := s.bookRepo.FindByISBN(ctx, isbn)
			if err != nil {
				return fmt.Errorf("書誌情報の検索に失敗しました: %w", err)
			}
			book = found
		}
		if book == nil {
			book = &model.Book{
				ID:         uuid.NewString(),
				Title:      title,
				Author:     s.sanitizer.Sanitize(in.Author),
				ISBN:       isbn,
				TotalPages: in.TotalPages,
				CoverURL:   strings.TrimSpace(in.CoverURL),
				CreatedAt:  now,
				UpdatedAt:  now,
			}
			if err := s.bookRepo.Create(ctx, book); err != nil {
				return fmt.Errorf("書誌情報の作成に失敗しました: %w", err)
			}
		}

		userBook := model.UserBook{
			ID:        uuid.NewString(),
			UserID:    userID,
			BookID:    book.ID,
			Status:    model.BookStatusWantToRead,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.userBookRepo.Create(ctx, &userBook); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return model.NewDuplicateBookError()
			}
			return fmt.Errorf("本棚への追加に失敗しました: %w", err)
		}

		result = &model.UserBookWithBook{UserBook: userBook, Book: *book}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "本棚に本を追加しました",
		slog.String("user_id", userID),
		slog.String("book_id", result.BookID),
	)
	return result, nil
}

// ListUserBooks は本棚の本を返す。statusが空の場合は全ての状態を対象とする。
func (s *Service) ListUserBooks(ctx context.Context, userID, status string) ([]model.UserBookWithBook, error) {
	if userID == "" {
		return nil, model.NewNotAuthenticatedError()
	}
	var filter *model.BookStatus
	if status != "" {
		st, ok := model.ParseBookStatus(status)
		if !ok {
			return nil, model.NewValidationError(fmt.Sprintf("不明な読書状態です: %s", status))
		}
		filter = &st
	}

	books, err := s.userBookRepo.ListByUser(ctx, userID, filter)
	if err != nil {
		return nil, fmt.Errorf("本棚の取得に失敗しました: %w", err)
	}
	if books == nil {
		books = []model.UserBookWithBook{}
	}
	return books, nil
}

// GetUserBook は本棚の本を1冊返す。
func (s *Service) GetUserBook(ctx context.Context, userID, bookID string) (*model.UserBookWithBook, error) {
	if userID == "" {
		return nil, model.NewNotAuthenticatedError()
	}
	ub, err := s.userBookRepo.FindByUserAndBook(ctx, userID, bookID)
	if err != nil {
		return nil, fmt.Errorf("本棚の取得に失敗しました: %w", err)
	}
	if ub == nil {
		return nil, model.NewBookNotFoundError(bookID)
	}
	return ub, nil
}

// UpdateStatus は読書状態を変更する。
// 読了にすると読了日時を記録し、読了から戻すと読了日時を消す。
// 読書中にしたとき開始日時が未設定であれば記録する。
func (s *Service) UpdateStatus(ctx context.Context, userID, bookID, status string) (*model.UserBookWithBook, error) {
	st, ok := model.ParseBookStatus(status)
	if !ok {
		return nil, model.NewValidationError(fmt.Sprintf("不明な読書状態です: %s", status))
	}
	ub, err := s.GetUserBook(ctx, userID, bookID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	updated := *ub
	updated.Status = st
	updated.UpdatedAt = now

	switch st {
	case model.BookStatusCompleted:
		if ub.Status != model.BookStatusCompleted || ub.CompletedAt == nil {
			updated.CompletedAt = &now
		}
		if updated.StartedAt == nil {
			updated.StartedAt = &now
		}
	case model.BookStatusReading:
		updated.CompletedAt = nil
		if updated.StartedAt == nil {
			updated.StartedAt = &now
		}
	case model.BookStatusWantToRead:
		updated.CompletedAt = nil
	}

	if err := s.save(ctx, &updated); err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "読書状態を変更しました",
		slog.String("user_id", userID),
		slog.String("book_id", bookID),
		slog.String("from", string(ub.Status)),
		slog.String("to", string(st)),
	)
	return &updated, nil
}

// UpdateProgress は現在ページを更新する。総ページ数が分かっている場合はそれを超えられない。
func (s *Service) UpdateProgress(ctx context.Context, userID, bookID string, page int) (*model.UserBookWithBook, error) {
	if page < 0 {
		return nil, model.NewValidationError("現在ページは0以上で指定してください")
	}
	ub, err := s.GetUserBook(ctx, userID, bookID)
	if err != nil {
		return nil, err
	}
	if ub.Book.TotalPages != nil && page > *ub.Book.TotalPages {
		return nil, model.NewValidationError(fmt.Sprintf("現在ページが総ページ数（%d）を超えています", *ub.Book.TotalPages))
	}

	updated := *ub
	updated.CurrentPage = page
	updated.UpdatedAt = s.clock.Now()
	if err := s.save(ctx, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// Rate は本の評価を設定する。nilを渡すと評価を消す。
func (s *Service) Rate(ctx context.Context, userID, bookID string, rating *int) (*model.UserBookWithBook, error) {
	if rating != nil && (*rating < 1 || *rating > 5) {
		return nil, model.NewValidationError("評価は1から5で指定してください")
	}
	ub, err := s.GetUserBook(ctx, userID, bookID)
	if err != nil {
		return nil, err
	}

	updated := *ub
	updated.Rating = rating
	updated.UpdatedAt = s.clock.Now()
	if err := s.save(ctx, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// RemoveUserBook は本棚から本を外す。本に紐づくメモと読書セッションも同じトランザクションで削除する。
// 書誌情報は他のユーザーと共有するため残す。
func (s *Service) RemoveUserBook(ctx context.Context, userID, bookID string) error {
	if _, err := s.GetUserBook(ctx, userID, bookID); err != nil {
		return err
	}

	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.noteRepo.DeleteByUserAndBook(ctx, userID, bookID); err != nil {
			return fmt.Errorf("メモの削除に失敗しました: %w", err)
		}
		if err := s.sessionRepo.DeleteByUserAndBook(ctx, userID, bookID); err != nil {
			return fmt.Errorf("読書セッションの削除に失敗しました: %w", err)
		}
		if err := s.userBookRepo.Delete(ctx, userID, bookID); err != nil {
			if errors.Is(err, repository.ErrNotUpdated) {
				return model.NewBookNotFoundError(bookID)
			}
			return fmt.Errorf("本棚からの削除に失敗しました: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "本棚から本を削除しました",
		slog.String("user_id", userID),
		slog.String("book_id", bookID),
	)
	return nil
}

func (s *Service) save(ctx context.Context, ub *model.UserBookWithBook) error {
	if err := s.userBookRepo.Update(ctx, &ub.UserBook); err != nil {
		if errors.Is(err, repository.ErrNotUpdated) {
			return model.NewBookNotFoundError(ub.BookID)
		}
		return fmt.Errorf("本棚の更新に失敗しました: %w", err)
	}
	return nil
}

// normalizeISBN はハイフンと空白を取り除く。
func normalizeISBN(isbn string) string {
	return strings.Map(func(r rune) rune {
		if r == '-' || r == ' ' {
			return -1
		}
		return r
	}, strings.TrimSpace(isbn))
}
