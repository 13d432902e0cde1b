// Package user はユーザー管理のドメインロジックを提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Thiht/transactor"

	"github.com/quietly/quietly/internal/model"
	"github.com/quietly/quietly/internal/repository"
)

// UserDataDeleter はユーザーに紐づくデータを一括削除するインターフェース。
type UserDataDeleter interface {
	DeleteByUserID(ctx context.Context, userID string) error
}

// Service はユーザー管理のサービス層。
// 退会処理のビジネスロジックを提供する。
type Service struct {
	userRepo        repository.UserRepository
	authSessionRepo repository.AuthSessionRepository
	tx              transactor.Transactor
	// 退会時に削除する読書データ。依存関係の末端から順に並べる。
	readingData []namedDeleter
}

type namedDeleter struct {
	name    string
	deleter UserDataDeleter
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	userRepo repository.UserRepository,
	authSessionRepo repository.AuthSessionRepository,
	noteRepo repository.NoteRepository,
	goalRepo repository.GoalRepository,
	sessionRepo repository.ReadingSessionRepository,
	userBookRepo repository.UserBookRepository,
	tx transactor.Transactor,
) *Service {
	return &Service{
		userRepo:        userRepo,
		authSessionRepo: authSessionRepo,
		tx:              tx,
		readingData: []namedDeleter{
			{"メモ", noteRepo},
			{"読書目標", goalRepo},
			{"読書セッション", sessionRepo},
			{"本棚", userBookRepo},
		},
	}
}

// Withdraw はユーザーの退会処理を実行する。
// 削除順序: notes → reading_goals → sessions → user_books → auth_sessions → user（+ CASCADE: identities）
// 全て1つのトランザクションで実行し、途中で失敗した場合は何も削除しない。
// 書誌情報（books）は共有データとして残し、参照されなくなったものはクリーンアップジョブが削除する。
func (s *Service) Withdraw(ctx context.Context, userID string) error {
	if userID == "" {
		return model.NewNotAuthenticatedError()
	}
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError()
	}

	slog.InfoContext(ctx, "退会処理を開始します",
		slog.String("user_id", userID),
	)

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		for _, d := range s.readingData {
			if err := d.deleter.DeleteByUserID(ctx, userID); err != nil {
				return fmt.Errorf("%sの削除に失敗しました: %w", d.name, err)
			}
		}
		if err := s.authSessionRepo.DeleteByUserID(ctx, userID); err != nil {
			return fmt.Errorf("ログインセッションの削除に失敗しました: %w", err)
		}
		if err := s.userRepo.DeleteByID(ctx, userID); err != nil {
			return fmt.Errorf("ユーザーの削除に失敗しました: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "退会処理が完了しました",
		slog.String("user_id", userID),
	)
	return nil
}
