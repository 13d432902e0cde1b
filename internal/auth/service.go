// Package auth はOAuthログインとログインセッションの管理を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/quietly/quietly/internal/clock"
	"github.com/quietly/quietly/internal/model"
	"github.com/quietly/quietly/internal/repository"
)

// OAuthUserInfo はIdPが返したアカウント情報。
type OAuthUserInfo struct {
	Provider      model.Provider
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
}

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
type OAuthProvider interface {
	// GetLoginURL はstateを埋め込んだ認可エンドポイントのURLを返す。
	GetLoginURL(state string) string
	// ExchangeCode は認可コードをトークンに交換し、アカウント情報を取得する。
	ExchangeCode(ctx context.Context, code string) (*OAuthUserInfo, error)
}

const defaultSessionTTL = 24 * time.Hour

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	// SessionTTL はログインセッションの有効期間。0なら24時間。
	SessionTTL time.Duration
}

func (c ServiceConfig) sessionTTL() time.Duration {
	if c.SessionTTL <= 0 {
		return defaultSessionTTL
	}
	return c.SessionTTL
}

// Service はログインに関するビジネスロジックを提供する。
// 読書関連の操作は、ここで発行したログインセッションから解決したユーザーIDを明示的に受け取る。
type Service struct {
	oauth           OAuthProvider
	userRepo        repository.UserRepository
	identRepo       repository.IdentityRepository
	authSessionRepo repository.AuthSessionRepository
	clock           clock.Clock
	config          ServiceConfig
}

func NewService(
	oauth OAuthProvider,
	userRepo repository.UserRepository,
	identRepo repository.IdentityRepository,
	authSessionRepo repository.AuthSessionRepository,
	clk clock.Clock,
	config ServiceConfig,
) *Service {
	return &Service{
		oauth:           oauth,
		userRepo:        userRepo,
		identRepo:       identRepo,
		authSessionRepo: authSessionRepo,
		clock:           clk,
		config:          config,
	}
}

func (s *Service) GetLoginURL(state string) string {
	return s.oauth.GetLoginURL(state)
}

// HandleCallback は認可コードを検証し、ログインセッションを発行する。
// メールアドレスが未確認のアカウントはVALIDATION_ERRORで拒否する。
func (s *Service) HandleCallback(ctx context.Context, code string) (*model.AuthSession, error) {
	info, err := s.oauth.ExchangeCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange oauth code: %w", err)
	}
	if !info.EmailVerified {
		slog.WarnContext(ctx, "login rejected: unverified email",
			slog.String("provider", string(info.Provider)),
		)
		return nil, model.NewValidationError("メールアドレスが確認済みのアカウントでログインしてください")
	}

	userID, err := s.resolveUser(ctx, info)
	if err != nil {
		return nil, err
	}

	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}
	session := model.NewAuthSession(sessionID, userID, s.clock.Now(), s.config.sessionTTL())
	if err := s.authSessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save auth session: %w", err)
	}
	return session, nil
}

// resolveUser はidentityに紐づくユーザーIDを返す。
// 初回ログインならユーザーとidentityを作成し、既存ユーザーならプロフィールの変更を反映する。
func (s *Service) resolveUser(ctx context.Context, info *OAuthUserInfo) (string, error) {
	ident, err := s.identRepo.FindBySubject(ctx, info.Provider, info.Subject)
	if err != nil {
		return "", fmt.Errorf("failed to find identity: %w", err)
	}
	if ident == nil {
		return s.register(ctx, info)
	}

	user, err := s.userRepo.FindByID(ctx, ident.UserID)
	if err != nil {
		return "", fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return "", model.NewUserNotFoundError()
	}
	if user.ProfileDiffers(info.Email, info.Name) {
		if err := s.userRepo.UpdateProfile(ctx, user.ID, info.Email, info.Name, s.clock.Now()); err != nil {
			return "", fmt.Errorf("failed to update profile: %w", err)
		}
	}

	slog.InfoContext(ctx, "user logged in",
		slog.String("user_id", user.ID),
		slog.String("provider", string(info.Provider)),
	)
	return user.ID, nil
}

func (s *Service) register(ctx context.Context, info *OAuthUserInfo) (string, error) {
	now := s.clock.Now()
	user := &model.User{
		ID:        uuid.NewString(),
		Email:     info.Email,
		Name:      info.Name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	ident := &model.Identity{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Provider:  info.Provider,
		Subject:   info.Subject,
		CreatedAt: now,
	}
	if err := s.userRepo.CreateWithIdentity(ctx, user, ident); err != nil {
		return "", fmt.Errorf("failed to create user and identity: %w", err)
	}

	slog.InfoContext(ctx, "user registered",
		slog.String("user_id", user.ID),
		slog.String("provider", string(info.Provider)),
	)
	return user.ID, nil
}

// Logout はログインセッションを破棄する。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return model.NewNotAuthenticatedError()
	}
	if err := s.authSessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete auth session: %w", err)
	}
	return nil
}

// GetCurrentUser はログインセッションの持ち主を返す。
// セッションが無いか期限切れの場合はNOT_AUTHENTICATED。
func (s *Service) GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	if sessionID == "" {
		return nil, model.NewNotAuthenticatedError()
	}

	session, err := s.authSessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find auth session: %w", err)
	}
	if !session.ActiveAt(s.clock.Now()) {
		return nil, model.NewNotAuthenticatedError()
	}

	user, err := s.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

// generateSessionID は256bitの乱数を16進文字列にする。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
