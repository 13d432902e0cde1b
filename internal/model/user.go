// Package model はドメインモデルを定義する。
package model

import "time"

// Provider は外部IdPの識別子。
type Provider string

// ProviderGoogle はGoogleアカウントによるログイン。
const ProviderGoogle Provider = "google"

// User はサービス利用ユーザーを表す。
// EmailとNameはログインのたびにIdPの値で更新される。
type User struct {
	ID        string
	Email     string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ProfileDiffers はIdPから受け取ったプロフィールが保存済みの値と異なるかを返す。
func (u *User) ProfileDiffers(email, name string) bool {
	return u.Email != email || u.Name != name
}

// Identity はユーザーと外部IdPのアカウントの紐付け。
// Subjectは OIDC の sub で、メールアドレスが変わっても同じ値のまま。
type Identity struct {
	ID        string
	UserID    string
	Provider  Provider
	Subject   string
	CreatedAt time.Time
}

// AuthSession はユーザーのログインセッションを表す。
// 読書セッション（ReadingSession）とは別物で、auth_sessionsテーブルに保存される。
type AuthSession struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// NewAuthSession はnowからttlの間有効なログインセッションを生成する。
func NewAuthSession(id, userID string, now time.Time, ttl time.Duration) *AuthSession {
	return &AuthSession{
		ID:        id,
		UserID:    userID,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
}

// ActiveAt はnow時点でセッションが有効かを返す。nilは無効として扱う。
func (s *AuthSession) ActiveAt(now time.Time) bool {
	return s != nil && s.ExpiresAt.After(now)
}
