package handler

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/quietly/quietly/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	GetLoginURL(state string) string
	HandleCallback(ctx context.Context, code string) (*model.AuthSession, error)
	Logout(ctx context.Context, sessionID string) error
	GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	// BaseURL はログイン完了後に戻すフロントエンドのURL。
	BaseURL      string
	CookieDomain string
	CookieSecure bool
	// SessionMaxAge はセッションCookieの有効期間（秒）。
	SessionMaxAge int
}

func (c AuthHandlerConfig) cookies() cookieJar {
	return cookieJar{domain: c.CookieDomain, secure: c.CookieSecure}
}

// AuthHandler はGoogleログインとログインセッションのエンドポイント。
type AuthHandler struct {
	service AuthServiceInterface
	config  AuthHandlerConfig
	cookies cookieJar
}

func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		config:  config,
		cookies: config.cookies(),
	}
}

// Login はstateをCookieに保存してGoogleの認可画面へリダイレクトする。
// GET /auth/google/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	state, err := newOAuthState()
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	h.cookies.set(w, oauthStateCookie, state, "/auth", oauthStateMaxAge)
	http.Redirect(w, r, h.service.GetLoginURL(state), http.StatusTemporaryRedirect)
}

// Callback はGoogleからの戻りを受け、ログインセッションを発行してフロントエンドへ戻す。
// GET /auth/google/callback?code=...&state=...
//
// 利用者が同意画面で拒否した場合（error=access_denied 等）は
// BaseURLに login_error を付けて戻す。
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	expected := readCookie(r, oauthStateCookie)
	h.cookies.clear(w, oauthStateCookie, "/auth")

	if !statesMatch(expected, q.Get("state")) {
		slog.WarnContext(r.Context(), "oauth state mismatch", slog.Bool("has_cookie", expected != ""))
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("stateパラメータが一致しません"))
		return
	}

	if idpErr := q.Get("error"); idpErr != "" {
		slog.InfoContext(r.Context(), "oauth login aborted", slog.String("reason", idpErr))
		http.Redirect(w, r, h.frontendURL(idpErr), http.StatusTemporaryRedirect)
		return
	}

	code := q.Get("code")
	if code == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("認可コードがありません"))
		return
	}

	session, err := h.service.HandleCallback(r.Context(), code)
	if err != nil {
		handleServiceError(w, r, fmt.Errorf("oauth callback: %w", err))
		return
	}

	h.cookies.setSession(w, session.ID, time.Duration(h.config.SessionMaxAge)*time.Second)
	http.Redirect(w, r, h.frontendURL(""), http.StatusTemporaryRedirect)
}

// Logout はログインセッションを破棄し、Cookieを削除する。
// ストアの削除に失敗してもCookieは削除し、204を返す。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if sessionID := readCookie(r, sessionCookieName); sessionID != "" {
		if err := h.service.Logout(r.Context(), sessionID); err != nil {
			slog.ErrorContext(r.Context(), "failed to delete auth session", slog.String("error", err.Error()))
		}
	}
	h.cookies.clearSession(w)
	w.WriteHeader(http.StatusNoContent)
}

type meResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Me はログイン中のユーザーを返す。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	sessionID := readCookie(r, sessionCookieName)
	if sessionID == "" {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewNotAuthenticatedError())
		return
	}

	user, err := h.service.GetCurrentUser(r.Context(), sessionID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, meResponse{
		ID:        user.ID,
		Email:     user.Email,
		Name:      user.Name,
		CreatedAt: user.CreatedAt,
	})
}

// frontendURL はBaseURLを返す。loginErrorが空でなければクエリに付ける。
func (h *AuthHandler) frontendURL(loginError string) string {
	if loginError == "" {
		return h.config.BaseURL
	}
	u, err := url.Parse(h.config.BaseURL)
	if err != nil {
		return h.config.BaseURL
	}
	q := u.Query()
	q.Set("login_error", loginError)
	u.RawQuery = q.Encode()
	return u.String()
}

func statesMatch(expected, got string) bool {
	if expected == "" || got == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(got)) == 1
}

// newOAuthState はCSRF対策のstate値を生成する。
func newOAuthState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate oauth state: %w", err)
	}
	return hex.EncodeToString(b), nil
}
