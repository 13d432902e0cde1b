package handler

import (
	"context"
	"log/slog"
	"net/http"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	// Withdraw はメモ、読書目標、読書セッション、本棚、ログインセッション、ユーザーを一括削除する。
	// 書誌情報（books）は共有データとして残す。
	Withdraw(ctx context.Context, userID string) error
}

type UserHandler struct {
	service UserServiceInterface
	cookies cookieJar
}

// NewUserHandler はUserHandlerを生成する。
// Cookieの属性はログイン時と同じ設定を使う。
func NewUserHandler(service UserServiceInterface, config AuthHandlerConfig) *UserHandler {
	return &UserHandler{
		service: service,
		cookies: config.cookies(),
	}
}

// Withdraw は退会処理を行い、成功したらセッションCookieを削除して204を返す。
// 失敗した場合はデータが残っているのでCookieも残す。
// DELETE /api/users/me
func (h *UserHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.Withdraw(r.Context(), userID); err != nil {
		handleServiceError(w, r, err)
		return
	}

	slog.InfoContext(r.Context(), "user withdrew", slog.String("user_id", userID))
	h.cookies.clearSession(w)
	w.WriteHeader(http.StatusNoContent)
}
