package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/quietly/quietly/internal/middleware"
)

// テストで使う固定ID。idParamがUUIDとして検証するため、実在する形式にする。
const (
	testBookID    = "0b8f2d4e-1c3a-4f5b-9d6e-7a8b9c0d1e2f"
	testSessionID = "5e6f7a8b-9c0d-4e1f-8a2b-3c4d5e6f7a8b"
	testNoteID    = "9a8b7c6d-5e4f-4a3b-8c2d-1e0f9a8b7c6d"
	testGoalID    = "1f2e3d4c-5b6a-4978-8695-a4b3c2d1e0f9"
)

// withUserID はテスト用にリクエストのコンテキストにユーザーIDを設定するヘルパー。
func withUserID(r *http.Request, userID string) *http.Request {
	ctx := middleware.ContextWithUserID(r.Context(), userID)
	return r.WithContext(ctx)
}

// withChiURLParam はテスト用にchiのURLパラメータを注入するヘルパー。
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
	return r.WithContext(ctx)
}

// parseAPIErrorResponse はレスポンスボディからAPIErrorレスポンスをパースするヘルパー。
func parseAPIErrorResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var result map[string]string
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return result
}

// decodeBody はレスポンスボディをvにデコードするヘルパー。
func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}

func intPtr(v int) *int { return &v }

// findResponseCookie はレスポンスのSet-Cookieから指定名のCookieを探す。
func findResponseCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
