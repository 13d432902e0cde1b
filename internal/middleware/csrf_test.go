package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quietly/quietly/internal/model"
)

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// csrfRequest はCSRF検証対象のリクエストを組み立てる。空文字のトークンは付与しない。
func csrfRequest(method, cookieToken, headerToken string) *http.Request {
	req := httptest.NewRequest(method, "/api/sessions", nil)
	if cookieToken != "" {
		req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: cookieToken})
	}
	if headerToken != "" {
		req.Header.Set(csrfHeaderName, headerToken)
	}
	return req
}

func TestCSRFMiddleware_SafeMethods_PassWithoutToken(t *testing.T) {
	for _, method := range []string{http.MethodGet, http.MethodHead, http.MethodOptions} {
		t.Run(method, func(t *testing.T) {
			called := false
			h := NewCSRFMiddleware(CSRFConfig{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
			}))

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, csrfRequest(method, "", ""))

			assert.True(t, called)
			assert.Equal(t, http.StatusOK, rec.Code)
		})
	}
}

func TestCSRFMiddleware_SafeMethod_IssuesCookieOnce(t *testing.T) {
	h := NewCSRFMiddleware(CSRFConfig{CookieSecure: true, CookieDomain: "reading.example"})(okHandler)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, csrfRequest(http.MethodGet, "", ""))

	c := findCookie(rec, csrfCookieName)
	require.NotNil(t, c)
	assert.Len(t, c.Value, 64)
	assert.False(t, c.HttpOnly, "frontend must be able to read the token")
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
	assert.Equal(t, int((24 * time.Hour).Seconds()), c.MaxAge)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, csrfRequest(http.MethodGet, c.Value, ""))
	assert.Nil(t, findCookie(rec, csrfCookieName), "existing cookie should not be replaced")
}

func TestCSRFMiddleware_StateChangingMethods(t *testing.T) {
	tests := []struct {
		name       string
		cookie     string
		header     string
		wantStatus int
	}{
		{"matching tokens", "tok", "tok", http.StatusOK},
		{"no tokens", "", "", http.StatusForbidden},
		{"no cookie", "", "tok", http.StatusForbidden},
		{"no header", "tok", "", http.StatusForbidden},
		{"mismatch", "tok", "other", http.StatusForbidden},
	}

	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete} {
		for _, tt := range tests {
			t.Run(method+"/"+tt.name, func(t *testing.T) {
				h := NewCSRFMiddleware(CSRFConfig{})(okHandler)
				rec := httptest.NewRecorder()

				h.ServeHTTP(rec, csrfRequest(method, tt.cookie, tt.header))

				assert.Equal(t, tt.wantStatus, rec.Code)
				if tt.wantStatus == http.StatusForbidden {
					assert.Equal(t, model.ErrCodeCSRFInvalid, decodeErrorBody(t, rec).Code)
				}
			})
		}
	}
}

func TestCSRFTokenHandler_IssuesTokenMatchingCookie(t *testing.T) {
	h := NewCSRFTokenHandler(CSRFConfig{CookieDomain: "reading.example", MaxAge: time.Hour})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.NotEmpty(t, body.Token)

	c := findCookie(rec, csrfCookieName)
	require.NotNil(t, c)
	assert.Equal(t, body.Token, c.Value)
	assert.Equal(t, 3600, c.MaxAge)
}

func TestCSRFTokenHandler_ExistingCookie_ReturnsSameToken(t *testing.T) {
	h := NewCSRFTokenHandler(CSRFConfig{})

	req := httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil)
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "existing-csrf-token"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.JSONEq(t, `{"token":"existing-csrf-token"}`, rec.Body.String())
	assert.Nil(t, findCookie(rec, csrfCookieName))
}

func TestValidateCSRFToken(t *testing.T) {
	tests := []struct {
		name      string
		cookie    string
		header    string
		fetchSite string
		want      string
	}{
		{"一致", "tok", "tok", "", ""},
		{"同一オリジン申告", "tok", "tok", "same-origin", ""},
		{"別サイト申告", "tok", "tok", "cross-site", "cross-site request"},
		{"Cookieなし", "", "tok", "", "missing cookie token"},
		{"ヘッダーなし", "tok", "", "", "missing header token"},
		{"不一致", "tok", "tok2", "", "token mismatch"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := csrfRequest(http.MethodDelete, tt.cookie, tt.header)
			if tt.fetchSite != "" {
				req.Header.Set("Sec-Fetch-Site", tt.fetchSite)
			}
			assert.Equal(t, tt.want, validateCSRFToken(req))
		})
	}
}

func TestGenerateCSRFToken_IsRandomHex(t *testing.T) {
	a, err := generateCSRFToken()
	require.NoError(t, err)
	b, err := generateCSRFToken()
	require.NoError(t, err)

	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
}
