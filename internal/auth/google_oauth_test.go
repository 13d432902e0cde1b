package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quietly/quietly/internal/model"
)

// fakeGoogle はtoken/userinfoエンドポイントを模したテストサーバー。
type fakeGoogle struct {
	tokenStatus    int
	tokenBody      any
	userInfoStatus int
	userInfoBody   any

	tokenForm url.Values
	authHdr   string
}

func (f *fakeGoogle) start(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		f.tokenForm = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(f.tokenStatus)
		_ = json.NewEncoder(w).Encode(f.tokenBody)
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		f.authHdr = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(f.userInfoStatus)
		_ = json.NewEncoder(w).Encode(f.userInfoBody)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func okGoogle() *fakeGoogle {
	return &fakeGoogle{
		tokenStatus:    http.StatusOK,
		tokenBody:      map[string]any{"access_token": "at-1", "token_type": "Bearer", "expires_in": 3599},
		userInfoStatus: http.StatusOK,
		userInfoBody: map[string]any{
			"sub":            "110248495921238986420",
			"email":          "reader@gmail.com",
			"email_verified": true,
			"name":           "Reader",
		},
	}
}

func providerFor(srv *httptest.Server) *GoogleOAuthProvider {
	return NewGoogleOAuthProvider(GoogleOAuthConfig{
		ClientID:     "client-1",
		ClientSecret: "secret-1",
		RedirectURL:  "http://localhost:8080/auth/google/callback",
		Endpoints: GoogleEndpoints{
			Token:    srv.URL + "/token",
			UserInfo: srv.URL + "/userinfo",
		},
		HTTPClient: srv.Client(),
	})
}

func TestGoogleOAuthProvider_GetLoginURL(t *testing.T) {
	p := NewGoogleOAuthProvider(GoogleOAuthConfig{
		ClientID:    "client-1",
		RedirectURL: "http://localhost:8080/auth/google/callback",
	})

	raw := p.GetLoginURL("state-abc")
	require.True(t, strings.HasPrefix(raw, DefaultGoogleEndpoints.Auth+"?"), raw)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "client-1", q.Get("client_id"))
	assert.Equal(t, "http://localhost:8080/auth/google/callback", q.Get("redirect_uri"))
	assert.Equal(t, "state-abc", q.Get("state"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "openid email profile", q.Get("scope"))
}

func TestGoogleOAuthProvider_ExchangeCode_Success(t *testing.T) {
	g := okGoogle()
	srv := g.start(t)

	info, err := providerFor(srv).ExchangeCode(context.Background(), "code-1")
	require.NoError(t, err)

	assert.Equal(t, &OAuthUserInfo{
		Provider:      model.ProviderGoogle,
		Subject:       "110248495921238986420",
		Email:         "reader@gmail.com",
		EmailVerified: true,
		Name:          "Reader",
	}, info)

	assert.Equal(t, "authorization_code", g.tokenForm.Get("grant_type"))
	assert.Equal(t, "code-1", g.tokenForm.Get("code"))
	assert.Equal(t, "secret-1", g.tokenForm.Get("client_secret"))
	assert.Equal(t, "Bearer at-1", g.authHdr)
}

func TestGoogleOAuthProvider_ExchangeCode_UnverifiedEmailIsReported(t *testing.T) {
	g := okGoogle()
	g.userInfoBody = map[string]any{"sub": "1", "email": "new@gmail.com", "email_verified": false}
	srv := g.start(t)

	info, err := providerFor(srv).ExchangeCode(context.Background(), "code-1")
	require.NoError(t, err)
	assert.False(t, info.EmailVerified)
}

func TestGoogleOAuthProvider_ExchangeCode_ProviderErrors(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(g *fakeGoogle)
		wantOp   string
		wantCode string
	}{
		{
			name: "認可コードが無効",
			mutate: func(g *fakeGoogle) {
				g.tokenStatus = http.StatusBadRequest
				g.tokenBody = map[string]any{"error": "invalid_grant", "error_description": "Bad Request"}
			},
			wantOp:   "token",
			wantCode: "invalid_grant",
		},
		{
			name: "userinfoが401",
			mutate: func(g *fakeGoogle) {
				g.userInfoStatus = http.StatusUnauthorized
				g.userInfoBody = map[string]any{"error": "invalid_token"}
			},
			wantOp:   "userinfo",
			wantCode: "invalid_token",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := okGoogle()
			tt.mutate(g)
			srv := g.start(t)

			_, err := providerFor(srv).ExchangeCode(context.Background(), "code-1")

			var perr *ProviderError
			require.True(t, errors.As(err, &perr), "err = %v", err)
			assert.Equal(t, tt.wantOp, perr.Op)
			assert.Equal(t, tt.wantCode, perr.Code)
		})
	}
}

func TestGoogleOAuthProvider_ExchangeCode_MalformedResponses(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(g *fakeGoogle)
	}{
		{"access_tokenなし", func(g *fakeGoogle) { g.tokenBody = map[string]any{"token_type": "Bearer"} }},
		{"subなし", func(g *fakeGoogle) { g.userInfoBody = map[string]any{"email": "x@gmail.com"} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := okGoogle()
			tt.mutate(g)
			srv := g.start(t)

			_, err := providerFor(srv).ExchangeCode(context.Background(), "code-1")
			assert.Error(t, err)
		})
	}
}
