package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/quietly/quietly/internal/model"
)

// GoogleEndpoints はGoogle OAuthのエンドポイント群。
type GoogleEndpoints struct {
	Auth     string
	Token    string
	UserInfo string
}

// DefaultGoogleEndpoints は本番のGoogleエンドポイント。
var DefaultGoogleEndpoints = GoogleEndpoints{
	Auth:     "https://accounts.google.com/o/oauth2/v2/auth",
	Token:    "https://oauth2.googleapis.com/token",
	UserInfo: "https://openidconnect.googleapis.com/v1/userinfo",
}

// レスポンスボディの読み取り上限
const maxGoogleResponseBytes = 1 << 20

// GoogleOAuthConfig はGoogle OAuthプロバイダーの設定。
// Endpointsの空のフィールドはDefaultGoogleEndpointsで補う。
type GoogleOAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Endpoints    GoogleEndpoints
	HTTPClient   *http.Client
}

// GoogleOAuthProvider はGoogleの認可コードフローでログインさせる。
type GoogleOAuthProvider struct {
	clientID     string
	clientSecret string
	redirectURL  string
	endpoints    GoogleEndpoints
	client       *http.Client
}

func NewGoogleOAuthProvider(config GoogleOAuthConfig) *GoogleOAuthProvider {
	ep := config.Endpoints
	if ep.Auth == "" {
		ep.Auth = DefaultGoogleEndpoints.Auth
	}
	if ep.Token == "" {
		ep.Token = DefaultGoogleEndpoints.Token
	}
	if ep.UserInfo == "" {
		ep.UserInfo = DefaultGoogleEndpoints.UserInfo
	}
	client := config.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &GoogleOAuthProvider{
		clientID:     config.ClientID,
		clientSecret: config.ClientSecret,
		redirectURL:  config.RedirectURL,
		endpoints:    ep,
		client:       client,
	}
}

// GetLoginURL は認可エンドポイントのURLを返す。
// 要求するのは本人確認に必要なopenid/email/profileのみ。
func (p *GoogleOAuthProvider) GetLoginURL(state string) string {
	q := url.Values{}
	q.Set("client_id", p.clientID)
	q.Set("redirect_uri", p.redirectURL)
	q.Set("response_type", "code")
	q.Set("scope", "openid email profile")
	q.Set("state", state)
	q.Set("access_type", "online")
	q.Set("prompt", "select_account")
	return p.endpoints.Auth + "?" + q.Encode()
}

// ProviderError はIdPが2xx以外を返したことを表す。
type ProviderError struct {
	Op          string // "token" または "userinfo"
	StatusCode  int
	Code        string // OAuthのerrorフィールド（invalid_grant等）
	Description string
}

func (e *ProviderError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("google %s: status %d: %s: %s", e.Op, e.StatusCode, e.Code, e.Description)
	}
	return fmt.Sprintf("google %s: status %d", e.Op, e.StatusCode)
}

// ExchangeCode は認可コードをアクセストークンに交換し、userinfoからアカウント情報を取得する。
func (p *GoogleOAuthProvider) ExchangeCode(ctx context.Context, code string) (*OAuthUserInfo, error) {
	accessToken, err := p.exchangeToken(ctx, code)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoints.UserInfo, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build userinfo request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	var claims struct {
		Sub           string `json:"sub"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
	}
	if err := p.do(req, "userinfo", &claims); err != nil {
		return nil, err
	}
	if claims.Sub == "" {
		return nil, fmt.Errorf("google userinfo: missing sub")
	}

	return &OAuthUserInfo{
		Provider:      model.ProviderGoogle,
		Subject:       claims.Sub,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		Name:          claims.Name,
	}, nil
}

func (p *GoogleOAuthProvider) exchangeToken(ctx context.Context, code string) (string, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("client_id", p.clientID)
	form.Set("client_secret", p.clientSecret)
	form.Set("redirect_uri", p.redirectURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoints.Token, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var token struct {
		AccessToken string `json:"access_token"`
	}
	if err := p.do(req, "token", &token); err != nil {
		return "", err
	}
	if token.AccessToken == "" {
		return "", fmt.Errorf("google token: missing access_token")
	}
	return token.AccessToken, nil
}

// do はリクエストを送り、2xxならボディをoutにデコードする。
// それ以外はOAuthのエラーボディを読み取ってProviderErrorにする。
func (p *GoogleOAuthProvider) do(req *http.Request, op string, out any) error {
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("google %s: %w", op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxGoogleResponseBytes))
	if err != nil {
		return fmt.Errorf("google %s: failed to read response: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		perr := &ProviderError{Op: op, StatusCode: resp.StatusCode}
		var oauthErr struct {
			Error            string `json:"error"`
			ErrorDescription string `json:"error_description"`
		}
		if json.Unmarshal(body, &oauthErr) == nil {
			perr.Code = oauthErr.Error
			perr.Description = oauthErr.ErrorDescription
		}
		return perr
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("google %s: failed to decode response: %w", op, err)
	}
	return nil
}

var _ OAuthProvider = (*GoogleOAuthProvider)(nil)
