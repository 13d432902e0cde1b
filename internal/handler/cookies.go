package handler

import (
	"net/http"
	"time"
)

const (
	sessionCookieName = "session_id"
	oauthStateCookie  = "oauth_state"

	// stateはGoogleの画面を往復する間だけ使う
	oauthStateMaxAge = 10 * time.Minute
)

// cookieJar はCookieのDomain/Secure属性をまとめて扱う。
// 全てHttpOnly・SameSite=Laxで発行する。
type cookieJar struct {
	domain string
	secure bool
}

func (j cookieJar) set(w http.ResponseWriter, name, value, path string, maxAge time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Domain:   j.domain,
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   j.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// clear はMaxAge<0のCookieで上書きしてブラウザから削除させる。
// Domain/Pathは発行時と一致していないと削除されない。
func (j cookieJar) clear(w http.ResponseWriter, name, path string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Path:     path,
		Domain:   j.domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   j.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (j cookieJar) setSession(w http.ResponseWriter, sessionID string, maxAge time.Duration) {
	j.set(w, sessionCookieName, sessionID, "/", maxAge)
}

func (j cookieJar) clearSession(w http.ResponseWriter) {
	j.clear(w, sessionCookieName, "/")
}

// readCookie は値が空でないCookieを返す。なければ空文字。
func readCookie(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}
