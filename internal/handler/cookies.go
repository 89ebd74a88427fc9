package handler

import (
	"net/http"

	"github.com/hitoshi/accountlink/internal/middleware"
)

const (
	oauthStateCookie = "oauth_state"
	oauthStateMaxAge = 600 // 10分
)

// CookieConfig はセッションCookieの発行設定。
type CookieConfig struct {
	Domain        string
	Secure        bool
	SessionMaxAge int // セッションCookieの有効期間（秒）
}

// setSessionCookie はセッションCookie（HTTP Only）を設定し、CSRFトークンを再発行する。
func setSessionCookie(w http.ResponseWriter, cfg CookieConfig, sessionID string) {
	middleware.RotateCSRFToken(w, middleware.CSRFConfig{CookieSecure: cfg.Secure, CookieDomain: cfg.Domain})
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    sessionID,
		Path:     "/",
		Domain:   cfg.Domain,
		MaxAge:   cfg.SessionMaxAge,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// clearSessionCookie はセッションCookieを削除する。
func clearSessionCookie(w http.ResponseWriter, cfg CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   cfg.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func setStateCookie(w http.ResponseWriter, cfg CookieConfig, state string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// sessionIDFromCookie はリクエストのセッションCookieの値を返す。Cookieがなければ空文字。
func sessionIDFromCookie(r *http.Request) string {
	cookie, err := r.Cookie(middleware.SessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}
