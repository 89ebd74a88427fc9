// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/accountlink/internal/auth"
	"github.com/hitoshi/accountlink/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Providers() []string
	GetLoginURL(provider, state string) (string, error)
	HandleCallback(ctx context.Context, provider, code, currentSessionID string) (*model.Session, *model.User, error)
	StartSession(ctx context.Context, userID string) (*model.Session, error)
	Logout(ctx context.Context, sessionID string) error
	GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error)
}

// PasswordVerifier はメールアドレスとパスワードによる認証を行うインターフェース。
type PasswordVerifier interface {
	VerifyPassword(ctx context.Context, email, password string) (*model.User, error)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	BaseURL string
	Cookie  CookieConfig
}

// AuthHandler は認証関連のHTTPハンドラー。
type AuthHandler struct {
	service  AuthServiceInterface
	verifier PasswordVerifier
	config   AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, verifier PasswordVerifier, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service:  service,
		verifier: verifier,
		config:   config,
	}
}

// passwordLoginRequest はパスワードログインのリクエストボディ。
type passwordLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Providers は利用可能なOAuthプロバイダーの一覧を返す。
// GET /auth/providers
func (h *AuthHandler) Providers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{
		"providers": h.service.Providers(),
	})
}

// Login はOAuthフローを開始する。
// GET /auth/{provider}/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")

	state, err := generateState()
	if err != nil {
		slog.Error("failed to generate oauth state", slog.String("error", err.Error()))
		writeAPIErrorResponse(w, http.StatusInternalServerError, model.NewInternalError())
		return
	}

	url, err := h.service.GetLoginURL(provider, state)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	// stateをCookieに保存（CSRF対策）
	setStateCookie(w, h.config.Cookie, state, oauthStateMaxAge)
	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

// Callback はOAuthコールバックを処理する。
// ログイン中であれば、そのユーザーに連携を追加する。
// GET /auth/{provider}/callback?code=xxx&state=yyy
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")

	// 1. stateの検証（CSRF対策）
	state := r.URL.Query().Get("state")
	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || state == "" || subtle.ConstantTimeCompare([]byte(stateCookie.Value), []byte(state)) != 1 {
		slog.Warn("oauth state mismatch", slog.String("provider", provider))
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidCredentialError("stateが一致しません"))
		return
	}
	setStateCookie(w, h.config.Cookie, "", -1)

	// 2. 認可コードの取得
	code := r.URL.Query().Get("code")
	if code == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidCredentialError("認可コードがありません"))
		return
	}

	// 3. 認証処理
	session, user, err := h.service.HandleCallback(r.Context(), provider, code, sessionIDFromCookie(r))
	if err != nil {
		if errors.Is(err, auth.ErrNoCredential) {
			writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
			return
		}
		slog.Error("oauth callback failed",
			slog.String("provider", provider),
			slog.String("error", err.Error()),
		)
		handleServiceError(w, err)
		return
	}

	slog.Info("oauth login succeeded",
		slog.String("provider", provider),
		slog.String("user_id", user.ID),
	)

	// 4. セッションCookieを設定し、フロントエンドにリダイレクト
	setSessionCookie(w, h.config.Cookie, session.ID)
	http.Redirect(w, r, h.config.BaseURL, http.StatusTemporaryRedirect)
}

// PasswordLogin はメールアドレスとパスワードでログインする。
// POST /auth/login
func (h *AuthHandler) PasswordLogin(w http.ResponseWriter, r *http.Request) {
	var req passwordLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidCredentialError("リクエストボディが不正です"))
		return
	}

	user, err := h.verifier.VerifyPassword(r.Context(), req.Email, req.Password)
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeInvalidCredential {
			writeAPIErrorResponse(w, http.StatusUnauthorized, apiErr)
			return
		}
		handleServiceError(w, err)
		return
	}

	session, err := h.service.StartSession(r.Context(), user.ID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	setSessionCookie(w, h.config.Cookie, session.ID)
	writeJSON(w, http.StatusOK, newUserResponse(user, user.ID))
}

// Logout はセッションを破棄する。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if sessionID := sessionIDFromCookie(r); sessionID != "" {
		if err := h.service.Logout(r.Context(), sessionID); err != nil {
			// ログアウト失敗してもCookieはクリアする
			slog.Error("failed to logout", slog.String("error", err.Error()))
		}
	}

	clearSessionCookie(w, h.config.Cookie)
	http.Redirect(w, r, h.config.BaseURL, http.StatusSeeOther)
}

// Me は現在のログインユーザー情報を返す。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	sessionID := sessionIDFromCookie(r)
	if sessionID == "" {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	user, err := h.service.GetCurrentUser(r.Context(), sessionID)
	if err != nil {
		slog.Warn("failed to get current user", slog.String("error", err.Error()))
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	writeJSON(w, http.StatusOK, newUserResponse(user, user.ID))
}

// generateState はCSRF対策用のランダムなstate値を生成する。
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
