package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/accountlink/internal/model"
	"github.com/hitoshi/accountlink/internal/user"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	// Signup はメールアドレスとパスワードでユーザーを登録する。
	Signup(ctx context.Context, profile user.Profile) (*model.User, error)
	Profile(ctx context.Context, userID string) (*model.User, error)
	Connections(ctx context.Context, userID string) ([]*model.Connection, error)
	// Disconnect は自分自身の連携を解除する。最後のログイン手段は解除できない。
	Disconnect(ctx context.Context, userID, connectionID string) error
	// Withdraw はユーザーの退会処理を実行する。
	// sessionsとuserを削除し、connectionsはCASCADEで削除される。
	Withdraw(ctx context.Context, userID string) error
}

// SessionStarter は登録直後のセッション発行に使うインターフェース。
type SessionStarter interface {
	StartSession(ctx context.Context, userID string) (*model.Session, error)
}

// UserHandler はユーザー管理のHTTPハンドラー。
type UserHandler struct {
	service  UserServiceInterface
	sessions SessionStarter
	cookie   CookieConfig
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface, sessions SessionStarter, cookie CookieConfig) *UserHandler {
	return &UserHandler{
		service:  service,
		sessions: sessions,
		cookie:   cookie,
	}
}

// signupRequest はユーザー登録リクエストのボディ。
type signupRequest struct {
	Name     string `json:"name"`
	Image    string `json:"image"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Signup はメールアドレスとパスワードによるユーザー登録を処理し、セッションを発行する。
// POST /api/signup
func (h *UserHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidUserError("", "リクエストボディが不正です"))
		return
	}

	created, err := h.service.Signup(r.Context(), user.Profile{
		Name:     req.Name,
		ImageURL: req.Image,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	session, err := h.sessions.StartSession(r.Context(), created.ID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	setSessionCookie(w, h.cookie, session.ID)
	writeJSON(w, http.StatusCreated, newUserResponse(created, created.ID))
}

// Me はログイン中のユーザー情報を返す。
// GET /api/users/me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	u, err := h.service.Profile(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newUserResponse(u, userID))
}

// GetUser は指定ユーザーの公開プロフィールを返す。
// is_selfでログイン中のユーザー自身かどうかを示す。
// GET /api/users/{id}
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	u, err := h.service.Profile(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newUserResponse(u, viewerID))
}

// ListConnections はログイン中のユーザーの連携一覧を返す。
// GET /api/users/me/connections
func (h *UserHandler) ListConnections(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	conns, err := h.service.Connections(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]connectionResponse, 0, len(conns))
	for _, c := range conns {
		resp = append(resp, newConnectionResponse(c))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Disconnect は連携を解除する。
// DELETE /api/users/me/connections/{id}
func (h *UserHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.Disconnect(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Withdraw はユーザーの退会処理を実行し、セッションCookieを削除する。
// DELETE /api/users/me
func (h *UserHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.Withdraw(r.Context(), userID); err != nil {
		handleServiceError(w, err)
		return
	}

	clearSessionCookie(w, h.cookie)
	w.WriteHeader(http.StatusNoContent)
}
