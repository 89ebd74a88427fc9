// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/accountlink/internal/model"
)

// SessionCookieName はセッションIDを保持するCookieの名前。
// ログイン、登録、ログアウトのハンドラーも同じ名前で読み書きする。
const SessionCookieName = "session_id"

type contextKey string

var (
	userIDContextKey       = contextKey("user_id")
	sessionIDContextKey    = contextKey("session_id")
	userIDHolderContextKey = contextKey("user_id_holder")
)

// errNoSession はCookieが無いか、有効なセッションが見つからないことを表す。
var errNoSession = errors.New("no valid session")

// userIDHolder は外側のミドルウェア（ログ出力）に認証済みユーザーIDを伝えるための入れ物。
type userIDHolder struct {
	userID string
}

func withUserIDHolder(ctx context.Context, h *userIDHolder) context.Context {
	return context.WithValue(ctx, userIDHolderContextKey, h)
}

// SessionFinder はセッションの検索に必要なインターフェース。
// repository.SessionRepositoryの部分集合として定義する。
type SessionFinder interface {
	FindByID(ctx context.Context, id string) (*model.Session, error)
}

// lookupSession はCookieのセッションIDからセッションを取得する。
// ストアが期限切れのセッションを返した場合もerrNoSessionとして扱う。
func lookupSession(r *http.Request, finder SessionFinder, now time.Time) (*model.Session, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil, errNoSession
	}

	session, err := finder.FindByID(r.Context(), cookie.Value)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil || !session.ExpiresAt.After(now) {
		return nil, errNoSession
	}
	return session, nil
}

// NewSessionMiddleware はHTTP Only Cookieからセッションを読み取り、
// 有効性を検証するミドルウェアを返す。
// 認証済みユーザーIDとセッションIDをリクエストコンテキストに注入する。
// 未認証リクエストには401と統一エラーレスポンスを返す。
func NewSessionMiddleware(sessionFinder SessionFinder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, err := lookupSession(r, sessionFinder, time.Now())
			if err != nil {
				if !errors.Is(err, errNoSession) {
					slog.Error("session lookup failed",
						slog.String("path", r.URL.Path),
						slog.String("error", err.Error()),
					)
				}
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			if h, ok := r.Context().Value(userIDHolderContextKey).(*userIDHolder); ok {
				h.userID = session.UserID
			}

			ctx := context.WithValue(r.Context(), userIDContextKey, session.UserID)
			ctx = context.WithValue(ctx, sessionIDContextKey, session.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
// セッションミドルウェアを通過したリクエストでのみ有効。
func UserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

// SessionIDFromContext はリクエストコンテキストからセッションIDを取得する。
func SessionIDFromContext(ctx context.Context) string {
	sessionID, _ := ctx.Value(sessionIDContextKey).(string)
	return sessionID
}

// ContextWithUserID はコンテキストにユーザーIDを注入する。
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}
