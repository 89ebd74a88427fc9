package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/accountlink/internal/model"
)

// --- モック定義 ---

type mockSessionRepository struct {
	findByIDFn func(ctx context.Context, id string) (*model.Session, error)
}

func (m *mockSessionRepository) FindByID(ctx context.Context, id string) (*model.Session, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

// --- テスト ---

func TestSessionMiddleware_ValidSession_InjectsUserID(t *testing.T) {
	repo := &mockSessionRepository{
		findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
			if id == "valid-session-id" {
				return &model.Session{
					ID:        "valid-session-id",
					UserID:    "user-123",
					ExpiresAt: time.Now().Add(1 * time.Hour),
				}, nil
			}
			return nil, nil
		},
	}

	mw := NewSessionMiddleware(repo)

	var capturedUserID string
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := UserIDFromContext(r.Context())
		if err != nil {
			t.Errorf("expected no error, got %v", err)
		}
		capturedUserID = userID
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "valid-session-id"})
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if capturedUserID != "user-123" {
		t.Errorf("userID = %q, want %q", capturedUserID, "user-123")
	}
}

// serveUnauthenticated はハンドラーに到達せず401になることを検証する。
func serveUnauthenticated(t *testing.T, repo SessionFinder, cookie *http.Cookie) {
	t.Helper()
	handler := NewSessionMiddleware(repo)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/users/me", nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestSessionMiddleware_Unauthenticated_Returns401(t *testing.T) {
	expiredAt := time.Now().Add(-time.Minute)

	tests := []struct {
		name   string
		repo   *mockSessionRepository
		cookie *http.Cookie
	}{
		{
			name: "no cookie",
			repo: &mockSessionRepository{},
		},
		{
			name:   "empty cookie",
			repo:   &mockSessionRepository{},
			cookie: &http.Cookie{Name: SessionCookieName, Value: ""},
		},
		{
			// 期限切れでnilを返すSQLストアの動作
			name:   "unknown session",
			repo:   &mockSessionRepository{},
			cookie: &http.Cookie{Name: SessionCookieName, Value: "expired-session"},
		},
		{
			// ストアのTTLより先に有効期限を過ぎたセッション
			name: "expired session returned by store",
			repo: &mockSessionRepository{
				findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
					return &model.Session{ID: id, UserID: "user-123", ExpiresAt: expiredAt}, nil
				},
			},
			cookie: &http.Cookie{Name: SessionCookieName, Value: "stale-session"},
		},
		{
			name: "repository error",
			repo: &mockSessionRepository{
				findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
					return nil, context.DeadlineExceeded
				},
			},
			cookie: &http.Cookie{Name: SessionCookieName, Value: "some-session"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			serveUnauthenticated(t, tt.repo, tt.cookie)
		})
	}
}

func TestLookupSession_ExpiryBoundary(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	repo := &mockSessionRepository{
		findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
			return &model.Session{ID: id, UserID: "user-1", ExpiresAt: now}, nil
		},
	}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "s1"})

	// ExpiresAtちょうどは期限切れ
	if _, err := lookupSession(req, repo, now); !errors.Is(err, errNoSession) {
		t.Errorf("at expiry: err = %v, want errNoSession", err)
	}
	if s, err := lookupSession(req, repo, now.Add(-time.Second)); err != nil || s.UserID != "user-1" {
		t.Errorf("before expiry: session = %+v, err = %v", s, err)
	}
}

func TestUserIDFromContext_NoValue_ReturnsError(t *testing.T) {
	ctx := context.Background()
	_, err := UserIDFromContext(ctx)
	if err == nil {
		t.Error("expected error for missing user ID in context")
	}
}

func TestUserIDFromContext_ValidValue_ReturnsUserID(t *testing.T) {
	ctx := context.WithValue(context.Background(), userIDContextKey, "user-456")
	userID, err := UserIDFromContext(ctx)
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if userID != "user-456" {
		t.Errorf("userID = %q, want %q", userID, "user-456")
	}
}

func TestSessionMiddleware_Unauthorized_UsesUnifiedErrorBody(t *testing.T) {
	handler := NewSessionMiddleware(&mockSessionRepository{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/users/me/connections", nil))

	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Code != model.ErrCodeUnauthorized {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeUnauthorized)
	}
}

func TestSessionMiddleware_InjectsSessionID(t *testing.T) {
	repo := &mockSessionRepository{
		findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
			return &model.Session{ID: id, UserID: "user-1", ExpiresAt: time.Now().Add(time.Hour)}, nil
		},
	}

	var captured string
	handler := NewSessionMiddleware(repo)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = SessionIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodDelete, "/api/users/me", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "sess-abc"})
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if captured != "sess-abc" {
		t.Errorf("session ID = %q, want %q", captured, "sess-abc")
	}
	if got := SessionIDFromContext(context.Background()); got != "" {
		t.Errorf("SessionIDFromContext(empty) = %q, want empty", got)
	}
}
