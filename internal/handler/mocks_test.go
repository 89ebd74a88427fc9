package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/accountlink/internal/middleware"
	"github.com/hitoshi/accountlink/internal/model"
	"github.com/hitoshi/accountlink/internal/user"
)

// --- モック定義 ---

type mockAuthService struct {
	providersFn      func() []string
	getLoginURLFn    func(provider, state string) (string, error)
	handleCallbackFn func(ctx context.Context, provider, code, currentSessionID string) (*model.Session, *model.User, error)
	startSessionFn   func(ctx context.Context, userID string) (*model.Session, error)
	logoutFn         func(ctx context.Context, sessionID string) error
	getCurrentUserFn func(ctx context.Context, sessionID string) (*model.User, error)
}

func (m *mockAuthService) Providers() []string {
	if m.providersFn != nil {
		return m.providersFn()
	}
	return nil
}

func (m *mockAuthService) GetLoginURL(provider, state string) (string, error) {
	if m.getLoginURLFn != nil {
		return m.getLoginURLFn(provider, state)
	}
	return "", nil
}

func (m *mockAuthService) HandleCallback(ctx context.Context, provider, code, currentSessionID string) (*model.Session, *model.User, error) {
	if m.handleCallbackFn != nil {
		return m.handleCallbackFn(ctx, provider, code, currentSessionID)
	}
	return nil, nil, nil
}

func (m *mockAuthService) StartSession(ctx context.Context, userID string) (*model.Session, error) {
	if m.startSessionFn != nil {
		return m.startSessionFn(ctx, userID)
	}
	return &model.Session{ID: "session-" + userID, UserID: userID}, nil
}

func (m *mockAuthService) Logout(ctx context.Context, sessionID string) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, sessionID)
	}
	return nil
}

func (m *mockAuthService) GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	if m.getCurrentUserFn != nil {
		return m.getCurrentUserFn(ctx, sessionID)
	}
	return nil, nil
}

type mockUserService struct {
	signupFn         func(ctx context.Context, profile user.Profile) (*model.User, error)
	verifyPasswordFn func(ctx context.Context, email, password string) (*model.User, error)
	profileFn        func(ctx context.Context, userID string) (*model.User, error)
	connectionsFn    func(ctx context.Context, userID string) ([]*model.Connection, error)
	disconnectFn     func(ctx context.Context, userID, connectionID string) error
	withdrawFn       func(ctx context.Context, userID string) error
}

func (m *mockUserService) Signup(ctx context.Context, profile user.Profile) (*model.User, error) {
	if m.signupFn != nil {
		return m.signupFn(ctx, profile)
	}
	return nil, nil
}

func (m *mockUserService) VerifyPassword(ctx context.Context, email, password string) (*model.User, error) {
	if m.verifyPasswordFn != nil {
		return m.verifyPasswordFn(ctx, email, password)
	}
	return nil, model.NewInvalidCredentialError("mock")
}

func (m *mockUserService) Profile(ctx context.Context, userID string) (*model.User, error) {
	if m.profileFn != nil {
		return m.profileFn(ctx, userID)
	}
	return nil, model.NewUserNotFoundError()
}

func (m *mockUserService) Connections(ctx context.Context, userID string) ([]*model.Connection, error) {
	if m.connectionsFn != nil {
		return m.connectionsFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockUserService) Disconnect(ctx context.Context, userID, connectionID string) error {
	if m.disconnectFn != nil {
		return m.disconnectFn(ctx, userID, connectionID)
	}
	return nil
}

func (m *mockUserService) Withdraw(ctx context.Context, userID string) error {
	if m.withdrawFn != nil {
		return m.withdrawFn(ctx, userID)
	}
	return nil
}

// mockSessionFinder はセッションIDからセッションを引くだけのSessionFinder。
type mockSessionFinder struct {
	sessions map[string]*model.Session
}

func (m *mockSessionFinder) FindByID(ctx context.Context, id string) (*model.Session, error) {
	return m.sessions[id], nil
}

// --- ヘルパー ---

func withUserID(r *http.Request, userID string) *http.Request {
	return r.WithContext(middleware.ContextWithUserID(r.Context(), userID))
}

func findCookie(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func decodeErrorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body middleware.ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return body.Code
}

func strPtr(s string) *string { return &s }

var (
	_ AuthServiceInterface = (*mockAuthService)(nil)
	_ AccountService       = (*mockUserService)(nil)
)
