package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/accountlink/internal/model"
)

func newTestService(provider OAuthProvider, userRepo *mockUserRepo, connRepo *mockConnectionRepo, sessionRepo *mockSessionRepo, mc *mockMetrics) *Service {
	if userRepo == nil {
		userRepo = &mockUserRepo{}
	}
	if connRepo == nil {
		connRepo = &mockConnectionRepo{}
	}
	if sessionRepo == nil {
		sessionRepo = &mockSessionRepo{}
	}
	var reg *Registry
	if provider != nil {
		reg = NewRegistry(provider)
	} else {
		reg = NewRegistry()
	}
	resolver := newTestResolver(userRepo, connRepo, nil)
	if mc == nil {
		return NewService(reg, resolver, userRepo, sessionRepo, ServiceConfig{SessionMaxAge: 86400}, nil)
	}
	return NewService(reg, resolver, userRepo, sessionRepo, ServiceConfig{SessionMaxAge: 86400}, mc)
}

func developerProvider(cred *Credential) *mockOAuthProvider {
	return &mockOAuthProvider{
		name: "developer",
		exchangeCodeFn: func(ctx context.Context, code string) (*Credential, error) {
			return cred, nil
		},
	}
}

// --- テスト ---

func TestGetLoginURL_ReturnsOAuthURL(t *testing.T) {
	provider := &mockOAuthProvider{
		name: "google",
		getLoginURLFn: func(state string) string {
			return "https://accounts.google.com/o/oauth2/auth?state=" + state
		},
	}
	svc := newTestService(provider, nil, nil, nil, nil)

	url, err := svc.GetLoginURL("google", "test-state")
	if err != nil {
		t.Fatalf("GetLoginURL() error = %v", err)
	}
	expected := "https://accounts.google.com/o/oauth2/auth?state=test-state"
	if url != expected {
		t.Errorf("GetLoginURL() = %q, want %q", url, expected)
	}
}

func TestGetLoginURL_UnknownProvider(t *testing.T) {
	svc := newTestService(&mockOAuthProvider{name: "google"}, nil, nil, nil, nil)

	_, err := svc.GetLoginURL("twitter", "s")
	if !model.IsCode(err, model.ErrCodeUnknownProvider) {
		t.Errorf("GetLoginURL() error = %v, want %s", err, model.ErrCodeUnknownProvider)
	}
}

func TestHandleCallback_NewUser_CreatesUserConnectionAndSession(t *testing.T) {
	ctx := context.Background()

	var createdUser *model.User
	var createdConn *model.Connection
	var createdSession *model.Session

	userRepo := &mockUserRepo{
		createWithConnectionFn: func(ctx context.Context, u *model.User, c *model.Connection) error {
			createdUser = u
			createdConn = c
			return nil
		},
	}
	sessionRepo := &mockSessionRepo{
		createFn: func(ctx context.Context, session *model.Session) error {
			createdSession = session
			return nil
		},
	}
	mc := &mockMetrics{}
	svc := newTestService(developerProvider(developerCredential()), userRepo, nil, sessionRepo, mc)

	session, u, err := svc.HandleCallback(ctx, "developer", "auth-code-123", "")
	if err != nil {
		t.Fatalf("HandleCallback() error = %v", err)
	}

	if createdUser == nil || createdConn == nil {
		t.Fatal("expected user and connection to be created")
	}
	if u != createdUser {
		t.Errorf("HandleCallback() user = %+v, want created user", u)
	}
	if createdUser.Name != "PP works" {
		t.Errorf("user name = %q, want %q", createdUser.Name, "PP works")
	}
	if createdConn.UserID != createdUser.ID {
		t.Errorf("connection userID = %q, want %q", createdConn.UserID, createdUser.ID)
	}

	if session == nil || createdSession == nil {
		t.Fatal("expected session to be created")
	}
	if session.UserID != createdUser.ID {
		t.Errorf("session userID = %q, want %q", session.UserID, createdUser.ID)
	}
	if len(session.ID) != 64 {
		t.Errorf("session ID length = %d, want 64", len(session.ID))
	}

	expectedExpiry := time.Now().Add(86400 * time.Second)
	diff := createdSession.ExpiresAt.Sub(expectedExpiry)
	if diff < -5*time.Second || diff > 5*time.Second {
		t.Errorf("session expiry = %v, want approximately %v", createdSession.ExpiresAt, expectedExpiry)
	}

	if len(mc.exchanges) != 1 || mc.exchanges[0] != "developer" {
		t.Errorf("exchanges = %v, want [developer]", mc.exchanges)
	}
}

func TestHandleCallback_ExistingUser_LogsInAndCreatesSession(t *testing.T) {
	ctx := context.Background()
	existingUserID := "existing-user-id-456"

	userRepo := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			return &model.User{ID: existingUserID, Name: "PP works"}, nil
		},
		createWithConnectionFn: func(ctx context.Context, u *model.User, c *model.Connection) error {
			t.Fatal("CreateWithConnection should not be called for an existing user")
			return nil
		},
	}
	connRepo := &mockConnectionRepo{
		findByProviderAndUIDFn: func(ctx context.Context, provider, uid string) (*model.Connection, error) {
			return &model.Connection{ID: "c1", UserID: existingUserID, Provider: provider, UID: uid}, nil
		},
	}
	svc := newTestService(developerProvider(developerCredential()), userRepo, connRepo, nil, nil)

	session, u, err := svc.HandleCallback(ctx, "developer", "auth-code-existing", "")
	if err != nil {
		t.Fatalf("HandleCallback() error = %v", err)
	}
	if session.UserID != existingUserID {
		t.Errorf("session userID = %q, want %q", session.UserID, existingUserID)
	}
	if u.ID != existingUserID {
		t.Errorf("user ID = %q, want %q", u.ID, existingUserID)
	}
}

func TestHandleCallback_LoggedIn_AttachesAndRotatesSession(t *testing.T) {
	ctx := context.Background()
	current := &model.User{ID: "user-1"}

	var attached *model.Connection
	var deletedSessionID string

	userRepo := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			if id == current.ID {
				return current, nil
			}
			return nil, nil
		},
	}
	connRepo := &mockConnectionRepo{
		createFn: func(ctx context.Context, conn *model.Connection) error {
			attached = conn
			return nil
		},
	}
	sessionRepo := &mockSessionRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
			if id == "old-session" {
				return &model.Session{ID: id, UserID: current.ID, ExpiresAt: time.Now().Add(time.Hour)}, nil
			}
			return nil, nil
		},
		deleteByIDFn: func(ctx context.Context, id string) error {
			deletedSessionID = id
			return nil
		},
	}
	svc := newTestService(developerProvider(developerCredential()), userRepo, connRepo, sessionRepo, nil)

	session, u, err := svc.HandleCallback(ctx, "developer", "code", "old-session")
	if err != nil {
		t.Fatalf("HandleCallback() error = %v", err)
	}
	if u != current {
		t.Errorf("user = %+v, want current user", u)
	}
	if attached == nil || attached.UserID != current.ID {
		t.Fatalf("attached connection = %+v, want owned by %q", attached, current.ID)
	}
	if session.ID == "old-session" {
		t.Error("expected a new session ID")
	}
	if deletedSessionID != "old-session" {
		t.Errorf("deleted session = %q, want %q", deletedSessionID, "old-session")
	}
}

func TestHandleCallback_ExpiredSession_TreatedAsAnonymous(t *testing.T) {
	ctx := context.Background()
	created := false

	userRepo := &mockUserRepo{
		createWithConnectionFn: func(ctx context.Context, u *model.User, c *model.Connection) error {
			created = true
			return nil
		},
	}
	sessionRepo := &mockSessionRepo{
		deleteByIDFn: func(ctx context.Context, id string) error {
			t.Errorf("DeleteByID(%q) should not be called for an expired session", id)
			return nil
		},
	}
	svc := newTestService(developerProvider(developerCredential()), userRepo, nil, sessionRepo, nil)

	if _, _, err := svc.HandleCallback(ctx, "developer", "code", "expired-session"); err != nil {
		t.Fatalf("HandleCallback() error = %v", err)
	}
	if !created {
		t.Error("expected a new user to be created")
	}
}

func TestHandleCallback_OAuthError_ReturnsError(t *testing.T) {
	provider := &mockOAuthProvider{
		name: "developer",
		exchangeCodeFn: func(ctx context.Context, code string) (*Credential, error) {
			return nil, errors.New("oauth exchange failed")
		},
	}
	mc := &mockMetrics{}
	svc := newTestService(provider, nil, nil, nil, mc)

	_, _, err := svc.HandleCallback(context.Background(), "developer", "bad-code", "")
	if err == nil {
		t.Fatal("expected error from HandleCallback")
	}
	if len(mc.exchanges) != 1 {
		t.Errorf("exchanges = %v, want one record", mc.exchanges)
	}
}

func TestHandleCallback_NoCredential_ReturnsError(t *testing.T) {
	svc := newTestService(developerProvider(nil), nil, nil, nil, nil)

	_, _, err := svc.HandleCallback(context.Background(), "developer", "code", "")
	if !errors.Is(err, ErrNoCredential) {
		t.Errorf("HandleCallback() error = %v, want %v", err, ErrNoCredential)
	}
}

func TestHandleCallback_UnknownProvider_ReturnsError(t *testing.T) {
	svc := newTestService(developerProvider(developerCredential()), nil, nil, nil, nil)

	_, _, err := svc.HandleCallback(context.Background(), "twitter", "code", "")
	if !model.IsCode(err, model.ErrCodeUnknownProvider) {
		t.Errorf("HandleCallback() error = %v, want %s", err, model.ErrCodeUnknownProvider)
	}
}

func TestHandleCallback_UserCreationError_ReturnsError(t *testing.T) {
	userRepo := &mockUserRepo{
		createWithConnectionFn: func(ctx context.Context, u *model.User, c *model.Connection) error {
			return errors.New("db error")
		},
	}
	sessionRepo := &mockSessionRepo{
		createFn: func(ctx context.Context, session *model.Session) error {
			t.Fatal("session should not be created when user creation fails")
			return nil
		},
	}
	svc := newTestService(developerProvider(developerCredential()), userRepo, nil, sessionRepo, nil)

	_, _, err := svc.HandleCallback(context.Background(), "developer", "auth-code-err", "")
	if err == nil {
		t.Fatal("expected error from HandleCallback")
	}
}

func TestLogout_DeletesSession(t *testing.T) {
	var deletedSessionID string
	sessionRepo := &mockSessionRepo{
		deleteByIDFn: func(ctx context.Context, id string) error {
			deletedSessionID = id
			return nil
		},
	}
	svc := newTestService(nil, nil, nil, sessionRepo, nil)

	if err := svc.Logout(context.Background(), "session-to-delete"); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if deletedSessionID != "session-to-delete" {
		t.Errorf("deleted session ID = %q, want %q", deletedSessionID, "session-to-delete")
	}
}

func TestLogout_EmptySessionID_ReturnsError(t *testing.T) {
	svc := newTestService(nil, nil, nil, nil, nil)

	if err := svc.Logout(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty session ID")
	}
}

func TestGetCurrentUser_ValidSession_ReturnsUser(t *testing.T) {
	userID := "user-id-123"
	sessionRepo := &mockSessionRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
			return &model.Session{
				ID:        "session-valid",
				UserID:    userID,
				ExpiresAt: time.Now().Add(1 * time.Hour),
			}, nil
		},
	}
	userRepo := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			return &model.User{ID: userID, Name: "Test User"}, nil
		},
	}
	svc := newTestService(nil, userRepo, nil, sessionRepo, nil)

	u, err := svc.GetCurrentUser(context.Background(), "session-valid")
	if err != nil {
		t.Fatalf("GetCurrentUser() error = %v", err)
	}
	if u == nil || u.ID != userID {
		t.Errorf("user = %+v, want ID %q", u, userID)
	}
}

func TestGetCurrentUser_ExpiredSession_ReturnsError(t *testing.T) {
	// 期限切れセッション -> リポジトリはnilを返す
	svc := newTestService(nil, nil, nil, &mockSessionRepo{}, nil)

	if _, err := svc.GetCurrentUser(context.Background(), "expired-session"); err == nil {
		t.Fatal("expected error for expired session")
	}
}

func TestGetCurrentUser_EmptySessionID_ReturnsError(t *testing.T) {
	svc := newTestService(nil, nil, nil, nil, nil)

	if _, err := svc.GetCurrentUser(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty session ID")
	}
}

func TestStartSession_CreatesSessionForUser(t *testing.T) {
	var saved *model.Session
	sessionRepo := &mockSessionRepo{
		createFn: func(ctx context.Context, session *model.Session) error {
			saved = session
			return nil
		},
	}
	svc := newTestService(nil, nil, nil, sessionRepo, nil)

	session, err := svc.StartSession(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("StartSession() error = %v", err)
	}
	if saved != session {
		t.Error("StartSession() should persist the returned session")
	}
	if session.UserID != "user-1" {
		t.Errorf("UserID = %q, want %q", session.UserID, "user-1")
	}
	if len(session.ID) != 64 {
		t.Errorf("session ID length = %d, want 64", len(session.ID))
	}
	if !session.ExpiresAt.After(session.CreatedAt) {
		t.Error("ExpiresAt should be after CreatedAt")
	}
}

func TestStartSession_EmptyUserID_ReturnsError(t *testing.T) {
	svc := newTestService(nil, nil, nil, nil, nil)
	if _, err := svc.StartSession(context.Background(), ""); err == nil {
		t.Fatal("StartSession() should return error for empty user ID")
	}
}
