package auth

import (
	"context"
	"sync"
	"time"

	"github.com/hitoshi/accountlink/internal/metrics"
	"github.com/hitoshi/accountlink/internal/model"
	"github.com/hitoshi/accountlink/internal/repository"
)

// --- モック定義 ---

type mockUserRepo struct {
	findByIDFn             func(ctx context.Context, id string) (*model.User, error)
	createWithConnectionFn func(ctx context.Context, user *model.User, conn *model.Connection) error
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockUserRepo) FindByEmail(_ context.Context, _ string) (*model.User, error) {
	return nil, nil
}

func (m *mockUserRepo) Create(_ context.Context, _ *model.User) error {
	return nil
}

func (m *mockUserRepo) CreateWithConnection(ctx context.Context, user *model.User, conn *model.Connection) error {
	if m.createWithConnectionFn != nil {
		return m.createWithConnectionFn(ctx, user, conn)
	}
	return nil
}

func (m *mockUserRepo) DeleteByID(_ context.Context, _ string) error {
	return nil
}

func (m *mockUserRepo) Count(_ context.Context) (int, error) {
	return 0, nil
}

type mockConnectionRepo struct {
	findByProviderAndUIDFn func(ctx context.Context, provider, uid string) (*model.Connection, error)
	listByUserIDFn         func(ctx context.Context, userID string) ([]*model.Connection, error)
	createFn               func(ctx context.Context, conn *model.Connection) error
}

func (m *mockConnectionRepo) FindByProviderAndUID(ctx context.Context, provider, uid string) (*model.Connection, error) {
	if m.findByProviderAndUIDFn != nil {
		return m.findByProviderAndUIDFn(ctx, provider, uid)
	}
	return nil, nil
}

func (m *mockConnectionRepo) FindByID(_ context.Context, _ string) (*model.Connection, error) {
	return nil, nil
}

func (m *mockConnectionRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Connection, error) {
	if m.listByUserIDFn != nil {
		return m.listByUserIDFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockConnectionRepo) Create(ctx context.Context, conn *model.Connection) error {
	if m.createFn != nil {
		return m.createFn(ctx, conn)
	}
	return nil
}

func (m *mockConnectionRepo) DeleteByID(_ context.Context, _ string) error {
	return nil
}

func (m *mockConnectionRepo) CountByUserID(_ context.Context, _ string) (int, error) {
	return 0, nil
}

type mockSessionRepo struct {
	createFn         func(ctx context.Context, session *model.Session) error
	findByIDFn       func(ctx context.Context, id string) (*model.Session, error)
	deleteByIDFn     func(ctx context.Context, id string) error
	deleteByUserIDFn func(ctx context.Context, userID string) error
}

func (m *mockSessionRepo) Create(ctx context.Context, session *model.Session) error {
	if m.createFn != nil {
		return m.createFn(ctx, session)
	}
	return nil
}

func (m *mockSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockSessionRepo) DeleteByID(ctx context.Context, id string) error {
	if m.deleteByIDFn != nil {
		return m.deleteByIDFn(ctx, id)
	}
	return nil
}

func (m *mockSessionRepo) DeleteByUserID(ctx context.Context, userID string) error {
	if m.deleteByUserIDFn != nil {
		return m.deleteByUserIDFn(ctx, userID)
	}
	return nil
}

func (m *mockSessionRepo) DeleteExpired(_ context.Context) (int64, error) {
	return 0, nil
}

type mockOAuthProvider struct {
	name           string
	getLoginURLFn  func(state string) string
	exchangeCodeFn func(ctx context.Context, code string) (*Credential, error)
}

func (m *mockOAuthProvider) Name() string {
	if m.name == "" {
		return "developer"
	}
	return m.name
}

func (m *mockOAuthProvider) GetLoginURL(state string) string {
	if m.getLoginURLFn != nil {
		return m.getLoginURLFn(state)
	}
	return ""
}

func (m *mockOAuthProvider) ExchangeCode(ctx context.Context, code string) (*Credential, error) {
	if m.exchangeCodeFn != nil {
		return m.exchangeCodeFn(ctx, code)
	}
	return nil, nil
}

// mockMetrics は記録された値を保持するMetricsCollector。
type mockMetrics struct {
	mu        sync.Mutex
	outcomes  []string
	signups   []string
	exchanges []string
}

func (m *mockMetrics) RecordAuthOutcome(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, outcome)
}

func (m *mockMetrics) RecordSignup(policy string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.signups = append(m.signups, policy)
}

func (m *mockMetrics) RecordProviderExchange(provider string, _ time.Duration, _ error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exchanges = append(m.exchanges, provider)
}

func (m *mockMetrics) RecordHTTPStatus(int) {}
func (m *mockMetrics) RecordSessionsExpired(int64) {}

// --- compile-time interface checks ---
var _ repository.UserRepository = (*mockUserRepo)(nil)
var _ repository.ConnectionRepository = (*mockConnectionRepo)(nil)
var _ repository.SessionRepository = (*mockSessionRepo)(nil)
var _ OAuthProvider = (*mockOAuthProvider)(nil)
var _ metrics.MetricsCollector = (*mockMetrics)(nil)

// developerCredential は"developer"プロバイダーの認証情報を返す。
func developerCredential() *Credential {
	return &Credential{
		Provider: "developer",
		UID:      "123456",
		Info: CredentialInfo{
			Nickname: "ppworks",
			Name:     "PP works",
			Image:    "http://example.com/ppworks.png",
		},
		Credentials: CredentialToken{
			Token:  "token-abc",
			Secret: "secret-xyz",
		},
	}
}
