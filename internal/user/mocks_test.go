package user

import (
	"context"
	"time"

	"github.com/hitoshi/accountlink/internal/model"
	"github.com/hitoshi/accountlink/internal/repository"
)

// --- モック ---

type mockUserRepo struct {
	findByIDFn    func(ctx context.Context, id string) (*model.User, error)
	findByEmailFn func(ctx context.Context, email string) (*model.User, error)
	createFn      func(ctx context.Context, user *model.User) error
	deleteByIDFn  func(ctx context.Context, id string) error
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}
func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	if m.findByEmailFn != nil {
		return m.findByEmailFn(ctx, email)
	}
	return nil, nil
}
func (m *mockUserRepo) Create(ctx context.Context, user *model.User) error {
	if m.createFn != nil {
		return m.createFn(ctx, user)
	}
	return nil
}
func (m *mockUserRepo) CreateWithConnection(ctx context.Context, user *model.User, conn *model.Connection) error {
	return nil
}
func (m *mockUserRepo) DeleteByID(ctx context.Context, id string) error {
	if m.deleteByIDFn != nil {
		return m.deleteByIDFn(ctx, id)
	}
	return nil
}
func (m *mockUserRepo) Count(ctx context.Context) (int, error) {
	return 0, nil
}

type mockConnectionRepo struct {
	findByIDFn      func(ctx context.Context, id string) (*model.Connection, error)
	listByUserIDFn  func(ctx context.Context, userID string) ([]*model.Connection, error)
	deleteByIDFn    func(ctx context.Context, id string) error
	countByUserIDFn func(ctx context.Context, userID string) (int, error)
}

func (m *mockConnectionRepo) FindByProviderAndUID(ctx context.Context, provider, uid string) (*model.Connection, error) {
	return nil, nil
}
func (m *mockConnectionRepo) FindByID(ctx context.Context, id string) (*model.Connection, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}
func (m *mockConnectionRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Connection, error) {
	if m.listByUserIDFn != nil {
		return m.listByUserIDFn(ctx, userID)
	}
	return nil, nil
}
func (m *mockConnectionRepo) Create(ctx context.Context, conn *model.Connection) error {
	return nil
}
func (m *mockConnectionRepo) DeleteByID(ctx context.Context, id string) error {
	if m.deleteByIDFn != nil {
		return m.deleteByIDFn(ctx, id)
	}
	return nil
}
func (m *mockConnectionRepo) CountByUserID(ctx context.Context, userID string) (int, error) {
	if m.countByUserIDFn != nil {
		return m.countByUserIDFn(ctx, userID)
	}
	return 0, nil
}

type mockSessionRepo struct {
	deleteByUserIDFn func(ctx context.Context, userID string) error
}

func (m *mockSessionRepo) Create(ctx context.Context, session *model.Session) error {
	return nil
}
func (m *mockSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	return nil, nil
}
func (m *mockSessionRepo) DeleteByID(ctx context.Context, id string) error {
	return nil
}
func (m *mockSessionRepo) DeleteByUserID(ctx context.Context, userID string) error {
	return m.deleteByUserIDFn(ctx, userID)
}
func (m *mockSessionRepo) DeleteExpired(ctx context.Context) (int64, error) {
	return 0, nil
}

// plainHasher はテスト用にbcryptを使わないPasswordHasher。
type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) { return "hashed:" + password, nil }
func (plainHasher) Compare(digest, password string) bool { return digest == "hashed:"+password }

type mockSignupMetrics struct {
	signups []string
}

func (m *mockSignupMetrics) RecordAuthOutcome(string) {}
func (m *mockSignupMetrics) RecordSignup(policy string) {
	m.signups = append(m.signups, policy)
}
func (m *mockSignupMetrics) RecordProviderExchange(string, time.Duration, error) {}
func (m *mockSignupMetrics) RecordHTTPStatus(int) {}
func (m *mockSignupMetrics) RecordSessionsExpired(int64) {}

// compile-time interface check
var (
	_ repository.UserRepository       = (*mockUserRepo)(nil)
	_ repository.ConnectionRepository = (*mockConnectionRepo)(nil)
	_ repository.SessionRepository    = (*mockSessionRepo)(nil)
)
