// Package auth はOAuth認証フロー、アイデンティティ解決、セッション管理を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/accountlink/internal/metrics"
	"github.com/hitoshi/accountlink/internal/model"
	"github.com/hitoshi/accountlink/internal/repository"
)

// ErrNoCredential はプロバイダーが認証情報を返さなかった場合のエラー。
var ErrNoCredential = errors.New("provider returned no credential")

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	providers   *Registry
	resolver    *Resolver
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	config      ServiceConfig
	metrics     metrics.MetricsCollector
}

// NewService はServiceを生成する。mcはnilでもよい。
func NewService(
	providers *Registry,
	resolver *Resolver,
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	config ServiceConfig,
	mc metrics.MetricsCollector,
) *Service {
	return &Service{
		providers:   providers,
		resolver:    resolver,
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		config:      config,
		metrics:     mc,
	}
}

// Providers は利用可能なプロバイダー名を返す。
func (s *Service) Providers() []string {
	return s.providers.Names()
}

// GetLoginURL は指定プロバイダーのOAuth認証URLを生成する。
func (s *Service) GetLoginURL(provider, state string) (string, error) {
	p, err := s.providers.Get(provider)
	if err != nil {
		return "", err
	}
	return p.GetLoginURL(state), nil
}

// HandleCallback はOAuthコールバックを処理し、解決したユーザーの新しいセッションを発行する。
// currentSessionIDが有効なセッションを指す場合、そのユーザーに連携を追加し、古いセッションは破棄する。
func (s *Service) HandleCallback(ctx context.Context, provider, code, currentSessionID string) (*model.Session, *model.User, error) {
	p, err := s.providers.Get(provider)
	if err != nil {
		return nil, nil, err
	}

	// 1. 認可コードをトークンに交換し、認証情報を取得
	start := time.Now()
	cred, err := p.ExchangeCode(ctx, code)
	if s.metrics != nil {
		s.metrics.RecordProviderExchange(provider, time.Since(start), err)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to exchange oauth code: %w", err)
	}
	if cred == nil {
		return nil, nil, ErrNoCredential
	}

	// 2. ログイン中のユーザーを特定（無効なセッションは未ログインとして扱う）
	var sessionUser *model.User
	if currentSessionID != "" {
		sessionUser, err = s.findSessionUser(ctx, currentSessionID)
		if err != nil {
			return nil, nil, err
		}
	}

	// 3. 認証対象のユーザーを解決
	resolved, err := s.resolver.Authenticate(ctx, cred, sessionUser)
	if err != nil {
		return nil, nil, err
	}
	if resolved == nil {
		return nil, nil, ErrNoCredential
	}

	// 4. セッションを発行
	session, err := s.createSession(ctx, resolved.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create session: %w", err)
	}

	if sessionUser != nil {
		if err := s.sessionRepo.DeleteByID(ctx, currentSessionID); err != nil {
			slog.Warn("failed to delete previous session",
				slog.String("user_id", resolved.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	return session, resolved, nil
}

// StartSession は指定ユーザーの新しいセッションを発行する。
// パスワードログインやメールアドレス登録の直後に使う。
func (s *Service) StartSession(ctx context.Context, userID string) (*model.Session, error) {
	if userID == "" {
		return nil, fmt.Errorf("user ID is required")
	}
	session, err := s.createSession(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	slog.Info("session started", slog.String("user_id", userID))
	return session, nil
}

// Logout はセッションを破棄する。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("user logged out")
	return nil
}

// GetCurrentUser はセッションから現在のユーザーを取得する。
func (s *Service) GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session ID is required")
	}

	user, err := s.findSessionUser(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("session not found or expired")
	}
	return user, nil
}

// findSessionUser はセッションの所有ユーザーを返す。
// セッションが期限切れ、またはユーザーが存在しない場合はnilを返す。
func (s *Service) findSessionUser(ctx context.Context, sessionID string) (*model.User, error) {
	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, nil
	}

	user, err := s.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, userID string) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := time.Now()
	session := &model.Session{
		ID:        sessionID,
		UserID:    userID,
		ExpiresAt: now.Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: now,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
