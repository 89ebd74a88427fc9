// Package user はユーザー登録・連携管理・退会のドメインロジックを提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hitoshi/accountlink/internal/metrics"
	"github.com/hitoshi/accountlink/internal/model"
	"github.com/hitoshi/accountlink/internal/repository"
)

// Service はユーザー管理のサービス層。
type Service struct {
	userRepo    repository.UserRepository
	connRepo    repository.ConnectionRepository
	sessionRepo repository.SessionRepository
	factory     Factory
	hasher      PasswordHasher
	metrics     metrics.MetricsCollector
}

// NewService はServiceの新しいインスタンスを生成する。
// sessionRepoとmcはnilでもよい。
func NewService(
	userRepo repository.UserRepository,
	connRepo repository.ConnectionRepository,
	sessionRepo repository.SessionRepository,
	factory Factory,
	hasher PasswordHasher,
	mc metrics.MetricsCollector,
) *Service {
	return &Service{
		userRepo:    userRepo,
		connRepo:    connRepo,
		sessionRepo: sessionRepo,
		factory:     factory,
		hasher:      hasher,
		metrics:     mc,
	}
}

// Signup はメールアドレスとパスワードによる直接登録を行う。
// StrictSignupで検証し、検証エラー時は何も保存しない。
func (s *Service) Signup(ctx context.Context, profile Profile) (*model.User, error) {
	user, err := s.factory.New(profile, StrictSignup)
	if err != nil {
		return nil, err
	}

	existing, err := s.userRepo.FindByEmail(ctx, *user.Email)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの検索に失敗しました: %w", err)
	}
	if existing != nil {
		return nil, model.NewEmailTakenError()
	}

	// FindByEmailとCreateの間に登録された場合はCreateがEMAIL_TAKENを返す
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordSignup(StrictSignup.String())
	}
	slog.Info("ユーザーを登録しました",
		slog.String("user_id", user.ID),
		slog.String("policy", StrictSignup.String()),
	)

	return user, nil
}

// VerifyPassword はメールアドレスとパスワードでユーザーを認証する。
// ユーザーが存在しない場合とパスワードが一致しない場合は区別せずINVALID_CREDENTIALを返す。
func (s *Service) VerifyPassword(ctx context.Context, email, password string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, model.NewInvalidCredentialError("メールアドレスとパスワードは必須です")
	}

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの検索に失敗しました: %w", err)
	}
	if user == nil || user.PasswordDigest == nil || !s.hasher.Compare(*user.PasswordDigest, password) {
		return nil, model.NewInvalidCredentialError("メールアドレスまたはパスワードが違います")
	}
	return user, nil
}

// Profile は指定ユーザーを取得する。存在しない場合はUSER_NOT_FOUNDを返す。
func (s *Service) Profile(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

// Connections はユーザーの連携一覧を返す。
func (s *Service) Connections(ctx context.Context, userID string) ([]*model.Connection, error) {
	conns, err := s.connRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("連携一覧の取得に失敗しました: %w", err)
	}
	return conns, nil
}

// Disconnect はユーザー自身の連携を解除する。
// 他ユーザーの連携は解除できない。パスワードを持たないユーザーの最後の連携は
// ログイン手段がなくなるため解除できない。
func (s *Service) Disconnect(ctx context.Context, userID, connectionID string) error {
	user, err := s.Profile(ctx, userID)
	if err != nil {
		return err
	}

	conn, err := s.connRepo.FindByID(ctx, connectionID)
	if err != nil {
		return fmt.Errorf("連携の取得に失敗しました: %w", err)
	}
	if conn == nil {
		return model.NewConnectionNotFoundError(connectionID)
	}

	owner := &model.User{ID: conn.UserID}
	if !user.IsSelf(owner) {
		return model.NewForbiddenError()
	}

	if user.IsPasswordless() {
		count, err := s.connRepo.CountByUserID(ctx, userID)
		if err != nil {
			return fmt.Errorf("連携数の取得に失敗しました: %w", err)
		}
		if count <= 1 {
			return model.NewLastConnectionError()
		}
	}

	if err := s.connRepo.DeleteByID(ctx, connectionID); err != nil {
		return err
	}

	slog.Info("連携を解除しました",
		slog.String("user_id", userID),
		slog.String("provider", conn.Provider),
	)
	return nil
}

// Withdraw はユーザーの退会処理を実行する。
// 削除順序: sessions → user（+ CASCADE: connections）
func (s *Service) Withdraw(ctx context.Context, userID string) error {
	if _, err := s.Profile(ctx, userID); err != nil {
		return err
	}

	slog.Info("退会処理を開始します",
		slog.String("user_id", userID),
	)

	// Redisセッションストアは外部キーでCASCADEされないため明示的に削除する
	if s.sessionRepo != nil {
		if err := s.sessionRepo.DeleteByUserID(ctx, userID); err != nil {
			return fmt.Errorf("セッションの削除に失敗しました: %w", err)
		}
	}

	if err := s.userRepo.DeleteByID(ctx, userID); err != nil {
		return fmt.Errorf("ユーザーの削除に失敗しました: %w", err)
	}

	slog.Info("退会処理が完了しました",
		slog.String("user_id", userID),
	)

	return nil
}
