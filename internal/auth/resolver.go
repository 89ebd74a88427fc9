package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/accountlink/internal/metrics"
	"github.com/hitoshi/accountlink/internal/model"
	"github.com/hitoshi/accountlink/internal/repository"
	"github.com/hitoshi/accountlink/internal/user"
)

// 解決結果。メトリクスのラベルとして使用する。
const (
	OutcomeLinked   = "linked"   // ログイン中ユーザーに既に紐付け済み
	OutcomeAttached = "attached" // ログイン中ユーザーに新しく紐付けた
	OutcomeExisting = "existing" // 既存の連携からユーザーを特定した
	OutcomeCreated  = "created"  // ユーザーと連携を新規作成した
	OutcomeConflict = "conflict" // (provider, uid)が他ユーザーに紐付け済み
)

// Resolver はOAuthコールバックの認証情報から認証対象のユーザーを決定する。
type Resolver struct {
	userRepo repository.UserRepository
	connRepo repository.ConnectionRepository
	factory   user.Factory
	sanitizer user.ProfileSanitizer
	metrics   metrics.MetricsCollector
	now       func() time.Time
}

// NewResolver はResolverを生成する。mcはnilでもよい。
func NewResolver(
	userRepo repository.UserRepository,
	connRepo repository.ConnectionRepository,
	factory user.Factory,
	mc metrics.MetricsCollector,
) *Resolver {
	return &Resolver{
		userRepo: userRepo,
		connRepo: connRepo,
		factory:  factory,
		metrics:  mc,
		now:      time.Now,
	}
}

// WithSanitizer は連携にキャッシュするプロフィール項目の無害化に使うsanitizerを設定する。
func (r *Resolver) WithSanitizer(sanitizer user.ProfileSanitizer) *Resolver {
	r.sanitizer = sanitizer
	return r
}

// Authenticate はcredとログイン中のユーザーから認証対象のユーザーを返す。
//
//   - credがnilの場合は何も読み書きせずnilを返す。
//   - sessionUserがいる場合は、未連携なら連携を追加してsessionUserを返す。
//   - sessionUserがいない場合は、連携済みならその所有者を返し、
//     未連携ならパスワードなしのユーザーと最初の連携を作成して返す。
//
// (provider, uid)の一意制約違反はCONNECTION_CONFLICTとして返し、再試行しない。
func (r *Resolver) Authenticate(ctx context.Context, cred *Credential, sessionUser *model.User) (*model.User, error) {
	if cred == nil {
		return nil, nil
	}
	if err := cred.Validate(); err != nil {
		return nil, err
	}

	var (
		resolved *model.User
		outcome  string
		err      error
	)
	if sessionUser != nil {
		resolved, outcome, err = r.attach(ctx, cred, sessionUser)
	} else {
		resolved, outcome, err = r.findOrCreate(ctx, cred)
	}

	if model.IsCode(err, model.ErrCodeConnectionConflict) {
		outcome = OutcomeConflict
		slog.Warn("connection already linked to another user",
			slog.String("provider", cred.Provider),
			slog.String("uid", cred.UID),
		)
	}
	if outcome != "" && r.metrics != nil {
		r.metrics.RecordAuthOutcome(outcome)
	}
	if err != nil {
		return nil, err
	}

	slog.Info("identity resolved",
		slog.String("user_id", resolved.ID),
		slog.String("provider", cred.Provider),
		slog.String("outcome", outcome),
	)
	return resolved, nil
}

// attach はログイン中のユーザーに連携を追加する。既に紐付け済みの場合は何もしない。
func (r *Resolver) attach(ctx context.Context, cred *Credential, sessionUser *model.User) (*model.User, string, error) {
	conns, err := r.connRepo.ListByUserID(ctx, sessionUser.ID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to list connections: %w", err)
	}
	for _, c := range conns {
		if c.Matches(cred.Provider, cred.UID) {
			return sessionUser, OutcomeLinked, nil
		}
	}

	conn := cred.newConnection(sessionUser.ID, r.now(), r.sanitizer)
	if err := r.connRepo.Create(ctx, conn); err != nil {
		return nil, "", err
	}
	return sessionUser, OutcomeAttached, nil
}

// findOrCreate は連携からユーザーを特定し、見つからなければ新規作成する。
func (r *Resolver) findOrCreate(ctx context.Context, cred *Credential) (*model.User, string, error) {
	conn, err := r.connRepo.FindByProviderAndUID(ctx, cred.Provider, cred.UID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to find connection: %w", err)
	}

	if conn != nil {
		owner, err := r.userRepo.FindByID(ctx, conn.UserID)
		if err != nil {
			return nil, "", fmt.Errorf("failed to find user: %w", err)
		}
		if owner == nil {
			return nil, "", model.NewUserNotFoundError()
		}
		return owner, OutcomeExisting, nil
	}

	newUser, err := r.factory.New(cred.profile(), user.OAuthSignup)
	if err != nil {
		return nil, "", err
	}
	if err := r.userRepo.CreateWithConnection(ctx, newUser, cred.newConnection(newUser.ID, newUser.CreatedAt, r.sanitizer)); err != nil {
		return nil, "", err
	}
	if r.metrics != nil {
		r.metrics.RecordSignup(user.OAuthSignup.String())
	}
	return newUser, OutcomeCreated, nil
}
