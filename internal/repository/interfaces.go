// Package repository はデータ永続化のインターフェースと各バックエンドの実装を提供する。
package repository

import (
	"context"

	"github.com/hitoshi/accountlink/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成する。
	// メールアドレスが重複する場合はEMAIL_TAKENのAPIErrorを返す。
	Create(ctx context.Context, user *model.User) error

	// CreateWithConnection はユーザーと最初の連携を同一トランザクションで作成する。
	// (provider, uid)が重複する場合はCONNECTION_CONFLICTのAPIErrorを返し、ユーザーも作成しない。
	CreateWithConnection(ctx context.Context, user *model.User, conn *model.Connection) error

	// DeleteByID は指定IDのユーザーを削除する。
	// 関連するconnections、sessionsはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error

	// Count は登録ユーザー数を返す。
	Count(ctx context.Context) (int, error)
}

// ConnectionRepository は外部IdPアカウント連携の永続化インターフェース。
type ConnectionRepository interface {
	// FindByProviderAndUID はproviderとuidで連携を検索する。見つからない場合はnilを返す。
	FindByProviderAndUID(ctx context.Context, provider, uid string) (*model.Connection, error)

	// FindByID は指定IDの連携を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Connection, error)

	// ListByUserID はユーザーの連携一覧を作成日時順で返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.Connection, error)

	// Create は連携を作成する。
	// (provider, uid)が重複する場合はCONNECTION_CONFLICTのAPIErrorを返す。
	Create(ctx context.Context, conn *model.Connection) error

	// DeleteByID は指定IDの連携を削除する。
	DeleteByID(ctx context.Context, id string) error

	// CountByUserID はユーザーの連携数を返す。
	CountByUserID(ctx context.Context, userID string) (int, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
	// DeleteExpired は期限切れセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}
