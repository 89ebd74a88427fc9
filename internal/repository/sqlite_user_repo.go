package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/accountlink/internal/model"
)

// SQLiteUserRepo はSQLiteを使用したユーザーリポジトリ。
// 単一ノード構成とテストで使用する。
type SQLiteUserRepo struct {
	db *sql.DB
}

// NewSQLiteUserRepo はSQLiteUserRepoを生成する。
func NewSQLiteUserRepo(db *sql.DB) *SQLiteUserRepo {
	return &SQLiteUserRepo{db: db}
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *SQLiteUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`,
		id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}
	return user, nil
}

// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
func (r *SQLiteUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`,
		email,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	return user, nil
}

// Create はユーザーを作成する。
func (r *SQLiteUserRepo) Create(ctx context.Context, user *model.User) error {
	return insertSQLiteUser(ctx, r.db, user)
}

// CreateWithConnection はユーザーと最初の連携を同一トランザクションで作成する。
func (r *SQLiteUserRepo) CreateWithConnection(ctx context.Context, user *model.User, conn *model.Connection) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertSQLiteUser(ctx, tx, user); err != nil {
		return err
	}
	if err := insertSQLiteConnection(ctx, tx, conn); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// DeleteByID は指定IDのユーザーを削除する。
// 外部キー制約が有効な接続では関連するconnections、sessionsもCASCADE削除される。
func (r *SQLiteUserRepo) DeleteByID(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return model.NewUserNotFoundError()
	}
	return nil
}

// Count は登録ユーザー数を返す。
func (r *SQLiteUserRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return n, nil
}

// SQLiteは時刻を文字列で比較するため、保存時はUTCに揃える。
func insertSQLiteUser(ctx context.Context, ex execer, user *model.User) error {
	_, err := ex.ExecContext(ctx,
		`INSERT INTO users (id, name, image_url, email, password_digest, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.Name, user.ImageURL, user.Email, user.PasswordDigest,
		user.CreatedAt.UTC(), user.UpdatedAt.UTC(),
	)
	if isUniqueViolation(err) {
		return model.NewEmailTakenError()
	}
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// compile-time interface check
var _ UserRepository = (*SQLiteUserRepo)(nil)
