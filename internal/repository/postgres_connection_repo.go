package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/accountlink/internal/model"
)

// PostgresConnectionRepo はPostgreSQLを使用した連携リポジトリ。
type PostgresConnectionRepo struct {
	db *sql.DB
}

// NewPostgresConnectionRepo はPostgresConnectionRepoを生成する。
func NewPostgresConnectionRepo(db *sql.DB) *PostgresConnectionRepo {
	return &PostgresConnectionRepo{db: db}
}

// FindByProviderAndUID はproviderとuidで連携を検索する。見つからない場合はnilを返す。
func (r *PostgresConnectionRepo) FindByProviderAndUID(ctx context.Context, provider, uid string) (*model.Connection, error) {
	conn, err := scanConnection(r.db.QueryRowContext(ctx,
		`SELECT `+connectionColumns+`
		 FROM connections
		 WHERE provider = $1 AND uid = $2`,
		provider, uid,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find connection: %w", err)
	}
	return conn, nil
}

// FindByID は指定IDの連携を取得する。見つからない場合はnilを返す。
func (r *PostgresConnectionRepo) FindByID(ctx context.Context, id string) (*model.Connection, error) {
	conn, err := scanConnection(r.db.QueryRowContext(ctx,
		`SELECT `+connectionColumns+` FROM connections WHERE id = $1`,
		id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find connection by ID: %w", err)
	}
	return conn, nil
}

// ListByUserID はユーザーの連携一覧を作成日時順で返す。
func (r *PostgresConnectionRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Connection, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+connectionColumns+`
		 FROM connections
		 WHERE user_id = $1
		 ORDER BY created_at, id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", err)
	}
	defer rows.Close()

	var conns []*model.Connection
	for rows.Next() {
		conn, err := scanConnection(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan connection: %w", err)
		}
		conns = append(conns, conn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate connections: %w", err)
	}
	return conns, nil
}

// Create は連携を作成する。
func (r *PostgresConnectionRepo) Create(ctx context.Context, conn *model.Connection) error {
	return insertPostgresConnection(ctx, r.db, conn)
}

// DeleteByID は指定IDの連携を削除する。
func (r *PostgresConnectionRepo) DeleteByID(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM connections WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete connection: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return model.NewConnectionNotFoundError(id)
	}
	return nil
}

// CountByUserID はユーザーの連携数を返す。
func (r *PostgresConnectionRepo) CountByUserID(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM connections WHERE user_id = $1`,
		userID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count connections: %w", err)
	}
	return n, nil
}

func insertPostgresConnection(ctx context.Context, ex execer, conn *model.Connection) error {
	_, err := ex.ExecContext(ctx,
		`INSERT INTO connections (id, user_id, provider, uid, nickname, name, image_url, token, secret, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		conn.ID, conn.UserID, conn.Provider, conn.UID,
		conn.Nickname, conn.Name, conn.ImageURL,
		conn.Token, conn.Secret,
		conn.CreatedAt, conn.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return model.NewConnectionConflictError(conn.Provider, conn.UID)
	}
	if err != nil {
		return fmt.Errorf("failed to insert connection: %w", err)
	}
	return nil
}

// compile-time interface check
var _ ConnectionRepository = (*PostgresConnectionRepo)(nil)
