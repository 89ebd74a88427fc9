package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/accountlink/internal/model"
)

// SQLSessionRepo はdatabase/sqlでセッションを保存するリポジトリ。
// PostgreSQLとSQLiteの違いはプレースホルダーの書式だけなので実装を共有する。
// 有効期限の比較にはDBの時計ではなくアプリケーション側の時刻を使う。
type SQLSessionRepo struct {
	db      *sql.DB
	now     func() time.Time
	queries sessionQueries
}

type sessionQueries struct {
	create        string
	findByID      string
	deleteByID    string
	deleteByUser  string
	deleteExpired string
}

// NewPostgresSessionRepo はPostgreSQL用のSQLSessionRepoを生成する。
func NewPostgresSessionRepo(db *sql.DB) *SQLSessionRepo {
	return newSQLSessionRepo(db, dollarPlaceholders)
}

// NewSQLiteSessionRepo はSQLite用のSQLSessionRepoを生成する。
func NewSQLiteSessionRepo(db *sql.DB) *SQLSessionRepo {
	return newSQLSessionRepo(db, questionPlaceholders)
}

func newSQLSessionRepo(db *sql.DB, rebind func(string) string) *SQLSessionRepo {
	return &SQLSessionRepo{
		db:  db,
		now: time.Now,
		queries: sessionQueries{
			create:        rebind(`INSERT INTO sessions (id, user_id, expires_at, created_at) VALUES (?, ?, ?, ?)`),
			findByID:      rebind(`SELECT id, user_id, expires_at, created_at FROM sessions WHERE id = ? AND expires_at > ?`),
			deleteByID:    rebind(`DELETE FROM sessions WHERE id = ?`),
			deleteByUser:  rebind(`DELETE FROM sessions WHERE user_id = ?`),
			deleteExpired: rebind(`DELETE FROM sessions WHERE expires_at <= ?`),
		},
	}
}

func questionPlaceholders(query string) string { return query }

// dollarPlaceholders は?を出現順に$1, $2, ...へ置き換える。
func dollarPlaceholders(query string) string {
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r != '?' {
			b.WriteRune(r)
			continue
		}
		n++
		b.WriteByte('$')
		b.WriteString(strconv.Itoa(n))
	}
	return b.String()
}

// Create はセッションを作成する。
func (r *SQLSessionRepo) Create(ctx context.Context, session *model.Session) error {
	_, err := r.db.ExecContext(ctx, r.queries.create,
		session.ID, session.UserID, session.ExpiresAt.UTC(), session.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
func (r *SQLSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	session := &model.Session{}
	err := r.db.QueryRowContext(ctx, r.queries.findByID, id, r.now().UTC()).
		Scan(&session.ID, &session.UserID, &session.ExpiresAt, &session.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	return session, nil
}

// DeleteByID は指定IDのセッションを削除する。
func (r *SQLSessionRepo) DeleteByID(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, r.queries.deleteByID, id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteByUserID は指定ユーザーの全セッションを削除する。
func (r *SQLSessionRepo) DeleteByUserID(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx, r.queries.deleteByUser, userID); err != nil {
		return fmt.Errorf("failed to delete user sessions: %w", err)
	}
	return nil
}

// DeleteExpired は期限切れセッションを削除し、削除件数を返す。
func (r *SQLSessionRepo) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, r.queries.deleteExpired, r.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

var _ SessionRepository = (*SQLSessionRepo)(nil)
