package repository

import (
	"github.com/hitoshi/accountlink/internal/model"
)

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

const userColumns = `id, name, image_url, email, password_digest, created_at, updated_at`

const connectionColumns = `id, user_id, provider, uid, nickname, name, image_url, token, secret, created_at, updated_at`

func scanUser(row rowScanner) (*model.User, error) {
	u := &model.User{}
	if err := row.Scan(&u.ID, &u.Name, &u.ImageURL, &u.Email, &u.PasswordDigest, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return u, nil
}

func scanConnection(row rowScanner) (*model.Connection, error) {
	c := &model.Connection{}
	err := row.Scan(
		&c.ID, &c.UserID, &c.Provider, &c.UID,
		&c.Nickname, &c.Name, &c.ImageURL,
		&c.Token, &c.Secret,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}
