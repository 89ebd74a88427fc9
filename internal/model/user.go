// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// OAuth経由で作成されたユーザーはEmailとPasswordDigestを持たない。
type User struct {
	ID             string
	Name           string
	ImageURL       string
	Email          *string
	PasswordDigest *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsSelf はotherが自分自身（同一ID）かどうかを返す。
// プロフィール編集など自分自身に対する操作の可否判定に使用する。
func (u *User) IsSelf(other *User) bool {
	if u == nil || other == nil {
		return false
	}
	return u.ID == other.ID
}

// IsPasswordless はメールアドレスとパスワードのどちらも持たないユーザーかを返す。
func (u *User) IsPasswordless() bool {
	return u.Email == nil && u.PasswordDigest == nil
}

// Connection は外部IdPアカウントとユーザーの紐付けを表す。
// (Provider, UID) の組はシステム全体で一意。
type Connection struct {
	ID       string
	UserID   string
	Provider string
	UID      string

	// プロバイダーから取得したプロフィールのキャッシュ
	Nickname string
	Name     string
	ImageURL string

	// OAuthトークンのキャッシュ
	Token  string
	Secret string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Matches はConnectionが指定のproviderとuidに一致するかを返す。
func (c *Connection) Matches(provider, uid string) bool {
	return c.Provider == provider && c.UID == uid
}

// Session はユーザーのログインセッションを表す。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}
