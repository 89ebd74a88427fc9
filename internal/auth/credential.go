package auth

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/accountlink/internal/model"
	"github.com/hitoshi/accountlink/internal/user"
)

// Credential はOAuthコールバックで受け取る外部IdPの認証情報を表す。
// JSONのフィールド名はIdPから受け取るペイロードの形式に合わせている。
type Credential struct {
	Provider    string          `json:"provider"`
	UID         string          `json:"uid"`
	Info        CredentialInfo  `json:"info"`
	Credentials CredentialToken `json:"credentials"`
}

// CredentialInfo はIdPが返すプロフィール情報。
type CredentialInfo struct {
	Nickname string `json:"nickname"`
	Name     string `json:"name"`
	Image    string `json:"image"`
}

// CredentialToken はIdPが発行したトークン。
type CredentialToken struct {
	Token  string `json:"token"`
	Secret string `json:"secret"`
}

// ParseCredential はJSONペイロードをCredentialに変換する。
// 空のペイロードおよびnullはnilを返す。
func ParseCredential(data []byte) (*Credential, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	var cred Credential
	if err := json.Unmarshal(trimmed, &cred); err != nil {
		return nil, fmt.Errorf("failed to decode credential: %w", err)
	}
	return &cred, nil
}

// Validate はproviderとuidが揃っているかを検証する。
func (c *Credential) Validate() error {
	if strings.TrimSpace(c.Provider) == "" {
		return model.NewInvalidCredentialError("providerが空です")
	}
	if strings.TrimSpace(c.UID) == "" {
		return model.NewInvalidCredentialError("uidが空です")
	}
	return nil
}

// profile はOAuth登録用のプロフィールを組み立てる。名前が空ならnicknameを使う。
func (c *Credential) profile() user.Profile {
	name := c.Info.Name
	if name == "" {
		name = c.Info.Nickname
	}
	return user.Profile{
		Name:     name,
		ImageURL: c.Info.Image,
	}
}

// newConnection はcredから連携を組み立てる。sanitizerがあればキャッシュする
// プロフィール項目をユーザーと同じ規則で無害化する。
func (c *Credential) newConnection(userID string, now time.Time, sanitizer user.ProfileSanitizer) *model.Connection {
	nickname, name, image := c.Info.Nickname, c.Info.Name, c.Info.Image
	if sanitizer != nil {
		nickname = sanitizer.SanitizeName(nickname)
		name = sanitizer.SanitizeName(name)
		image = sanitizer.SanitizeImageURL(image)
	}
	return &model.Connection{
		ID:        uuid.New().String(),
		UserID:    userID,
		Provider:  c.Provider,
		UID:       c.UID,
		Nickname:  nickname,
		Name:      name,
		ImageURL:  image,
		Token:     c.Credentials.Token,
		Secret:    c.Credentials.Secret,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
