package handler

import (
	"time"

	"github.com/hitoshi/accountlink/internal/model"
)

// userResponse はユーザー情報のAPIレスポンス。
// Emailは本人に対してのみ返す。
type userResponse struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	ImageURL     string  `json:"image_url"`
	Email        *string `json:"email,omitempty"`
	Passwordless bool    `json:"passwordless"`
	IsSelf       bool    `json:"is_self"`
}

func newUserResponse(u *model.User, viewerID string) userResponse {
	self := u.IsSelf(&model.User{ID: viewerID})
	resp := userResponse{
		ID:           u.ID,
		Name:         u.Name,
		ImageURL:     u.ImageURL,
		Passwordless: u.IsPasswordless(),
		IsSelf:       self,
	}
	if self {
		resp.Email = u.Email
	}
	return resp
}

// connectionResponse は連携情報のAPIレスポンス。トークンは含めない。
type connectionResponse struct {
	ID        string    `json:"id"`
	Provider  string    `json:"provider"`
	UID       string    `json:"uid"`
	Nickname  string    `json:"nickname"`
	Name      string    `json:"name"`
	ImageURL  string    `json:"image_url"`
	CreatedAt time.Time `json:"created_at"`
}

func newConnectionResponse(c *model.Connection) connectionResponse {
	return connectionResponse{
		ID:        c.ID,
		Provider:  c.Provider,
		UID:       c.UID,
		Nickname:  c.Nickname,
		Name:      c.Name,
		ImageURL:  c.ImageURL,
		CreatedAt: c.CreatedAt,
	}
}
