package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

const (
	defaultGoogleUserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"
	defaultGitHubUserInfoURL = "https://api.github.com/user"

	// userinfoレスポンスの最大サイズ
	maxUserInfoBytes = 1 << 20
)

// ProviderConfig はOAuth2プロバイダーの設定。
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// テスト用にオーバーライド可能なURL
	AuthURL     string
	TokenURL    string
	UserInfoURL string

	// トークン交換とuserinfo取得に使うHTTPクライアント。nilの場合はhttp.DefaultClient。
	HTTPClient *http.Client
}

// profileMapper はuserinfoレスポンスからuidとプロフィールを取り出す。
type profileMapper func(body []byte) (string, CredentialInfo, error)

// OAuth2Provider はOAuth 2.0認可コードフローによる認証を提供する。
type OAuth2Provider struct {
	name        string
	config      *oauth2.Config
	userInfoURL string
	httpClient  *http.Client
	mapProfile  profileMapper
	authOptions []oauth2.AuthCodeOption
}

func newOAuth2Provider(name string, cfg ProviderConfig, endpoint oauth2.Endpoint, scopes []string, userInfoURL string, mapper profileMapper) *OAuth2Provider {
	if cfg.AuthURL != "" {
		endpoint.AuthURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}
	if cfg.UserInfoURL != "" {
		userInfoURL = cfg.UserInfoURL
	}
	return &OAuth2Provider{
		name: name,
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     endpoint,
			Scopes:       scopes,
		},
		userInfoURL: userInfoURL,
		httpClient:  cfg.HTTPClient,
		mapProfile:  mapper,
	}
}

// NewGoogleProvider はGoogle OAuth 2.0プロバイダーを生成する。
// スコープにはopenid, email, profileを含む。
func NewGoogleProvider(cfg ProviderConfig) *OAuth2Provider {
	p := newOAuth2Provider("google", cfg, endpoints.Google,
		[]string{"openid", "email", "profile"}, defaultGoogleUserInfoURL, mapGoogleProfile)
	p.authOptions = []oauth2.AuthCodeOption{oauth2.AccessTypeOffline}
	return p
}

// NewGitHubProvider はGitHub OAuthプロバイダーを生成する。
func NewGitHubProvider(cfg ProviderConfig) *OAuth2Provider {
	p := newOAuth2Provider("github", cfg, endpoints.GitHub,
		[]string{"read:user"}, defaultGitHubUserInfoURL, mapGitHubProfile)
	p.authOptions = []oauth2.AuthCodeOption{oauth2.AccessTypeOnline}
	return p
}

// Name はプロバイダー名を返す。
func (p *OAuth2Provider) Name() string {
	return p.name
}

// GetLoginURL はOAuthの認証URLを生成する。
func (p *OAuth2Provider) GetLoginURL(state string) string {
	return p.config.AuthCodeURL(state, p.authOptions...)
}

// ExchangeCode は認可コードをアクセストークンに交換し、ユーザー情報を取得する。
// アクセストークンはCredentials.Token、リフレッシュトークンはCredentials.Secretに格納する。
func (p *OAuth2Provider) ExchangeCode(ctx context.Context, code string) (*Credential, error) {
	if p.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	}

	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange token: %w", err)
	}

	body, err := p.fetchUserInfo(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user info: %w", err)
	}

	uid, info, err := p.mapProfile(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse user info response: %w", err)
	}

	return &Credential{
		Provider: p.name,
		UID:      uid,
		Info:     info,
		Credentials: CredentialToken{
			Token:  token.AccessToken,
			Secret: token.RefreshToken,
		},
	}, nil
}

// fetchUserInfo はアクセストークン付きでuserinfoエンドポイントを呼び出す。
func (p *OAuth2Provider) fetchUserInfo(ctx context.Context, token *oauth2.Token) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create user info request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.config.Client(ctx, token).Do(req)
	if err != nil {
		return nil, fmt.Errorf("user info request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxUserInfoBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read user info response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("user info fetch failed with status %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

// googleUserInfo はGoogleのユーザー情報エンドポイントのレスポンス。
type googleUserInfo struct {
	Sub       string `json:"sub"`
	Name      string `json:"name"`
	GivenName string `json:"given_name"`
	Picture   string `json:"picture"`
}

func mapGoogleProfile(body []byte) (string, CredentialInfo, error) {
	var info googleUserInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return "", CredentialInfo{}, err
	}
	if info.Sub == "" {
		return "", CredentialInfo{}, fmt.Errorf("empty sub in user info response")
	}
	return info.Sub, CredentialInfo{
		Nickname: info.GivenName,
		Name:     info.Name,
		Image:    info.Picture,
	}, nil
}

// githubUserInfo はGitHubの/userエンドポイントのレスポンス。
type githubUserInfo struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
}

func mapGitHubProfile(body []byte) (string, CredentialInfo, error) {
	var info githubUserInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return "", CredentialInfo{}, err
	}
	if info.ID == 0 {
		return "", CredentialInfo{}, fmt.Errorf("empty id in user info response")
	}
	return strconv.FormatInt(info.ID, 10), CredentialInfo{
		Nickname: info.Login,
		Name:     info.Name,
		Image:    info.AvatarURL,
	}, nil
}

// compile-time interface check
var _ OAuthProvider = (*OAuth2Provider)(nil)
