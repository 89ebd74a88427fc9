package auth

import (
	"context"
	"sort"

	"github.com/hitoshi/accountlink/internal/model"
)

// OAuthProvider は外部IdPによるOAuth認証プロバイダーのインターフェース。
type OAuthProvider interface {
	// Name はプロバイダー名（"google", "github" 等）を返す。Credential.Providerに使われる。
	Name() string
	// GetLoginURL はOAuth認証URLを生成する。
	GetLoginURL(state string) string
	// ExchangeCode は認可コードをトークンに交換し、認証情報を取得する。
	ExchangeCode(ctx context.Context, code string) (*Credential, error)
}

// Registry は名前で引けるOAuthプロバイダーの集合。
type Registry struct {
	providers map[string]OAuthProvider
}

// NewRegistry は指定されたプロバイダーを登録したRegistryを生成する。
// 同名のプロバイダーは後に指定したものが優先される。
func NewRegistry(list ...OAuthProvider) *Registry {
	providers := make(map[string]OAuthProvider, len(list))
	for _, p := range list {
		providers[p.Name()] = p
	}
	return &Registry{providers: providers}
}

// Get は指定名のプロバイダーを返す。未登録の場合はUNKNOWN_PROVIDERを返す。
func (r *Registry) Get(name string) (OAuthProvider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, model.NewUnknownProviderError(name)
	}
	return p, nil
}

// Names は登録済みのプロバイダー名を昇順で返す。
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
