package user

import (
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/accountlink/internal/model"
)

// SignupPolicy はユーザー作成時に適用する検証ルールを表す。
type SignupPolicy int

const (
	// StrictSignup はメールアドレスとパスワードを必須とする直接登録のルール。
	StrictSignup SignupPolicy = iota
	// OAuthSignup はメールアドレスとパスワードを省略できるOAuth経由の登録ルール。
	OAuthSignup
)

// String はメトリクスのラベルやログに使用する名前を返す。
func (p SignupPolicy) String() string {
	switch p {
	case StrictSignup:
		return "strict"
	case OAuthSignup:
		return "oauth"
	default:
		return "unknown"
	}
}

// パスワード長の制約（バイト数）。上限はbcryptの入力上限。
const (
	MinPasswordLength = 8
	MaxPasswordLength = 72
)

// Profile はユーザー作成の入力。
type Profile struct {
	Name     string
	ImageURL string
	Email    string
	Password string
}

// Factory はProfileとSignupPolicyからユーザーを組み立てるインターフェース。
// 永続化は行わない。検証エラーはINVALID_USERのAPIErrorとして返す。
type Factory interface {
	New(profile Profile, policy SignupPolicy) (*model.User, error)
}

// ProfileSanitizer はプロフィール項目の無害化を行うインターフェース。
type ProfileSanitizer interface {
	SanitizeName(name string) string
	SanitizeImageURL(rawURL string) string
}

// DefaultFactory はFactoryの標準実装。
type DefaultFactory struct {
	hasher    PasswordHasher
	sanitizer ProfileSanitizer
	newID     func() string
	now       func() time.Time
}

// NewFactory はDefaultFactoryを生成する。sanitizerがnilの場合は入力をそのまま使用する。
func NewFactory(hasher PasswordHasher, sanitizer ProfileSanitizer) *DefaultFactory {
	return &DefaultFactory{
		hasher:    hasher,
		sanitizer: sanitizer,
		newID:     uuid.NewString,
		now:       time.Now,
	}
}

// New はpolicyに従ってprofileを検証し、未保存のユーザーを返す。
// OAuthSignupでもメールアドレスやパスワードが与えられた場合は同じ検証を行う。
func (f *DefaultFactory) New(profile Profile, policy SignupPolicy) (*model.User, error) {
	email := strings.TrimSpace(profile.Email)
	password := profile.Password

	if policy == StrictSignup {
		if email == "" {
			return nil, model.NewInvalidUserError("email", "メールアドレスは必須です")
		}
		if password == "" {
			return nil, model.NewInvalidUserError("password", "パスワードは必須です")
		}
	}

	name := profile.Name
	imageURL := profile.ImageURL
	if f.sanitizer != nil {
		name = f.sanitizer.SanitizeName(name)
		imageURL = f.sanitizer.SanitizeImageURL(imageURL)
	}

	now := f.now()
	user := &model.User{
		ID:        f.newID(),
		Name:      name,
		ImageURL:  imageURL,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if email != "" {
		if err := validateEmail(email); err != nil {
			return nil, err
		}
		normalized := strings.ToLower(email)
		user.Email = &normalized
	}

	if password != "" {
		if len(password) < MinPasswordLength || len(password) > MaxPasswordLength {
			return nil, model.NewInvalidUserError("password", "パスワードは8〜72バイトで入力してください")
		}
		digest, err := f.hasher.Hash(password)
		if err != nil {
			return nil, err
		}
		user.PasswordDigest = &digest
	}

	return user, nil
}

func validateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return model.NewInvalidUserError("email", "メールアドレスの形式が正しくありません")
	}
	return nil
}

var _ Factory = (*DefaultFactory)(nil)
