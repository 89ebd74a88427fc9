// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, account, system
	Action   string // ユーザー向け対処方法
	Field    string // 検証エラーの対象フィールド（任意）
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
	ErrCodeInvalidUser        = "INVALID_USER"
	ErrCodeEmailTaken         = "EMAIL_TAKEN"
	ErrCodeInvalidCredential  = "INVALID_CREDENTIAL"
	ErrCodeConnectionConflict = "CONNECTION_CONFLICT"
	ErrCodeConnectionNotFound = "CONNECTION_NOT_FOUND"
	ErrCodeLastConnection     = "LAST_CONNECTION"
	ErrCodeUnknownProvider    = "UNKNOWN_PROVIDER"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeRateLimited        = "RATE_LIMIT_EXCEEDED"
	ErrCodeCSRFInvalid        = "CSRF_INVALID"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

// IsCode はerrのチェーン中にcodeを持つAPIErrorが含まれるかを返す。
func IsCode(err error, code string) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == code
	}
	return false
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewInvalidUserError はユーザー作成時の検証エラーを生成する。
func NewInvalidUserError(field, reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidUser,
		Message:  fmt.Sprintf("ユーザー情報が不正です: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認してください。",
		Field:    field,
	}
}

// NewEmailTakenError はメールアドレスが既に使用されている場合のエラーを生成する。
func NewEmailTakenError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailTaken,
		Message:  "このメールアドレスは既に登録されています。",
		Category: "account",
		Action:   "別のメールアドレスを使用するか、ログインしてください。",
		Field:    "email",
	}
}

// NewInvalidCredentialError はOAuthコールバックのペイロードが不正な場合のエラーを生成する。
func NewInvalidCredentialError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredential,
		Message:  fmt.Sprintf("認証情報が不正です: %s", reason),
		Category: "auth",
		Action:   "もう一度ログインしてください。",
	}
}

// NewConnectionConflictError は(provider, uid)が既に紐付け済みの場合のエラーを生成する。
func NewConnectionConflictError(provider, uid string) *APIError {
	return &APIError{
		Code:     ErrCodeConnectionConflict,
		Message:  fmt.Sprintf("この%sアカウントは既に紐付けられています: %s", provider, uid),
		Category: "account",
		Action:   "紐付け済みのアカウントでログインしてください。",
	}
}

// NewConnectionNotFoundError は連携が見つからない場合のエラーを生成する。
func NewConnectionNotFoundError(connectionID string) *APIError {
	return &APIError{
		Code:     ErrCodeConnectionNotFound,
		Message:  fmt.Sprintf("指定された連携が見つかりません: %s", connectionID),
		Category: "account",
		Action:   "連携IDを確認してください。",
	}
}

// NewLastConnectionError はパスワードを持たないユーザーの最後の連携を解除しようとした場合のエラーを生成する。
func NewLastConnectionError() *APIError {
	return &APIError{
		Code:     ErrCodeLastConnection,
		Message:  "最後の連携は解除できません。",
		Category: "account",
		Action:   "別のプロバイダーを連携してから解除してください。",
	}
}

// NewUnknownProviderError は未登録のOAuthプロバイダーが指定された場合のエラーを生成する。
func NewUnknownProviderError(provider string) *APIError {
	return &APIError{
		Code:     ErrCodeUnknownProvider,
		Message:  fmt.Sprintf("未対応のプロバイダーです: %s", provider),
		Category: "auth",
		Action:   "対応しているプロバイダーを選択してください。",
	}
}

// NewForbiddenError は他ユーザーのリソースを操作しようとした場合のエラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "この操作は許可されていません。",
		Category: "auth",
		Action:   "自分のアカウントに対してのみ操作できます。",
	}
}

// NewUnauthorizedError は未認証のリクエストに対するエラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewRateLimitedError はレート制限超過のエラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewCSRFInvalidError はCSRFトークンの検証に失敗した場合のエラーを生成する。
func NewCSRFInvalidError() *APIError {
	return &APIError{
		Code:     ErrCodeCSRFInvalid,
		Message:  "CSRFトークンの検証に失敗しました。",
		Category: "auth",
		Action:   "ページを再読み込みしてから再度お試しください。",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログにのみ記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
