package security

import (
	"html"
	"log/slog"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ProfileSanitizer はプロバイダーやサインアップフォームから受け取った
// プロフィール項目を保存可能な形に整える。
type ProfileSanitizer struct {
	policy *bluemonday.Policy
}

// NewProfileSanitizer はProfileSanitizerを生成する。
// 表示名にはタグを一切許可しないStrictPolicyを使用する。
func NewProfileSanitizer() *ProfileSanitizer {
	return &ProfileSanitizer{policy: bluemonday.StrictPolicy()}
}

// SanitizeName は表示名からHTMLタグを除去し、前後の空白を取り除く。
// エンティティは元の文字に戻して保存する（出力時にエスケープされる）。
func (s *ProfileSanitizer) SanitizeName(name string) string {
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(name)))
}

// SanitizeImageURL はCheckImageURLを通過しない画像URLを空文字に置き換える。
func (s *ProfileSanitizer) SanitizeImageURL(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return ""
	}
	if err := CheckImageURL(rawURL); err != nil {
		slog.Warn("プロフィール画像URLを破棄しました",
			slog.String("image_url", rawURL),
			slog.String("reason", err.Error()),
		)
		return ""
	}
	return rawURL
}
