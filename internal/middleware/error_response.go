package middleware

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/accountlink/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
// Fieldは入力検証エラーのときだけ設定される。
type ErrorResponseBody struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
	Field    string `json:"field,omitempty"`
}

// statusByCode はエラーコードごとのHTTPステータス。未登録のコードは500。
var statusByCode = map[string]int{
	model.ErrCodeUserNotFound:       http.StatusNotFound,
	model.ErrCodeConnectionNotFound: http.StatusNotFound,
	model.ErrCodeUnknownProvider:    http.StatusNotFound,
	model.ErrCodeInvalidUser:        http.StatusUnprocessableEntity,
	model.ErrCodeInvalidCredential:  http.StatusBadRequest,
	model.ErrCodeEmailTaken:         http.StatusConflict,
	model.ErrCodeConnectionConflict: http.StatusConflict,
	model.ErrCodeLastConnection:     http.StatusConflict,
	model.ErrCodeForbidden:          http.StatusForbidden,
	model.ErrCodeCSRFInvalid:        http.StatusForbidden,
	model.ErrCodeUnauthorized:       http.StatusUnauthorized,
	model.ErrCodeRateLimited:        http.StatusTooManyRequests,
}

// StatusForError はAPIErrorのコードに対応するHTTPステータスを返す。
func StatusForError(apiErr *model.APIError) int {
	if status, ok := statusByCode[apiErr.Code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// WriteErrorResponse はステータスを明示して統一フォーマットのエラーを書き込む。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	body := ErrorResponseBody{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
		Field:    apiErr.Field,
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode error response", slog.String("code", apiErr.Code), slog.String("error", err.Error()))
	}
}

// WriteAPIError はerrがAPIErrorならコードに応じたステータスで返し、
// それ以外はログに残して500を返す。
func WriteAPIError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		WriteErrorResponse(w, StatusForError(apiErr), apiErr)
		return
	}
	slog.Error("internal server error", slog.String("error", err.Error()))
	WriteInternalServerError(w)
}

// WriteInternalServerError は詳細を含まない500レスポンスを書き込む。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, model.NewInternalError())
}
