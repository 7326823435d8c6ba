// Package handler はHTTP APIのハンドラーとルーティングを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/photoshelf/internal/middleware"
	"github.com/hitoshi/photoshelf/internal/model"
	"github.com/hitoshi/photoshelf/internal/session"
)

// writeJSON はステータスコードとJSONボディを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Warn("failed to encode response", slog.String("error", err.Error()))
	}
}

// handleError はエラーを適切なHTTPステータスコードの統一エラーレスポンスに変換する。
func handleError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeInvalidQuery, model.ErrCodeInvalidPhoto, model.ErrCodeInvalidPhotoID,
		model.ErrCodeInvalidURL, errCodeInvalidRequest:
		return http.StatusBadRequest
	case model.ErrCodeImageUnavailable:
		return http.StatusNotFound
	case model.ErrCodeForbidden, model.ErrCodeServerError, model.ErrCodeSearchFailed,
		model.ErrCodeDecodeFailed, model.ErrCodeTransportFailed:
		return http.StatusBadGateway
	case errCodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

const (
	errCodeInvalidRequest = "INVALID_REQUEST"
	errCodeUnavailable    = "SERVICE_UNAVAILABLE"
	errCodeNoSession      = "SESSION_REQUIRED"
)

func newInvalidRequestError(message string) *model.APIError {
	return &model.APIError{
		Code:     errCodeInvalidRequest,
		Message:  message,
		Category: "validation",
		Action:   "リクエストパラメータを確認してください。",
	}
}

// newUnavailableError はUI状態を更新できない（停止中など）場合のエラーを生成する。
func newUnavailableError() *model.APIError {
	return &model.APIError{
		Code:     errCodeUnavailable,
		Message:  "サーバーが停止処理中です。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// requireSession はリクエストのセッションを返す。
// 無い場合はエラーレスポンスを書き込みfalseを返す。
func requireSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	s, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, &model.APIError{
			Code:     errCodeNoSession,
			Message:  "セッションがありません。",
			Category: "system",
			Action:   "Cookieを有効にして再度お試しください。",
		})
		return nil, false
	}
	return s, true
}
