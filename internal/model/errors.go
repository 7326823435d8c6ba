// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, search, image, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidURL       = "INVALID_URL"
	ErrCodeInvalidQuery     = "INVALID_QUERY"
	ErrCodeForbidden        = "SEARCH_FORBIDDEN"
	ErrCodeServerError      = "SEARCH_SERVER_ERROR"
	ErrCodeSearchFailed     = "SEARCH_FAILED"
	ErrCodeDecodeFailed     = "DECODE_FAILED"
	ErrCodeTransportFailed  = "TRANSPORT_FAILED"
	ErrCodeImageUnavailable = "IMAGE_UNAVAILABLE"
	ErrCodeInvalidPhoto     = "INVALID_PHOTO"
	ErrCodeInvalidPhotoID   = "INVALID_PHOTO_ID"
)

// NewInvalidURLError は検索URLを組み立てられなかった場合のエラーを生成する。
func NewInvalidURLError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidURL,
		Message:  "Invalid URL",
		Category: "validation",
		Action:   "検索エンドポイントの設定を確認してください。",
	}
}

// NewInvalidQueryError は検索語が空の場合のエラーを生成する。
func NewInvalidQueryError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidQuery,
		Message:  "検索語を入力してください。",
		Category: "validation",
		Action:   "qパラメータに検索語を指定してください。",
	}
}

// NewStatusError は検索APIが200以外のステータスを返した場合のエラーを生成する。
// 403と500は固定メッセージ、それ以外はステータスコードのみを含む。
func NewStatusError(statusCode int) *APIError {
	switch statusCode {
	case 403:
		return &APIError{
			Code:     ErrCodeForbidden,
			Message:  "Failed with status code 403 (Forbidden)",
			Category: "search",
			Action:   "APIキーが有効か確認してください。",
		}
	case 500:
		return &APIError{
			Code:     ErrCodeServerError,
			Message:  "Failed with status code 500 (Server Error)",
			Category: "search",
			Action:   "しばらく待ってから再度お試しください。",
		}
	default:
		return &APIError{
			Code:     ErrCodeSearchFailed,
			Message:  fmt.Sprintf("Failed with status code %d", statusCode),
			Category: "search",
			Action:   "しばらく待ってから再度お試しください。",
		}
	}
}

// NewDecodeFailedError はレスポンスのデコードに失敗した場合のエラーを生成する。
func NewDecodeFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeDecodeFailed,
		Message:  "Failed to decode response",
		Category: "search",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewTransportError は通信そのものが失敗した場合のエラーを生成する。
// メッセージには下位のエラー内容をそのまま含める。
func NewTransportError(err error) *APIError {
	return &APIError{
		Code:     ErrCodeTransportFailed,
		Message:  fmt.Sprintf("Error: %s", err.Error()),
		Category: "search",
		Action:   "ネットワーク接続を確認してください。",
	}
}

// NewImageUnavailableError は画像を取得できなかった場合のエラーを生成する。
// 未検出・通信失敗・不正な画像データを区別しない。
func NewImageUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodeImageUnavailable,
		Message:  "画像を取得できませんでした。",
		Category: "image",
		Action:   "プレースホルダーを表示してください。",
	}
}

// NewInvalidPhotoError はお気に入り登録のリクエストボディが不正な場合のエラーを生成する。
func NewInvalidPhotoError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidPhoto,
		Message:  fmt.Sprintf("写真データが不正です: %s", reason),
		Category: "validation",
		Action:   "検索結果の写真データをそのまま送信してください。",
	}
}

// NewInvalidPhotoIDError は写真IDが数値でない場合のエラーを生成する。
func NewInvalidPhotoIDError(id string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidPhotoID,
		Message:  fmt.Sprintf("無効な写真IDです: %s", id),
		Category: "validation",
		Action:   "数値の写真IDを指定してください。",
	}
}
