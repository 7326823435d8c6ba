package handler

import (
	"net/http"
	"strings"

	"github.com/hitoshi/photoshelf/internal/model"
	"github.com/hitoshi/photoshelf/internal/photostore"
	"github.com/hitoshi/photoshelf/internal/security"
	"github.com/hitoshi/photoshelf/internal/session"
)

// SearchHandler は写真検索と検索状態のHTTPハンドラー。
type SearchHandler struct {
	sanitizer security.TextSanitizer
}

// NewSearchHandler はSearchHandlerを生成する。
// sanitizerがnilの場合、captionは付与しない。
func NewSearchHandler(sanitizer security.TextSanitizer) *SearchHandler {
	return &SearchHandler{sanitizer: sanitizer}
}

// searchResponse は検索状態のAPIレスポンス。
type searchResponse struct {
	Query        string      `json:"query"`
	Photos       []photoView `json:"photos"`
	ErrorMessage string      `json:"error_message"`
}

// photoView は写真に表示用のキャプションを添えたもの。
// 写真のフィールドは検索APIの値のまま返し、captionだけをプレーンテキストに整形する。
type photoView struct {
	model.Photo
	Caption string `json:"caption,omitempty"`
}

// Search はセッションの検索状態を更新し、その結果を返す。
// 検索APIの失敗はerror_messageとして返し、直前の写真一覧は保持する。
// GET /api/search?q=
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	s, ok := requireSession(w, r)
	if !ok {
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		handleError(w, model.NewInvalidQueryError())
		return
	}

	state, err := s.Photos.SearchPhotos(r.Context(), query)
	if err != nil {
		handleError(w, newUnavailableError())
		return
	}

	writeJSON(w, http.StatusOK, h.toSearchResponse(s, state))
}

// Photos はセッションの現在の検索状態を返す。
// GET /api/photos
func (h *SearchHandler) Photos(w http.ResponseWriter, r *http.Request) {
	s, ok := requireSession(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, h.toSearchResponse(s, s.Photos.Snapshot()))
}

// toSearchResponse は写真のlikedをお気に入り登録状態に合わせてレスポンスを組み立てる。
func (h *SearchHandler) toSearchResponse(s *session.Session, state photostore.State) searchResponse {
	photos := s.Favorites.MarkLiked(state.Photos)
	views := make([]photoView, len(photos))
	for i, p := range photos {
		views[i] = photoView{Photo: p}
		if h.sanitizer != nil {
			views[i].Caption = h.sanitizer.Sanitize(p.Alt)
		}
	}
	return searchResponse{
		Query:        state.Query,
		Photos:       views,
		ErrorMessage: state.ErrorMessage,
	}
}
