package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/hitoshi/photoshelf/internal/mainloop"
	"github.com/hitoshi/photoshelf/internal/metrics"
	"github.com/hitoshi/photoshelf/internal/model"
)

// maxPhotoBodySize はPOST /api/favorites のリクエストボディの上限。
const maxPhotoBodySize = 64 * 1024

// FavoritesHandler はお気に入り管理のHTTPハンドラー。
// お気に入りの変更はexecutor上で行い、投入した変更はクライアントが切断しても完了させる。
type FavoritesHandler struct {
	exec     mainloop.Executor
	metrics  metrics.MetricsCollector
	upgrader *websocket.Upgrader
}

// NewFavoritesHandler はFavoritesHandlerを生成する。
// allowedOriginは変更配信のWebSocket接続を許可するオリジン。
func NewFavoritesHandler(exec mainloop.Executor, collector metrics.MetricsCollector, allowedOrigin string) *FavoritesHandler {
	if exec == nil {
		exec = mainloop.Inline{}
	}
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &FavoritesHandler{
		exec:     exec,
		metrics:  collector,
		upgrader: newUpgrader(allowedOrigin),
	}
}

// favoritesResponse はお気に入り一覧のAPIレスポンス。
type favoritesResponse struct {
	Photos []model.Photo `json:"photos"`
}

// favoriteStatusResponse は1枚の写真のお気に入り状態のAPIレスポンス。
type favoriteStatusResponse struct {
	ID       int  `json:"id"`
	Favorite bool `json:"favorite"`
	Changed  bool `json:"changed,omitempty"`
}

// List はお気に入りを登録順に返す。
// GET /api/favorites
func (h *FavoritesHandler) List(w http.ResponseWriter, r *http.Request) {
	s, ok := requireSession(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, favoritesResponse{Photos: markAllLiked(s.Favorites.List())})
}

// Add は写真をお気に入りに追加する。既に登録済みの場合は何もせず200を返す。
// POST /api/favorites
func (h *FavoritesHandler) Add(w http.ResponseWriter, r *http.Request) {
	s, ok := requireSession(w, r)
	if !ok {
		return
	}

	var photo model.Photo
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxPhotoBodySize)).Decode(&photo); err != nil {
		handleError(w, model.NewInvalidPhotoError("リクエストボディの解析に失敗しました。"))
		return
	}
	if photo.ID <= 0 {
		handleError(w, model.NewInvalidPhotoError("idは正の整数である必要があります。"))
		return
	}
	photo.Liked = true

	var added bool
	if err := h.exec.Do(context.WithoutCancel(r.Context()), func() { added = s.Favorites.Add(photo) }); err != nil {
		handleError(w, newUnavailableError())
		return
	}

	status := http.StatusOK
	if added {
		h.metrics.RecordFavoritesChange("add")
		status = http.StatusCreated
	}
	writeJSON(w, status, favoriteStatusResponse{ID: photo.ID, Favorite: true, Changed: added})
}

// Status は写真がお気に入りに登録されているかを返す。
// GET /api/favorites/{id}
func (h *FavoritesHandler) Status(w http.ResponseWriter, r *http.Request) {
	s, ok := requireSession(w, r)
	if !ok {
		return
	}

	id, ok := parsePhotoID(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, favoriteStatusResponse{ID: id, Favorite: s.Favorites.ContainsID(id)})
}

// Remove は写真をお気に入りから外す。登録されていない場合は何もせず200を返す。
// DELETE /api/favorites/{id}
func (h *FavoritesHandler) Remove(w http.ResponseWriter, r *http.Request) {
	s, ok := requireSession(w, r)
	if !ok {
		return
	}

	id, ok := parsePhotoID(w, r)
	if !ok {
		return
	}

	var removed bool
	if err := h.exec.Do(context.WithoutCancel(r.Context()), func() { removed = s.Favorites.RemoveByID(id) }); err != nil {
		handleError(w, newUnavailableError())
		return
	}

	if removed {
		h.metrics.RecordFavoritesChange("remove")
	}
	writeJSON(w, http.StatusOK, favoriteStatusResponse{ID: id, Favorite: false, Changed: removed})
}

func parsePhotoID(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		handleError(w, model.NewInvalidPhotoIDError(raw))
		return 0, false
	}
	return id, true
}

// markAllLiked はお気に入り一覧の写真をすべてliked=trueにする。
func markAllLiked(photos []model.Photo) []model.Photo {
	for i := range photos {
		photos[i].Liked = true
	}
	return photos
}
