package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/hitoshi/photoshelf/internal/imagecache"
	"github.com/hitoshi/photoshelf/internal/model"
)

// maxThumbnailWidth はwパラメータで指定できる最大幅。
const maxThumbnailWidth = 4096

// ImageFetcher は画像キャッシュから画像を取得するインターフェース。
// imagecache.Cacheの部分集合として定義する。
type ImageFetcher interface {
	Fetch(ctx context.Context, rawURL string) (*imagecache.Image, bool)
}

// ImageHandler は画像キャッシュ経由で画像を配信するHTTPハンドラー。
type ImageHandler struct {
	images ImageFetcher
	logger *slog.Logger
}

// NewImageHandler はImageHandlerを生成する。
func NewImageHandler(images ImageFetcher, logger *slog.Logger) *ImageHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ImageHandler{images: images, logger: logger}
}

// GetImage はurlパラメータの画像を返す。wが指定された場合はその幅に縮小する。
// 取得できない画像は理由を問わず404 IMAGE_UNAVAILABLEを返す（クライアントはプレースホルダーを表示する）。
// GET /api/images?url=&w=
func (h *ImageHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	rawURL := r.URL.Query().Get("url")
	if rawURL == "" {
		handleError(w, newInvalidRequestError("urlパラメータが必要です。"))
		return
	}

	var width uint
	if v := r.URL.Query().Get("w"); v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil || n > maxThumbnailWidth {
			handleError(w, newInvalidRequestError("wパラメータが不正です。"))
			return
		}
		width = uint(n)
	}

	img, ok := h.images.Fetch(r.Context(), rawURL)
	if !ok {
		handleError(w, model.NewImageUnavailableError())
		return
	}

	data, contentType, err := imagecache.Thumbnail(img, width)
	if err != nil {
		h.logger.Warn("thumbnail generation failed",
			slog.String("url", rawURL),
			slog.String("error", err.Error()),
		)
		// 縮小できない場合は元画像を返す
		data, contentType = img.Data, img.ContentType()
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "private, max-age=86400")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
