// Package imagecache はURLから画像を取得し、プロセスの生存期間中メモリに保持する。
// 1つのURLにつきネットワーク取得は成功するまで行い、成功後はキャッシュから返す。
package imagecache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"

	// 標準デコーダ（jpeg/png/gif）に加えてwebp/bmp/tiffを登録する
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Image はデコード可能であることを確認済みの画像データ。
type Image struct {
	URL    string
	Data   []byte
	Format string // image.DecodeConfig が返す形式名（jpeg, png, gif, webp, bmp, tiff）
	Width  int
	Height int
}

// Pixels は画像の画素数（幅×高さ）を返す。
func (img *Image) Pixels() int64 {
	return int64(img.Width) * int64(img.Height)
}

// ContentType は画像形式に対応するMIMEタイプを返す。
func (img *Image) ContentType() string {
	switch img.Format {
	case "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	case "bmp":
		return "image/bmp"
	case "tiff":
		return "image/tiff"
	default:
		return "application/octet-stream"
	}
}

// 画像取得の失敗理由。Fetchの呼び出し元には区別せず「画像なし」として扱い、
// メトリクスとログにのみ使う。
var (
	errStatus   = errors.New("unexpected status")
	errTooLarge = errors.New("image too large")
	errTooMany  = errors.New("image has too many pixels")
	errDecode   = errors.New("not a decodable image")
)

// Loader はURLから画像を1回取得するインターフェース。
type Loader interface {
	Load(ctx context.Context, rawURL string) (*Image, error)
}

// LoaderFunc は関数をLoaderとして扱うためのアダプタ。
type LoaderFunc func(ctx context.Context, rawURL string) (*Image, error)

// Load はf(ctx, rawURL)を呼ぶ。
func (f LoaderFunc) Load(ctx context.Context, rawURL string) (*Image, error) {
	return f(ctx, rawURL)
}

// HTTPLoader はHTTP GETで画像を取得し、画像としてデコードできるかを検証する。
type HTTPLoader struct {
	client    *http.Client
	maxSize   int64
	maxPixels int64
}

// NewHTTPLoader はHTTPLoaderを生成する。
// maxSizeはボディのバイト数、maxPixelsは幅×高さの上限で、0以下の場合は制限しない。
func NewHTTPLoader(client *http.Client, maxSize, maxPixels int64) *HTTPLoader {
	return &HTTPLoader{
		client:    client,
		maxSize:   maxSize,
		maxPixels: maxPixels,
	}
}

// Load は画像を取得する。2xx以外のステータス、サイズ超過、画素数超過、デコード不能はエラーを返す。
func (l *HTTPLoader) Load(ctx context.Context, rawURL string) (*Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %d", errStatus, resp.StatusCode)
	}

	var body io.Reader = resp.Body
	if l.maxSize > 0 {
		body = io.LimitReader(resp.Body, l.maxSize+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}
	if l.maxSize > 0 && int64(len(data)) > l.maxSize {
		return nil, fmt.Errorf("%w: %d bytes", errTooLarge, len(data))
	}

	img, err := decode(rawURL, data)
	if err != nil {
		return nil, err
	}
	if l.maxPixels > 0 && img.Pixels() > l.maxPixels {
		return nil, fmt.Errorf("%w: %dx%d", errTooMany, img.Width, img.Height)
	}
	return img, nil
}

// decode は画像のヘッダーをデコードし、形式と寸法を埋めたImageを返す。
func decode(rawURL string, data []byte) (*Image, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errDecode, err)
	}
	return &Image{
		URL:    rawURL,
		Data:   data,
		Format: format,
		Width:  cfg.Width,
		Height: cfg.Height,
	}, nil
}

// failureReason はメトリクス用に失敗理由を分類する。
func failureReason(err error) string {
	switch {
	case errors.Is(err, errStatus):
		return "status"
	case errors.Is(err, errTooLarge), errors.Is(err, errTooMany):
		return "too_large"
	case errors.Is(err, errDecode):
		return "decode"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "network"
	}
}
