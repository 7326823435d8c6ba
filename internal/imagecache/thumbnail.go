package imagecache

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	"github.com/nfnt/resize"
)

const (
	// thumbnailJPEGQuality はサムネイルをJPEGで再エンコードする際の品質。
	thumbnailJPEGQuality = 85
	// MaxThumbnailSourcePixels は縮小のためにデコードする元画像の画素数の上限。
	MaxThumbnailSourcePixels = 40_000_000
)

// ErrSourceTooLarge は元画像の画素数が縮小の上限を超えている場合のエラー。
var ErrSourceTooLarge = errors.New("thumbnail source has too many pixels")

// Thumbnail は幅widthに縮小した画像データとMIMEタイプを返す。
// widthが0、または元画像の幅以上の場合は元データをそのまま返す。
// 透過を持ちうる形式（png, gif, webp）はPNG、それ以外はJPEGで再エンコードする。
// 元画像の画素数がMaxThumbnailSourcePixelsを超える場合はデコードせずErrSourceTooLargeを返す。
func Thumbnail(img *Image, width uint) ([]byte, string, error) {
	if width == 0 || int(width) >= img.Width {
		return img.Data, img.ContentType(), nil
	}
	if img.Pixels() > MaxThumbnailSourcePixels {
		return nil, "", fmt.Errorf("%w: %dx%d", ErrSourceTooLarge, img.Width, img.Height)
	}

	src, _, err := image.Decode(bytes.NewReader(img.Data))
	if err != nil {
		return nil, "", fmt.Errorf("画像のデコードに失敗しました: %w", err)
	}

	// 高さ0で縦横比を維持する
	dst := resize.Resize(width, 0, src, resize.Lanczos3)

	var buf bytes.Buffer
	switch img.Format {
	case "png", "gif", "webp":
		if err := png.Encode(&buf, dst); err != nil {
			return nil, "", fmt.Errorf("PNGエンコードに失敗しました: %w", err)
		}
		return buf.Bytes(), "image/png", nil
	default:
		if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: thumbnailJPEGQuality}); err != nil {
			return nil, "", fmt.Errorf("JPEGエンコードに失敗しました: %w", err)
		}
		return buf.Bytes(), "image/jpeg", nil
	}
}
