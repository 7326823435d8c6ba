// Package pexels は写真検索APIのクライアントを提供する。
package pexels

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/hitoshi/photoshelf/internal/metrics"
	"github.com/hitoshi/photoshelf/internal/model"
)

const (
	// DefaultEndpoint は写真検索APIのエンドポイント。
	DefaultEndpoint = "https://api.pexels.com/v1/search"
	// DefaultPageSize は1回の検索で取得する件数。
	DefaultPageSize = 30
)

// Searcher は検索語から写真一覧を取得するインターフェース。
type Searcher interface {
	Search(ctx context.Context, query string) ([]model.Photo, error)
}

// Client は写真検索APIのクライアント。
// APIキーはAuthorizationヘッダーで送信する。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	metrics    metrics.MetricsCollector
	apiKey     string
	endpoint   string // テスト用にエンドポイントを差し替え可能
	pageSize   int
}

// Option はClientの任意設定。
type Option func(*Client)

// WithEndpoint は検索エンドポイントを差し替える。
func WithEndpoint(endpoint string) Option {
	return func(c *Client) {
		c.endpoint = endpoint
	}
}

// WithPageSize は1回の検索で取得する件数を設定する。0以下は無視する。
func WithPageSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithMetrics はメトリクスコレクタを設定する。
func WithMetrics(m metrics.MetricsCollector) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(httpClient *http.Client, logger *slog.Logger, apiKey string, opts ...Option) *Client {
	c := &Client{
		httpClient: httpClient,
		logger:     logger,
		metrics:    metrics.Nop{},
		apiKey:     apiKey,
		endpoint:   DefaultEndpoint,
		pageSize:   DefaultPageSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search は検索語に一致する写真を取得する。
// 失敗時は表示用メッセージを持つ *model.APIError を返す:
//   - 403: "Failed with status code 403 (Forbidden)"
//   - 500: "Failed with status code 500 (Server Error)"
//   - その他の200以外: "Failed with status code N"
//   - デコード失敗: "Failed to decode response"
//   - 通信失敗: "Error: <下位エラー>"
//
// リトライは行わない。
func (c *Client) Search(ctx context.Context, query string) ([]model.Photo, error) {
	resp, err := c.SearchPage(ctx, query, 0)
	if err != nil {
		return nil, err
	}
	return resp.Photos, nil
}

// SearchPage は指定ページの検索結果をページング情報付きで取得する。
// 写真の各フィールドはデコードした値をそのまま返す。
// pageが0以下の場合はpageパラメータを送らない（API側の既定で1ページ目）。
func (c *Client) SearchPage(ctx context.Context, query string, page int) (*model.SearchResponse, error) {
	reqURL, err := url.Parse(c.endpoint)
	if err != nil || reqURL.Scheme == "" || reqURL.Host == "" {
		c.logger.Error("検索エンドポイントのURLが不正です",
			slog.String("endpoint", c.endpoint),
		)
		return nil, model.NewInvalidURLError()
	}

	q := reqURL.Query()
	q.Set("query", query)
	q.Set("per_page", strconv.Itoa(c.pageSize))
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	reqURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, model.NewInvalidURLError()
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("User-Agent", "Photoshelf/1.0")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.RecordSearchLatency(time.Since(start))
	if err != nil {
		c.metrics.RecordSearchFailure("transport")
		c.logger.Error("検索APIの呼び出しに失敗しました",
			slog.String("error", err.Error()),
			slog.String("query", query),
		)
		return nil, model.NewTransportError(err)
	}
	defer resp.Body.Close()

	c.metrics.RecordSearchStatus(resp.StatusCode)

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("検索APIがエラーステータスを返しました",
			slog.Int("http_status", resp.StatusCode),
			slog.String("query", query),
		)
		return nil, model.NewStatusError(resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.metrics.RecordSearchFailure("transport")
		c.logger.Error("レスポンスボディの読み取りに失敗しました",
			slog.String("error", err.Error()),
		)
		return nil, model.NewTransportError(err)
	}

	var result model.SearchResponse
	if err := json.Unmarshal(body, &result); err != nil {
		c.metrics.RecordSearchFailure("decode")
		c.logger.Error("検索APIのレスポンスのパースに失敗しました",
			slog.String("error", err.Error()),
		)
		return nil, model.NewDecodeFailedError()
	}

	if result.Photos == nil {
		result.Photos = []model.Photo{}
	}

	return &result, nil
}

// compile-time interface check
var _ Searcher = (*Client)(nil)
