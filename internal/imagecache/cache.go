package imagecache

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/hitoshi/photoshelf/internal/mainloop"
	"github.com/hitoshi/photoshelf/internal/metrics"
)

// URLValidator はネットワークアクセス前にURLを検証するインターフェース。
// security.URLGuard の部分集合として定義する。
type URLValidator interface {
	ValidateURL(rawURL string) error
}

// Config はCacheの動作設定。
type Config struct {
	// MaxEntries はキャッシュの最大エントリ数。0以下なら上限なし（削除しない）。
	MaxEntries int
	// Coalesce がtrueの場合、同じURLへの同時取得を1回のネットワーク取得にまとめる。
	// falseの場合は同時取得がそれぞれネットワークにアクセスし、後から完了した結果で上書きされる。
	Coalesce bool
}

// Cache はURLから画像へのメモ化レイヤー。
// キャッシュへの追加はexecutor（UI状態を所有する実行コンテキスト）上で行い、
// ネットワーク取得は呼び出し元のgoroutineで行う。
type Cache struct {
	loader    Loader
	validator URLValidator
	exec      mainloop.Executor
	metrics   metrics.MetricsCollector
	logger    *slog.Logger

	store    entryStore
	coalesce bool
	group    singleflight.Group
}

// New はCacheを生成する。validatorがnilの場合はhttp(s)のURLとして解釈できるかのみを検証する。
// execがnilの場合は呼び出し元のgoroutineでキャッシュに追加する。
func New(loader Loader, validator URLValidator, exec mainloop.Executor, collector metrics.MetricsCollector, logger *slog.Logger, cfg Config) (*Cache, error) {
	if loader == nil {
		return nil, fmt.Errorf("imagecache: loader is required")
	}
	if exec == nil {
		exec = mainloop.Inline{}
	}
	if collector == nil {
		collector = metrics.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	var store entryStore = newMapStore()
	if cfg.MaxEntries > 0 {
		s, err := newLRUStore(cfg.MaxEntries)
		if err != nil {
			return nil, fmt.Errorf("imagecache: failed to create LRU store: %w", err)
		}
		store = s
	}

	return &Cache{
		loader:    loader,
		validator: validator,
		exec:      exec,
		metrics:   collector,
		logger:    logger,
		store:     store,
		coalesce:  cfg.Coalesce,
	}, nil
}

// Fetch はURLに対応する画像を返す。
//   - URLを解釈できない場合はネットワークにアクセスせず (nil, false) を返す。
//   - キャッシュ済みの場合はネットワークにアクセスせずキャッシュから返す。
//   - それ以外は1回GETし、成功した場合はキャッシュに追加して返す。
//
// 失敗の理由（通信失敗・ステータス異常・デコード不能）は区別せず (nil, false) を返す。
// 取得は呼び出し元のキャンセルで中断しない。完了した結果はキャッシュに残る。
// executorのタスク内から呼んではならない。
func (c *Cache) Fetch(ctx context.Context, rawURL string) (*Image, bool) {
	if err := c.validate(rawURL); err != nil {
		c.logger.Debug("画像URLが不正なため取得しません",
			slog.String("url", rawURL),
			slog.String("error", err.Error()),
		)
		return nil, false
	}

	if img, ok := c.store.Get(rawURL); ok {
		c.metrics.RecordImageCacheHit()
		return img, true
	}

	// 呼び出し元が去っても取得は完了させ、結果をキャッシュする
	ctx = context.WithoutCancel(ctx)

	var (
		img *Image
		err error
	)
	if c.coalesce {
		var v any
		v, err, _ = c.group.Do(rawURL, func() (any, error) {
			// 先行する取得が直前に完了している場合がある
			if cached, ok := c.store.Get(rawURL); ok {
				c.metrics.RecordImageCacheHit()
				return cached, nil
			}
			return c.fetchAndStore(ctx, rawURL)
		})
		if err == nil {
			img = v.(*Image)
		}
	} else {
		img, err = c.fetchAndStore(ctx, rawURL)
	}

	if err != nil {
		return nil, false
	}
	return img, true
}

// Load はFetchをバックグラウンドで実行し、結果をexecutor上でdeliverに渡す。
// 呼び出し元はブロックしない。executorが停止している場合、結果は破棄される。
func (c *Cache) Load(ctx context.Context, rawURL string, deliver func(img *Image, ok bool)) {
	go func() {
		img, ok := c.Fetch(ctx, rawURL)
		if !c.exec.Post(func() { deliver(img, ok) }) {
			c.logger.Debug("executorが停止しているため画像の受け渡しを破棄しました",
				slog.String("url", rawURL),
			)
		}
	}()
}

// Len はキャッシュのエントリ数を返す。
func (c *Cache) Len() int {
	return c.store.Len()
}

// fetchAndStore はネットワークから取得し、成功した場合にキャッシュへ追加する。
func (c *Cache) fetchAndStore(ctx context.Context, rawURL string) (*Image, error) {
	c.metrics.RecordImageCacheMiss()

	start := time.Now()
	img, err := c.loader.Load(ctx, rawURL)
	c.metrics.RecordImageFetchLatency(time.Since(start))
	if err != nil {
		reason := failureReason(err)
		c.metrics.RecordImageFetchFailure(reason)
		c.logger.Warn("画像の取得に失敗しました",
			slog.String("url", rawURL),
			slog.String("reason", reason),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	var entries int
	if err := c.exec.Do(ctx, func() {
		c.store.Add(rawURL, img)
		entries = c.store.Len()
	}); err != nil {
		// 停止中はキャッシュせず、取得結果だけを返す
		c.logger.Debug("executorが停止しているためキャッシュに追加しませんでした",
			slog.String("url", rawURL),
			slog.String("error", err.Error()),
		)
		return img, nil
	}
	c.metrics.RecordImageCacheEntries(entries)

	return img, nil
}

// validate はURLを検証する。
func (c *Cache) validate(rawURL string) error {
	if c.validator != nil {
		return c.validator.ValidateURL(rawURL)
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return err
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("URL must be absolute: %q", rawURL)
	}
	return nil
}
