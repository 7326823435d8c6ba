// Package app はアプリケーションの初期化と起動モードごとの実行を提供する。
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/photoshelf/internal/config"
	"github.com/hitoshi/photoshelf/internal/handler"
	"github.com/hitoshi/photoshelf/internal/imagecache"
	"github.com/hitoshi/photoshelf/internal/logger"
	"github.com/hitoshi/photoshelf/internal/mainloop"
	"github.com/hitoshi/photoshelf/internal/metrics"
	"github.com/hitoshi/photoshelf/internal/middleware"
	"github.com/hitoshi/photoshelf/internal/model"
	"github.com/hitoshi/photoshelf/internal/pexels"
	"github.com/hitoshi/photoshelf/internal/security"
	"github.com/hitoshi/photoshelf/internal/session"
)

const (
	// mainLoopQueueSize はUI状態を更新するタスクキューの長さ。
	mainLoopQueueSize = 256
	// sessionCleanupInterval は期限切れセッションを掃除する間隔。
	sessionCleanupInterval = 5 * time.Minute
	// shutdownTimeout はグレースフルシャットダウンの待ち時間。
	shutdownTimeout = 30 * time.Second
)

// Init はアプリケーションの初期化を行う。
// JSON構造化ログをセットアップしてから、環境変数からConfigを読み込む。
// logWriterが指定された場合はログ出力先としてそのwriterを使用する。
func Init(logWriter io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(logWriter, os.Getenv("LOG_LEVEL"))

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。searchの結果はstdoutに、ログはserveではstdout、それ以外ではstderrに出力する。
func Run(stdout, stderr io.Writer, args []string) error {
	cmd, rest := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	logWriter := stdout
	if cmd != CommandServe {
		logWriter = stderr
	}

	cfg, err := Init(logWriter)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
	)

	switch cmd {
	case CommandSearch:
		return runSearch(context.Background(), cfg, stdout, searchQuery(rest))
	default:
		return runServe(cfg)
	}
}

// services はserveモードで組み立てた依存関係を保持する。
type services struct {
	loop     *mainloop.Loop
	sessions *session.Manager
	limiter  *middleware.RateLimiter
	cache    *imagecache.Cache
	registry *prometheus.Registry
	handler  http.Handler
}

// newServices は全依存関係をワイヤリングし、メインループを起動する。
func newServices(ctx context.Context, cfg *config.Config, log *slog.Logger) (*services, error) {
	// 1. メトリクス
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	// 2. UI状態を所有するメインループ
	loop := mainloop.New(mainLoopQueueSize)
	loop.Start(ctx)

	// 3. セキュリティサービス
	guard := newURLGuard(cfg)
	sanitizer := security.NewTextSanitizer()

	// 4. 画像キャッシュ
	cache, err := imagecache.New(
		imagecache.NewHTTPLoader(guard.NewClient(cfg.ImageFetchTimeout), cfg.ImageMaxSize, cfg.ImageMaxPixels),
		guard, loop, collector, log,
		imagecache.Config{
			MaxEntries: cfg.ImageCacheMaxEntries,
			Coalesce:   cfg.ImageFetchCoalesce,
		},
	)
	if err != nil {
		loop.Stop()
		return nil, fmt.Errorf("failed to create image cache: %w", err)
	}

	// 5. 検索クライアント
	searcher := newSearchClient(cfg, log, collector)

	// 6. セッション
	sessions := session.NewManager(searcher, loop, log, session.Config{
		MaxIdle:         time.Duration(cfg.SessionMaxAge) * time.Second,
		CleanupInterval: sessionCleanupInterval,
	})

	// 7. ルーター
	limiter := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig(cfg.RateLimitGeneral), log)
	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            log,
		Sessions:          sessions,
		SessionMaxAge:     cfg.SessionMaxAge,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       limiter,
		Executor:          loop,
		Images:            cache,
		Sanitizer:         sanitizer,
		Metrics:           collector,
		MetricsHandler:    metrics.Handler(registry),
	})

	return &services{
		loop:     loop,
		sessions: sessions,
		limiter:  limiter,
		cache:    cache,
		registry: registry,
		handler:  router,
	}, nil
}

// close はバックグラウンド処理を停止する。
func (s *services) close() {
	s.limiter.Stop()
	s.sessions.Stop()
	s.loop.Stop()
}

// newURLGuard は画像取得に使うURLガードを返す。
// IMAGE_ALLOW_PRIVATEが有効な場合はプライベートアドレスへの接続を許可する（ローカル開発用）。
func newURLGuard(cfg *config.Config) security.URLGuard {
	if cfg.ImageAllowPrivateHost {
		slog.Warn("private image hosts are allowed; SSRF protection is disabled")
		return security.NewPermissiveGuard()
	}
	return security.NewSSRFGuard()
}

// newSearchClient は設定から検索クライアントを生成する。
func newSearchClient(cfg *config.Config, log *slog.Logger, collector metrics.MetricsCollector) *pexels.Client {
	return pexels.NewClient(
		&http.Client{Timeout: cfg.SearchTimeout},
		log,
		cfg.APIKey,
		pexels.WithEndpoint(cfg.SearchEndpoint),
		pexels.WithPageSize(cfg.SearchPageSize),
		pexels.WithMetrics(collector),
	)
}

// runServe はAPIサーバーモードで起動する。
// 全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// メインループはシャットダウン中のリクエストも処理するため、シグナルとは独立に止める
	svc, err := newServices(context.Background(), cfg, slog.Default())
	if err != nil {
		return err
	}
	defer svc.close()

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      svc.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.SearchTimeout + cfg.ImageFetchTimeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// searchOutput はsearchサブコマンドの出力。
type searchOutput struct {
	Query  string        `json:"query"`
	Photos []model.Photo `json:"photos"`
}

// runSearch は1回だけ検索し、結果をJSONでwに書き出す。
func runSearch(ctx context.Context, cfg *config.Config, w io.Writer, query string) error {
	if query == "" {
		return fmt.Errorf("usage: photoshelf search <query>")
	}

	client := newSearchClient(cfg, slog.Default(), metrics.Nop{})
	photos, err := client.Search(ctx, query)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(searchOutput{Query: query, Photos: photos})
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}
