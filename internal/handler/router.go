package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/photoshelf/internal/mainloop"
	"github.com/hitoshi/photoshelf/internal/metrics"
	"github.com/hitoshi/photoshelf/internal/middleware"
	"github.com/hitoshi/photoshelf/internal/security"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	Sessions          middleware.SessionProvider
	SessionMaxAge     int
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// UI状態の変更を行う実行コンテキスト
	Executor mainloop.Executor

	// 画像
	Images ImageFetcher

	// 検索結果のキャプション整形
	Sanitizer security.TextSanitizer

	// メトリクス
	Metrics        metrics.MetricsCollector
	MetricsHandler http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging → RateLimit → Session
//
// /health と /metrics はセッションを持たない。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(logger))

	searchHandler := NewSearchHandler(deps.Sanitizer)
	imageHandler := NewImageHandler(deps.Images, logger)
	favHandler := NewFavoritesHandler(deps.Executor, deps.Metrics, deps.CORSAllowedOrigin)

	// --- セッション不要のルート ---
	r.Get("/health", Health)
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// レート制限はセッション発行より前に行う
	r.Group(func(r chi.Router) {
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.Middleware())
		}
		r.Use(middleware.NewSessionMiddleware(deps.Sessions, deps.SessionMaxAge))

		r.Get("/api/search", searchHandler.Search)
		r.Get("/api/photos", searchHandler.Photos)
		r.Get("/api/images", imageHandler.GetImage)

		r.Route("/api/favorites", func(r chi.Router) {
			r.Get("/", favHandler.List)
			r.Post("/", favHandler.Add)
			r.Get("/stream", favHandler.Stream)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", favHandler.Status)
				r.Delete("/", favHandler.Remove)
			})
		})
	})

	return r
}
