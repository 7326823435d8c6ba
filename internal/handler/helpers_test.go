package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/photoshelf/internal/favorites"
	"github.com/hitoshi/photoshelf/internal/imagecache"
	"github.com/hitoshi/photoshelf/internal/mainloop"
	"github.com/hitoshi/photoshelf/internal/middleware"
	"github.com/hitoshi/photoshelf/internal/model"
	"github.com/hitoshi/photoshelf/internal/photostore"
	"github.com/hitoshi/photoshelf/internal/session"
)

// --- モック定義 ---

// mockSearcher はpexels.Searcherのモック実装。
type mockSearcher struct {
	searchFn func(ctx context.Context, query string) ([]model.Photo, error)
}

func (m *mockSearcher) Search(ctx context.Context, query string) ([]model.Photo, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, query)
	}
	return []model.Photo{}, nil
}

// mockImageFetcher はImageFetcherのモック実装。
type mockImageFetcher struct {
	fetchFn func(ctx context.Context, rawURL string) (*imagecache.Image, bool)
}

func (m *mockImageFetcher) Fetch(ctx context.Context, rawURL string) (*imagecache.Image, bool) {
	if m.fetchFn != nil {
		return m.fetchFn(ctx, rawURL)
	}
	return nil, false
}

// fixedSessions は常に同じセッションを返すSessionProvider。
type fixedSessions struct {
	s *session.Session
}

func (f *fixedSessions) GetOrCreate(id string) (*session.Session, bool) {
	return f.s, id != f.s.ID
}

// stoppedExecutor はDoが常に失敗するExecutor。
type stoppedExecutor struct{}

func (stoppedExecutor) Post(fn func()) bool { return false }

func (stoppedExecutor) Do(ctx context.Context, fn func()) error { return mainloop.ErrStopped }

// --- ヘルパー ---

func newTestSession(searcher *mockSearcher) *session.Session {
	if searcher == nil {
		searcher = &mockSearcher{}
	}
	return &session.Session{
		ID:        "sess-1",
		Favorites: favorites.NewStore(),
		Photos:    photostore.NewStore(searcher, mainloop.Inline{}),
	}
}

func withSession(r *http.Request, s *session.Session) *http.Request {
	return r.WithContext(middleware.ContextWithSession(r.Context(), s))
}

func samplePhoto(id int) model.Photo {
	return model.Photo{
		ID:           id,
		Width:        4000,
		Height:       3000,
		URL:          fmt.Sprintf("https://www.pexels.com/photo/%d/", id),
		Photographer: "Photographer",
		Src: model.PhotoSource{
			Medium: "https://images.example.com/medium.jpeg",
			Tiny:   "https://images.example.com/tiny.jpeg",
		},
	}
}

func newDiscardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response: %v\nraw: %s", err, w.Body.String())
	}
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) middleware.ErrorResponseBody {
	t.Helper()
	var body middleware.ErrorResponseBody
	decodeBody(t, w, &body)
	return body
}
