package pexels

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/photoshelf/internal/model"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

const onePhotoBody = `{
	"page": 1,
	"per_page": 30,
	"total_results": 1,
	"photos": [{
		"id": 3573351,
		"width": 3066,
		"height": 3968,
		"url": "https://www.pexels.com/photo/3573351/",
		"photographer": "Lukas Rodriguez",
		"photographer_url": "https://www.pexels.com/@lukas-rodriguez-1845331",
		"photographer_id": 1845331,
		"avg_color": "#374824",
		"src": {
			"original": "https://images.pexels.com/photos/3573351/pexels-photo-3573351.png",
			"large2x": "https://images.pexels.com/photos/3573351/pexels-photo-3573351.png?w=940&h=650&dpr=2",
			"large": "https://images.pexels.com/photos/3573351/pexels-photo-3573351.png?h=650&w=940",
			"medium": "https://images.pexels.com/photos/3573351/pexels-photo-3573351.png?h=350",
			"small": "https://images.pexels.com/photos/3573351/pexels-photo-3573351.png?h=130",
			"portrait": "https://images.pexels.com/photos/3573351/pexels-photo-3573351.png?h=1200&w=800",
			"landscape": "https://images.pexels.com/photos/3573351/pexels-photo-3573351.png?h=627&w=1200",
			"tiny": "https://images.pexels.com/photos/3573351/pexels-photo-3573351.png?h=200&w=280"
		},
		"liked": false,
		"alt": "Brown Rocks During Golden Hour"
	}]
}`

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	var buf bytes.Buffer
	opts = append([]Option{WithEndpoint(server.URL + "/v1/search")}, opts...)
	return NewClient(server.Client(), newTestLogger(&buf), "test-api-key", opts...)
}

func TestNewClient_Defaults(t *testing.T) {
	var buf bytes.Buffer
	c := NewClient(http.DefaultClient, newTestLogger(&buf), "key")
	if c == nil {
		t.Fatal("NewClient は nil を返してはならない")
	}
	if c.endpoint != DefaultEndpoint {
		t.Errorf("endpoint = %q, want %q", c.endpoint, DefaultEndpoint)
	}
	if c.pageSize != 30 {
		t.Errorf("pageSize = %d, want 30", c.pageSize)
	}
}

func TestClient_Search_SendsQueryPageSizeAndAPIKey(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("HTTPメソッド = %s, want GET", r.Method)
		}
		if r.URL.Path != "/v1/search" {
			t.Errorf("パス = %s, want /v1/search", r.URL.Path)
		}
		if got := r.URL.Query().Get("query"); got != "golden hour & sea" {
			t.Errorf("query = %q, want %q", got, "golden hour & sea")
		}
		if got := r.URL.Query().Get("per_page"); got != "30" {
			t.Errorf("per_page = %q, want 30", got)
		}
		if r.URL.Query().Has("page") {
			t.Error("Search は page パラメータを送らない")
		}
		if got := r.Header.Get("Authorization"); got != "test-api-key" {
			t.Errorf("Authorization = %q, want test-api-key", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"photos": []}`))
	})

	photos, err := c.Search(context.Background(), "golden hour & sea")
	if err != nil {
		t.Fatalf("Search がエラーを返した: %v", err)
	}
	if photos == nil || len(photos) != 0 {
		t.Errorf("photos = %v, want 空スライス", photos)
	}
}

func TestClient_Search_200_DecodesOnePhoto(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(onePhotoBody))
	})

	photos, err := c.Search(context.Background(), "rocks")
	if err != nil {
		t.Fatalf("Search がエラーを返した: %v", err)
	}
	if len(photos) != 1 {
		t.Fatalf("写真数 = %d, want 1", len(photos))
	}

	want := model.Photo{
		ID:              3573351,
		Width:           3066,
		Height:          3968,
		URL:             "https://www.pexels.com/photo/3573351/",
		Photographer:    "Lukas Rodriguez",
		PhotographerURL: "https://www.pexels.com/@lukas-rodriguez-1845331",
		PhotographerID:  1845331,
		AvgColor:        "#374824",
		Src: model.PhotoSource{
			Original:  "https://images.pexels.com/photos/3573351/pexels-photo-3573351.png",
			Large2X:   "https://images.pexels.com/photos/3573351/pexels-photo-3573351.png?w=940&h=650&dpr=2",
			Large:     "https://images.pexels.com/photos/3573351/pexels-photo-3573351.png?h=650&w=940",
			Medium:    "https://images.pexels.com/photos/3573351/pexels-photo-3573351.png?h=350",
			Small:     "https://images.pexels.com/photos/3573351/pexels-photo-3573351.png?h=130",
			Portrait:  "https://images.pexels.com/photos/3573351/pexels-photo-3573351.png?h=1200&w=800",
			Landscape: "https://images.pexels.com/photos/3573351/pexels-photo-3573351.png?h=627&w=1200",
			Tiny:      "https://images.pexels.com/photos/3573351/pexels-photo-3573351.png?h=200&w=280",
		},
		Liked: false,
		Alt:   "Brown Rocks During Golden Hour",
	}
	if photos[0] != want {
		t.Errorf("photo = %+v\nwant  %+v", photos[0], want)
	}
}

func TestClient_Search_StatusErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		code    string
		message string
	}{
		{"403", http.StatusForbidden, model.ErrCodeForbidden, "Failed with status code 403 (Forbidden)"},
		{"500", http.StatusInternalServerError, model.ErrCodeServerError, "Failed with status code 500 (Server Error)"},
		{"401", http.StatusUnauthorized, model.ErrCodeSearchFailed, "Failed with status code 401"},
		{"429", http.StatusTooManyRequests, model.ErrCodeSearchFailed, "Failed with status code 429"},
		{"502", http.StatusBadGateway, model.ErrCodeSearchFailed, "Failed with status code 502"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(onePhotoBody))
			})

			photos, err := c.Search(context.Background(), "rocks")
			if photos != nil {
				t.Errorf("photos = %v, want nil", photos)
			}
			var apiErr *model.APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("error = %v, want *model.APIError", err)
			}
			if apiErr.Message != tt.message {
				t.Errorf("Message = %q, want %q", apiErr.Message, tt.message)
			}
			if apiErr.Code != tt.code {
				t.Errorf("Code = %q, want %q", apiErr.Code, tt.code)
			}
		})
	}
}

func TestClient_Search_InvalidJSON_DecodeError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"photos": [{"id": "not-a-number"}]}`))
	})

	_, err := c.Search(context.Background(), "rocks")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *model.APIError", err)
	}
	if apiErr.Message != "Failed to decode response" {
		t.Errorf("Message = %q, want %q", apiErr.Message, "Failed to decode response")
	}
}

func TestClient_Search_NetworkError_MessageFromTransport(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	endpoint := server.URL + "/v1/search"
	server.Close()

	var buf bytes.Buffer
	c := NewClient(http.DefaultClient, newTestLogger(&buf), "key", WithEndpoint(endpoint))

	_, err := c.Search(context.Background(), "rocks")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *model.APIError", err)
	}
	if apiErr.Code != model.ErrCodeTransportFailed {
		t.Errorf("Code = %q, want %q", apiErr.Code, model.ErrCodeTransportFailed)
	}
	if !strings.HasPrefix(apiErr.Message, "Error: ") {
		t.Errorf("Message = %q, want prefix %q", apiErr.Message, "Error: ")
	}

	// エラーがログに記録されていること
	if !strings.Contains(buf.String(), "検索APIの呼び出しに失敗しました") {
		t.Errorf("ログにエラーが記録されていない: %s", buf.String())
	}
}

func TestClient_Search_InvalidEndpoint(t *testing.T) {
	var buf bytes.Buffer
	c := NewClient(http.DefaultClient, newTestLogger(&buf), "key", WithEndpoint("::not a url"))

	_, err := c.Search(context.Background(), "rocks")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *model.APIError", err)
	}
	if apiErr.Message != "Invalid URL" {
		t.Errorf("Message = %q, want %q", apiErr.Message, "Invalid URL")
	}
}

func TestClient_Search_ContextCanceled(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(onePhotoBody))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := c.Search(ctx, "rocks"); err == nil {
		t.Error("キャンセル済みコンテキストではエラーを返すべき")
	}
}

func TestClient_Search_KeepsDecodedTextUnchanged(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"photos": [{"id": 1, "photographer": "A<B Studio", "alt": "x<y and  Tom &amp; Jerry"}]}`))
	})

	photos, err := c.Search(context.Background(), "cartoon")
	if err != nil {
		t.Fatalf("Search がエラーを返した: %v", err)
	}
	if photos[0].Alt != "x<y and  Tom &amp; Jerry" {
		t.Errorf("Alt = %q, want %q", photos[0].Alt, "x<y and  Tom &amp; Jerry")
	}
	if photos[0].Photographer != "A<B Studio" {
		t.Errorf("Photographer = %q, want %q", photos[0].Photographer, "A<B Studio")
	}
}

func TestClient_SearchPage_SendsPageAndPageSize(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("page"); got != "2" {
			t.Errorf("page = %q, want 2", got)
		}
		if got := r.URL.Query().Get("per_page"); got != "15" {
			t.Errorf("per_page = %q, want 15", got)
		}
		w.Write([]byte(`{"page": 2, "per_page": 15, "total_results": 40, "photos": [], "next_page": "https://api.pexels.com/v1/search/?page=3"}`))
	}, WithPageSize(15))

	resp, err := c.SearchPage(context.Background(), "sea", 2)
	if err != nil {
		t.Fatalf("SearchPage がエラーを返した: %v", err)
	}
	if resp.Page != 2 || resp.TotalResults != 40 || resp.NextPage == "" {
		t.Errorf("resp = %+v", resp)
	}
}
