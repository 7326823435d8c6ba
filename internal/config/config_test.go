package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// clearEnv はテスト対象の環境変数を空にする。
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PEXELS_API_KEY", "PEXELS_API_KEY_FILE",
		"SEARCH_ENDPOINT", "SEARCH_PAGE_SIZE", "SEARCH_TIMEOUT",
		"IMAGE_FETCH_TIMEOUT", "IMAGE_MAX_SIZE", "IMAGE_MAX_PIXELS", "IMAGE_CACHE_MAX_ENTRIES",
		"IMAGE_FETCH_COALESCE", "IMAGE_ALLOW_PRIVATE",
		"SESSION_MAX_AGE", "RATE_LIMIT_GENERAL", "SERVER_PORT", "LOG_LEVEL", "CORS_ALLOWED_ORIGIN",
	} {
		t.Setenv(key, "")
	}
}

func writeKeyFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "PLInfo.env")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("キーファイルの作成に失敗: %v", err)
	}
	return path
}

func TestLoad_APIKeyFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("PEXELS_API_KEY", "  env-key  ")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.APIKey != "env-key" {
		t.Errorf("APIKey = %q, want %q", cfg.APIKey, "env-key")
	}
}

func TestLoad_MissingAPIKey_ReturnsError(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err == nil {
		t.Fatal("expected error when API key is missing")
	}
	if cfg != nil {
		t.Error("expected nil config on error")
	}
	if !strings.Contains(err.Error(), "PEXELS_API_KEY") {
		t.Errorf("error should mention PEXELS_API_KEY, got: %v", err)
	}
}

func TestLoad_APIKeyFromFile(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"API_KEY行", "# local secrets\nAPI_KEY=file-key\n", "file-key"},
		{"引用符付き", `API_KEY="quoted-key"`, "quoted-key"},
		{"キーのみ", "\nbare-key\n", "bare-key"},
		{"他の設定の後", "OTHER=1\nAPI_KEY = spaced-key\n", "spaced-key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("PEXELS_API_KEY_FILE", writeKeyFile(t, tt.content))

			cfg, err := Load()
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if cfg.APIKey != tt.want {
				t.Errorf("APIKey = %q, want %q", cfg.APIKey, tt.want)
			}
		})
	}
}

func TestLoad_APIKeyFile_Invalid(t *testing.T) {
	tests := []struct {
		name string
		path func(t *testing.T) string
	}{
		{"存在しないファイル", func(t *testing.T) string { return filepath.Join(t.TempDir(), "missing") }},
		{"空ファイル", func(t *testing.T) string { return writeKeyFile(t, "") }},
		{"API_KEYが空", func(t *testing.T) string { return writeKeyFile(t, "API_KEY=\n") }},
		{"コメントのみ", func(t *testing.T) string { return writeKeyFile(t, "# nothing\nOTHER=1\n") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("PEXELS_API_KEY_FILE", tt.path(t))

			if _, err := Load(); err == nil {
				t.Error("expected error for invalid key file")
			}
		})
	}
}

func TestLoad_EnvKeyTakesPrecedenceOverFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("PEXELS_API_KEY", "env-key")
	t.Setenv("PEXELS_API_KEY_FILE", writeKeyFile(t, "API_KEY=file-key"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.APIKey != "env-key" {
		t.Errorf("APIKey = %q, want %q", cfg.APIKey, "env-key")
	}
}

func TestLoad_DefaultValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("PEXELS_API_KEY", "key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.SearchEndpoint != "https://api.pexels.com/v1/search" {
		t.Errorf("SearchEndpoint = %q", cfg.SearchEndpoint)
	}
	if cfg.SearchPageSize != 30 {
		t.Errorf("SearchPageSize = %d, want 30", cfg.SearchPageSize)
	}
	if cfg.SearchTimeout != 10*time.Second {
		t.Errorf("SearchTimeout = %v, want %v", cfg.SearchTimeout, 10*time.Second)
	}
	if cfg.ImageFetchTimeout != 15*time.Second {
		t.Errorf("ImageFetchTimeout = %v, want %v", cfg.ImageFetchTimeout, 15*time.Second)
	}
	if cfg.ImageMaxSize != 20*1024*1024 {
		t.Errorf("ImageMaxSize = %d, want %d", cfg.ImageMaxSize, 20*1024*1024)
	}
	if cfg.ImageMaxPixels != 40_000_000 {
		t.Errorf("ImageMaxPixels = %d, want %d", cfg.ImageMaxPixels, 40_000_000)
	}
	if cfg.ImageCacheMaxEntries != 0 {
		t.Errorf("ImageCacheMaxEntries = %d, want 0", cfg.ImageCacheMaxEntries)
	}
	if !cfg.ImageFetchCoalesce {
		t.Error("ImageFetchCoalesce = false, want true")
	}
	if cfg.ImageAllowPrivateHost {
		t.Error("ImageAllowPrivateHost = true, want false")
	}
	if cfg.SessionMaxAge != 86400 {
		t.Errorf("SessionMaxAge = %d, want 86400", cfg.SessionMaxAge)
	}
	if cfg.RateLimitGeneral != 120 {
		t.Errorf("RateLimitGeneral = %d, want 120", cfg.RateLimitGeneral)
	}
	if cfg.ServerPort != "8080" {
		t.Errorf("ServerPort = %q, want 8080", cfg.ServerPort)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
	if cfg.CORSAllowedOrigin != "http://localhost:3000" {
		t.Errorf("CORSAllowedOrigin = %q", cfg.CORSAllowedOrigin)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("PEXELS_API_KEY", "key")
	t.Setenv("SEARCH_ENDPOINT", "http://localhost:9000/v1/search")
	t.Setenv("SEARCH_PAGE_SIZE", "80")
	t.Setenv("SEARCH_TIMEOUT", "3s")
	t.Setenv("IMAGE_CACHE_MAX_ENTRIES", "500")
	t.Setenv("IMAGE_MAX_PIXELS", "1000000")
	t.Setenv("IMAGE_FETCH_COALESCE", "false")
	t.Setenv("IMAGE_ALLOW_PRIVATE", "true")
	t.Setenv("SERVER_PORT", "9090")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.SearchEndpoint != "http://localhost:9000/v1/search" {
		t.Errorf("SearchEndpoint = %q", cfg.SearchEndpoint)
	}
	if cfg.SearchPageSize != 80 {
		t.Errorf("SearchPageSize = %d, want 80", cfg.SearchPageSize)
	}
	if cfg.SearchTimeout != 3*time.Second {
		t.Errorf("SearchTimeout = %v, want 3s", cfg.SearchTimeout)
	}
	if cfg.ImageMaxPixels != 1000000 {
		t.Errorf("ImageMaxPixels = %d, want 1000000", cfg.ImageMaxPixels)
	}
	if cfg.ImageCacheMaxEntries != 500 {
		t.Errorf("ImageCacheMaxEntries = %d, want 500", cfg.ImageCacheMaxEntries)
	}
	if cfg.ImageFetchCoalesce {
		t.Error("ImageFetchCoalesce = true, want false")
	}
	if !cfg.ImageAllowPrivateHost {
		t.Error("ImageAllowPrivateHost = false, want true")
	}
	if cfg.ServerPort != "9090" {
		t.Errorf("ServerPort = %q, want 9090", cfg.ServerPort)
	}
}

func TestLoad_InvalidNumbersFallBackToDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("PEXELS_API_KEY", "key")
	t.Setenv("SEARCH_PAGE_SIZE", "many")
	t.Setenv("SEARCH_TIMEOUT", "soon")
	t.Setenv("IMAGE_FETCH_COALESCE", "maybe")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.SearchPageSize != 30 {
		t.Errorf("SearchPageSize = %d, want 30", cfg.SearchPageSize)
	}
	if cfg.SearchTimeout != 10*time.Second {
		t.Errorf("SearchTimeout = %v, want 10s", cfg.SearchTimeout)
	}
	if !cfg.ImageFetchCoalesce {
		t.Error("ImageFetchCoalesce = false, want true")
	}
}
