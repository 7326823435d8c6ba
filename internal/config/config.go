package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Search API
	APIKey         string
	SearchEndpoint string
	SearchPageSize int
	SearchTimeout  time.Duration

	// Image cache
	ImageFetchTimeout     time.Duration
	ImageMaxSize          int64
	ImageMaxPixels        int64
	ImageCacheMaxEntries  int
	ImageFetchCoalesce    bool
	ImageAllowPrivateHost bool

	// Session
	SessionMaxAge int

	// Rate Limit
	RateLimitGeneral int

	// Server
	ServerPort string
	LogLevel   string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// APIキーが見つからない場合はエラーを返す（起動を中止すべき設定エラー）。
func Load() (*Config, error) {
	cfg := &Config{}

	apiKey, err := loadAPIKey()
	if err != nil {
		return nil, err
	}
	cfg.APIKey = apiKey

	cfg.SearchEndpoint = getEnvString("SEARCH_ENDPOINT", "https://api.pexels.com/v1/search")
	cfg.SearchPageSize = getEnvInt("SEARCH_PAGE_SIZE", 30)
	cfg.SearchTimeout = getEnvDuration("SEARCH_TIMEOUT", 10*time.Second)
	cfg.ImageFetchTimeout = getEnvDuration("IMAGE_FETCH_TIMEOUT", 15*time.Second)
	cfg.ImageMaxSize = getEnvInt64("IMAGE_MAX_SIZE", 20*1024*1024)
	cfg.ImageMaxPixels = getEnvInt64("IMAGE_MAX_PIXELS", 40_000_000)
	cfg.ImageCacheMaxEntries = getEnvInt("IMAGE_CACHE_MAX_ENTRIES", 0)
	cfg.ImageFetchCoalesce = getEnvBool("IMAGE_FETCH_COALESCE", true)
	cfg.ImageAllowPrivateHost = getEnvBool("IMAGE_ALLOW_PRIVATE", false)
	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 86400)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

// loadAPIKey はAPIキーを読み込む。
// PEXELS_API_KEY を優先し、未設定の場合は PEXELS_API_KEY_FILE のファイルから読む。
func loadAPIKey() (string, error) {
	if key := strings.TrimSpace(os.Getenv("PEXELS_API_KEY")); key != "" {
		return key, nil
	}

	path := os.Getenv("PEXELS_API_KEY_FILE")
	if path == "" {
		return "", fmt.Errorf("required environment variables are not set: [PEXELS_API_KEY or PEXELS_API_KEY_FILE]")
	}

	key, err := readKeyFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read API key file %s: %w", path, err)
	}
	return key, nil
}

// readKeyFile はキーファイルからAPIキーを読む。
// "API_KEY=..." の行があればその値を、なければ最初の空でない行を使う。
// "#" で始まる行はコメントとして無視する。
func readKeyFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var first string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if k, v, ok := strings.Cut(line, "="); ok && strings.TrimSpace(k) == "API_KEY" {
			v = strings.Trim(strings.TrimSpace(v), `"'`)
			if v == "" {
				return "", fmt.Errorf("API_KEY is empty")
			}
			return v, nil
		}
		if first == "" && !strings.Contains(line, "=") {
			first = line
		}
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	if first == "" {
		return "", fmt.Errorf("couldn't find key 'API_KEY'")
	}
	return first, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
