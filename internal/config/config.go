// Package config は環境変数からのアプリケーション設定の読み込みを提供する。
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// プロバイダ認証情報。未設定のプロバイダはフォールバック順から除外される
	JustOneToken       string
	TikHubAPIKey       string
	TwitterBearerToken string

	// プロバイダ調整
	XHSPreferredProvider string // "justone" または "tikhub"。空なら既定順
	JustOneBaseURL       string
	JustOneDetailPath    string
	TikHubBaseURL        string
	TwitterBaseURL       string
	LegacyRetryAttempts  int
	LegacyRetryDelay     time.Duration
	ProviderTimeout      time.Duration

	// AI解析
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string

	// 検索ワーカー
	SearchTasksFile string
	SearchInterval  time.Duration
	SearchLimit     int

	// Rate Limit
	RateLimitGeneral int
	RateLimitResolve int

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// プロバイダ認証情報はすべて任意。未設定のプラットフォームへの
	// 解決リクエストは実行時に設定エラーとして返る
	cfg.JustOneToken = os.Getenv("JUSTONE_TOKEN")
	cfg.TikHubAPIKey = os.Getenv("TIKHUB_API_KEY")
	cfg.TwitterBearerToken = os.Getenv("TWITTER_BEARER_TOKEN")

	// Optional fields with defaults
	cfg.XHSPreferredProvider = getEnvString("XHS_PREFERRED_PROVIDER", "")
	cfg.JustOneBaseURL = getEnvString("JUSTONE_BASE_URL", "")
	cfg.JustOneDetailPath = getEnvString("JUSTONE_DETAIL_PATH", "")
	cfg.TikHubBaseURL = getEnvString("TIKHUB_BASE_URL", "")
	cfg.TwitterBaseURL = getEnvString("TWITTER_BASE_URL", "")
	cfg.LegacyRetryAttempts = getEnvInt("LEGACY_RETRY_ATTEMPTS", 10)
	cfg.LegacyRetryDelay = getEnvDuration("LEGACY_RETRY_DELAY", 250*time.Millisecond)
	cfg.ProviderTimeout = getEnvDuration("PROVIDER_TIMEOUT", 30*time.Second)
	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	cfg.OpenAIBaseURL = getEnvString("OPENAI_BASE_URL", "")
	cfg.OpenAIModel = getEnvString("OPENAI_MODEL", "")
	cfg.SearchTasksFile = getEnvString("SEARCH_TASKS_FILE", "")
	cfg.SearchInterval = getEnvDuration("SEARCH_INTERVAL", 6*time.Hour)
	cfg.SearchLimit = getEnvInt("SEARCH_LIMIT", 20)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitResolve = getEnvInt("RATE_LIMIT_RESOLVE", 20)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
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
