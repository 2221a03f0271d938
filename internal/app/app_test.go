package app

import (
	"bytes"
	"testing"

	"golang.org/x/time/rate"

	"github.com/hitoshi/notevault/internal/config"
)

// TestInit_MissingDatabaseURL は必須環境変数の欠落でInitがエラーに
// なることを検証する。
func TestInit_MissingDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	var buf bytes.Buffer
	if _, err := Init(&buf); err == nil {
		t.Fatal("DATABASE_URL未設定でエラーになるべき")
	}
}

// TestInit_Success は設定の読み込みが成功することを検証する。
func TestInit_Success(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/notevault")

	var buf bytes.Buffer
	cfg, err := Init(&buf)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if cfg.DatabaseURL == "" {
		t.Error("DatabaseURLが読み込まれるべき")
	}
}

// TestRateLimiterConfig_ConvertsPerMinute はreq/min設定がreq/secに
// 変換されることを検証する。
func TestRateLimiterConfig_ConvertsPerMinute(t *testing.T) {
	cfg := &config.Config{
		RateLimitGeneral: 60,
		RateLimitResolve: 6,
	}

	rlCfg := rateLimiterConfig(cfg)
	if rlCfg.GeneralRate != rate.Limit(1) {
		t.Errorf("GeneralRate = %v, want 1", rlCfg.GeneralRate)
	}
	if rlCfg.GeneralBurst != 60 {
		t.Errorf("GeneralBurst = %d, want 60", rlCfg.GeneralBurst)
	}
	if rlCfg.ResolveRate != rate.Limit(0.1) {
		t.Errorf("ResolveRate = %v, want 0.1", rlCfg.ResolveRate)
	}
	if rlCfg.ResolveBurst != 6 {
		t.Errorf("ResolveBurst = %d, want 6", rlCfg.ResolveBurst)
	}
}

// TestBuildAnalyzer_NilWithoutAPIKey はOPENAI_API_KEY未設定で解析器が
// nilになる（解析スキップ）ことを検証する。
func TestBuildAnalyzer_NilWithoutAPIKey(t *testing.T) {
	if a := buildAnalyzer(&config.Config{}); a != nil {
		t.Error("APIキーなしではnilであるべき")
	}
	if g := buildCoverGenerator(&config.Config{}); g != nil {
		t.Error("APIキーなしでは表紙生成器もnilであるべき")
	}
}

// TestBuildOrchestrator_NoCredentials は認証情報が全く無くても
// オーケストレータ自体は構築できることを検証する。
// 未設定プラットフォームへのリクエストは実行時に設定エラーとなる。
func TestBuildOrchestrator_NoCredentials(t *testing.T) {
	o := buildOrchestrator(&config.Config{}, nil)
	if o == nil {
		t.Fatal("オーケストレータが構築されるべき")
	}
}
