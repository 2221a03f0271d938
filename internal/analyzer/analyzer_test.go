package analyzer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// newChatServer はOpenAI互換のチャット補完エンドポイントを模したサーバを返す。
func newChatServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("予期しないパス: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": content}},
			},
		})
	}))
}

// TestAnalyze_ParsesStructuredResponse は解析結果のJSONが
// Analysisへ正しく読み取られることをテストする。
func TestAnalyze_ParsesStructuredResponse(t *testing.T) {
	srv := newChatServer(t, `{
		"summary": "収納術のまとめ",
		"usage_scenarios": ["引っ越し", "模様替え"],
		"core_knowledge": ["縦置き収納で空間を有効利用する"],
		"extracted_prompts": []
	}`)
	defer srv.Close()

	a, err := NewAnalyzer(Config{APIKey: "test-key", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("Analyzer生成に失敗: %v", err)
	}

	analysis, err := a.Analyze(context.Background(), "収納アイデア", "狭い部屋でもできる収納の工夫")
	if err != nil {
		t.Fatalf("解析に失敗: %v", err)
	}
	if analysis.Summary != "収納術のまとめ" {
		t.Errorf("期待要約と異なる: %s", analysis.Summary)
	}
	if len(analysis.UsageScenarios) != 2 {
		t.Errorf("期待活用シーン数: 2, 結果: %d", len(analysis.UsageScenarios))
	}
	if len(analysis.CoreKnowledge) != 1 {
		t.Errorf("期待核心知識数: 1, 結果: %d", len(analysis.CoreKnowledge))
	}
	if len(analysis.ExtractedPrompts) != 0 {
		t.Errorf("期待プロンプト数: 0, 結果: %d", len(analysis.ExtractedPrompts))
	}
}

// TestAnalyze_EmptyTextSkipsAPICall は本文が空の場合にAPIを呼ばず
// 空の結果を返すことをテストする。
func TestAnalyze_EmptyTextSkipsAPICall(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	a, err := NewAnalyzer(Config{APIKey: "test-key", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("Analyzer生成に失敗: %v", err)
	}

	analysis, err := a.Analyze(context.Background(), "タイトル", "   ")
	if err != nil {
		t.Fatalf("解析に失敗: %v", err)
	}
	if called {
		t.Error("空の本文でAPIが呼ばれるべきではない")
	}
	if analysis.Summary != "" {
		t.Errorf("空の結果が返るべき: %+v", analysis)
	}
}

// TestAnalyze_MalformedJSONReturnsError は解析結果がJSONとして壊れている
// 場合にエラーが返ることをテストする。
func TestAnalyze_MalformedJSONReturnsError(t *testing.T) {
	srv := newChatServer(t, "これはJSONではありません")
	defer srv.Close()

	a, err := NewAnalyzer(Config{APIKey: "test-key", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("Analyzer生成に失敗: %v", err)
	}

	if _, err := a.Analyze(context.Background(), "t", "本文"); err == nil {
		t.Error("壊れたJSONはエラーになるべき")
	}
}

// TestNewAnalyzer_RequiresAPIKey はAPIキー未設定でエラーになることをテストする。
func TestNewAnalyzer_RequiresAPIKey(t *testing.T) {
	if _, err := NewAnalyzer(Config{}); err == nil {
		t.Error("APIキー未設定はエラーになるべき")
	}
}

// TestCoverGenerator_ReturnsImageURL は画像生成APIの応答から
// URLが取り出されることをテストする。
func TestCoverGenerator_ReturnsImageURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/images/generations" {
			t.Errorf("予期しないパス: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"url": "https://images.example.com/cover1.png"},
			},
		})
	}))
	defer srv.Close()

	g, err := NewCoverGenerator(Config{APIKey: "test-key", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("CoverGenerator生成に失敗: %v", err)
	}

	url, err := g.Generate(context.Background(), "収納アイデア", "本文")
	if err != nil {
		t.Fatalf("カバー画像生成に失敗: %v", err)
	}
	if url != "https://images.example.com/cover1.png" {
		t.Errorf("期待URLと異なる: %s", url)
	}
}
