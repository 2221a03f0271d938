// Package analyzer は保存対象コンテンツのAI解析を提供する。
// 投稿本文から要約、活用シーン、核心知識、プロンプトの抽出を行い、
// メディアを持たないテキスト投稿にはカバー画像の生成も行う。
package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Analysis はAI解析の結果を表す。
type Analysis struct {
	Summary          string   `json:"summary"`
	UsageScenarios   []string `json:"usage_scenarios"`
	CoreKnowledge    []string `json:"core_knowledge"`
	ExtractedPrompts []string `json:"extracted_prompts"`
}

// analysisPrompt は解析リクエストの指示文。応答はJSONオブジェクトで受け取る。
const analysisPrompt = `以下のSNS投稿を解析し、JSONで返答してください。
フィールド:
- summary: 投稿内容の簡潔な要約（200字以内）
- usage_scenarios: この知識が役立つ具体的な場面のリスト
- core_knowledge: 投稿から抽出できる核心的な知識・ノウハウのリスト
- extracted_prompts: 投稿に含まれるAIプロンプトやテンプレートのリスト（なければ空配列）

投稿タイトル: %s
投稿本文:
%s`

// Config はAnalyzerの設定。
type Config struct {
	APIKey  string
	BaseURL string // 空の場合はOpenAIの既定エンドポイント
	Model   string // 空の場合はgpt-4o-mini
}

// Analyzer はOpenAI互換APIを使用したコンテンツ解析器。
type Analyzer struct {
	client *openai.Client
	model  string
}

// NewAnalyzer はAnalyzerの新しいインスタンスを生成する。
func NewAnalyzer(cfg Config) (*Analyzer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI APIキーが設定されていません")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}

	return &Analyzer{
		client: openai.NewClientWithConfig(clientConfig),
		model:  model,
	}, nil
}

// Analyze は投稿を解析してAnalysisを返す。
// 本文が空の場合は何も解析せず空の結果を返す。
func (a *Analyzer) Analyze(ctx context.Context, title, rawText string) (*Analysis, error) {
	if strings.TrimSpace(rawText) == "" {
		return &Analysis{}, nil
	}

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: fmt.Sprintf(analysisPrompt, title, rawText),
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.3,
	})
	if err != nil {
		return nil, fmt.Errorf("コンテンツ解析APIの呼び出しに失敗しました: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("コンテンツ解析APIが空の応答を返しました")
	}

	var analysis Analysis
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &analysis); err != nil {
		return nil, fmt.Errorf("解析結果のJSONの読み取りに失敗しました: %w", err)
	}
	return &analysis, nil
}
