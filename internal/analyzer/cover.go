package analyzer

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// coverPromptLimit はカバー画像プロンプトに含める本文の先頭文字数。
const coverPromptLimit = 300

// CoverGenerator はメディアを持たないテキスト投稿のための
// カバー画像生成器。画像URLを返す。
type CoverGenerator struct {
	client *openai.Client
	model  string
}

// NewCoverGenerator はCoverGeneratorの新しいインスタンスを生成する。
func NewCoverGenerator(cfg Config) (*CoverGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI APIキーが設定されていません")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &CoverGenerator{
		client: openai.NewClientWithConfig(clientConfig),
		model:  openai.CreateImageModelDallE3,
	}, nil
}

// Generate は投稿のタイトルと本文からカバー画像を生成し、そのURLを返す。
func (g *CoverGenerator) Generate(ctx context.Context, title, text string) (string, error) {
	excerpt := []rune(text)
	if len(excerpt) > coverPromptLimit {
		excerpt = excerpt[:coverPromptLimit]
	}

	resp, err := g.client.CreateImage(ctx, openai.ImageRequest{
		Model: g.model,
		Prompt: fmt.Sprintf(
			"SNS投稿のカバー画像。ミニマルでフラットなイラスト。文字は入れない。\nタイトル: %s\n内容: %s",
			title, string(excerpt)),
		N:              1,
		Size:           openai.CreateImageSize1024x1024,
		ResponseFormat: openai.CreateImageResponseFormatURL,
	})
	if err != nil {
		return "", fmt.Errorf("カバー画像の生成に失敗しました: %w", err)
	}
	if len(resp.Data) == 0 {
		return "", fmt.Errorf("カバー画像APIが空の応答を返しました")
	}
	return resp.Data[0].URL, nil
}
