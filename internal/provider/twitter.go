package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/hitoshi/notevault/internal/model"
)

const (
	// twitterDefaultBaseURL はX API v2のエンドポイント。
	twitterDefaultBaseURL = "https://api.twitter.com/2"
	// twitterTweetFields はツイート取得時に要求するフィールド。
	twitterTweetFields = "created_at,public_metrics,entities,author_id,attachments"
	// twitterExpansions は著者・メディアを同梱させるexpansions指定。
	twitterExpansions = "author_id,attachments.media_keys"
	// twitterUserFields は著者オブジェクトに要求するフィールド。
	twitterUserFields = "name,username"
	// twitterMediaFields はメディアオブジェクトに要求するフィールド。
	twitterMediaFields = "url,preview_image_url,type"
)

// twitterAPIError はX API v2のエラー配列の1要素。
type twitterAPIError struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

// TwitterClient は公式X API v2のアダプタ。Bearerヘッダーで認証する。
// Twitter/Xにはフォールバック先のプロバイダが存在しない。
type TwitterClient struct {
	httpClient *http.Client
	logger     *slog.Logger
	bearer     string
	baseURL    string
	retry      RetryPolicy
}

// TwitterConfig はTwitterClientの設定。
type TwitterConfig struct {
	BearerToken string
	BaseURL     string // 空ならデフォルト
	Retry       RetryPolicy
}

// NewTwitterClient はTwitterClientの新しいインスタンスを生成する。
func NewTwitterClient(httpClient *http.Client, logger *slog.Logger, cfg TwitterConfig) *TwitterClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = twitterDefaultBaseURL
	}
	return &TwitterClient{
		httpClient: httpClient,
		logger:     logger,
		bearer:     cfg.BearerToken,
		baseURL:    baseURL,
		retry:      cfg.Retry,
	}
}

// Name はプロバイダ名を返す。
func (c *TwitterClient) Name() string {
	return "twitter-api"
}

// TweetDetail はツイート詳細を取得する。
// expansionsにより著者とメディアがincludesとして同梱される。
func (c *TwitterClient) TweetDetail(ctx context.Context, tweetID string) (map[string]any, error) {
	params := url.Values{
		"tweet.fields": {twitterTweetFields},
		"expansions":   {twitterExpansions},
		"user.fields":  {twitterUserFields},
		"media.fields": {twitterMediaFields},
	}

	var payload map[string]any
	err := doWithRetry(ctx, c.retry, func(ctx context.Context) error {
		var err error
		payload, err = c.call(ctx, "/tweets/"+tweetID, params)
		return err
	})
	if err != nil {
		return nil, err
	}
	return payload, nil
}

// SearchTweets は直近ツイート検索を実行し、ツイートごとのペイロード列を返す。
// 各要素にはincludesから突き合わせた著者・メディアを同梱する。
func (c *TwitterClient) SearchTweets(ctx context.Context, query model.SearchQuery) ([]map[string]any, error) {
	params := url.Values{
		"query":        {query.Keyword},
		"tweet.fields": {twitterTweetFields},
		"expansions":   {twitterExpansions},
		"user.fields":  {twitterUserFields},
		"media.fields": {twitterMediaFields},
	}
	if query.Limit > 0 {
		params.Set("max_results", fmt.Sprintf("%d", query.Limit))
	}

	var payload map[string]any
	err := doWithRetry(ctx, c.retry, func(ctx context.Context) error {
		var err error
		payload, err = c.call(ctx, "/tweets/search/recent", params)
		return err
	})
	if err != nil {
		return nil, err
	}

	return splitTweetBatch(payload), nil
}

// splitTweetBatch は検索レスポンスをツイート単位のペイロードへ分割する。
// includesは各ツイートのペイロードにそのまま引き継ぐ
// （正規化側がauthor_id/media_keyで突き合わせる）。
func splitTweetBatch(payload map[string]any) []map[string]any {
	data, _ := payload["data"].([]any)
	includes := payload["includes"]

	out := make([]map[string]any, 0, len(data))
	for _, t := range data {
		tweet, ok := t.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, map[string]any{
			"data":     tweet,
			"includes": includes,
		})
	}
	return out
}

// call はX API v2の共通呼び出し。errors配列が返った場合は
// その先頭のdetailを上流メッセージとしてそのまま伝搬する。
func (c *TwitterClient) call(ctx context.Context, path string, params url.Values) (map[string]any, error) {
	reqURL := c.baseURL + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.bearer)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &model.UpstreamError{Provider: c.Name(), Message: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &model.UpstreamError{Provider: c.Name(), Message: "レスポンスボディの読み取りに失敗: " + err.Error()}
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, &model.UpstreamError{
				Provider: c.Name(),
				Code:     resp.StatusCode,
				Message:  string(truncateBody(body)),
			}
		}
		return nil, &model.MalformedResponseError{
			Provider: c.Name(),
			Reason:   "JSONとしてパースできません: " + err.Error(),
		}
	}

	if errsRaw, ok := payload["errors"]; ok {
		return nil, &model.UpstreamError{
			Provider: c.Name(),
			Code:     resp.StatusCode,
			Message:  formatTwitterErrors(errsRaw),
		}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &model.UpstreamError{
			Provider: c.Name(),
			Code:     resp.StatusCode,
			Message:  string(truncateBody(body)),
		}
	}

	if _, ok := payload["data"]; !ok {
		return nil, &model.MalformedResponseError{
			Provider: c.Name(),
			Reason:   "レスポンスにdataフィールドがありません",
		}
	}

	return payload, nil
}

// formatTwitterErrors はerrors配列を上流メッセージへ変換する。
// detail（無ければtitle）をそのまま使い、汎用文言には置き換えない。
func formatTwitterErrors(errsRaw any) string {
	raw, err := json.Marshal(errsRaw)
	if err != nil {
		return fmt.Sprintf("%v", errsRaw)
	}
	var errs []twitterAPIError
	if err := json.Unmarshal(raw, &errs); err != nil || len(errs) == 0 {
		return string(raw)
	}
	if errs[0].Detail != "" {
		return errs[0].Detail
	}
	return errs[0].Title
}
