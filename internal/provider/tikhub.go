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
	// tikhubDefaultBaseURL はTikHubのデフォルトエンドポイント。
	tikhubDefaultBaseURL = "https://api.tikhub.io"
	// tikhubDetailPath はノート詳細取得のパス。
	tikhubDetailPath = "/api/v1/xiaohongshu/web/get_note_info"
	// tikhubSearchPath はキーワード検索のパス。
	tikhubSearchPath = "/api/v1/xiaohongshu/web/search_notes"
)

// tikhubEnvelope はTikHubの共通レスポンスエンベロープ。
// 成功条件はHTTP 200かつcode == 200の両方。
// dataはJSON文字列として二重エンコードされている場合がある。
type tikhubEnvelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// TikHubClient はTikHub（小紅書）のアダプタ。Bearerヘッダーで認証する。
type TikHubClient struct {
	httpClient *http.Client
	logger     *slog.Logger
	apiKey     string
	baseURL    string
	retry      RetryPolicy
}

// TikHubConfig はTikHubClientの設定。
type TikHubConfig struct {
	APIKey  string
	BaseURL string // 空ならデフォルト
	Retry   RetryPolicy
}

// NewTikHubClient はTikHubClientの新しいインスタンスを生成する。
func NewTikHubClient(httpClient *http.Client, logger *slog.Logger, cfg TikHubConfig) *TikHubClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = tikhubDefaultBaseURL
	}
	return &TikHubClient{
		httpClient: httpClient,
		logger:     logger,
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		retry:      cfg.Retry,
	}
}

// Name はプロバイダ名を返す。
func (c *TikHubClient) Name() string {
	return "tikhub"
}

// NoteDetail はノート詳細を取得する。アダプタ自身のリトライ予算内でリトライする。
func (c *TikHubClient) NoteDetail(ctx context.Context, noteID, xsecToken string) (map[string]any, error) {
	params := url.Values{"note_id": {noteID}}
	if xsecToken != "" {
		params.Set("xsec_token", xsecToken)
	}

	var note map[string]any
	err := doWithRetry(ctx, c.retry, func(ctx context.Context) error {
		raw, err := c.call(ctx, tikhubDetailPath, params)
		if err != nil {
			return err
		}
		note, err = unwrapNote(c.Name(), raw)
		return err
	})
	if err != nil {
		return nil, err
	}
	return note, nil
}

// SearchNotes はキーワード検索を実行し、ノートペイロードの列を返す。
func (c *TikHubClient) SearchNotes(ctx context.Context, query model.SearchQuery) ([]map[string]any, error) {
	params := url.Values{"keyword": {query.Keyword}}
	if query.Sort != "" {
		params.Set("sort", string(query.Sort))
	}
	if query.TimeWindow != "" {
		params.Set("note_time", query.TimeWindow)
	}
	if query.Limit > 0 {
		params.Set("page_size", fmt.Sprintf("%d", query.Limit))
	}

	var items []map[string]any
	err := doWithRetry(ctx, c.retry, func(ctx context.Context) error {
		raw, err := c.call(ctx, tikhubSearchPath, params)
		if err != nil {
			return err
		}
		items, err = unwrapNoteList(c.Name(), raw)
		return err
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// call はTikHubの共通呼び出し。Bearer認証のうえ、
// HTTP 200かつcode == 200を成功とみなす。
// dataが二重エンコードされたJSON文字列の場合は二段階目のパースを行う。
func (c *TikHubClient) call(ctx context.Context, path string, params url.Values) (json.RawMessage, error) {
	reqURL := c.baseURL + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

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

	if resp.StatusCode != http.StatusOK {
		return nil, &model.UpstreamError{
			Provider: c.Name(),
			Code:     resp.StatusCode,
			Message:  string(truncateBody(body)),
		}
	}

	var env tikhubEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &model.MalformedResponseError{
			Provider: c.Name(),
			Reason:   "JSONとしてパースできません: " + err.Error(),
		}
	}

	if env.Code != http.StatusOK {
		return nil, &model.UpstreamError{
			Provider: c.Name(),
			Code:     env.Code,
			Message:  env.Message,
		}
	}

	return decodeTikHubData(env.Data)
}

// decodeTikHubData はdataフィールドの二重エンコードを解決する。
// dataがJSON文字列の場合、その中身をもう一度JSONとしてパースして返す。
func decodeTikHubData(data json.RawMessage) (json.RawMessage, error) {
	var asStr string
	if err := json.Unmarshal(data, &asStr); err == nil {
		var inner any
		if err := json.Unmarshal([]byte(asStr), &inner); err != nil {
			return nil, &model.MalformedResponseError{
				Provider: "tikhub",
				Reason:   "二重エンコードされたdataをパースできません: " + err.Error(),
			}
		}
		return json.RawMessage(asStr), nil
	}
	return data, nil
}
