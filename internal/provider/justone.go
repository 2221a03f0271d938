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

	"github.com/hitoshi/notevault/internal/classifier"
	"github.com/hitoshi/notevault/internal/model"
)

const (
	// justoneDefaultBaseURL はJustOneAPIのデフォルトエンドポイント。
	justoneDefaultBaseURL = "https://api.justoneapi.com"
	// justoneDetailPath はノート詳細取得（プライマリ）のパス。
	justoneDetailPath = "/v1/xiaohongshu/note/detail"
	// justoneDetailLegacyPath はノート詳細取得（レガシー）のパス。
	// エンゲージメント指標が豊富だが不安定（二段構え戦略はオーケストレータが持つ）。
	justoneDetailLegacyPath = "/v1/xiaohongshu/note/detail-v1"
	// justoneSearchPath はキーワード検索のパス。
	justoneSearchPath = "/v1/xiaohongshu/search/note"
	// justoneTransferPath はシェアリンク展開APIのパス。
	justoneTransferPath = "/v1/xiaohongshu/share/transfer"
)

// justoneEnvelope はJustOneAPIの共通レスポンスエンベロープ。
// code != 0 は上流失敗であり、messageをそのまま伝搬する。
type justoneEnvelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// JustOneClient はJustOneAPI（小紅書）のアダプタ。
// クエリ文字列のtokenで認証する。
type JustOneClient struct {
	httpClient *http.Client
	logger     *slog.Logger
	token      string
	baseURL    string
	detailPath string // アカウントプランによってパスが異なる場合の上書き
	retry      RetryPolicy
}

// JustOneConfig はJustOneClientの設定。
type JustOneConfig struct {
	Token      string
	BaseURL    string      // 空ならデフォルト
	DetailPath string      // 空ならデフォルト
	Retry      RetryPolicy // Attempts=0なら1回のみ
}

// NewJustOneClient はJustOneClientの新しいインスタンスを生成する。
func NewJustOneClient(httpClient *http.Client, logger *slog.Logger, cfg JustOneConfig) *JustOneClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = justoneDefaultBaseURL
	}
	detailPath := cfg.DetailPath
	if detailPath == "" {
		detailPath = justoneDetailPath
	}
	return &JustOneClient{
		httpClient: httpClient,
		logger:     logger,
		token:      cfg.Token,
		baseURL:    baseURL,
		detailPath: detailPath,
		retry:      cfg.Retry,
	}
}

// Name はプロバイダ名を返す。
func (c *JustOneClient) Name() string {
	return "justone"
}

// NoteDetail はプライマリエンドポイントでノート詳細を1回だけ取得する。
// プライマリはレガシー詳細の全滅後のフォールバック先としてだけ呼ばれるため、
// この層ではリトライしない（二段構え戦略はオーケストレータが持つ）。
func (c *JustOneClient) NoteDetail(ctx context.Context, noteID, xsecToken string) (map[string]any, error) {
	raw, err := c.call(ctx, c.detailPath, url.Values{
		"note_id":    {noteID},
		"xsec_token": {xsecToken},
	})
	if err != nil {
		return nil, err
	}
	return unwrapNote(c.Name(), raw)
}

// NoteDetailLegacy はレガシーエンドポイントでノート詳細を1回だけ取得する。
// このエンドポイントは豊富な指標を返すが不安定なため、
// 重めのリトライ制御はオーケストレータ側で行う。
func (c *JustOneClient) NoteDetailLegacy(ctx context.Context, noteID, xsecToken string) (map[string]any, error) {
	raw, err := c.call(ctx, justoneDetailLegacyPath, url.Values{
		"note_id":    {noteID},
		"xsec_token": {xsecToken},
	})
	if err != nil {
		return nil, err
	}
	return unwrapNote(c.Name(), raw)
}

// SearchNotes はキーワード検索を実行し、ノートペイロードの列を返す。
func (c *JustOneClient) SearchNotes(ctx context.Context, query model.SearchQuery) ([]map[string]any, error) {
	params := url.Values{
		"keyword": {query.Keyword},
	}
	if query.Sort != "" {
		params.Set("sort", string(query.Sort))
	}
	if query.TimeWindow != "" {
		params.Set("note_time", query.TimeWindow)
	}
	if query.Limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", query.Limit))
	}

	var items []map[string]any
	err := doWithRetry(ctx, c.retry, func(ctx context.Context) error {
		raw, err := c.call(ctx, justoneSearchPath, params)
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

// ResolveShareLink はシェアリンク展開APIで短縮リンクを実URLへ展開し、
// 投稿IDとアクセストークンを取り出す。
// 短縮リンクは安定した対象を指すため、この層ではリトライしない。
func (c *JustOneClient) ResolveShareLink(ctx context.Context, shortURL string) (noteID, xsecToken string, err error) {
	if c.token == "" {
		return "", "", &model.ConfigError{Reason: "JustOneAPIのトークンが設定されていないため短縮リンクを展開できません"}
	}

	raw, err := c.call(ctx, justoneTransferPath, url.Values{"url": {shortURL}})
	if err != nil {
		return "", "", err
	}

	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return "", "", &model.MalformedResponseError{
			Provider: c.Name(),
			Reason:   "転送結果をパースできません: " + err.Error(),
		}
	}

	// 転送結果にnoteIdが直接含まれるケース
	for _, key := range []string{"note_id", "noteId"} {
		if id, ok := data[key].(string); ok && id != "" {
			token, _ := data["xsec_token"].(string)
			return id, token, nil
		}
	}

	// redirect_urlから投稿IDを抽出するケース。
	// パス形式の判定はURL分類器と同じパターンを使う。
	if redirect, ok := data["redirect_url"].(string); ok && redirect != "" {
		ref, cerr := classifier.Classify(redirect)
		if cerr != nil || ref.PostID == "" {
			return "", "", &model.MalformedResponseError{
				Provider: c.Name(),
				Reason:   "リダイレクトURLから投稿IDを抽出できません: " + redirect,
			}
		}
		// リダイレクトURL側のxsec_tokenが最優先
		return ref.PostID, ref.AccessToken, nil
	}

	return "", "", &model.MalformedResponseError{
		Provider: c.Name(),
		Reason:   "転送結果が想定外の形式です（noteIdもredirect_urlも無い）",
	}
}

// call はJustOneAPIの共通呼び出し。クエリにtokenを付与し、
// エンベロープのcode != 0 を上流失敗として扱う。
func (c *JustOneClient) call(ctx context.Context, path string, params url.Values) (json.RawMessage, error) {
	params.Set("token", c.token)
	reqURL := c.baseURL + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}

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

	var env justoneEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &model.MalformedResponseError{
			Provider: c.Name(),
			Reason:   "JSONとしてパースできません: " + err.Error(),
		}
	}

	if env.Code != 0 {
		return nil, &model.UpstreamError{
			Provider: c.Name(),
			Code:     env.Code,
			Message:  env.Message,
		}
	}

	return env.Data, nil
}

// truncateBody は診断ログ用にボディを切り詰める。
func truncateBody(body []byte) []byte {
	const max = 512
	if len(body) > max {
		return body[:max]
	}
	return body
}
