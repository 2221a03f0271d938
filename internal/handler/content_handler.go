package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/hitoshi/notevault/internal/classifier"
	"github.com/hitoshi/notevault/internal/ingest"
	"github.com/hitoshi/notevault/internal/model"
)

// defaultSearchLimit は検索結果の1回の取得件数（デフォルト）。
const defaultSearchLimit = 20

// ContentResolverInterface はコンテンツ解決サービスのインターフェース。
type ContentResolverInterface interface {
	// ResolveContent は分類済みの投稿参照を正規化済みコンテンツに解決する。
	ResolveContent(ctx context.Context, ref *model.PlatformRef) (*model.NormalizedContent, error)
	// Search はキーワード検索を実行し正規化済みの投稿列を返す。
	Search(ctx context.Context, query model.SearchQuery) (*model.SearchResultBatch, error)
}

// ContentSaverInterface は取り込みサービスのインターフェース。
type ContentSaverInterface interface {
	// SaveContent は正規化済みコンテンツをUPSERTし、保存後のレコードと
	// 新規作成フラグを返す。
	SaveContent(ctx context.Context, content *model.NormalizedContent, opts ingest.SaveOptions) (*model.Record, bool, error)
}

// ResolveMetricsRecorder は解決処理の計測インターフェース。
type ResolveMetricsRecorder interface {
	RecordResolveLatency(platform string, d time.Duration)
	RecordRecordsSaved(count int)
}

// ContentHandler はコンテンツ解決・検索のHTTPハンドラー。
type ContentHandler struct {
	resolver ContentResolverInterface
	saver    ContentSaverInterface
	metrics  ResolveMetricsRecorder
}

// NewContentHandler はContentHandlerを生成する。
// metricsはnilでもよい（計測なしで動作する）。
func NewContentHandler(resolver ContentResolverInterface, saver ContentSaverInterface, metrics ResolveMetricsRecorder) *ContentHandler {
	return &ContentHandler{
		resolver: resolver,
		saver:    saver,
		metrics:  metrics,
	}
}

// --- リクエスト・レスポンス型 ---

// resolveRequest はコンテンツ解決リクエストのボディ。
type resolveRequest struct {
	URL         string   `json:"url"`
	Save        bool     `json:"save,omitempty"`
	InVault     bool     `json:"in_vault,omitempty"`
	Collections []string `json:"collections,omitempty"`
	Notes       string   `json:"notes,omitempty"`
}

// contentResponse は正規化済みコンテンツのレスポンス。
type contentResponse struct {
	Platform     string   `json:"platform"`
	PostID       string   `json:"post_id"`
	Title        string   `json:"title"`
	Author       string   `json:"author"`
	RawText      string   `json:"raw_text"`
	CoverImage   string   `json:"cover_image,omitempty"`
	Images       []string `json:"images,omitempty"`
	Tags         []string `json:"tags,omitempty"`
	Likes        int      `json:"likes"`
	Bookmarks    int      `json:"bookmarks"`
	Comments     int      `json:"comments"`
	Shares       int      `json:"shares"`
	SourceURL    string   `json:"source_url"`
	PublishTime  string   `json:"publish_time,omitempty"`
	ProviderUsed string   `json:"provider_used"`
	ResolveNote  string   `json:"resolve_note,omitempty"`
}

// resolveResponse はコンテンツ解決のレスポンス。
// 保存した場合はレコードIDと新規作成フラグを含む。
type resolveResponse struct {
	Content  contentResponse `json:"content"`
	RecordID string          `json:"record_id,omitempty"`
	Created  bool            `json:"created,omitempty"`
}

// searchResponse はキーワード検索のレスポンス。
type searchResponse struct {
	Keyword      string            `json:"keyword"`
	Platform     string            `json:"platform"`
	ProviderUsed string            `json:"provider_used"`
	Items        []contentResponse `json:"items"`
}

// toContentResponse はNormalizedContentをレスポンス型に変換する。
func toContentResponse(c *model.NormalizedContent) contentResponse {
	return contentResponse{
		Platform:     string(c.Platform),
		PostID:       c.PostID,
		Title:        c.Title,
		Author:       c.Author,
		RawText:      c.RawText,
		CoverImage:   c.CoverImage,
		Images:       c.Images,
		Tags:         c.Tags,
		Likes:        c.Metrics.Likes,
		Bookmarks:    c.Metrics.Bookmarks,
		Comments:     c.Metrics.Comments,
		Shares:       c.Metrics.Shares,
		SourceURL:    c.SourceURL,
		PublishTime:  c.PublishTime,
		ProviderUsed: c.ProviderUsed,
		ResolveNote:  c.ResolveNote,
	}
}

// Resolve は入力URLを分類・解決し、正規化済みコンテンツを返す。
// save=trueの場合は保管庫へのUPSERTまで行う。
// POST /api/contents/resolve
func (h *ContentHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("JSONボディをパースできません"))
		return
	}
	if req.URL == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("urlが空です"))
		return
	}

	ref, err := classifier.Classify(req.URL)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	start := time.Now()
	content, err := h.resolver.ResolveContent(r.Context(), ref)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if h.metrics != nil {
		h.metrics.RecordResolveLatency(string(ref.Platform), time.Since(start))
	}

	resp := resolveResponse{Content: toContentResponse(content)}

	if req.Save {
		record, created, err := h.saver.SaveContent(r.Context(), content, ingest.SaveOptions{
			InVault:     req.InVault,
			Collections: req.Collections,
			Notes:       req.Notes,
		})
		if err != nil {
			handleServiceError(w, err)
			return
		}
		resp.RecordID = record.ID
		resp.Created = created
		if h.metrics != nil {
			h.metrics.RecordRecordsSaved(1)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// Search はキーワード検索を実行する。
// GET /api/contents/search?keyword=xxx&platform=xiaohongshu&sort=latest&time_window=1w&limit=20
func (h *ContentHandler) Search(w http.ResponseWriter, r *http.Request) {
	keyword := r.URL.Query().Get("keyword")
	if keyword == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("keywordが空です"))
		return
	}

	platform := model.Platform(r.URL.Query().Get("platform"))
	if platform == "" {
		platform = model.PlatformXiaohongshu
	}
	if platform != model.PlatformXiaohongshu && platform != model.PlatformTwitter {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("platformはxiaohongshuまたはtwitterを指定してください"))
		return
	}

	sort := model.SortOrder(r.URL.Query().Get("sort"))
	if sort == "" {
		sort = model.SortGeneral
	}

	limit := defaultSearchLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("limitは正の整数を指定してください"))
			return
		}
		limit = parsed
	}

	query := model.SearchQuery{
		Keyword:    keyword,
		Platform:   platform,
		Sort:       sort,
		TimeWindow: r.URL.Query().Get("time_window"),
		Limit:      limit,
	}

	batch, err := h.resolver.Search(r.Context(), query)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	items := make([]contentResponse, len(batch.Items))
	for i, item := range batch.Items {
		items[i] = toContentResponse(item)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(searchResponse{
		Keyword:      query.Keyword,
		Platform:     string(query.Platform),
		ProviderUsed: batch.ProviderUsed,
		Items:        items,
	})
}
