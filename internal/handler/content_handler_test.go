package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/notevault/internal/ingest"
	"github.com/hitoshi/notevault/internal/model"
)

// fakeResolver はContentResolverInterfaceのテスト用実装。
type fakeResolver struct {
	resolveFn func(ctx context.Context, ref *model.PlatformRef) (*model.NormalizedContent, error)
	searchFn  func(ctx context.Context, query model.SearchQuery) (*model.SearchResultBatch, error)

	lastRef   *model.PlatformRef
	lastQuery model.SearchQuery
}

func (f *fakeResolver) ResolveContent(ctx context.Context, ref *model.PlatformRef) (*model.NormalizedContent, error) {
	f.lastRef = ref
	return f.resolveFn(ctx, ref)
}

func (f *fakeResolver) Search(ctx context.Context, query model.SearchQuery) (*model.SearchResultBatch, error) {
	f.lastQuery = query
	return f.searchFn(ctx, query)
}

// fakeSaver はContentSaverInterfaceのテスト用実装。
type fakeSaver struct {
	record  *model.Record
	created bool
	err     error

	lastOpts ingest.SaveOptions
	calls    int
}

func (f *fakeSaver) SaveContent(ctx context.Context, content *model.NormalizedContent, opts ingest.SaveOptions) (*model.Record, bool, error) {
	f.calls++
	f.lastOpts = opts
	return f.record, f.created, f.err
}

func sampleContent() *model.NormalizedContent {
	return &model.NormalizedContent{
		Platform:     model.PlatformXiaohongshu,
		PostID:       "abc123",
		Title:        "テスト投稿",
		Author:       "author-1",
		RawText:      "本文",
		Metrics:      model.Metrics{Likes: 100, Bookmarks: 10},
		SourceURL:    "https://www.xiaohongshu.com/explore/abc123",
		ProviderUsed: "justone",
	}
}

// TestResolve_ReturnsNormalizedContent は解決成功時に正規化済み
// コンテンツが返されることを検証する。
func TestResolve_ReturnsNormalizedContent(t *testing.T) {
	resolver := &fakeResolver{
		resolveFn: func(ctx context.Context, ref *model.PlatformRef) (*model.NormalizedContent, error) {
			return sampleContent(), nil
		},
	}
	saver := &fakeSaver{}
	h := NewContentHandler(resolver, saver, nil)

	body, _ := json.Marshal(resolveRequest{URL: "https://www.xiaohongshu.com/explore/abc123?xsec_token=tok"})
	req := httptest.NewRequest(http.MethodPost, "/api/contents/resolve", bytes.NewReader(body))
	w := httptest.NewRecorder()

	h.Resolve(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body=%s", w.Code, http.StatusOK, w.Body.String())
	}

	var resp resolveResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("レスポンスのデコードに失敗: %v", err)
	}
	if resp.Content.PostID != "abc123" {
		t.Errorf("post_id = %q, want %q", resp.Content.PostID, "abc123")
	}
	if resp.Content.ProviderUsed != "justone" {
		t.Errorf("provider_used = %q, want %q", resp.Content.ProviderUsed, "justone")
	}
	if resp.RecordID != "" {
		t.Errorf("保存なしではrecord_idは空であるべき: %q", resp.RecordID)
	}
	if saver.calls != 0 {
		t.Errorf("保存なしではSaveContentは呼ばれないべき: %d回", saver.calls)
	}

	// 分類結果がリゾルバに渡っていること
	if resolver.lastRef == nil || resolver.lastRef.PostID != "abc123" {
		t.Errorf("分類済みの投稿IDが渡されるべき: %+v", resolver.lastRef)
	}
	if resolver.lastRef.AccessToken != "tok" {
		t.Errorf("xsec_tokenが抽出されるべき: %q", resolver.lastRef.AccessToken)
	}
}

// TestResolve_SaveOptionPersistsRecord はsave=trueで保管庫への
// UPSERTまで行われることを検証する。
func TestResolve_SaveOptionPersistsRecord(t *testing.T) {
	resolver := &fakeResolver{
		resolveFn: func(ctx context.Context, ref *model.PlatformRef) (*model.NormalizedContent, error) {
			return sampleContent(), nil
		},
	}
	saver := &fakeSaver{
		record:  &model.Record{ID: "rec-1"},
		created: true,
	}
	h := NewContentHandler(resolver, saver, nil)

	body, _ := json.Marshal(resolveRequest{
		URL:         "https://www.xiaohongshu.com/explore/abc123",
		Save:        true,
		InVault:     true,
		Collections: []string{"col-1"},
		Notes:       "あとで読む",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/contents/resolve", bytes.NewReader(body))
	w := httptest.NewRecorder()

	h.Resolve(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp resolveResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.RecordID != "rec-1" {
		t.Errorf("record_id = %q, want %q", resp.RecordID, "rec-1")
	}
	if !resp.Created {
		t.Error("createdはtrueであるべき")
	}
	if !saver.lastOpts.InVault {
		t.Error("InVaultオプションが渡されるべき")
	}
	if saver.lastOpts.Notes != "あとで読む" {
		t.Errorf("Notes = %q, want %q", saver.lastOpts.Notes, "あとで読む")
	}
}

// TestResolve_UnrecognizedURLReturns422 は分類できないURLで422が
// 返されることを検証する。
func TestResolve_UnrecognizedURLReturns422(t *testing.T) {
	h := NewContentHandler(&fakeResolver{}, &fakeSaver{}, nil)

	body, _ := json.Marshal(resolveRequest{URL: "https://example.com/unknown"})
	req := httptest.NewRequest(http.MethodPost, "/api/contents/resolve", bytes.NewReader(body))
	w := httptest.NewRecorder()

	h.Resolve(w, req)

	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnprocessableEntity)
	}

	var errBody errorResponseBody
	json.NewDecoder(w.Body).Decode(&errBody)
	if errBody.Code != model.ErrCodeUnrecognizedURL {
		t.Errorf("code = %q, want %q", errBody.Code, model.ErrCodeUnrecognizedURL)
	}
}

// TestResolve_EmptyBodyReturns400 は不正なリクエストボディで400が
// 返されることを検証する。
func TestResolve_EmptyBodyReturns400(t *testing.T) {
	h := NewContentHandler(&fakeResolver{}, &fakeSaver{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/contents/resolve", bytes.NewReader([]byte(`{}`)))
	w := httptest.NewRecorder()

	h.Resolve(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

// TestResolve_AllProvidersFailedReturns502 は全プロバイダ失敗時に
// 502と上流メッセージ入りのエラーが返されることを検証する。
func TestResolve_AllProvidersFailedReturns502(t *testing.T) {
	resolver := &fakeResolver{
		resolveFn: func(ctx context.Context, ref *model.PlatformRef) (*model.NormalizedContent, error) {
			return nil, &model.AllProvidersExhaustedError{
				Platform: model.PlatformXiaohongshu,
				Last:     &model.UpstreamError{Provider: "tikhub", Code: 403, Message: "quota exceeded"},
			}
		},
	}
	h := NewContentHandler(resolver, &fakeSaver{}, nil)

	body, _ := json.Marshal(resolveRequest{URL: "https://www.xiaohongshu.com/explore/abc123"})
	req := httptest.NewRequest(http.MethodPost, "/api/contents/resolve", bytes.NewReader(body))
	w := httptest.NewRecorder()

	h.Resolve(w, req)

	if w.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadGateway)
	}

	var errBody errorResponseBody
	json.NewDecoder(w.Body).Decode(&errBody)
	if errBody.Code != model.ErrCodeAllProvidersFailed {
		t.Errorf("code = %q, want %q", errBody.Code, model.ErrCodeAllProvidersFailed)
	}
	// 上流のメッセージが改変されずに含まれること
	if !bytes.Contains([]byte(errBody.Message), []byte("quota exceeded")) {
		t.Errorf("上流メッセージが含まれるべき: %q", errBody.Message)
	}
}

// TestResolve_ProviderNotConfiguredReturns503 はプロバイダ未設定で
// 503が返されることを検証する。
func TestResolve_ProviderNotConfiguredReturns503(t *testing.T) {
	resolver := &fakeResolver{
		resolveFn: func(ctx context.Context, ref *model.PlatformRef) (*model.NormalizedContent, error) {
			return nil, &model.ConfigError{Reason: "TWITTER_BEARER_TOKENが未設定"}
		},
	}
	h := NewContentHandler(resolver, &fakeSaver{}, nil)

	body, _ := json.Marshal(resolveRequest{URL: "https://x.com/user/status/123"})
	req := httptest.NewRequest(http.MethodPost, "/api/contents/resolve", bytes.NewReader(body))
	w := httptest.NewRecorder()

	h.Resolve(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
}

// TestSearch_ReturnsItems は検索成功時に正規化済みの投稿列が
// 返されることを検証する。
func TestSearch_ReturnsItems(t *testing.T) {
	resolver := &fakeResolver{
		searchFn: func(ctx context.Context, query model.SearchQuery) (*model.SearchResultBatch, error) {
			return &model.SearchResultBatch{
				Query:        query,
				Items:        []*model.NormalizedContent{sampleContent()},
				ProviderUsed: "tikhub",
			}, nil
		},
	}
	h := NewContentHandler(resolver, &fakeSaver{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/contents/search?keyword=Go&platform=xiaohongshu&sort=latest&limit=5", nil)
	w := httptest.NewRecorder()

	h.Search(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body=%s", w.Code, http.StatusOK, w.Body.String())
	}

	var resp searchResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if len(resp.Items) != 1 {
		t.Fatalf("件数 = %d, want 1", len(resp.Items))
	}
	if resp.ProviderUsed != "tikhub" {
		t.Errorf("provider_used = %q, want %q", resp.ProviderUsed, "tikhub")
	}

	// クエリパラメータがSearchQueryに変換されていること
	if resolver.lastQuery.Keyword != "Go" {
		t.Errorf("keyword = %q, want %q", resolver.lastQuery.Keyword, "Go")
	}
	if resolver.lastQuery.Sort != model.SortLatest {
		t.Errorf("sort = %q, want %q", resolver.lastQuery.Sort, model.SortLatest)
	}
	if resolver.lastQuery.Limit != 5 {
		t.Errorf("limit = %d, want 5", resolver.lastQuery.Limit)
	}
}

// TestSearch_DefaultsAndValidation は検索パラメータのデフォルト値と
// バリデーションを検証する。
func TestSearch_DefaultsAndValidation(t *testing.T) {
	resolver := &fakeResolver{
		searchFn: func(ctx context.Context, query model.SearchQuery) (*model.SearchResultBatch, error) {
			return &model.SearchResultBatch{Query: query}, nil
		},
	}
	h := NewContentHandler(resolver, &fakeSaver{}, nil)

	// keywordのみ: platformとsortとlimitはデフォルト
	req := httptest.NewRequest(http.MethodGet, "/api/contents/search?keyword=Go", nil)
	w := httptest.NewRecorder()
	h.Search(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if resolver.lastQuery.Platform != model.PlatformXiaohongshu {
		t.Errorf("デフォルトplatform = %q, want %q", resolver.lastQuery.Platform, model.PlatformXiaohongshu)
	}
	if resolver.lastQuery.Sort != model.SortGeneral {
		t.Errorf("デフォルトsort = %q, want %q", resolver.lastQuery.Sort, model.SortGeneral)
	}
	if resolver.lastQuery.Limit != defaultSearchLimit {
		t.Errorf("デフォルトlimit = %d, want %d", resolver.lastQuery.Limit, defaultSearchLimit)
	}

	// keywordなしは400
	w = httptest.NewRecorder()
	h.Search(w, httptest.NewRequest(http.MethodGet, "/api/contents/search", nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("keywordなし: status = %d, want %d", w.Code, http.StatusBadRequest)
	}

	// 未知のplatformは400
	w = httptest.NewRecorder()
	h.Search(w, httptest.NewRequest(http.MethodGet, "/api/contents/search?keyword=Go&platform=instagram", nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("未知platform: status = %d, want %d", w.Code, http.StatusBadRequest)
	}

	// 不正なlimitは400
	w = httptest.NewRecorder()
	h.Search(w, httptest.NewRequest(http.MethodGet, "/api/contents/search?keyword=Go&limit=abc", nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("不正limit: status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}
