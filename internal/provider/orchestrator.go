package provider

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/notevault/internal/model"
	"github.com/hitoshi/notevault/internal/normalize"
)

// XHSProvider は小紅書のノート取得を提供するプロバイダのインターフェース。
type XHSProvider interface {
	Name() string
	NoteDetail(ctx context.Context, noteID, xsecToken string) (map[string]any, error)
	SearchNotes(ctx context.Context, query model.SearchQuery) ([]map[string]any, error)
}

// legacyDetailProvider はレガシー詳細エンドポイントを併せ持つプロバイダの
// 任意実装インターフェース。実装するプロバイダには二段構え戦略が適用される:
// 豊富な指標を返すが不安定なレガシーを重めのリトライで先に試し、
// 全滅した場合のみプライマリへリトライなしでフォールバックする。
type legacyDetailProvider interface {
	NoteDetailLegacy(ctx context.Context, noteID, xsecToken string) (map[string]any, error)
}

// TwitterProvider はツイート取得を提供するプロバイダのインターフェース。
type TwitterProvider interface {
	Name() string
	TweetDetail(ctx context.Context, tweetID string) (map[string]any, error)
	SearchTweets(ctx context.Context, query model.SearchQuery) ([]map[string]any, error)
}

// ShortLinkResolver は短縮リンクを投稿IDへ展開する能力のインターフェース。
type ShortLinkResolver interface {
	ResolveShareLink(ctx context.Context, shortURL string) (noteID, xsecToken string, err error)
}

// MetricsRecorder はオーケストレータが記録するメトリクスのインターフェース。
type MetricsRecorder interface {
	RecordProviderCall(provider, result string)
	RecordResolveLatency(platform string, d time.Duration)
}

// PreferenceAuto はプロバイダ優先度の既定値（組み込みの固定順序）。
const PreferenceAuto = "auto"

// OrderXHSProviders は優先度設定と認証情報の有無から、
// 試行順に並んだ小紅書プロバイダのリストを構築する。
// preferredに名指しされたプロバイダを先頭へ、残りは組み込み順
// （justone → tikhub）で続ける。未設定（nil）のプロバイダは含めない。
func OrderXHSProviders(preferred string, justone, tikhub XHSProvider) []XHSProvider {
	builtin := []XHSProvider{justone, tikhub}

	var ordered []XHSProvider
	if preferred != "" && preferred != PreferenceAuto {
		for _, p := range builtin {
			if p != nil && p.Name() == preferred {
				ordered = append(ordered, p)
			}
		}
	}
	for _, p := range builtin {
		if p == nil {
			continue
		}
		if len(ordered) > 0 && ordered[0].Name() == p.Name() {
			continue
		}
		ordered = append(ordered, p)
	}
	return ordered
}

// Orchestrator はプラットフォームごとの設定済みプロバイダ列を
// 優先順に試行し、最初に使用可能な正規化済み結果を返す。
// プロバイダ試行は厳密に逐次であり、先行プロバイダが成功した場合に
// 後続プロバイダが呼ばれることはない。
type Orchestrator struct {
	xhsProviders []XHSProvider
	twitter      TwitterProvider
	shortLink    ShortLinkResolver
	normalizer   *normalize.Normalizer
	legacyRetry  RetryPolicy
	logger       *slog.Logger
	metrics      MetricsRecorder
}

// OrchestratorConfig はOrchestratorの依存関係をまとめた構造体。
type OrchestratorConfig struct {
	XHSProviders []XHSProvider     // 優先順。空なら小紅書は未設定扱い
	Twitter      TwitterProvider   // nilならTwitter/Xは未設定扱い
	ShortLink    ShortLinkResolver // nilなら短縮リンク展開は不可
	Normalizer   *normalize.Normalizer
	LegacyRetry  RetryPolicy // レガシー詳細エンドポイントの重めのリトライ設定
	Logger       *slog.Logger
	Metrics      MetricsRecorder // nil可
}

// NewOrchestrator はOrchestratorの新しいインスタンスを生成する。
func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	legacyRetry := cfg.LegacyRetry
	if legacyRetry.Attempts < 1 {
		legacyRetry = RetryPolicy{Attempts: 10, Delay: 250 * time.Millisecond}
	}
	return &Orchestrator{
		xhsProviders: cfg.XHSProviders,
		twitter:      cfg.Twitter,
		shortLink:    cfg.ShortLink,
		normalizer:   cfg.Normalizer,
		legacyRetry:  legacyRetry,
		logger:       logger,
		metrics:      cfg.Metrics,
	}
}

// ResolveContent は分類済みの参照から投稿を取得し、正規化して返す。
func (o *Orchestrator) ResolveContent(ctx context.Context, ref *model.PlatformRef) (*model.NormalizedContent, error) {
	start := time.Now()
	defer func() {
		if o.metrics != nil {
			o.metrics.RecordResolveLatency(string(ref.Platform), time.Since(start))
		}
	}()

	switch ref.Platform {
	case model.PlatformXiaohongshu:
		return o.resolveXHS(ctx, ref)
	case model.PlatformTwitter:
		return o.resolveTweet(ctx, ref)
	default:
		return nil, &model.ClassificationError{
			Input:  string(ref.Platform),
			Reason: "未知のプラットフォームです",
		}
	}
}

// resolveXHS は小紅書の投稿を設定済みプロバイダ列で解決する。
func (o *Orchestrator) resolveXHS(ctx context.Context, ref *model.PlatformRef) (*model.NormalizedContent, error) {
	if len(o.xhsProviders) == 0 {
		return nil, &model.ConfigError{Reason: "小紅書のプロバイダが1つも設定されていません"}
	}

	postID, xsecToken := ref.PostID, ref.AccessToken

	// 短縮リンクは先に展開する。リンク展開自体はリトライしない
	// （リトライはこの後のプロバイダ試行に属する）。
	if postID == "" {
		if o.shortLink == nil {
			return nil, &model.ConfigError{Reason: "短縮リンク展開サービスが設定されていません"}
		}
		resolvedID, resolvedToken, err := o.shortLink.ResolveShareLink(ctx, ref.OriginalURL)
		if err != nil {
			return nil, err
		}
		postID = resolvedID
		// リダイレクトURL由来のxsec_tokenが最優先
		if resolvedToken != "" {
			xsecToken = resolvedToken
		}
	}

	var lastErr error
	for _, p := range o.xhsProviders {
		payload, resolveNote, err := o.fetchXHSDetail(ctx, p, postID, xsecToken)
		if err != nil {
			if ctx.Err() != nil {
				// キャンセルはプロバイダ障害として扱わない
				return nil, ctx.Err()
			}
			o.recordProviderCall(p.Name(), "fail")
			o.logger.Warn("プロバイダが失敗しました。次のプロバイダへフォールバックします",
				slog.String("provider", p.Name()),
				slog.String("post_id", postID),
				slog.String("error", err.Error()),
			)
			lastErr = err
			continue
		}

		content, err := o.normalizer.Normalize(ctx, payload, model.PlatformXiaohongshu)
		if err != nil {
			lastErr = err
			continue
		}
		if content.PostID == "" {
			content.PostID = postID
		}
		content.ProviderUsed = p.Name()
		content.ResolveNote = resolveNote
		o.recordProviderCall(p.Name(), "success")
		return content, nil
	}

	return nil, &model.AllProvidersExhaustedError{Platform: model.PlatformXiaohongshu, Last: lastErr}
}

// fetchXHSDetail は1プロバイダに対する詳細取得を実行する。
// レガシー詳細を持つプロバイダには二段構え戦略を適用し、
// レガシーが全滅した場合は失敗を観測用メモとして残したうえで
// プライマリへフォールバックする（メモは正しさに影響しない）。
func (o *Orchestrator) fetchXHSDetail(ctx context.Context, p XHSProvider, postID, xsecToken string) (map[string]any, string, error) {
	lp, hasLegacy := p.(legacyDetailProvider)
	if !hasLegacy {
		payload, err := p.NoteDetail(ctx, postID, xsecToken)
		return payload, "", err
	}

	var payload map[string]any
	legacyErr := doWithRetry(ctx, o.legacyRetry, func(ctx context.Context) error {
		var err error
		payload, err = lp.NoteDetailLegacy(ctx, postID, xsecToken)
		return err
	})
	if legacyErr == nil {
		return payload, "", nil
	}
	if ctx.Err() != nil {
		return nil, "", ctx.Err()
	}

	o.logger.Warn("レガシー詳細エンドポイントが全滅しました。プライマリへフォールバックします",
		slog.String("provider", p.Name()),
		slog.Int("attempts", o.legacyRetry.Attempts),
		slog.String("error", legacyErr.Error()),
	)

	payload, err := p.NoteDetail(ctx, postID, xsecToken)
	if err != nil {
		return nil, "", err
	}

	note := fmt.Sprintf("レガシー詳細エンドポイントが%d回の試行で失敗したためプライマリで解決しました: %v",
		o.legacyRetry.Attempts, legacyErr)
	return payload, note, nil
}

// resolveTweet はTwitter/Xの投稿を解決する。
// Twitter/Xのプロバイダは公式APIただ1つであり、フォールバックは存在しない。
// 認証情報の欠落はリトライ可能な状態ではなく設定エラー。
func (o *Orchestrator) resolveTweet(ctx context.Context, ref *model.PlatformRef) (*model.NormalizedContent, error) {
	if o.twitter == nil {
		return nil, &model.ConfigError{Reason: "Twitter/XのAPI認証情報が設定されていません"}
	}

	payload, err := o.twitter.TweetDetail(ctx, ref.PostID)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		o.recordProviderCall(o.twitter.Name(), "fail")
		return nil, err
	}

	content, err := o.normalizer.Normalize(ctx, payload, model.PlatformTwitter)
	if err != nil {
		return nil, err
	}
	if content.PostID == "" {
		content.PostID = ref.PostID
	}
	content.ProviderUsed = o.twitter.Name()
	o.recordProviderCall(o.twitter.Name(), "success")
	return content, nil
}

// Search はキーワード検索を実行し、正規化済み投稿の列を返す。
// 小紅書は詳細取得と同じ優先順でプロバイダをフォールバックする。
func (o *Orchestrator) Search(ctx context.Context, query model.SearchQuery) (*model.SearchResultBatch, error) {
	switch query.Platform {
	case model.PlatformXiaohongshu:
		return o.searchXHS(ctx, query)
	case model.PlatformTwitter:
		return o.searchTwitter(ctx, query)
	default:
		return nil, &model.ClassificationError{
			Input:  string(query.Platform),
			Reason: "未知のプラットフォームです",
		}
	}
}

// searchXHS は小紅書の検索をプロバイダ列で実行する。
func (o *Orchestrator) searchXHS(ctx context.Context, query model.SearchQuery) (*model.SearchResultBatch, error) {
	if len(o.xhsProviders) == 0 {
		return nil, &model.ConfigError{Reason: "小紅書のプロバイダが1つも設定されていません"}
	}

	var lastErr error
	for _, p := range o.xhsProviders {
		items, err := p.SearchNotes(ctx, query)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			o.recordProviderCall(p.Name(), "fail")
			o.logger.Warn("検索プロバイダが失敗しました。次のプロバイダへフォールバックします",
				slog.String("provider", p.Name()),
				slog.String("keyword", query.Keyword),
				slog.String("error", err.Error()),
			)
			lastErr = err
			continue
		}

		o.recordProviderCall(p.Name(), "success")
		return o.buildBatch(ctx, query, items, p.Name()), nil
	}

	return nil, &model.AllProvidersExhaustedError{Platform: model.PlatformXiaohongshu, Last: lastErr}
}

// searchTwitter はTwitter/Xの検索を実行する。
func (o *Orchestrator) searchTwitter(ctx context.Context, query model.SearchQuery) (*model.SearchResultBatch, error) {
	if o.twitter == nil {
		return nil, &model.ConfigError{Reason: "Twitter/XのAPI認証情報が設定されていません"}
	}

	items, err := o.twitter.SearchTweets(ctx, query)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		o.recordProviderCall(o.twitter.Name(), "fail")
		return nil, err
	}

	o.recordProviderCall(o.twitter.Name(), "success")
	return o.buildBatch(ctx, query, items, o.twitter.Name()), nil
}

// buildBatch は検索結果の各要素を正規化してバッチへまとめる。
// 正規化できない要素は警告ログを残してスキップする
// （検索は部分的な成功を許容する）。
func (o *Orchestrator) buildBatch(ctx context.Context, query model.SearchQuery, items []map[string]any, providerName string) *model.SearchResultBatch {
	batch := &model.SearchResultBatch{
		Query:        query,
		ProviderUsed: providerName,
	}
	for _, item := range items {
		content, err := o.normalizer.Normalize(ctx, item, query.Platform)
		if err != nil {
			o.logger.Warn("検索結果の正規化に失敗しました",
				slog.String("provider", providerName),
				slog.String("error", err.Error()),
			)
			continue
		}
		content.ProviderUsed = providerName
		batch.Items = append(batch.Items, content)
	}
	return batch
}

func (o *Orchestrator) recordProviderCall(provider, result string) {
	if o.metrics != nil {
		o.metrics.RecordProviderCall(provider, result)
	}
}
