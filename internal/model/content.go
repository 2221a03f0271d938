// Package model はドメインモデルを定義する。
package model

// Platform は投稿の発信元プラットフォームを表す。
type Platform string

const (
	// PlatformXiaohongshu は小紅書（Xiaohongshu / RED）。
	PlatformXiaohongshu Platform = "xiaohongshu"
	// PlatformTwitter はTwitter/X。
	PlatformTwitter Platform = "twitter"
	// PlatformUnknown は判別できなかったプラットフォーム。
	PlatformUnknown Platform = "unknown"
)

// PlatformRef はURL分類の結果を表す。
// PostIDが空の場合は短縮リンクであり、後段でのリンク展開が必要。
type PlatformRef struct {
	Platform    Platform
	PostID      string
	AccessToken string // 投稿スコープの閲覧トークン（例: 小紅書のxsec_token）
	OriginalURL string // 正規化済みの入力URL（スキーマ小文字化、www.除去）
}

// Metrics は投稿のエンゲージメント数値を表す。すべて非負整数。
type Metrics struct {
	Likes     int `json:"likes"`
	Bookmarks int `json:"bookmarks"`
	Comments  int `json:"comments"`
	Shares    int `json:"shares"`
}

// Max は2つのMetricsのフィールドごとの最大値を返す。
func (m Metrics) Max(other Metrics) Metrics {
	return Metrics{
		Likes:     maxInt(m.Likes, other.Likes),
		Bookmarks: maxInt(m.Bookmarks, other.Bookmarks),
		Comments:  maxInt(m.Comments, other.Comments),
		Shares:    maxInt(m.Shares, other.Shares),
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// NormalizedContent はプロバイダに依存しない投稿の内部表現。
// SourceURLは空にならない（上流が返さない場合はプラットフォームと投稿IDから合成する）。
type NormalizedContent struct {
	Platform     Platform
	PostID       string
	Title        string
	Author       string
	RawText      string
	CoverImage   string
	Images       []string
	Tags         []string
	Metrics      Metrics
	SourceURL    string
	PublishTime  string // 上流のフォーマットが不統一のため再パースしない
	ProviderUsed string
	ResolveNote  string // フォールバック発生時の観測用メモ。正しさには影響しない
}

// SortOrder は検索結果の並び順を表す。
type SortOrder string

const (
	// SortGeneral は総合順。
	SortGeneral SortOrder = "general"
	// SortLatest は新着順。
	SortLatest SortOrder = "latest"
	// SortMostLiked はいいね数順。
	SortMostLiked SortOrder = "most_liked"
)

// SearchQuery は1回の検索呼び出しの条件を表す。
type SearchQuery struct {
	Keyword    string
	Platform   Platform
	Sort       SortOrder
	TimeWindow string // 上流固有の期間指定（例: "1d", "1w"）。空は無制限
	Limit      int
}

// SearchResultBatch は1回の検索呼び出しが生成した正規化済み投稿の列。
type SearchResultBatch struct {
	Query        SearchQuery
	Items        []*NormalizedContent
	ProviderUsed string
}
