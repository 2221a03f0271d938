package normalize

import (
	"context"
	"log/slog"

	"github.com/hitoshi/notevault/internal/model"
)

// CoverImageGenerator は表紙画像を外部生成する能力のインターフェース。
// メディアを持たないツイートの表紙を補うために使う。
// 生成の失敗や未設定（nil）は正規化全体を失敗させず、空の表紙に退避する。
type CoverImageGenerator interface {
	Generate(ctx context.Context, title, text string) (string, error)
}

// Normalizer はプロバイダごとのペイロードをNormalizedContentへ変換する。
type Normalizer struct {
	coverGen CoverImageGenerator // nilの場合は表紙生成フォールバックなし
	logger   *slog.Logger
}

// NewNormalizer はNormalizerの新しいインスタンスを生成する。
// coverGenはnilでもよい。
func NewNormalizer(coverGen CoverImageGenerator, logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{
		coverGen: coverGen,
		logger:   logger,
	}
}

// Normalize はペイロードをプラットフォーム種別に応じて正規化する。
// 未知のプラットフォームの場合はエラーを返す（パニックはしない）。
// オプショナルなフィールドの欠落はエラーにせず、空値/ゼロ値に落とす。
func (n *Normalizer) Normalize(ctx context.Context, payload map[string]any, platform model.Platform) (*model.NormalizedContent, error) {
	switch platform {
	case model.PlatformXiaohongshu:
		return n.normalizeXiaohongshuNote(payload), nil
	case model.PlatformTwitter:
		return n.normalizeTweet(ctx, payload), nil
	default:
		return nil, &model.ClassificationError{
			Input:  string(platform),
			Reason: "未知のプラットフォームです",
		}
	}
}

// uniqueAppend は初出順を保ちながらvをdstへ重複なしで追加する。
func uniqueAppend(dst []string, seen map[string]bool, v string) []string {
	if v == "" || seen[v] {
		return dst
	}
	seen[v] = true
	return append(dst, v)
}
