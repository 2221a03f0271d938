// Package dedupe は保管庫コーパス内の重複レコードの検出と併合を提供する。
// 定期検索の取り込みで同じ投稿が繰り返し保存された場合や、
// 過去の不具合で汚染されたコーパスのオフライン清掃に使用する。
package dedupe

import (
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"

	"github.com/hitoshi/notevault/internal/model"
)

// fingerprintRawLimit は指紋に含める本文の先頭文字数。
const fingerprintRawLimit = 120

// Plan は1回の重複排除パスの計算結果を表す。
// ドライランではこの計画を返すだけで一切の変更を行わない。
type Plan struct {
	Groups     int             // 見つかった重複グループ数
	Updates    []*model.Record // 併合後に内容が変化した正準レコード
	DeletedIDs []string        // 削除対象の重複レコードID
}

// Engine は重複レコードの検出と併合を行う。
// 計画の計算はスナップショットに対して純粋に行われ、
// 適用は呼び出し側（メンテナンスコマンド）の責務とする。
type Engine struct {
	logger *slog.Logger
}

// NewEngine はEngineの新しいインスタンスを生成する。
func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger}
}

// BuildPlan はレコードのスナップショットから併合計画を計算する。
// 入力レコードは変更されない。グループ化はまず正規化したsourceUrl、
// それが使えないレコードはコンテンツ指紋で行う。
func (e *Engine) BuildPlan(records []*model.Record) *Plan {
	groups := make(map[string][]*model.Record)
	var keys []string // マップの走査順を安定させる
	for _, r := range records {
		key := GroupKey(r)
		if _, ok := groups[key]; !ok {
			keys = append(keys, key)
		}
		groups[key] = append(groups[key], r)
	}

	plan := &Plan{}
	for _, key := range keys {
		group := groups[key]
		if len(group) < 2 {
			continue
		}
		plan.Groups++

		canonical, duplicates := pickCanonical(group)
		merged := canonical.Clone()
		for _, dup := range duplicates {
			mergeInto(merged, dup)
			plan.DeletedIDs = append(plan.DeletedIDs, dup.ID)
		}

		if changed(canonical, merged) {
			plan.Updates = append(plan.Updates, merged)
		}

		e.logger.Info("重複グループを検出しました",
			slog.String("key", key),
			slog.Int("members", len(group)),
			slog.String("canonical_id", canonical.ID),
		)
	}
	return plan
}

// GroupKey はレコードの同一性判定キーを返す。
// sourceUrlが信頼できる場合はクエリ文字列を除いた正規形、
// 空または番兵値「#」の場合はコンテンツ指紋を使う。
func GroupKey(r *model.Record) string {
	if canonical := canonicalURL(r.SourceURL); canonical != "" {
		return "url:" + canonical
	}
	return "fp:" + Fingerprint(r)
}

// Fingerprint はURLを持たないレコードのためのコンテンツ指紋を計算する。
func Fingerprint(r *model.Record) string {
	raw := []rune(r.RawText)
	if len(raw) > fingerprintRawLimit {
		raw = raw[:fingerprintRawLimit]
	}
	return strings.ToLower(fmt.Sprintf("%s|%s|%s|%s", r.Platform, r.Title, r.Author, string(raw)))
}

// canonicalURL はsourceUrlをスキームとホストを含む正規形へ変換する。
// クエリ文字列とフラグメントは同一性判定から除外する
// （xsec_tokenのような揮発パラメータで別投稿扱いになるのを防ぐ）。
func canonicalURL(sourceURL string) string {
	trimmed := strings.TrimSpace(sourceURL)
	if trimmed == "" || trimmed == "#" {
		return ""
	}
	u, err := url.Parse(trimmed)
	if err != nil || u.Host == "" {
		return ""
	}
	u.RawQuery = ""
	u.Fragment = ""
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host) + u.Path
}

// pickCanonical はグループ内で最も情報量の多いレコードを正準として選ぶ。
// 同点は作成日時の早いレコードが勝つ（安定ソート）。
func pickCanonical(group []*model.Record) (canonical *model.Record, duplicates []*model.Record) {
	ordered := append([]*model.Record(nil), group...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})
	sort.SliceStable(ordered, func(i, j int) bool {
		return Score(ordered[i]) > Score(ordered[j])
	})
	return ordered[0], ordered[1:]
}

// Score はレコードの情報量を表すヒューリスティックな得点を計算する。
// 永久保存フラグが支配的な重みを持ち、保管庫のレコードが
// トレンドスナップショットに置き換えられることはない。
func Score(r *model.Record) float64 {
	score := 0.0
	if r.InVault {
		score += 200
	}
	score += float64(len(r.Notes)) * 0.2
	score += float64(len(r.Summary)) * 0.2
	score += float64(len(r.UsageScenarios)+len(r.CoreKnowledge)+len(r.ExtractedPrompts)) * 20
	score += float64(len(r.RawText)) * 0.02
	score += float64(len(r.Tags)) * 8
	score += float64(len(r.Collections)) * 20
	score += float64(r.Metrics.Likes+r.Metrics.Bookmarks+r.Metrics.Comments) * 0.01
	if r.CoverImage != "" {
		score += 30
	}
	return score
}

// mergeInto は重複レコードの情報を正準レコードへ併合する。
func mergeInto(canonical, dup *model.Record) {
	canonical.Tags = unionStrings(canonical.Tags, dup.Tags)
	canonical.Collections = unionStrings(canonical.Collections, dup.Collections)
	canonical.UsageScenarios = unionStrings(canonical.UsageScenarios, dup.UsageScenarios)
	canonical.CoreKnowledge = unionStrings(canonical.CoreKnowledge, dup.CoreKnowledge)
	canonical.ExtractedPrompts = unionStrings(canonical.ExtractedPrompts, dup.ExtractedPrompts)

	canonical.Metrics = canonical.Metrics.Max(dup.Metrics)

	// 要約は長い方を残す
	if len(dup.Summary) > len(canonical.Summary) {
		canonical.Summary = dup.Summary
	}

	// 単一値フィールドは正準側が空か短い場合のみ置き換える
	if canonical.CoverImage == "" {
		canonical.CoverImage = dup.CoverImage
	}
	if canonical.SourceURL == "" || canonical.SourceURL == "#" {
		canonical.SourceURL = dup.SourceURL
	}
	if len(dup.RawText) > len(canonical.RawText) {
		canonical.RawText = dup.RawText
	}
	if len(dup.Notes) > len(canonical.Notes) {
		canonical.Notes = dup.Notes
	}

	if len(canonical.Images) == 0 {
		canonical.Images = append([]string(nil), dup.Images...)
	}

	// 昇格済みレコードを降格させない
	if dup.InVault {
		canonical.InVault = true
	}
}

// changed は併合前後でレコードの内容が変化したかを判定する。
// 変化がなければ書き戻しを省略する。
func changed(before, after *model.Record) bool {
	if before.Summary != after.Summary ||
		before.CoverImage != after.CoverImage ||
		before.SourceURL != after.SourceURL ||
		before.RawText != after.RawText ||
		before.Notes != after.Notes ||
		before.InVault != after.InVault ||
		before.Metrics != after.Metrics {
		return true
	}
	return !equalStrings(before.Tags, after.Tags) ||
		!equalStrings(before.Collections, after.Collections) ||
		!equalStrings(before.UsageScenarios, after.UsageScenarios) ||
		!equalStrings(before.CoreKnowledge, after.CoreKnowledge) ||
		!equalStrings(before.ExtractedPrompts, after.ExtractedPrompts) ||
		!equalStrings(before.Images, after.Images)
}

// unionStrings は2つのリストの和集合を初出順で返す。
func unionStrings(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, list := range [][]string{a, b} {
		for _, s := range list {
			if s == "" || seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
