package dedupe

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/hitoshi/notevault/internal/model"
)

// CollectionPlan は同名コレクションの統合計画を表す。
type CollectionPlan struct {
	Groups        int               // 見つかった同名グループ数
	IDRewrites    map[string]string // 重複コレクションID → 正準ID
	DeletedIDs    []string          // 削除対象の重複コレクションID
	RecordUpdates []*model.Record   // 所属リストの書き換えが必要なレコード
}

// BuildCollectionPlan は大文字小文字を無視した同名コレクションを
// 統合する計画を計算する。正準は最も多くのレコードから参照されている
// コレクション（同点は作成日時の早いもの）。入力は変更されない。
func (e *Engine) BuildCollectionPlan(collections []*model.Collection, records []*model.Record) *CollectionPlan {
	refCount := make(map[string]int)
	for _, r := range records {
		for _, id := range r.Collections {
			refCount[id]++
		}
	}

	groups := make(map[string][]*model.Collection)
	var names []string
	for _, c := range collections {
		name := strings.ToLower(strings.TrimSpace(c.Name))
		if _, ok := groups[name]; !ok {
			names = append(names, name)
		}
		groups[name] = append(groups[name], c)
	}

	plan := &CollectionPlan{IDRewrites: make(map[string]string)}
	for _, name := range names {
		group := groups[name]
		if len(group) < 2 {
			continue
		}
		plan.Groups++

		ordered := append([]*model.Collection(nil), group...)
		sort.SliceStable(ordered, func(i, j int) bool {
			return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
		})
		sort.SliceStable(ordered, func(i, j int) bool {
			return refCount[ordered[i].ID] > refCount[ordered[j].ID]
		})

		canonical := ordered[0]
		for _, dup := range ordered[1:] {
			plan.IDRewrites[dup.ID] = canonical.ID
			plan.DeletedIDs = append(plan.DeletedIDs, dup.ID)
		}

		e.logger.Info("同名コレクションを検出しました",
			slog.String("name", name),
			slog.Int("members", len(group)),
			slog.String("canonical_id", canonical.ID),
		)
	}

	if len(plan.IDRewrites) == 0 {
		return plan
	}

	// 重複IDを所属リストに持つレコードを正準IDへ書き換える
	for _, r := range records {
		if !referencesAny(r.Collections, plan.IDRewrites) {
			continue
		}
		updated := r.Clone()
		updated.Collections = rewriteIDs(r.Collections, plan.IDRewrites)
		plan.RecordUpdates = append(plan.RecordUpdates, updated)
	}
	return plan
}

func referencesAny(ids []string, rewrites map[string]string) bool {
	for _, id := range ids {
		if _, ok := rewrites[id]; ok {
			return true
		}
	}
	return false
}

// rewriteIDs は書き換え表に従ってIDリストを置換し、
// 置換の結果生じた重複を初出順を保って取り除く。
func rewriteIDs(ids []string, rewrites map[string]string) []string {
	seen := make(map[string]bool, len(ids))
	var out []string
	for _, id := range ids {
		if canonical, ok := rewrites[id]; ok {
			id = canonical
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
