// Package search は定期検索タスクのバックグラウンド実行を提供する。
// YAMLのタスク定義ファイルを読み込み、プラットフォームをまたいだ
// キーワード検索とその結果の保管庫への取り込みを行う。
package search

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hitoshi/notevault/internal/model"
)

// Task は1つの定期検索タスクの定義。
type Task struct {
	Keyword    string   `yaml:"keyword"`
	Platforms  []string `yaml:"platforms"`   // xiaohongshu / twitter。空は全プラットフォーム
	Sort       string   `yaml:"sort"`        // general / latest / most_liked
	TimeWindow string   `yaml:"time_window"` // 上流固有の期間指定（例: "1d", "1w"）
	Limit      int      `yaml:"limit"`       // 0はスケジューラの既定値
}

// TaskFile は検索タスク定義ファイルの全体。
type TaskFile struct {
	Tasks []Task `yaml:"tasks"`
}

// LoadTasks はYAMLのタスク定義ファイルを読み込んで検証する。
func LoadTasks(path string) ([]Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("検索タスクファイルの読み込みに失敗しました: %w", err)
	}

	var file TaskFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("検索タスクファイルの解析に失敗しました: %w", err)
	}

	for i, task := range file.Tasks {
		if task.Keyword == "" {
			return nil, fmt.Errorf("検索タスク[%d]: keywordは必須です", i)
		}
		for _, p := range task.Platforms {
			if model.Platform(p) != model.PlatformXiaohongshu && model.Platform(p) != model.PlatformTwitter {
				return nil, fmt.Errorf("検索タスク[%d]: 未知のプラットフォームです: %s", i, p)
			}
		}
	}
	return file.Tasks, nil
}

// platforms はタスクの対象プラットフォームを返す。未指定なら全プラットフォーム。
func (t Task) platforms() []model.Platform {
	if len(t.Platforms) == 0 {
		return []model.Platform{model.PlatformXiaohongshu, model.PlatformTwitter}
	}
	out := make([]model.Platform, 0, len(t.Platforms))
	for _, p := range t.Platforms {
		out = append(out, model.Platform(p))
	}
	return out
}

// query はタスクから1プラットフォーム分の検索条件を構築する。
func (t Task) query(platform model.Platform, defaultLimit int) model.SearchQuery {
	limit := t.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	sort := model.SortOrder(t.Sort)
	if sort == "" {
		sort = model.SortGeneral
	}
	return model.SearchQuery{
		Keyword:    t.Keyword,
		Platform:   platform,
		Sort:       sort,
		TimeWindow: t.TimeWindow,
		Limit:      limit,
	}
}
