package model

import "time"

// Record は保管庫に永続化された投稿レコードを表す。
// NormalizedContentに安定IDと保管庫メタデータ（メモ、AI解析結果、
// コレクション所属、永久保存フラグ）を加えた形。
type Record struct {
	ID          string
	Platform    Platform
	Title       string
	Author      string
	RawText     string // サニタイズ済み
	CoverImage  string
	Images      []string
	Tags        []string
	Metrics     Metrics
	SourceURL   string
	Fingerprint string // URLを持たないレコードの同一性判定用コンテンツ指紋
	PublishTime string
	Provider    string

	// 保管庫メタデータ
	Notes            string   // ユーザーの自由記述メモ
	Summary          string   // AI解析による要約
	UsageScenarios   []string // AI解析: 活用シーン
	CoreKnowledge    []string // AI解析: 核心知識
	ExtractedPrompts []string // AI解析: 抽出プロンプト
	Collections      []string // 所属コレクションのIDリスト
	InVault          bool     // trueなら永久保存。falseはトレンドスナップショット

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Clone はRecordのディープコピーを返す。
// 重複排除エンジンがドライラン時に元データを変更しないために使用する。
func (r *Record) Clone() *Record {
	c := *r
	c.Images = append([]string(nil), r.Images...)
	c.Tags = append([]string(nil), r.Tags...)
	c.UsageScenarios = append([]string(nil), r.UsageScenarios...)
	c.CoreKnowledge = append([]string(nil), r.CoreKnowledge...)
	c.ExtractedPrompts = append([]string(nil), r.ExtractedPrompts...)
	c.Collections = append([]string(nil), r.Collections...)
	return &c
}

// Collection は投稿レコードをまとめるコレクションを表す。
type Collection struct {
	ID        string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}
