package provider

import (
	"encoding/json"

	"github.com/hitoshi/notevault/internal/model"
)

// unwrapNote はノート詳細ペイロードの形状揺れを吸収して
// ノートオブジェクト本体を取り出す。
// 同じ上流でも、配列で包まれている / note_list配下に1段ネストしている /
// トップレベルがそのままノート、の3形状が観測されているため、
// 1つの形状を前提とせず順に剥がす。
func unwrapNote(providerName string, raw json.RawMessage) (map[string]any, error) {
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, &model.MalformedResponseError{
			Provider: providerName,
			Reason:   "ノート詳細をパースできません: " + err.Error(),
		}
	}

	note := unwrapNoteValue(decoded)
	if note == nil {
		return nil, &model.MalformedResponseError{
			Provider: providerName,
			Reason:   "ノート詳細に本体オブジェクトが見つかりません",
		}
	}
	return note, nil
}

// unwrapNoteValue はデコード済みの値からノート本体を再帰的に取り出す。
func unwrapNoteValue(v any) map[string]any {
	switch t := v.(type) {
	case []any:
		if len(t) == 0 {
			return nil
		}
		return unwrapNoteValue(t[0])
	case map[string]any:
		// note_list / notes 配下に1段ネストしているケース
		for _, key := range []string{"note_list", "notes"} {
			if list, ok := t[key].([]any); ok && len(list) > 0 {
				if inner, ok := list[0].(map[string]any); ok {
					return inner
				}
			}
		}
		// note 配下に単体でネストしているケース
		if inner, ok := t["note"].(map[string]any); ok {
			return inner
		}
		return t
	default:
		return nil
	}
}

// unwrapNoteList は検索レスポンスからノートペイロードの列を取り出す。
// items / notes / note_list のいずれかのキー、または
// トップレベル配列のどれでも受け付ける。
func unwrapNoteList(providerName string, raw json.RawMessage) ([]map[string]any, error) {
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, &model.MalformedResponseError{
			Provider: providerName,
			Reason:   "検索結果をパースできません: " + err.Error(),
		}
	}

	var list []any
	switch t := decoded.(type) {
	case []any:
		list = t
	case map[string]any:
		for _, key := range []string{"items", "notes", "note_list", "data"} {
			if l, ok := t[key].([]any); ok {
				list = l
				break
			}
		}
	}

	if list == nil {
		return nil, &model.MalformedResponseError{
			Provider: providerName,
			Reason:   "検索結果にリストが見つかりません",
		}
	}

	out := make([]map[string]any, 0, len(list))
	for _, e := range list {
		item, ok := e.(map[string]any)
		if !ok {
			continue
		}
		// 検索結果の各要素もnote配下にネストしている場合がある
		if inner, ok := item["note"].(map[string]any); ok {
			item = inner
		}
		out = append(out, item)
	}
	return out, nil
}
