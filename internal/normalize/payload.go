package normalize

import "fmt"

// stringExtractor はペイロードから文字列フィールドの候補値を1つ取り出す関数。
// 値が取れない場合は空文字を返す。
//
// 上流スキーマはプロバイダやバージョンによってフィールド名が揺れるため、
// フィールドごとに抽出関数の順序付きリストを持ち「最初の非空値が勝つ」
// 方式で解決する。新しいスキーマ変種への対応は抽出関数を1つ追記するだけでよい。
type stringExtractor func(p map[string]any) string

// firstNonEmpty は抽出関数を順に適用し、最初の非空値を返す。
func firstNonEmpty(p map[string]any, extractors ...stringExtractor) string {
	for _, ex := range extractors {
		if v := ex(p); v != "" {
			return v
		}
	}
	return ""
}

// field は単純なキー参照の抽出関数を生成する。
func field(key string) stringExtractor {
	return func(p map[string]any) string {
		return asString(p[key])
	}
}

// nested はネストしたマップを辿る抽出関数を生成する。
// 途中のキーが存在しない・マップでない場合は空文字を返す。
func nested(keys ...string) stringExtractor {
	return func(p map[string]any) string {
		cur := p
		for i, key := range keys {
			if i == len(keys)-1 {
				return asString(cur[key])
			}
			next, ok := cur[key].(map[string]any)
			if !ok {
				return ""
			}
			cur = next
		}
		return ""
	}
}

// asString は文字列または数値をそのまま文字列化する。
// それ以外の型（マップ、スライス等）は空文字を返す。
func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		// JSONの整数はfloat64でデコードされる。小数点以下ゼロは省く
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%v", t)
	case int:
		return fmt.Sprintf("%d", t)
	case int64:
		return fmt.Sprintf("%d", t)
	default:
		return ""
	}
}

// asMap はanyをマップとして取り出す。マップでなければnilを返す。
func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

// asSlice はanyをスライスとして取り出す。スライスでなければnilを返す。
func asSlice(v any) []any {
	s, _ := v.([]any)
	return s
}
