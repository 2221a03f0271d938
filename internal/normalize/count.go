// Package normalize はプロバイダごとに異なるペイロードを
// 内部表現NormalizedContentへ正規化する。I/Oは行わない純粋変換のみ。
package normalize

import (
	"math"
	"strconv"
	"strings"
)

// countSuffixes はエンゲージメント数値の末尾単位と乗数の対応表。
// 中国語圏の略記（万/千）と英語圏の略記（w/k）の両方を受け付ける。
var countSuffixes = []struct {
	suffix     string
	multiplier float64
}{
	{"万", 10000},
	{"w", 10000},
	{"千", 1000},
	{"k", 1000},
}

// ParseCount は様々な表記のエンゲージメント数値を非負整数に変換する。
// 数値はそのまま、"1.2w"/"3千"等の略記は乗数を掛けて四捨五入する。
// 解釈できない入力は0を返し、けっしてパニックやエラーにしない。
func ParseCount(value any) int {
	switch v := value.(type) {
	case nil:
		return 0
	case int:
		return clampNonNegative(v)
	case int64:
		return clampNonNegative(int(v))
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0
		}
		return clampNonNegative(int(math.Round(v)))
	case string:
		return parseCountString(v)
	default:
		return 0
	}
}

// parseCountString は文字列表記の数値をパースする。
// トリム・カンマ除去・小文字化のうえで単位付き表記と素の数値の両方を試みる。
func parseCountString(s string) int {
	s = strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), ",", ""))
	if s == "" {
		return 0
	}

	for _, unit := range countSuffixes {
		if !strings.HasSuffix(s, unit.suffix) {
			continue
		}
		numPart := strings.TrimSuffix(s, unit.suffix)
		n, err := strconv.ParseFloat(numPart, 64)
		if err != nil {
			return 0
		}
		return clampNonNegative(int(math.Round(n * unit.multiplier)))
	}

	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return clampNonNegative(int(math.Round(n)))
}

func clampNonNegative(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

// PickFirstMetric は候補フィールド名のうち最初に存在する非nil値を
// ParseCountで解釈して返す。どの候補も無ければ0を返す。
// 上流スキーマのバージョンやプロバイダによって同じ指標の
// フィールド名が異なるために使う。
func PickFirstMetric(record map[string]any, candidates ...string) int {
	for _, key := range candidates {
		if v, ok := record[key]; ok && v != nil {
			return ParseCount(v)
		}
	}
	return 0
}
