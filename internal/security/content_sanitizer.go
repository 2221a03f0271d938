// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ContentSanitizerService は上流APIから取得した投稿本文と
// ユーザーの自由記述メモをサニタイズし、XSS攻撃などの
// セキュリティリスクから保護する。
// bluemondayライブラリを使用した許可リストベースのポリシーで、
// 安全なタグと属性のみを通過させる。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizerService はコンテンツのサニタイズ機能のインターフェースを定義する。
// レコードの保存前およびAPI応答時に使用される。
type ContentSanitizerService interface {
	// SanitizeText は上流APIから取得した投稿本文をプレーンテキストへ変換する。
	// 全てのHTMLタグを除去し、実体参照を復元する。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	SanitizeText(raw string) string

	// SanitizeNotes はユーザーの自由記述メモをサニタイズして安全なHTMLを返す。
	// 許可タグ（p, br, a, ul, ol, li, blockquote, pre, code, strong, em）のみを通過させ、
	// script, iframe, styleタグおよびon*イベント属性を除去する。
	// aタグにはtarget="_blank"とrel="noopener noreferrer"が自動付与される。
	SanitizeNotes(rawHTML string) string
}

// contentSanitizer はContentSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type contentSanitizer struct {
	strict *bluemonday.Policy
	notes  *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerServiceの新しいインスタンスを生成する。
// 初期化時にbluemondayのポリシーを構築する。
// ポリシーの内容:
//   - 本文用: StrictPolicy（全タグ除去）
//   - メモ用の許可タグ: p, br, a, ul, ol, li, blockquote, pre, code, strong, em
//   - 禁止タグ: script, iframe, style および全てのon*イベント属性
//   - aタグ: target="_blank" と rel="noreferrer noopener" を自動付与
func NewContentSanitizer() *contentSanitizer {
	notes := bluemonday.NewPolicy()

	// 許可タグの設定（属性なしのシンプルなタグ）
	// script, iframe, style等は許可リストに含めないことで自動的に除去される
	// on*イベント属性はbluemondayのデフォルトで許可されないため除去される
	notes.AllowElements(
		"p", "br", "ul", "ol", "li",
		"blockquote", "pre", "code",
		"strong", "em",
	)

	// aタグの設定:
	// - href属性を許可、相対URLは不許可
	// - target="_blank"とrel="noreferrer noopener"を強制付与
	notes.AllowAttrs("href").OnElements("a")
	notes.AllowRelativeURLs(false)
	notes.AddTargetBlankToFullyQualifiedLinks(true)
	notes.RequireNoReferrerOnLinks(true)
	notes.AllowURLSchemes("https")

	return &contentSanitizer{
		strict: bluemonday.StrictPolicy(),
		notes:  notes,
	}
}

// SanitizeText は上流APIから取得した投稿本文をプレーンテキストへ変換する。
func (s *contentSanitizer) SanitizeText(raw string) string {
	stripped := s.strict.Sanitize(raw)
	// StrictPolicyは出力をエスケープするため、プレーンテキストとして
	// 保存するには実体参照を元へ戻す
	return strings.TrimSpace(html.UnescapeString(stripped))
}

// SanitizeNotes はユーザーの自由記述メモをサニタイズして安全なHTMLを返す。
func (s *contentSanitizer) SanitizeNotes(rawHTML string) string {
	return s.notes.Sanitize(rawHTML)
}
