package security

import (
	"strings"
	"testing"
)

// TestSanitizeText_StripsAllTags は本文サニタイズが全てのタグを除去し、
// プレーンテキストだけを残すことを検証する。
func TestSanitizeText_StripsAllTags(t *testing.T) {
	sanitizer := NewContentSanitizer()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "タグなしの本文はそのまま",
			input: "狭い部屋でもできる収納の工夫",
			want:  "狭い部屋でもできる収納の工夫",
		},
		{
			name:  "pタグが除去される",
			input: "<p>テスト段落</p>",
			want:  "テスト段落",
		},
		{
			name:  "scriptタグと中身が除去される",
			input: `before<script>alert("xss")</script>after`,
			want:  "beforeafter",
		},
		{
			name:  "実体参照が復元される",
			input: "A &amp; B &lt;C&gt;",
			want:  "A & B <C>",
		},
		{
			name:  "前後の空白が除去される",
			input: "  本文  ",
			want:  "本文",
		},
		{
			name:  "空文字列は空文字列",
			input: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizer.SanitizeText(tt.input)
			if got != tt.want {
				t.Errorf("SanitizeText(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// TestSanitizeText_Idempotent は同一入力に対して常に同一出力を返すことを検証する。
func TestSanitizeText_Idempotent(t *testing.T) {
	sanitizer := NewContentSanitizer()
	input := `<p>本文</p><script>alert(1)</script>`

	first := sanitizer.SanitizeText(input)
	second := sanitizer.SanitizeText(first)
	if first != second {
		t.Errorf("冪等であるべき: 1回目=%q 2回目=%q", first, second)
	}
}

// TestSanitizeNotes_AllowedTags はメモの許可タグが正しく通過することを検証する。
func TestSanitizeNotes_AllowedTags(t *testing.T) {
	sanitizer := NewContentSanitizer()

	tests := []struct {
		name  string
		input string
		// want に含まれるべき部分文字列
		wantContains []string
	}{
		{
			name:         "pタグが許可される",
			input:        "<p>メモ本文</p>",
			wantContains: []string{"<p>メモ本文</p>"},
		},
		{
			name:         "strongタグとemタグが許可される",
			input:        "<strong>重要</strong>と<em>強調</em>",
			wantContains: []string{"<strong>重要</strong>", "<em>強調</em>"},
		},
		{
			name:         "ulタグとliタグが許可される",
			input:        "<ul><li>項目1</li><li>項目2</li></ul>",
			wantContains: []string{"<ul>", "<li>項目1</li>", "<li>項目2</li>", "</ul>"},
		},
		{
			name:         "codeタグとpreタグが許可される",
			input:        "<pre><code>prompt template</code></pre>",
			wantContains: []string{"<pre>", "<code>prompt template</code>", "</pre>"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizer.SanitizeNotes(tt.input)
			for _, want := range tt.wantContains {
				if !strings.Contains(got, want) {
					t.Errorf("出力に %q が含まれるべき: %q", want, got)
				}
			}
		})
	}
}

// TestSanitizeNotes_DangerousContent は危険なタグと属性が除去されることを検証する。
func TestSanitizeNotes_DangerousContent(t *testing.T) {
	sanitizer := NewContentSanitizer()

	tests := []struct {
		name  string
		input string
		// want に含まれてはいけない部分文字列
		wantAbsent []string
	}{
		{
			name:       "scriptタグが除去される",
			input:      `<p>ok</p><script>alert("xss")</script>`,
			wantAbsent: []string{"<script", "alert"},
		},
		{
			name:       "iframeタグが除去される",
			input:      `<iframe src="https://evil.example"></iframe>`,
			wantAbsent: []string{"<iframe"},
		},
		{
			name:       "onclickイベント属性が除去される",
			input:      `<p onclick="alert(1)">テキスト</p>`,
			wantAbsent: []string{"onclick"},
		},
		{
			name:       "javascriptスキームのリンクが除去される",
			input:      `<a href="javascript:alert(1)">リンク</a>`,
			wantAbsent: []string{"javascript:"},
		},
		{
			name:       "httpスキームのリンクが除去される",
			input:      `<a href="http://example.com">リンク</a>`,
			wantAbsent: []string{"http://example.com"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizer.SanitizeNotes(tt.input)
			for _, absent := range tt.wantAbsent {
				if strings.Contains(got, absent) {
					t.Errorf("出力に %q が含まれるべきではない: %q", absent, got)
				}
			}
		})
	}
}

// TestSanitizeNotes_LinkAttributes は許可リンクにtarget/rel属性が自動付与されることを検証する。
func TestSanitizeNotes_LinkAttributes(t *testing.T) {
	sanitizer := NewContentSanitizer()

	got := sanitizer.SanitizeNotes(`<a href="https://example.com">参考リンク</a>`)
	for _, want := range []string{`target="_blank"`, "noopener", "noreferrer"} {
		if !strings.Contains(got, want) {
			t.Errorf("出力に %q が含まれるべき: %q", want, got)
		}
	}
}
