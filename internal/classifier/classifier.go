// Package classifier は自由形式の入力文字列からプラットフォームと
// 投稿IDを判別する。ネットワークI/Oを行わない純粋な分類処理のみを持つ。
package classifier

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/hitoshi/notevault/internal/model"
)

// urlTokenPattern は自由テキストから最初のHTTP(S) URLらしきトークンを抜き出す。
// シェア文面に混ざる日本語・中国語の prose を区切り文字として扱う。
var urlTokenPattern = regexp.MustCompile(`https?://[^\s　、。！"'<>]+`)

var (
	// xhsExplorePattern は /explore/{id} 形式のパスにマッチする。
	xhsExplorePattern = regexp.MustCompile(`^/explore/([A-Za-z0-9]+)/?$`)
	// xhsDiscoveryPattern は /discovery/item/{id} 形式のパスにマッチする。
	xhsDiscoveryPattern = regexp.MustCompile(`^/discovery/item/([A-Za-z0-9]+)/?$`)
	// twitterStatusPattern は /{user}/status/{digits} 形式のパスにマッチする。
	twitterStatusPattern = regexp.MustCompile(`^/([A-Za-z0-9_]+)/status/([0-9]+)`)
)

// Classify は入力文字列を解析してPlatformRefを返す。
// URLとして解釈できない、またはサポート対象のホスト/パス形式に一致しない
// 場合はClassificationErrorを返す（推測でプラットフォームを返すことはしない）。
func Classify(input string) (*model.PlatformRef, error) {
	raw := extractURLToken(input)
	if raw == "" {
		return nil, &model.ClassificationError{
			Input:  input,
			Reason: "入力にURLが含まれていません",
		}
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return nil, &model.ClassificationError{
			Input:  input,
			Reason: "URLとして解釈できません",
		}
	}

	// スキーマとホストを小文字化し、www. プレフィックスを除去する
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.TrimPrefix(strings.ToLower(u.Host), "www.")

	switch u.Host {
	case "xiaohongshu.com":
		return classifyXiaohongshu(u)
	case "xhslink.com":
		// 短縮リンク。実際の投稿IDはリダイレクト先に隠れているため、
		// PostIDは空のまま後段のリンク展開に委ねる。
		return &model.PlatformRef{
			Platform:    model.PlatformXiaohongshu,
			OriginalURL: u.String(),
		}, nil
	case "twitter.com", "x.com":
		return classifyTwitter(u)
	default:
		return nil, &model.ClassificationError{
			Input:  input,
			Reason: "サポート対象外のホストです: " + u.Host,
		}
	}
}

// extractURLToken は自由テキストから最初のURLトークンを抜き出す。
// スキーマ省略の入力（例: "xiaohongshu.com/explore/xxx"）にはhttpsを補う。
func extractURLToken(input string) string {
	if m := urlTokenPattern.FindString(input); m != "" {
		return m
	}

	trimmed := strings.TrimSpace(input)
	if trimmed == "" || strings.ContainsAny(trimmed, " \t\n") {
		return ""
	}
	// ドットを含まない文字列はURLとみなさない
	if !strings.Contains(trimmed, ".") {
		return ""
	}
	return "https://" + trimmed
}

// classifyXiaohongshu は小紅書のパス形式を検査してPlatformRefを返す。
// xsec_tokenクエリパラメータがあればアクセストークンとして取り込む。
func classifyXiaohongshu(u *url.URL) (*model.PlatformRef, error) {
	var postID string
	if m := xhsExplorePattern.FindStringSubmatch(u.Path); m != nil {
		postID = m[1]
	} else if m := xhsDiscoveryPattern.FindStringSubmatch(u.Path); m != nil {
		postID = m[1]
	} else {
		return nil, &model.ClassificationError{
			Input:  u.String(),
			Reason: "小紅書の投稿URL形式ではありません: " + u.Path,
		}
	}

	return &model.PlatformRef{
		Platform:    model.PlatformXiaohongshu,
		PostID:      postID,
		AccessToken: u.Query().Get("xsec_token"),
		OriginalURL: u.String(),
	}, nil
}

// classifyTwitter はTwitter/Xの /{user}/status/{digits} 形式を検査する。
func classifyTwitter(u *url.URL) (*model.PlatformRef, error) {
	m := twitterStatusPattern.FindStringSubmatch(u.Path)
	if m == nil {
		return nil, &model.ClassificationError{
			Input:  u.String(),
			Reason: "Twitter/Xの投稿URL形式ではありません: " + u.Path,
		}
	}

	return &model.PlatformRef{
		Platform:    model.PlatformTwitter,
		PostID:      m[2],
		OriginalURL: u.String(),
	}, nil
}
