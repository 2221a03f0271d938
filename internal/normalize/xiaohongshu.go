package normalize

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/hitoshi/notevault/internal/model"
)

// xhsCDNBase は小紅書のコンテンツファイルIDから恒久URLを組み立てる際の
// CDNベースURL。上流が返す署名付きURLは短時間で失効するため、
// 永続化するURLはファイルIDから構築したものを優先する。
const xhsCDNBase = "https://sns-img-qc.xhscdn.com/"

// normalizeXiaohongshuNote は小紅書のノートペイロードを正規化する。
// JustOneAPIとTikHubでフィールド名が揺れるため、各フィールドは
// 抽出関数リストの「最初の非空値が勝つ」方式で解決する。
func (n *Normalizer) normalizeXiaohongshuNote(note map[string]any) *model.NormalizedContent {
	postID := firstNonEmpty(note,
		field("note_id"),
		field("noteId"),
		field("id"),
	)

	title := firstNonEmpty(note,
		field("title"),
		field("display_title"),
		nested("note_card", "display_title"),
	)

	author := firstNonEmpty(note,
		nested("user", "nickname"),
		nested("user", "nick_name"),
		nested("user", "name"),
		nested("author", "nickname"),
		field("nickname"),
	)

	rawText := firstNonEmpty(note,
		field("desc"),
		field("content"),
		field("note_text"),
	)

	images := n.extractXHSImages(note)

	cover := n.resolveXHSCover(note, images)

	interact := asMap(note["interact_info"])
	if interact == nil {
		interact = note
	}
	metrics := model.Metrics{
		Likes:     PickFirstMetric(interact, "liked_count", "like_count", "likes"),
		Bookmarks: PickFirstMetric(interact, "collected_count", "collect_count", "collects"),
		Comments:  PickFirstMetric(interact, "comment_count", "comments_count", "comments"),
		Shares:    PickFirstMetric(interact, "share_count", "shared_count", "shares"),
	}

	sourceURL := firstNonEmpty(note,
		nested("share_info", "link"),
		field("note_url"),
	)
	if sourceURL == "" {
		sourceURL = SynthesizeXHSSourceURL(postID, asString(note["xsec_token"]))
	}

	return &model.NormalizedContent{
		Platform:    model.PlatformXiaohongshu,
		PostID:      postID,
		Title:       title,
		Author:      author,
		RawText:     rawText,
		CoverImage:  cover,
		Images:      images,
		Tags:        extractXHSTags(note),
		Metrics:     metrics,
		SourceURL:   sourceURL,
		PublishTime: firstNonEmpty(note, field("time"), field("publish_time"), field("create_time")),
	}
}

// SynthesizeXHSSourceURL はプラットフォームと投稿IDから正規のソースURLを合成する。
// アクセストークンが分かっている場合はクエリとして付与する
// （保存用フィールドはトークン付き、同一性判定は正規化時にトークンを剥がす）。
func SynthesizeXHSSourceURL(postID, xsecToken string) string {
	if postID == "" {
		return ""
	}
	u := fmt.Sprintf("https://www.xiaohongshu.com/explore/%s", postID)
	if xsecToken != "" {
		u += "?xsec_token=" + url.QueryEscape(xsecToken)
	}
	return u
}

// resolveXHSCover は表紙画像URLを優先順で解決する。
//  1. 表紙オブジェクトのファイルID → CDN恒久URL
//  2. 表紙オブジェクトの直接URL（HEIF参照はJPEGへ置換）
//  3. 画像リストの先頭（同じ優先順）
//  4. シェアメタデータの画像リンク
//  5. 何も無ければ空文字
func (n *Normalizer) resolveXHSCover(note map[string]any, images []string) string {
	if cover := asMap(note["cover"]); cover != nil {
		if u := imageURLFromEntry(cover); u != "" {
			return u
		}
	}

	if len(images) > 0 {
		return images[0]
	}

	return firstNonEmpty(note,
		nested("share_info", "image"),
		nested("mini_program_info", "share_cover"),
	)
}

// extractXHSImages は画像リストの各エントリをファイルID優先のURL解決に通す。
// 解決できないエントリは落とす。
func (n *Normalizer) extractXHSImages(note map[string]any) []string {
	entries := asSlice(note["image_list"])
	if entries == nil {
		entries = asSlice(note["images_list"])
	}

	var out []string
	for _, e := range entries {
		entry := asMap(e)
		if entry == nil {
			continue
		}
		if u := imageURLFromEntry(entry); u != "" {
			out = append(out, u)
		}
	}
	return out
}

// imageURLFromEntry は画像エントリからURLを解決する。
// ファイルIDがあればCDN恒久URLを構築し、無ければ直接URLへ退避する。
// 直接URL中のHEIF参照は部分文字列置換でJPEGへ変換する。
func imageURLFromEntry(entry map[string]any) string {
	fileID := firstNonEmpty(entry,
		field("fileid"),
		field("file_id"),
		nested("info_list", "file_id"),
	)
	if fileID != "" {
		return xhsCDNBase + fileID
	}

	u := firstNonEmpty(entry,
		field("url_default"),
		field("url"),
		field("url_pre"),
	)
	if u == "" {
		return ""
	}
	return strings.ReplaceAll(u, "heif", "jpg")
}

// extractXHSTags は旧来のタグオブジェクトリストと新スキーマのfeature_tags
// （文字列または{name}オブジェクトの混在）を初出順の重複なし集合に統合する。
func extractXHSTags(note map[string]any) []string {
	seen := make(map[string]bool)
	var tags []string

	for _, e := range asSlice(note["tag_list"]) {
		if m := asMap(e); m != nil {
			tags = uniqueAppend(tags, seen, asString(m["name"]))
		}
	}

	for _, e := range asSlice(note["feature_tags"]) {
		switch t := e.(type) {
		case string:
			tags = uniqueAppend(tags, seen, t)
		case map[string]any:
			tags = uniqueAppend(tags, seen, asString(t["name"]))
		}
	}

	return tags
}
