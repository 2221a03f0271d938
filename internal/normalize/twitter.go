package normalize

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hitoshi/notevault/internal/model"
)

// titleMaxRunes はツイート本文から合成するタイトルの最大長。
const titleMaxRunes = 60

// normalizeTweet はX API v2のツイートペイロード（data + includes）を正規化する。
// expansionsで同梱される著者・メディアオブジェクトをdata側と突き合わせる。
func (n *Normalizer) normalizeTweet(ctx context.Context, payload map[string]any) *model.NormalizedContent {
	data := asMap(payload["data"])
	if data == nil {
		data = payload
	}
	includes := asMap(payload["includes"])

	postID := firstNonEmpty(data, field("id"), field("id_str"))
	text := firstNonEmpty(data, field("text"), field("full_text"))

	author, username := resolveTweetAuthor(data, includes)

	images := extractTweetImages(includes)

	metrics := extractTweetMetrics(data)

	sourceURL := synthesizeTweetSourceURL(username, postID)

	cover := ""
	if len(images) > 0 {
		cover = images[0]
	} else if strings.TrimSpace(text) != "" && n.coverGen != nil {
		// メディアなしかつ本文ありの場合のみ表紙を外部生成する。
		// 生成失敗は正規化全体を失敗させず、空の表紙に退避する。
		generated, err := n.coverGen.Generate(ctx, makeTweetTitle(text), text)
		if err != nil {
			n.logger.Warn("表紙画像の生成に失敗しました",
				slog.String("post_id", postID),
				slog.String("error", err.Error()),
			)
		} else {
			cover = generated
		}
	}

	return &model.NormalizedContent{
		Platform:    model.PlatformTwitter,
		PostID:      postID,
		Title:       makeTweetTitle(text),
		Author:      author,
		RawText:     text,
		CoverImage:  cover,
		Images:      images,
		Tags:        extractTweetHashtags(data),
		Metrics:     metrics,
		SourceURL:   sourceURL,
		PublishTime: firstNonEmpty(data, field("created_at")),
	}
}

// resolveTweetAuthor は著者の表示名とユーザー名を解決する。
// author_idでincludes.usersを突き合わせ、一致が無ければ先頭のユーザーへ、
// それも無ければdata側のフィールド名変種へ退避する。
func resolveTweetAuthor(data, includes map[string]any) (displayName, username string) {
	authorID := firstNonEmpty(data, field("author_id"))

	var matched map[string]any
	users := asSlice(includes["users"])
	for _, u := range users {
		user := asMap(u)
		if user == nil {
			continue
		}
		if matched == nil {
			matched = user
		}
		if authorID != "" && asString(user["id"]) == authorID {
			matched = user
			break
		}
	}

	if matched != nil {
		displayName = firstNonEmpty(matched, field("name"), field("username"), field("screen_name"))
		username = firstNonEmpty(matched, field("username"), field("screen_name"))
		return displayName, username
	}

	displayName = firstNonEmpty(data,
		nested("user", "name"),
		nested("user", "screen_name"),
		field("author_name"),
	)
	username = firstNonEmpty(data,
		nested("user", "screen_name"),
		nested("user", "username"),
	)
	return displayName, username
}

// extractTweetImages はincludes.mediaから画像URLを順序を保って取り出す。
// 動画はプレビュー画像URLへ退避する。URLが取れないエントリは落とす。
func extractTweetImages(includes map[string]any) []string {
	var out []string
	for _, m := range asSlice(includes["media"]) {
		media := asMap(m)
		if media == nil {
			continue
		}
		u := firstNonEmpty(media,
			field("url"),
			field("preview_image_url"),
			field("media_url_https"),
		)
		if u != "" {
			out = append(out, u)
		}
	}
	return out
}

// extractTweetMetrics はpublic_metricsからエンゲージメント数値を取り出す。
func extractTweetMetrics(data map[string]any) model.Metrics {
	pm := asMap(data["public_metrics"])
	if pm == nil {
		pm = data
	}
	return model.Metrics{
		Likes:     PickFirstMetric(pm, "like_count", "favorite_count", "likes"),
		Bookmarks: PickFirstMetric(pm, "bookmark_count", "bookmarks"),
		Comments:  PickFirstMetric(pm, "reply_count", "replies"),
		Shares:    PickFirstMetric(pm, "retweet_count", "retweets"),
	}
}

// extractTweetHashtags はentities.hashtagsからタグを初出順・重複なしで取り出す。
func extractTweetHashtags(data map[string]any) []string {
	entities := asMap(data["entities"])
	if entities == nil {
		return nil
	}
	seen := make(map[string]bool)
	var tags []string
	for _, h := range asSlice(entities["hashtags"]) {
		m := asMap(h)
		if m == nil {
			continue
		}
		tags = uniqueAppend(tags, seen, firstNonEmpty(m, field("tag"), field("text")))
	}
	return tags
}

// synthesizeTweetSourceURL はユーザー名と投稿IDから正規のソースURLを合成する。
// ユーザー名が不明な場合は /i/status/ 形式へ退避する。
func synthesizeTweetSourceURL(username, postID string) string {
	if postID == "" {
		return ""
	}
	if username != "" {
		return fmt.Sprintf("https://x.com/%s/status/%s", username, postID)
	}
	return fmt.Sprintf("https://x.com/i/status/%s", postID)
}

// makeTweetTitle はツイート本文の先頭からタイトルを合成する。
// 最初の改行まで、かつ最大titleMaxRunesルーンに切り詰める。
func makeTweetTitle(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	runes := []rune(text)
	if len(runes) > titleMaxRunes {
		return string(runes[:titleMaxRunes]) + "…"
	}
	return text
}
