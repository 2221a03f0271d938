package classifier

import (
	"errors"
	"testing"

	"github.com/hitoshi/notevault/internal/model"
)

// TestClassify_XiaohongshuExploreURL は /explore/{id} 形式のURLを分類できることをテストする。
func TestClassify_XiaohongshuExploreURL(t *testing.T) {
	ref, err := Classify("https://www.xiaohongshu.com/explore/64f1a2b3?xsec_token=XYZ")
	if err != nil {
		t.Fatalf("分類に失敗: %v", err)
	}
	if ref.Platform != model.PlatformXiaohongshu {
		t.Errorf("期待プラットフォーム: xiaohongshu, 結果: %s", ref.Platform)
	}
	if ref.PostID != "64f1a2b3" {
		t.Errorf("期待PostID: 64f1a2b3, 結果: %s", ref.PostID)
	}
	if ref.AccessToken != "XYZ" {
		t.Errorf("期待アクセストークン: XYZ, 結果: %s", ref.AccessToken)
	}
}

// TestClassify_XiaohongshuDiscoveryItemURL は /discovery/item/{id} 形式のURLを分類できることをテストする。
func TestClassify_XiaohongshuDiscoveryItemURL(t *testing.T) {
	ref, err := Classify("https://xiaohongshu.com/discovery/item/abc999")
	if err != nil {
		t.Fatalf("分類に失敗: %v", err)
	}
	if ref.PostID != "abc999" {
		t.Errorf("期待PostID: abc999, 結果: %s", ref.PostID)
	}
	if ref.AccessToken != "" {
		t.Errorf("アクセストークンは空であるべき, 結果: %s", ref.AccessToken)
	}
}

// TestClassify_XiaohongshuInvalidPath は小紅書ホストでも投稿以外のパスは分類失敗になることをテストする。
func TestClassify_XiaohongshuInvalidPath(t *testing.T) {
	_, err := Classify("https://www.xiaohongshu.com/user/profile/12345")
	var ce *model.ClassificationError
	if !errors.As(err, &ce) {
		t.Fatalf("ClassificationErrorが返るべき, 結果: %v", err)
	}
}

// TestClassify_ShortLinkInProse はシェア文面に埋め込まれた短縮リンクを検出し、
// PostIDを空のまま返すことをテストする。
func TestClassify_ShortLinkInProse(t *testing.T) {
	ref, err := Classify("check this out http://xhslink.com/abc123")
	if err != nil {
		t.Fatalf("分類に失敗: %v", err)
	}
	if ref.Platform != model.PlatformXiaohongshu {
		t.Errorf("期待プラットフォーム: xiaohongshu, 結果: %s", ref.Platform)
	}
	if ref.PostID != "" {
		t.Errorf("短縮リンクのPostIDは空であるべき, 結果: %s", ref.PostID)
	}
	if ref.OriginalURL != "http://xhslink.com/abc123" {
		t.Errorf("期待OriginalURL: http://xhslink.com/abc123, 結果: %s", ref.OriginalURL)
	}
}

// TestClassify_CJKProseAroundShortLink は中国語のシェア文面からURLトークンを抜き出せることをテストする。
func TestClassify_CJKProseAroundShortLink(t *testing.T) {
	ref, err := Classify("49 发现一篇好笔记 https://xhslink.com/a/b12Cd3、复制本条信息打开APP")
	if err != nil {
		t.Fatalf("分類に失敗: %v", err)
	}
	if ref.OriginalURL != "https://xhslink.com/a/b12Cd3" {
		t.Errorf("URLトークンの抽出に失敗: %s", ref.OriginalURL)
	}
}

// TestClassify_TwitterStatusURL はx.comの投稿URLを分類できることをテストする。
func TestClassify_TwitterStatusURL(t *testing.T) {
	ref, err := Classify("https://x.com/someuser/status/1234567890")
	if err != nil {
		t.Fatalf("分類に失敗: %v", err)
	}
	if ref.Platform != model.PlatformTwitter {
		t.Errorf("期待プラットフォーム: twitter, 結果: %s", ref.Platform)
	}
	if ref.PostID != "1234567890" {
		t.Errorf("期待PostID: 1234567890, 結果: %s", ref.PostID)
	}
}

// TestClassify_TwitterLegacyDomain はtwitter.comドメインも同様に分類できることをテストする。
func TestClassify_TwitterLegacyDomain(t *testing.T) {
	ref, err := Classify("https://twitter.com/jack/status/20")
	if err != nil {
		t.Fatalf("分類に失敗: %v", err)
	}
	if ref.PostID != "20" {
		t.Errorf("期待PostID: 20, 結果: %s", ref.PostID)
	}
}

// TestClassify_TwitterNonStatusPath はステータス以外のパスは分類失敗になることをテストする。
func TestClassify_TwitterNonStatusPath(t *testing.T) {
	_, err := Classify("https://x.com/someuser/likes")
	var ce *model.ClassificationError
	if !errors.As(err, &ce) {
		t.Fatalf("ClassificationErrorが返るべき, 結果: %v", err)
	}
}

// TestClassify_PlainTextWithoutURL はURLを含まないテキストが分類失敗になることをテストする。
func TestClassify_PlainTextWithoutURL(t *testing.T) {
	_, err := Classify("just some text, no link")
	var ce *model.ClassificationError
	if !errors.As(err, &ce) {
		t.Fatalf("ClassificationErrorが返るべき, 結果: %v", err)
	}
}

// TestClassify_SchemeOmitted はスキーマ省略の入力にhttpsが補われることをテストする。
func TestClassify_SchemeOmitted(t *testing.T) {
	ref, err := Classify("xiaohongshu.com/explore/64f1a2b3")
	if err != nil {
		t.Fatalf("分類に失敗: %v", err)
	}
	if ref.OriginalURL != "https://xiaohongshu.com/explore/64f1a2b3" {
		t.Errorf("httpsが補われるべき, 結果: %s", ref.OriginalURL)
	}
}

// TestClassify_UnsupportedHost はサポート対象外のホストが分類失敗になることをテストする。
func TestClassify_UnsupportedHost(t *testing.T) {
	_, err := Classify("https://example.com/explore/64f1a2b3")
	var ce *model.ClassificationError
	if !errors.As(err, &ce) {
		t.Fatalf("ClassificationErrorが返るべき, 結果: %v", err)
	}
}

// TestClassify_Idempotence は分類結果のOriginalURLを再分類しても
// 同じPlatformRefが得られることをテストする。
func TestClassify_Idempotence(t *testing.T) {
	inputs := []string{
		"https://www.xiaohongshu.com/explore/64f1a2b3?xsec_token=XYZ",
		"http://xhslink.com/abc123",
		"https://x.com/someuser/status/1234567890",
	}
	for _, input := range inputs {
		first, err := Classify(input)
		if err != nil {
			t.Fatalf("1回目の分類に失敗 (%s): %v", input, err)
		}
		second, err := Classify(first.OriginalURL)
		if err != nil {
			t.Fatalf("再分類に失敗 (%s): %v", first.OriginalURL, err)
		}
		if *first != *second {
			t.Errorf("再分類結果が一致しない: %+v != %+v", first, second)
		}
	}
}
