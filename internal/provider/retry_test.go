package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/notevault/internal/model"
)

// TestDoWithRetry_SucceedsAfterTransientFailures は一時的な失敗の後に
// 成功するとリトライが打ち切られることをテストする。
func TestDoWithRetry_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := doWithRetry(context.Background(), RetryPolicy{Attempts: 5, Delay: time.Millisecond}, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return &model.UpstreamError{Provider: "test", Message: "transient"}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("成功すべき: %v", err)
	}
	if calls != 3 {
		t.Errorf("期待呼び出し回数: 3, 結果: %d", calls)
	}
}

// TestDoWithRetry_ExhaustsBudget はリトライ予算を使い切ると
// 最後のエラーが返ることをテストする。
func TestDoWithRetry_ExhaustsBudget(t *testing.T) {
	calls := 0
	lastErr := &model.UpstreamError{Provider: "test", Code: 500, Message: "still down"}
	err := doWithRetry(context.Background(), RetryPolicy{Attempts: 4, Delay: time.Millisecond}, func(ctx context.Context) error {
		calls++
		return lastErr
	})
	if calls != 4 {
		t.Errorf("期待呼び出し回数: 4, 結果: %d", calls)
	}
	var ue *model.UpstreamError
	if !errors.As(err, &ue) || ue.Message != "still down" {
		t.Errorf("最後のエラーがそのまま返るべき: %v", err)
	}
}

// TestDoWithRetry_ConfigErrorNotRetried は設定エラーがリトライされないことをテストする。
func TestDoWithRetry_ConfigErrorNotRetried(t *testing.T) {
	calls := 0
	err := doWithRetry(context.Background(), RetryPolicy{Attempts: 5, Delay: time.Millisecond}, func(ctx context.Context) error {
		calls++
		return &model.ConfigError{Reason: "token missing"}
	})
	if calls != 1 {
		t.Errorf("設定エラーは1回で打ち切るべき: %d回", calls)
	}
	var ce *model.ConfigError
	if !errors.As(err, &ce) {
		t.Errorf("ConfigErrorが返るべき: %v", err)
	}
}

// TestDoWithRetry_MalformedResponseRetried はパース不能レスポンスが
// 上流エラーと同様にリトライされることをテストする。
func TestDoWithRetry_MalformedResponseRetried(t *testing.T) {
	calls := 0
	doWithRetry(context.Background(), RetryPolicy{Attempts: 3, Delay: time.Millisecond}, func(ctx context.Context) error {
		calls++
		return &model.MalformedResponseError{Provider: "test", Reason: "bad json"}
	})
	if calls != 3 {
		t.Errorf("MalformedResponseErrorはリトライ対象であるべき: %d回", calls)
	}
}

// TestDoWithRetry_CancellationStopsImmediately はコンテキストキャンセルが
// リトライを中断し、上流障害ではなくctx.Err()として返ることをテストする。
func TestDoWithRetry_CancellationStopsImmediately(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := doWithRetry(ctx, RetryPolicy{Attempts: 10, Delay: 50 * time.Millisecond}, func(ctx context.Context) error {
		calls++
		cancel()
		return &model.UpstreamError{Provider: "test", Message: "fail"}
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("ctx.Err()が返るべき: %v", err)
	}
	if calls != 1 {
		t.Errorf("キャンセル後はリトライすべきではない: %d回", calls)
	}
}
