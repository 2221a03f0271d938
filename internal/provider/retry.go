// Package provider は上流コンテンツAPIのアダプタと
// プロバイダ間フォールバックのオーケストレーションを提供する。
package provider

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/notevault/internal/model"
)

// RetryPolicy は固定間隔リトライの設定。
// 上流APIの失敗は一時的な単発の不調を想定しているため、
// 指数バックオフではなく固定の短い間隔でリトライする。
type RetryPolicy struct {
	Attempts int           // 総試行回数（1以上）
	Delay    time.Duration // 試行間の固定待機時間
}

// retryable はリトライ対象のエラーかどうかを判定する。
// 上流の失敗エンベロープ・転送エラー（UpstreamError）と
// パース不能レスポンス（MalformedResponseError）はリトライ対象。
// 設定エラーとコンテキストキャンセルはリトライしない。
func retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var ce *model.ConfigError
	if errors.As(err, &ce) {
		return false
	}
	var cl *model.ClassificationError
	return !errors.As(err, &cl)
}

// doWithRetry はfnを最大policy.Attempts回、固定間隔で実行する。
// リトライ対象外のエラーは即座に返す。コンテキストのキャンセルは
// 上流障害としてではなくctx.Err()として呼び出し元に伝える。
func doWithRetry(ctx context.Context, policy RetryPolicy, fn func(ctx context.Context) error) error {
	attempts := policy.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var last error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(policy.Delay):
			}
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if !retryable(err) {
			return err
		}
		last = err
	}
	return last
}
