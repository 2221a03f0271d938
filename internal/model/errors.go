package model

import "fmt"

// ConfigError は必須の認証情報や設定が欠落していることを表す。
// リトライしても解決しないため、上流障害とは区別して呼び出し元に伝える。
type ConfigError struct {
	Reason string
}

// Error はerrorインターフェースを実装する。
func (e *ConfigError) Error() string {
	return fmt.Sprintf("設定エラー: %s", e.Reason)
}

// ClassificationError は入力がサポート対象のプラットフォーム/URL形式に
// 一致しないことを表す。終端エラーでありリトライしない。
type ClassificationError struct {
	Input  string
	Reason string
}

// Error はerrorインターフェースを実装する。
func (e *ClassificationError) Error() string {
	return fmt.Sprintf("分類エラー: %s", e.Reason)
}

// UpstreamError は特定プロバイダが失敗エンベロープまたは転送エラーを
// 返したことを表す。Messageには上流のメッセージを改変せずそのまま保持する。
type UpstreamError struct {
	Provider string
	Code     int
	Message  string
}

// Error はerrorインターフェースを実装する。
func (e *UpstreamError) Error() string {
	return fmt.Sprintf("上流エラー (%s, code=%d): %s", e.Provider, e.Code, e.Message)
}

// MalformedResponseError は200応答のボディがJSONとしてパースできない、
// または最低限必要なフィールドを欠いていることを表す。
// リトライ判定上はUpstreamErrorと同一に扱う。
type MalformedResponseError struct {
	Provider string
	Reason   string
}

// Error はerrorインターフェースを実装する。
func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("不正レスポンス (%s): %s", e.Provider, e.Reason)
}

// AllProvidersExhaustedError は設定済みの全プロバイダが失敗したことを表す。
// 最後に発生したエラーをラップし、診断のために深層の原因を保持する。
type AllProvidersExhaustedError struct {
	Platform Platform
	Last     error
}

// Error はerrorインターフェースを実装する。
func (e *AllProvidersExhaustedError) Error() string {
	return fmt.Sprintf("全プロバイダが失敗しました (%s): %v", e.Platform, e.Last)
}

// Unwrap は最後に発生したエラーを返す。
func (e *AllProvidersExhaustedError) Unwrap() error {
	return e.Last
}

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, provider, config, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnrecognizedURL       = "UNRECOGNIZED_URL"
	ErrCodeProviderNotConfigured = "PROVIDER_NOT_CONFIGURED"
	ErrCodeUpstreamFailed        = "UPSTREAM_FAILED"
	ErrCodeAllProvidersFailed    = "ALL_PROVIDERS_FAILED"
	ErrCodeMalformedResponse     = "MALFORMED_RESPONSE"
	ErrCodeRecordNotFound        = "RECORD_NOT_FOUND"
	ErrCodeInvalidRequest        = "INVALID_REQUEST"
)

// NewUnrecognizedURLError はURL分類失敗エラーを生成する。
func NewUnrecognizedURLError(input string) *APIError {
	return &APIError{
		Code:     ErrCodeUnrecognizedURL,
		Message:  fmt.Sprintf("サポート対象のURL形式ではありません: %s", input),
		Category: "validation",
		Action:   "小紅書（xiaohongshu.com / xhslink.com）またはTwitter/X（twitter.com / x.com）の投稿URLを入力してください。",
	}
}

// NewProviderNotConfiguredError はプロバイダ未設定エラーを生成する。
func NewProviderNotConfiguredError(platform Platform) *APIError {
	return &APIError{
		Code:     ErrCodeProviderNotConfigured,
		Message:  fmt.Sprintf("プラットフォーム %s のAPIプロバイダが設定されていません。", platform),
		Category: "config",
		Action:   "環境変数でプロバイダの認証情報を設定してください。",
	}
}

// NewUpstreamFailedError は上流API失敗エラーを生成する。
// 上流のメッセージを汎用文言に置き換えず、そのまま含める。
func NewUpstreamFailedError(upstreamMessage string) *APIError {
	return &APIError{
		Code:     ErrCodeUpstreamFailed,
		Message:  fmt.Sprintf("上流APIがリクエストを拒否しました: %s", upstreamMessage),
		Category: "provider",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewInvalidRequestError は不正リクエストエラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストが不正です: %s", reason),
		Category: "validation",
		Action:   "リクエスト内容を確認してください。",
	}
}
