package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/notevault/internal/model"
)

// errorResponseBody はAPIエラーレスポンスの統一フォーマット。
type errorResponseBody struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(errorResponseBody{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// handleServiceError はサービス層のエラーを統一エラーレスポンスに変換する。
// 分類・設定・上流の型付きエラーをAPIErrorにマッピングし、
// それ以外は内部サーバーエラーとして扱う。
func handleServiceError(w http.ResponseWriter, err error) {
	statusCode, apiErr := mapServiceError(err)
	if statusCode == http.StatusInternalServerError && apiErr.Code == "INTERNAL_ERROR" {
		slog.Error("internal server error", slog.String("error", err.Error()))
	}
	writeAPIErrorResponse(w, statusCode, apiErr)
}

// mapServiceError はエラーの型からHTTPステータスコードとAPIErrorを決定する。
// 上流のエラーメッセージは汎用文言に置き換えず、そのまま含める。
func mapServiceError(err error) (int, *model.APIError) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return mapAPIErrorToHTTPStatus(apiErr), apiErr
	}

	var classErr *model.ClassificationError
	if errors.As(err, &classErr) {
		return http.StatusUnprocessableEntity, model.NewUnrecognizedURLError(classErr.Input)
	}

	var configErr *model.ConfigError
	if errors.As(err, &configErr) {
		return http.StatusServiceUnavailable, &model.APIError{
			Code:     model.ErrCodeProviderNotConfigured,
			Message:  configErr.Error(),
			Category: "config",
			Action:   "環境変数でプロバイダの認証情報を設定してください。",
		}
	}

	var exhaustedErr *model.AllProvidersExhaustedError
	if errors.As(err, &exhaustedErr) {
		return http.StatusBadGateway, &model.APIError{
			Code:     model.ErrCodeAllProvidersFailed,
			Message:  exhaustedErr.Error(),
			Category: "provider",
			Action:   "しばらく待ってから再度お試しください。",
		}
	}

	var upstreamErr *model.UpstreamError
	if errors.As(err, &upstreamErr) {
		return http.StatusBadGateway, model.NewUpstreamFailedError(upstreamErr.Message)
	}

	var malformedErr *model.MalformedResponseError
	if errors.As(err, &malformedErr) {
		return http.StatusBadGateway, &model.APIError{
			Code:     model.ErrCodeMalformedResponse,
			Message:  malformedErr.Error(),
			Category: "provider",
			Action:   "しばらく待ってから再度お試しください。",
		}
	}

	return http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeUnrecognizedURL:
		return http.StatusUnprocessableEntity
	case model.ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case model.ErrCodeProviderNotConfigured:
		return http.StatusServiceUnavailable
	case model.ErrCodeUpstreamFailed, model.ErrCodeAllProvidersFailed, model.ErrCodeMalformedResponse:
		return http.StatusBadGateway
	case model.ErrCodeRecordNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
