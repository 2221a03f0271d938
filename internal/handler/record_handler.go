package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/notevault/internal/model"
	"github.com/hitoshi/notevault/internal/repository"
)

// defaultRecordsPerPage はレコード一覧の1回の取得件数（デフォルト）。
const defaultRecordsPerPage = 50

// RecordHandler は保管庫レコード照会のHTTPハンドラー。
type RecordHandler struct {
	repo repository.RecordRepository
}

// NewRecordHandler はRecordHandlerを生成する。
func NewRecordHandler(repo repository.RecordRepository) *RecordHandler {
	return &RecordHandler{repo: repo}
}

// recordResponse は保管庫レコードのレスポンス。
type recordResponse struct {
	ID               string    `json:"id"`
	Platform         string    `json:"platform"`
	Title            string    `json:"title"`
	Author           string    `json:"author"`
	RawText          string    `json:"raw_text"`
	CoverImage       string    `json:"cover_image,omitempty"`
	Images           []string  `json:"images,omitempty"`
	Tags             []string  `json:"tags,omitempty"`
	Likes            int       `json:"likes"`
	Bookmarks        int       `json:"bookmarks"`
	Comments         int       `json:"comments"`
	Shares           int       `json:"shares"`
	SourceURL        string    `json:"source_url,omitempty"`
	PublishTime      string    `json:"publish_time,omitempty"`
	Provider         string    `json:"provider"`
	Notes            string    `json:"notes,omitempty"`
	Summary          string    `json:"summary,omitempty"`
	UsageScenarios   []string  `json:"usage_scenarios,omitempty"`
	CoreKnowledge    []string  `json:"core_knowledge,omitempty"`
	ExtractedPrompts []string  `json:"extracted_prompts,omitempty"`
	Collections      []string  `json:"collections,omitempty"`
	InVault          bool      `json:"in_vault"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// recordListResponse はレコード一覧のレスポンス。
type recordListResponse struct {
	Records []recordResponse `json:"records"`
}

// toRecordResponse はRecordをレスポンス型に変換する。
func toRecordResponse(r *model.Record) recordResponse {
	return recordResponse{
		ID:               r.ID,
		Platform:         string(r.Platform),
		Title:            r.Title,
		Author:           r.Author,
		RawText:          r.RawText,
		CoverImage:       r.CoverImage,
		Images:           r.Images,
		Tags:             r.Tags,
		Likes:            r.Metrics.Likes,
		Bookmarks:        r.Metrics.Bookmarks,
		Comments:         r.Metrics.Comments,
		Shares:           r.Metrics.Shares,
		SourceURL:        r.SourceURL,
		PublishTime:      r.PublishTime,
		Provider:         r.Provider,
		Notes:            r.Notes,
		Summary:          r.Summary,
		UsageScenarios:   r.UsageScenarios,
		CoreKnowledge:    r.CoreKnowledge,
		ExtractedPrompts: r.ExtractedPrompts,
		Collections:      r.Collections,
		InVault:          r.InVault,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

// ListRecords はレコードを作成日時の降順で取得する。
// GET /api/records?limit=50
func (h *RecordHandler) ListRecords(w http.ResponseWriter, r *http.Request) {
	limit := defaultRecordsPerPage
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("limitは正の整数を指定してください"))
			return
		}
		limit = parsed
	}

	records, err := h.repo.ListRecent(r.Context(), limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := recordListResponse{Records: make([]recordResponse, len(records))}
	for i, record := range records {
		resp.Records[i] = toRecordResponse(record)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// GetRecord はレコード詳細を取得する。
// GET /api/records/{id}
func (h *RecordHandler) GetRecord(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	record, err := h.repo.FindByID(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if record == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, &model.APIError{
			Code:     model.ErrCodeRecordNotFound,
			Message:  "レコードが見つかりません。",
			Category: "validation",
			Action:   "レコードIDを確認してください。",
		})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toRecordResponse(record))
}
