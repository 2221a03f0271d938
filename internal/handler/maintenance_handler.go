package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hitoshi/notevault/internal/dedupe"
	"github.com/hitoshi/notevault/internal/repository"
)

// DedupeMetricsRecorder は重複排除の計測インターフェース。
type DedupeMetricsRecorder interface {
	RecordDedupeMerged(count int)
}

// MaintenanceHandler は保管庫メンテナンスのHTTPハンドラー。
type MaintenanceHandler struct {
	recordRepo     repository.RecordRepository
	collectionRepo repository.CollectionRepository
	engine         *dedupe.Engine
	metrics        DedupeMetricsRecorder
	logger         *slog.Logger
}

// NewMaintenanceHandler はMaintenanceHandlerを生成する。
// metricsはnilでもよい。
func NewMaintenanceHandler(
	recordRepo repository.RecordRepository,
	collectionRepo repository.CollectionRepository,
	engine *dedupe.Engine,
	metrics DedupeMetricsRecorder,
	logger *slog.Logger,
) *MaintenanceHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &MaintenanceHandler{
		recordRepo:     recordRepo,
		collectionRepo: collectionRepo,
		engine:         engine,
		metrics:        metrics,
		logger:         logger,
	}
}

// dedupeResponse は重複排除実行のレスポンス。
// ドライラン時もapply時も同じ計画サマリーを返す。
type dedupeResponse struct {
	Applied            bool     `json:"applied"`
	RecordGroups       int      `json:"record_groups"`
	RecordUpdates      int      `json:"record_updates"`
	RecordDeletions    []string `json:"record_deletions"`
	CollectionGroups   int      `json:"collection_groups"`
	CollectionRewrites int      `json:"collection_rewrites"`
	CollectionDeleted  []string `json:"collection_deleted"`
}

// Dedupe は保管庫全体の重複排除を実行する。
// デフォルトはドライラン（計画の計算のみ）。?apply=true で実際に反映する。
// POST /api/maintenance/dedupe?apply=true
func (h *MaintenanceHandler) Dedupe(w http.ResponseWriter, r *http.Request) {
	apply := r.URL.Query().Get("apply") == "true"

	records, err := h.recordRepo.ListAll(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	collections, err := h.collectionRepo.ListAll(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	recordPlan := h.engine.BuildPlan(records)
	collectionPlan := h.engine.BuildCollectionPlan(collections, records)

	resp := dedupeResponse{
		Applied:            apply,
		RecordGroups:       recordPlan.Groups,
		RecordUpdates:      len(recordPlan.Updates),
		RecordDeletions:    recordPlan.DeletedIDs,
		CollectionGroups:   collectionPlan.Groups,
		CollectionRewrites: len(collectionPlan.RecordUpdates),
		CollectionDeleted:  collectionPlan.DeletedIDs,
	}
	if resp.RecordDeletions == nil {
		resp.RecordDeletions = []string{}
	}
	if resp.CollectionDeleted == nil {
		resp.CollectionDeleted = []string{}
	}

	if apply {
		if err := h.applyPlans(r, recordPlan, collectionPlan); err != nil {
			handleServiceError(w, err)
			return
		}
		if h.metrics != nil {
			h.metrics.RecordDedupeMerged(len(recordPlan.DeletedIDs))
		}
		h.logger.Info("重複排除を反映",
			slog.Int("record_groups", recordPlan.Groups),
			slog.Int("record_deletions", len(recordPlan.DeletedIDs)),
			slog.Int("collection_deleted", len(collectionPlan.DeletedIDs)),
		)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// applyPlans は計算済みの重複排除計画を永続化層に反映する。
// レコードの統合更新 → レコード削除 → コレクション参照の書き換え →
// コレクション削除の順で行う。
func (h *MaintenanceHandler) applyPlans(r *http.Request, recordPlan *dedupe.Plan, collectionPlan *dedupe.CollectionPlan) error {
	ctx := r.Context()

	for _, record := range recordPlan.Updates {
		if err := h.recordRepo.Update(ctx, record); err != nil {
			return err
		}
	}
	if len(recordPlan.DeletedIDs) > 0 {
		if err := h.recordRepo.DeleteByIDs(ctx, recordPlan.DeletedIDs); err != nil {
			return err
		}
	}

	for _, record := range collectionPlan.RecordUpdates {
		if err := h.recordRepo.Update(ctx, record); err != nil {
			return err
		}
	}
	if len(collectionPlan.DeletedIDs) > 0 {
		if err := h.collectionRepo.DeleteByIDs(ctx, collectionPlan.DeletedIDs); err != nil {
			return err
		}
	}

	return nil
}
