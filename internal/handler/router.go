package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/notevault/internal/dedupe"
	"github.com/hitoshi/notevault/internal/metrics"
	"github.com/hitoshi/notevault/internal/middleware"
	"github.com/hitoshi/notevault/internal/repository"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger

	// コンテンツ解決・取り込み
	Resolver ContentResolverInterface
	Saver    ContentSaverInterface

	// 保管庫
	RecordRepo     repository.RecordRepository
	CollectionRepo repository.CollectionRepository
	DedupeEngine   *dedupe.Engine

	// 計測
	ResolveMetrics ResolveMetricsRecorder
	DedupeMetrics  DedupeMetricsRecorder
	Gatherer       prometheus.Gatherer
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	SecurityHeaders → CORS → Logging → Recovery → RateLimit(General)
//
// ヘルスチェックとメトリクスはレート制限の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	if deps.Logger != nil {
		r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	}
	r.Use(middleware.NewRecoveryMiddleware())

	contentHandler := NewContentHandler(deps.Resolver, deps.Saver, deps.ResolveMetrics)
	recordHandler := NewRecordHandler(deps.RecordRepo)
	maintenanceHandler := NewMaintenanceHandler(deps.RecordRepo, deps.CollectionRepo, deps.DedupeEngine, deps.DedupeMetrics, deps.Logger)

	// --- レート制限の外のルート ---

	r.Get("/health", healthCheck)
	if deps.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.Gatherer))
	}

	// --- APIルート ---
	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Route("/api/contents", func(r chi.Router) {
			// POST /api/contents/resolve - 有償の上流APIを呼ぶため専用レート制限を追加
			r.With(deps.RateLimiter.ResolveMiddleware()).Post("/resolve", contentHandler.Resolve)
			r.Get("/search", contentHandler.Search)
		})

		r.Route("/api/records", func(r chi.Router) {
			r.Get("/", recordHandler.ListRecords)
			r.Get("/{id}", recordHandler.GetRecord)
		})

		r.Post("/api/maintenance/dedupe", maintenanceHandler.Dedupe)
	})

	return r
}

// healthCheck はサービスの死活確認エンドポイント。
func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
