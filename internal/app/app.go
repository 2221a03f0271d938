// Package app はアプリケーションの起動とサブコマンドのディスパッチを行う。
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/notevault/internal/analyzer"
	"github.com/hitoshi/notevault/internal/config"
	"github.com/hitoshi/notevault/internal/database"
	"github.com/hitoshi/notevault/internal/dedupe"
	"github.com/hitoshi/notevault/internal/handler"
	"github.com/hitoshi/notevault/internal/ingest"
	"github.com/hitoshi/notevault/internal/logger"
	"github.com/hitoshi/notevault/internal/metrics"
	"github.com/hitoshi/notevault/internal/middleware"
	"github.com/hitoshi/notevault/internal/normalize"
	"github.com/hitoshi/notevault/internal/provider"
	"github.com/hitoshi/notevault/internal/repository"
	"github.com/hitoshi/notevault/internal/security"
	"github.com/hitoshi/notevault/internal/worker/search"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandDedupe:
		return runDedupe(cfg, HasFlag(args, "--apply"))
	default:
		return runServe(cfg)
	}
}

// buildOrchestrator は設定からプロバイダ群とオーケストレータを組み立てる。
// 認証情報が未設定のプロバイダはフォールバック順に含めない。
func buildOrchestrator(cfg *config.Config, m provider.MetricsRecorder) *provider.Orchestrator {
	httpClient := &http.Client{Timeout: cfg.ProviderTimeout}
	log := slog.Default()

	var justone *provider.JustOneClient
	if cfg.JustOneToken != "" {
		justone = provider.NewJustOneClient(httpClient, log, provider.JustOneConfig{
			Token:      cfg.JustOneToken,
			BaseURL:    cfg.JustOneBaseURL,
			DetailPath: cfg.JustOneDetailPath,
			Retry:      provider.RetryPolicy{Attempts: 3, Delay: 500 * time.Millisecond},
		})
	}

	var tikhub *provider.TikHubClient
	if cfg.TikHubAPIKey != "" {
		tikhub = provider.NewTikHubClient(httpClient, log, provider.TikHubConfig{
			APIKey:  cfg.TikHubAPIKey,
			BaseURL: cfg.TikHubBaseURL,
		})
	}

	var twitter provider.TwitterProvider
	if cfg.TwitterBearerToken != "" {
		twitter = provider.NewTwitterClient(httpClient, log, provider.TwitterConfig{
			BearerToken: cfg.TwitterBearerToken,
			BaseURL:     cfg.TwitterBaseURL,
		})
	}

	// XHSProviderはnilインターフェースの混入を避けるため個別に判定して渡す
	var joProvider, thProvider provider.XHSProvider
	if justone != nil {
		joProvider = justone
	}
	if tikhub != nil {
		thProvider = tikhub
	}

	// 短縮リンク展開はJustOneAPIのシェアリンクAPIに委ねる
	var shortLink provider.ShortLinkResolver
	if justone != nil {
		shortLink = justone
	}

	coverGen := buildCoverGenerator(cfg)
	normalizer := normalize.NewNormalizer(coverGen, log)

	return provider.NewOrchestrator(provider.OrchestratorConfig{
		XHSProviders: provider.OrderXHSProviders(cfg.XHSPreferredProvider, joProvider, thProvider),
		Twitter:      twitter,
		ShortLink:    shortLink,
		Normalizer:   normalizer,
		LegacyRetry: provider.RetryPolicy{
			Attempts: cfg.LegacyRetryAttempts,
			Delay:    cfg.LegacyRetryDelay,
		},
		Logger:  log,
		Metrics: m,
	})
}

// buildAnalyzer はOPENAI_API_KEYが設定されている場合のみAI解析器を返す。
// 未設定の場合はnil（解析スキップ）。
func buildAnalyzer(cfg *config.Config) ingest.ContentAnalyzer {
	if cfg.OpenAIAPIKey == "" {
		return nil
	}
	a, err := analyzer.NewAnalyzer(analyzer.Config{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.OpenAIModel,
	})
	if err != nil {
		slog.Warn("AI解析器の初期化に失敗。解析なしで続行します", slog.String("error", err.Error()))
		return nil
	}
	return a
}

// buildCoverGenerator はOPENAI_API_KEYが設定されている場合のみ
// 表紙画像生成器を返す。未設定の場合はnil（表紙生成フォールバックなし）。
func buildCoverGenerator(cfg *config.Config) normalize.CoverImageGenerator {
	if cfg.OpenAIAPIKey == "" {
		return nil
	}
	g, err := analyzer.NewCoverGenerator(analyzer.Config{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
	})
	if err != nil {
		slog.Warn("表紙画像生成器の初期化に失敗。生成なしで続行します", slog.String("error", err.Error()))
		return nil
	}
	return g
}

// rateLimiterConfig はreq/min単位の設定値をミドルウェアの設定に変換する。
func rateLimiterConfig(cfg *config.Config) middleware.RateLimiterConfig {
	rlCfg := middleware.DefaultRateLimiterConfig()
	if cfg.RateLimitGeneral > 0 {
		rlCfg.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
		rlCfg.GeneralBurst = cfg.RateLimitGeneral
	}
	if cfg.RateLimitResolve > 0 {
		rlCfg.ResolveRate = rate.Limit(float64(cfg.RateLimitResolve) / 60.0)
		rlCfg.ResolveBurst = cfg.RateLimitResolve
	}
	return rlCfg
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	recordRepo := repository.NewPostgresRecordRepo(db)
	collectionRepo := repository.NewPostgresCollectionRepo(db)

	// 3. 計測の初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 4. ドメインサービスの初期化
	orchestrator := buildOrchestrator(cfg, collector)
	sanitizer := security.NewContentSanitizer()
	ingestService := ingest.NewService(recordRepo, sanitizer, buildAnalyzer(cfg))
	dedupeEngine := dedupe.NewEngine(slog.Default())

	// 5. ルーターの構築
	router := handler.NewRouter(&handler.RouterDeps{
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       middleware.NewRateLimiter(rateLimiterConfig(cfg)),
		Logger:            slog.Default(),

		Resolver: orchestrator,
		Saver:    ingestService,

		RecordRepo:     recordRepo,
		CollectionRepo: collectionRepo,
		DedupeEngine:   dedupeEngine,

		ResolveMetrics: collector,
		DedupeMetrics:  collector,
		Gatherer:       registry,
	})

	// 6. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // 解決は上流リトライを含み長引くことがある
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker は定期検索ワーカーモードで起動する。
// タスクファイルを読み込み、検索スケジューラを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	if cfg.SearchTasksFile == "" {
		return fmt.Errorf("SEARCH_TASKS_FILE is required in worker mode")
	}

	tasks, err := search.LoadTasks(cfg.SearchTasksFile)
	if err != nil {
		return fmt.Errorf("failed to load search tasks: %w", err)
	}

	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

	// 2. 依存関係のワイヤリング
	recordRepo := repository.NewPostgresRecordRepo(db)
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)
	orchestrator := buildOrchestrator(cfg, collector)
	sanitizer := security.NewContentSanitizer()
	ingestService := ingest.NewService(recordRepo, sanitizer, buildAnalyzer(cfg))

	scheduler := search.NewScheduler(
		orchestrator, ingestService, tasks, slog.Default(), cfg.SearchLimit,
	)

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("search_interval", cfg.SearchInterval),
		slog.Int("task_count", len(tasks)),
	)

	// 検索スケジューラをメインgoroutineで実行（ブロッキング）
	scheduler.Start(ctx, cfg.SearchInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runDedupe は保管庫全体の重複排除をバッチ実行する。
// applyがfalseの場合はドライランとして計画の内容だけを出力する。
func runDedupe(cfg *config.Config, apply bool) error {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	ctx := context.Background()
	recordRepo := repository.NewPostgresRecordRepo(db)
	collectionRepo := repository.NewPostgresCollectionRepo(db)
	engine := dedupe.NewEngine(slog.Default())

	records, err := recordRepo.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to list records: %w", err)
	}
	collections, err := collectionRepo.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to list collections: %w", err)
	}

	recordPlan := engine.BuildPlan(records)
	collectionPlan := engine.BuildCollectionPlan(collections, records)

	slog.Info("重複排除計画を計算しました",
		slog.Bool("apply", apply),
		slog.Int("record_groups", recordPlan.Groups),
		slog.Int("record_updates", len(recordPlan.Updates)),
		slog.Int("record_deletions", len(recordPlan.DeletedIDs)),
		slog.Int("collection_groups", collectionPlan.Groups),
		slog.Int("collection_deleted", len(collectionPlan.DeletedIDs)),
	)

	if !apply {
		slog.Info("ドライランのため変更は反映していません。反映するには --apply を指定してください")
		return nil
	}

	for _, record := range recordPlan.Updates {
		if err := recordRepo.Update(ctx, record); err != nil {
			return fmt.Errorf("failed to update record %s: %w", record.ID, err)
		}
	}
	if len(recordPlan.DeletedIDs) > 0 {
		if err := recordRepo.DeleteByIDs(ctx, recordPlan.DeletedIDs); err != nil {
			return fmt.Errorf("failed to delete duplicate records: %w", err)
		}
	}
	for _, record := range collectionPlan.RecordUpdates {
		if err := recordRepo.Update(ctx, record); err != nil {
			return fmt.Errorf("failed to rewrite collections of record %s: %w", record.ID, err)
		}
	}
	if len(collectionPlan.DeletedIDs) > 0 {
		if err := collectionRepo.DeleteByIDs(ctx, collectionPlan.DeletedIDs); err != nil {
			return fmt.Errorf("failed to delete duplicate collections: %w", err)
		}
	}

	slog.Info("重複排除を反映しました",
		slog.Int("record_deletions", len(recordPlan.DeletedIDs)),
		slog.Int("collection_deleted", len(collectionPlan.DeletedIDs)),
	)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Status != "ok" {
		return fmt.Errorf("health check returned status %q", body.Status)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
