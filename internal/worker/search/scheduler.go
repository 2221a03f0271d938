package search

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/notevault/internal/ingest"
	"github.com/hitoshi/notevault/internal/model"
)

// defaultLimit はタスクにlimit指定がない場合の1検索あたりの取得件数。
const defaultLimit = 20

// ContentSearcher はキーワード検索の実行インターフェース。
type ContentSearcher interface {
	// Search はキーワード検索を実行し、正規化済み投稿の列を返す。
	Search(ctx context.Context, query model.SearchQuery) (*model.SearchResultBatch, error)
}

// ContentSaver は検索結果の保管庫への取り込みインターフェース。
type ContentSaver interface {
	SaveContent(ctx context.Context, content *model.NormalizedContent, opts ingest.SaveOptions) (*model.Record, bool, error)
}

// Scheduler は定期検索タスクのスケジューリングと実行を行う。
// ティッカーでタスク一覧を周回し、1タスク内の複数プラットフォームへは
// 並行に検索を発行する（プラットフォーム間に依存関係はない）。
// 各プラットフォーム内のプロバイダフォールバックは検索側が逐次に行う。
type Scheduler struct {
	searcher ContentSearcher
	saver    ContentSaver
	tasks    []Task
	logger   *slog.Logger
	limit    int
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
// limitが0以下の場合はデフォルト値20を使用する。
func NewScheduler(
	searcher ContentSearcher,
	saver ContentSaver,
	tasks []Task,
	logger *slog.Logger,
	limit int,
) *Scheduler {
	if limit <= 0 {
		limit = defaultLimit
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		searcher: searcher,
		saver:    saver,
		tasks:    tasks,
		logger:   logger,
		limit:    limit,
	}
}

// Start は指定間隔のティッカーでスケジューラを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("検索スケジューラを開始しました",
		slog.Duration("interval", interval),
		slog.Int("task_count", len(s.tasks)),
	)

	// 起動直後に1回実行
	s.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("検索スケジューラを停止しました")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce は全タスクを1回実行する。タスクは順に、タスク内の
// プラットフォームは並行に処理する。個々の失敗はログに残して
// 他のタスクの実行を続ける。
func (s *Scheduler) RunOnce(ctx context.Context) {
	start := time.Now()

	var saved, skipped int
	for _, task := range s.tasks {
		if ctx.Err() != nil {
			return
		}
		taskSaved, taskSkipped := s.runTask(ctx, task)
		saved += taskSaved
		skipped += taskSkipped
	}

	s.logger.Info("検索サイクルが完了しました",
		slog.Int("task_count", len(s.tasks)),
		slog.Int("saved", saved),
		slog.Int("updated", skipped),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
}

// runTask は1タスクを実行する。プラットフォームごとの検索は
// 独立しているため並行に発行し、結果は到着順に取り込む。
func (s *Scheduler) runTask(ctx context.Context, task Task) (saved, updated int) {
	type result struct {
		platform model.Platform
		batch    *model.SearchResultBatch
		err      error
	}

	platforms := task.platforms()
	results := make(chan result, len(platforms))

	var wg sync.WaitGroup
	for _, platform := range platforms {
		wg.Add(1)
		go func(p model.Platform) {
			defer wg.Done()
			batch, err := s.searcher.Search(ctx, task.query(p, s.limit))
			results <- result{platform: p, batch: batch, err: err}
		}(platform)
	}
	wg.Wait()
	close(results)

	for res := range results {
		if res.err != nil {
			s.logger.Error("検索タスクの実行に失敗しました",
				slog.String("keyword", task.Keyword),
				slog.String("platform", string(res.platform)),
				slog.String("error", res.err.Error()),
			)
			continue
		}

		for _, content := range res.batch.Items {
			// 定期検索の結果はトレンドスナップショットとして保存する
			_, created, err := s.saver.SaveContent(ctx, content, ingest.SaveOptions{InVault: false})
			if err != nil {
				s.logger.Error("検索結果の取り込みに失敗しました",
					slog.String("keyword", task.Keyword),
					slog.String("post_id", content.PostID),
					slog.String("error", err.Error()),
				)
				continue
			}
			if created {
				saved++
			} else {
				updated++
			}
		}
	}
	return saved, updated
}
