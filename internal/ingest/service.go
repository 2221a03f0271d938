// Package ingest は正規化済みコンテンツの保管庫への取り込みを提供する。
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/notevault/internal/analyzer"
	"github.com/hitoshi/notevault/internal/dedupe"
	"github.com/hitoshi/notevault/internal/model"
	"github.com/hitoshi/notevault/internal/repository"
	"github.com/hitoshi/notevault/internal/security"
)

// ContentAnalyzer はAI解析の能力のインターフェース。nil実装を許容する。
type ContentAnalyzer interface {
	Analyze(ctx context.Context, title, rawText string) (*analyzer.Analysis, error)
}

// Service は正規化済みコンテンツの同一性判定とUPSERT処理を提供する。
// 2段階の同一性判定ロジックにより、重複登録を防ぎつつ既存レコードの更新を行う。
type Service struct {
	recordRepo repository.RecordRepository
	sanitizer  security.ContentSanitizerService
	analyzer   ContentAnalyzer // nilなら解析をスキップ
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	recordRepo repository.RecordRepository,
	sanitizer security.ContentSanitizerService,
	contentAnalyzer ContentAnalyzer,
) *Service {
	return &Service{
		recordRepo: recordRepo,
		sanitizer:  sanitizer,
		analyzer:   contentAnalyzer,
	}
}

// SaveOptions は取り込み時の保管庫メタデータ。
type SaveOptions struct {
	InVault     bool     // trueなら永久保存。falseはトレンドスナップショット
	Collections []string // 所属させるコレクションのIDリスト
	Notes       string   // ユーザーの自由記述メモ（未サニタイズ）
}

// SaveContent は正規化済みコンテンツをUPSERTする。
// 2段階の同一性判定ロジック:
//  1. source_url（クエリ除去済みの正規形）- 最優先
//  2. コンテンツ指紋（platform + title + author + 本文先頭）- URLを持たないレコード用
//
// 新規レコードにはAI解析を試行するが、解析の失敗は取り込みを妨げない。
// 戻り値は保存後のレコード、新規作成ならtrue。
func (s *Service) SaveContent(
	ctx context.Context,
	content *model.NormalizedContent,
	opts SaveOptions,
) (*model.Record, bool, error) {
	now := time.Now()

	sanitizedText := s.sanitizer.SanitizeText(content.RawText)
	sanitizedNotes := s.sanitizer.SanitizeNotes(opts.Notes)

	existing, err := s.findExistingRecord(ctx, content, sanitizedText)
	if err != nil {
		slog.Error("レコードの同一性判定でエラー",
			"platform", content.Platform,
			"post_id", content.PostID,
			"error", err,
		)
		return nil, false, fmt.Errorf("レコードの同一性判定に失敗: %w", err)
	}

	if existing != nil {
		if err := s.updateExistingRecord(ctx, existing, content, opts, sanitizedNotes, now); err != nil {
			slog.Error("レコードの更新でエラー",
				"record_id", existing.ID,
				"error", err,
			)
			return nil, false, fmt.Errorf("レコードの更新に失敗: %w", err)
		}
		return existing, false, nil
	}

	record, err := s.createNewRecord(ctx, content, opts, sanitizedText, sanitizedNotes, now)
	if err != nil {
		slog.Error("レコードの挿入でエラー",
			"platform", content.Platform,
			"post_id", content.PostID,
			"error", err,
		)
		return nil, false, fmt.Errorf("レコードの挿入に失敗: %w", err)
	}
	return record, true, nil
}

// findExistingRecord は2段階の同一性判定で既存レコードを検索する。
// 優先順位: source_url > コンテンツ指紋
func (s *Service) findExistingRecord(
	ctx context.Context,
	content *model.NormalizedContent,
	sanitizedText string,
) (*model.Record, error) {
	// 第1優先: source_url
	if content.SourceURL != "" && content.SourceURL != "#" {
		record, err := s.recordRepo.FindBySourceURL(ctx, content.SourceURL)
		if err != nil {
			return nil, err
		}
		if record != nil {
			return record, nil
		}
	}

	// 第2優先: コンテンツ指紋
	fingerprint := contentFingerprint(content, sanitizedText)
	record, err := s.recordRepo.FindByFingerprint(ctx, fingerprint)
	if err != nil {
		return nil, err
	}
	return record, nil
}

// updateExistingRecord は既存レコードを更新する。
// プラットフォーム指標はフィールドごとの最大値を採り、保管庫メタデータは
// 失わない方向でのみ変化させる（永久保存の降格はしない）。
func (s *Service) updateExistingRecord(
	ctx context.Context,
	existing *model.Record,
	content *model.NormalizedContent,
	opts SaveOptions,
	sanitizedNotes string,
	now time.Time,
) error {
	existing.Metrics = existing.Metrics.Max(content.Metrics)
	existing.Provider = content.ProviderUsed
	existing.UpdatedAt = now

	if existing.CoverImage == "" {
		existing.CoverImage = content.CoverImage
	}
	if len(existing.Images) == 0 {
		existing.Images = append([]string(nil), content.Images...)
	}
	existing.Tags = unionStrings(existing.Tags, content.Tags)
	existing.Collections = unionStrings(existing.Collections, opts.Collections)

	if sanitizedNotes != "" {
		existing.Notes = sanitizedNotes
	}
	if opts.InVault {
		existing.InVault = true
	}

	return s.recordRepo.Update(ctx, existing)
}

// createNewRecord は新規レコードを作成する。
// AI解析は試行するが、失敗しても取り込み自体は成功させる
// （解析結果は後から再生成できるが、取り逃した投稿は戻らない）。
func (s *Service) createNewRecord(
	ctx context.Context,
	content *model.NormalizedContent,
	opts SaveOptions,
	sanitizedText, sanitizedNotes string,
	now time.Time,
) (*model.Record, error) {
	record := &model.Record{
		ID:          uuid.New().String(),
		Platform:    content.Platform,
		Title:       content.Title,
		Author:      content.Author,
		RawText:     sanitizedText,
		CoverImage:  content.CoverImage,
		Images:      append([]string(nil), content.Images...),
		Tags:        append([]string(nil), content.Tags...),
		Metrics:     content.Metrics,
		SourceURL:   content.SourceURL,
		PublishTime: content.PublishTime,
		Provider:    content.ProviderUsed,
		Notes:       sanitizedNotes,
		Collections: append([]string(nil), opts.Collections...),
		InVault:     opts.InVault,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	record.Fingerprint = contentFingerprint(content, sanitizedText)

	if s.analyzer != nil {
		analysis, err := s.analyzer.Analyze(ctx, content.Title, sanitizedText)
		if err != nil {
			slog.Warn("AI解析に失敗しました。解析結果なしで保存します",
				"platform", content.Platform,
				"post_id", content.PostID,
				"error", err,
			)
		} else {
			record.Summary = analysis.Summary
			record.UsageScenarios = analysis.UsageScenarios
			record.CoreKnowledge = analysis.CoreKnowledge
			record.ExtractedPrompts = analysis.ExtractedPrompts
		}
	}

	if err := s.recordRepo.Create(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

// contentFingerprint は同一性判定の第2優先手段となる指紋を計算する。
// 重複排除エンジンと同じ指紋を使うことで、取り込み時の判定と
// 事後の清掃が常に一致する。
func contentFingerprint(content *model.NormalizedContent, sanitizedText string) string {
	return dedupe.Fingerprint(&model.Record{
		Platform: content.Platform,
		Title:    content.Title,
		Author:   content.Author,
		RawText:  sanitizedText,
	})
}

// unionStrings は2つのリストの和集合を初出順で返す。
func unionStrings(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, list := range [][]string{a, b} {
		for _, s := range list {
			if s == "" || seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
