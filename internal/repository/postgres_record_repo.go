package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/notevault/internal/model"
)

// recordColumns はrecordsテーブルのSELECT列リスト。
const recordColumns = `id, platform, title, author, raw_text, cover_image, images, tags,
	        likes, bookmarks, comments, shares,
	        source_url, fingerprint, publish_time, provider,
	        notes, summary, usage_scenarios, core_knowledge, extracted_prompts,
	        collections, in_vault, created_at, updated_at`

// PostgresRecordRepo はPostgreSQLを使用した投稿レコードリポジトリ。
type PostgresRecordRepo struct {
	db *sql.DB
}

// NewPostgresRecordRepo はPostgresRecordRepoを生成する。
func NewPostgresRecordRepo(db *sql.DB) *PostgresRecordRepo {
	return &PostgresRecordRepo{db: db}
}

// FindByID は指定IDのレコードを取得する。見つからない場合はnilを返す。
func (r *PostgresRecordRepo) FindByID(ctx context.Context, id string) (*model.Record, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM records WHERE id = $1`, id)
	record, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("レコードの取得に失敗しました: %w", err)
	}
	return record, nil
}

// FindBySourceURL は正規化済みsource_urlでレコードを検索する。
func (r *PostgresRecordRepo) FindBySourceURL(ctx context.Context, sourceURL string) (*model.Record, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM records WHERE source_url = $1
		 ORDER BY created_at ASC LIMIT 1`, sourceURL)
	record, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("source_url によるレコードの検索に失敗しました: %w", err)
	}
	return record, nil
}

// FindByFingerprint はコンテンツ指紋でレコードを検索する。
func (r *PostgresRecordRepo) FindByFingerprint(ctx context.Context, fingerprint string) (*model.Record, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM records WHERE fingerprint = $1
		 ORDER BY created_at ASC LIMIT 1`, fingerprint)
	record, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("指紋によるレコードの検索に失敗しました: %w", err)
	}
	return record, nil
}

// Create は新規レコードを作成する。
func (r *PostgresRecordRepo) Create(ctx context.Context, record *model.Record) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO records (id, platform, title, author, raw_text, cover_image, images, tags,
		                      likes, bookmarks, comments, shares,
		                      source_url, fingerprint, publish_time, provider,
		                      notes, summary, usage_scenarios, core_knowledge, extracted_prompts,
		                      collections, in_vault, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
		         $17, $18, $19, $20, $21, $22, $23, $24, $25)`,
		record.ID, string(record.Platform), record.Title, record.Author,
		record.RawText, nullString(record.CoverImage),
		pq.Array(record.Images), pq.Array(record.Tags),
		record.Metrics.Likes, record.Metrics.Bookmarks, record.Metrics.Comments, record.Metrics.Shares,
		nullString(record.SourceURL), nullString(record.Fingerprint),
		nullString(record.PublishTime), record.Provider,
		record.Notes, record.Summary,
		pq.Array(record.UsageScenarios), pq.Array(record.CoreKnowledge), pq.Array(record.ExtractedPrompts),
		pq.Array(record.Collections), record.InVault,
		record.CreatedAt, record.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("レコードの作成に失敗しました: %w", err)
	}
	return nil
}

// Update は既存レコードを上書き更新する。履歴は保持しない。
func (r *PostgresRecordRepo) Update(ctx context.Context, record *model.Record) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE records SET
		    title = $2, author = $3, raw_text = $4, cover_image = $5,
		    images = $6, tags = $7,
		    likes = $8, bookmarks = $9, comments = $10, shares = $11,
		    source_url = $12, fingerprint = $13, publish_time = $14, provider = $15,
		    notes = $16, summary = $17,
		    usage_scenarios = $18, core_knowledge = $19, extracted_prompts = $20,
		    collections = $21, in_vault = $22, updated_at = $23
		 WHERE id = $1`,
		record.ID, record.Title, record.Author, record.RawText,
		nullString(record.CoverImage),
		pq.Array(record.Images), pq.Array(record.Tags),
		record.Metrics.Likes, record.Metrics.Bookmarks, record.Metrics.Comments, record.Metrics.Shares,
		nullString(record.SourceURL), nullString(record.Fingerprint),
		nullString(record.PublishTime), record.Provider,
		record.Notes, record.Summary,
		pq.Array(record.UsageScenarios), pq.Array(record.CoreKnowledge), pq.Array(record.ExtractedPrompts),
		pq.Array(record.Collections), record.InVault, record.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("レコードの更新に失敗しました: %w", err)
	}
	return nil
}

// ListAll は全レコードのスナップショットを作成日時の昇順で返す。
func (r *PostgresRecordRepo) ListAll(ctx context.Context) ([]*model.Record, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM records ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("レコード一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// ListRecent はレコードを作成日時の降順で取得する。
func (r *PostgresRecordRepo) ListRecent(ctx context.Context, limit int) ([]*model.Record, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM records ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("最近のレコード一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// DeleteByIDs は指定IDのレコードをまとめて削除する。
func (r *PostgresRecordRepo) DeleteByIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM records WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("レコードの削除に失敗しました: %w", err)
	}
	return nil
}

// rowScanner は*sql.Rowと*sql.Rowsに共通するScanインターフェース。
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (*model.Record, error) {
	record := &model.Record{}
	var platform string
	var coverImage, sourceURL, fingerprint, publishTime sql.NullString
	var images, tags, scenarios, knowledge, prompts, collections pq.StringArray

	err := row.Scan(
		&record.ID, &platform, &record.Title, &record.Author,
		&record.RawText, &coverImage, &images, &tags,
		&record.Metrics.Likes, &record.Metrics.Bookmarks,
		&record.Metrics.Comments, &record.Metrics.Shares,
		&sourceURL, &fingerprint, &publishTime, &record.Provider,
		&record.Notes, &record.Summary,
		&scenarios, &knowledge, &prompts,
		&collections, &record.InVault, &record.CreatedAt, &record.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	record.Platform = model.Platform(platform)
	record.CoverImage = nullStringValue(coverImage)
	record.SourceURL = nullStringValue(sourceURL)
	record.Fingerprint = nullStringValue(fingerprint)
	record.PublishTime = nullStringValue(publishTime)
	record.Images = []string(images)
	record.Tags = []string(tags)
	record.UsageScenarios = []string(scenarios)
	record.CoreKnowledge = []string(knowledge)
	record.ExtractedPrompts = []string(prompts)
	record.Collections = []string(collections)
	return record, nil
}

func scanRecords(rows *sql.Rows) ([]*model.Record, error) {
	var records []*model.Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("レコード行の読み取りに失敗しました: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("レコード一覧の走査に失敗しました: %w", err)
	}
	return records, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// compile-time interface check
var _ RecordRepository = (*PostgresRecordRepo)(nil)
