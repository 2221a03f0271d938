// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/notevault/internal/model"
)

// RecordRepository は投稿レコードの永続化インターフェース。
// レコードの同一性判定（2段階の優先順位）とCRUD操作を提供する。
type RecordRepository interface {
	// FindByID は指定IDのレコードを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Record, error)

	// FindBySourceURL は正規化済みsource_urlでレコードを検索する。
	// 同一性判定の最優先手段。見つからない場合はnilを返す。
	FindBySourceURL(ctx context.Context, sourceURL string) (*model.Record, error)

	// FindByFingerprint はコンテンツ指紋でレコードを検索する。
	// URLを持たないレコードの同一性判定手段。見つからない場合はnilを返す。
	FindByFingerprint(ctx context.Context, fingerprint string) (*model.Record, error)

	// Create は新規レコードを作成する。
	Create(ctx context.Context, record *model.Record) error

	// Update は既存レコードを上書き更新する。履歴は保持しない。
	Update(ctx context.Context, record *model.Record) error

	// ListAll は全レコードのスナップショットを作成日時の昇順で返す。
	// 重複排除エンジンの計画計算は単一の一貫した読み取りに基づく。
	ListAll(ctx context.Context) ([]*model.Record, error)

	// ListRecent はレコードを作成日時の降順で取得する。
	ListRecent(ctx context.Context, limit int) ([]*model.Record, error)

	// DeleteByIDs は指定IDのレコードをまとめて削除する。
	DeleteByIDs(ctx context.Context, ids []string) error
}

// CollectionRepository はコレクションの永続化インターフェース。
type CollectionRepository interface {
	// FindByID は指定IDのコレクションを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Collection, error)

	// Create はコレクションを作成する。
	Create(ctx context.Context, collection *model.Collection) error

	// ListAll は全コレクションを作成日時の昇順で返す。
	ListAll(ctx context.Context) ([]*model.Collection, error)

	// DeleteByIDs は指定IDのコレクションをまとめて削除する。
	DeleteByIDs(ctx context.Context, ids []string) error
}
