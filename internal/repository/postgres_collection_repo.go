package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/notevault/internal/model"
)

// PostgresCollectionRepo はPostgreSQLを使用したコレクションリポジトリ。
type PostgresCollectionRepo struct {
	db *sql.DB
}

// NewPostgresCollectionRepo はPostgresCollectionRepoを生成する。
func NewPostgresCollectionRepo(db *sql.DB) *PostgresCollectionRepo {
	return &PostgresCollectionRepo{db: db}
}

// FindByID は指定IDのコレクションを取得する。見つからない場合はnilを返す。
func (r *PostgresCollectionRepo) FindByID(ctx context.Context, id string) (*model.Collection, error) {
	collection := &model.Collection{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, created_at, updated_at FROM collections WHERE id = $1`, id,
	).Scan(&collection.ID, &collection.Name, &collection.CreatedAt, &collection.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("コレクションの取得に失敗しました: %w", err)
	}
	return collection, nil
}

// Create はコレクションを作成する。
func (r *PostgresCollectionRepo) Create(ctx context.Context, collection *model.Collection) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO collections (id, name, created_at, updated_at)
		 VALUES ($1, $2, $3, $4)`,
		collection.ID, collection.Name, collection.CreatedAt, collection.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("コレクションの作成に失敗しました: %w", err)
	}
	return nil
}

// ListAll は全コレクションを作成日時の昇順で返す。
func (r *PostgresCollectionRepo) ListAll(ctx context.Context) ([]*model.Collection, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, created_at, updated_at FROM collections ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("コレクション一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var collections []*model.Collection
	for rows.Next() {
		collection := &model.Collection{}
		if err := rows.Scan(
			&collection.ID, &collection.Name,
			&collection.CreatedAt, &collection.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("コレクション行の読み取りに失敗しました: %w", err)
		}
		collections = append(collections, collection)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("コレクション一覧の走査に失敗しました: %w", err)
	}
	return collections, nil
}

// DeleteByIDs は指定IDのコレクションをまとめて削除する。
func (r *PostgresCollectionRepo) DeleteByIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM collections WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("コレクションの削除に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ CollectionRepository = (*PostgresCollectionRepo)(nil)
