package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/pagegate/internal/model"
)

// PostgresProgressRepo はPostgreSQLを使用した進捗リポジトリ。
type PostgresProgressRepo struct {
	db *sql.DB
}

// NewPostgresProgressRepo はPostgresProgressRepoを生成する。
func NewPostgresProgressRepo(db *sql.DB) *PostgresProgressRepo {
	return &PostgresProgressRepo{db: db}
}

// FindByUserAndResource は（ユーザー, リソースキー）の進捗を取得する。
// 見つからない場合はnilを返す。
func (r *PostgresProgressRepo) FindByUserAndResource(ctx context.Context, userID, resourceKey string) (*model.ProgressRecord, error) {
	record := &model.ProgressRecord{}
	var completedAt sql.NullTime

	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, resource_key, completed, completed_at, created_at, updated_at
		 FROM progress_records WHERE user_id = $1 AND resource_key = $2`,
		userID, resourceKey,
	).Scan(
		&record.ID, &record.UserID, &record.ResourceKey,
		&record.Completed, &completedAt,
		&record.CreatedAt, &record.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("進捗の取得に失敗しました: %w", err)
	}

	if completedAt.Valid {
		record.CompletedAt = &completedAt.Time
	}

	return record, nil
}

// MarkComplete は完了状態を冪等にUPSERTする。
// UNIQUE(user_id, resource_key)制約を利用したINSERT ON CONFLICTで実装する。
// completedは既存値とのORで単調にtrueへ遷移し、falseへは戻らない。
// タイムスタンプは呼び出しごとに更新される（last write wins）。
func (r *PostgresProgressRepo) MarkComplete(ctx context.Context, userID, resourceKey string, at time.Time) (*model.ProgressRecord, error) {
	record := &model.ProgressRecord{}
	var completedAt sql.NullTime

	err := r.db.QueryRowContext(ctx,
		`INSERT INTO progress_records (id, user_id, resource_key, completed, completed_at, created_at, updated_at)
		 VALUES ($1, $2, $3, true, $4, $4, $4)
		 ON CONFLICT (user_id, resource_key) DO UPDATE SET
		     completed = progress_records.completed OR EXCLUDED.completed,
		     completed_at = EXCLUDED.completed_at,
		     updated_at = EXCLUDED.updated_at
		 RETURNING id, user_id, resource_key, completed, completed_at, created_at, updated_at`,
		uuid.New().String(), userID, resourceKey, at.UTC(),
	).Scan(
		&record.ID, &record.UserID, &record.ResourceKey,
		&record.Completed, &completedAt,
		&record.CreatedAt, &record.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("進捗のUPSERTに失敗しました: %w", err)
	}

	if completedAt.Valid {
		record.CompletedAt = &completedAt.Time
	}

	return record, nil
}

// compile-time interface check
var _ ProgressRepository = (*PostgresProgressRepo)(nil)
