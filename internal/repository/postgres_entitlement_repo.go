package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/pagegate/internal/model"
)

// PostgresEntitlementRepo はPostgreSQLを使用したエンタイトルメントリポジトリ。
type PostgresEntitlementRepo struct {
	db *sql.DB
}

// NewPostgresEntitlementRepo はPostgresEntitlementRepoを生成する。
func NewPostgresEntitlementRepo(db *sql.DB) *PostgresEntitlementRepo {
	return &PostgresEntitlementRepo{db: db}
}

// Exists は（ユーザー, リソースキー）のエンタイトルメントが存在するかを返す。
// メンバーシップ判定のみ: 行の存在が許可、不在が拒否。
func (r *PostgresEntitlementRepo) Exists(ctx context.Context, userID, resourceKey string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (
		    SELECT 1 FROM entitlements WHERE user_id = $1 AND resource_key = $2
		 )`,
		userID, resourceKey,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("エンタイトルメントの確認に失敗しました: %w", err)
	}
	return exists, nil
}

// ListByUserID はユーザーのエンタイトルメント一覧を返す。
func (r *PostgresEntitlementRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Entitlement, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, resource_key, granted_at
		 FROM entitlements WHERE user_id = $1 ORDER BY granted_at`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("エンタイトルメント一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var entitlements []*model.Entitlement
	for rows.Next() {
		e := &model.Entitlement{}
		if err := rows.Scan(&e.ID, &e.UserID, &e.ResourceKey, &e.GrantedAt); err != nil {
			return nil, fmt.Errorf("エンタイトルメント行のスキャンに失敗しました: %w", err)
		}
		entitlements = append(entitlements, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("エンタイトルメント一覧の読み取りに失敗しました: %w", err)
	}

	return entitlements, nil
}

// Grant はエンタイトルメントを付与する。既に存在する場合は何もしない（冪等）。
// 管理プロセス（seedコマンド等）専用。ゲート処理からは呼び出さない。
func (r *PostgresEntitlementRepo) Grant(ctx context.Context, entitlement *model.Entitlement) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO entitlements (id, user_id, resource_key, granted_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id, resource_key) DO NOTHING`,
		entitlement.ID, entitlement.UserID, entitlement.ResourceKey, entitlement.GrantedAt,
	)
	if err != nil {
		return fmt.Errorf("エンタイトルメントの付与に失敗しました: %w", err)
	}
	return nil
}

// Revoke はエンタイトルメントを剥奪する。存在しない場合は何もしない（冪等）。
func (r *PostgresEntitlementRepo) Revoke(ctx context.Context, userID, resourceKey string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM entitlements WHERE user_id = $1 AND resource_key = $2`,
		userID, resourceKey,
	)
	if err != nil {
		return fmt.Errorf("エンタイトルメントの剥奪に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ EntitlementRepository = (*PostgresEntitlementRepo)(nil)
