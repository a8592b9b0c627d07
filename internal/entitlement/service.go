// Package entitlement は保護リソースへのアクセス権の照会を提供する。
package entitlement

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/pagegate/internal/model"
	"github.com/hitoshi/pagegate/internal/repository"
)

// Service はエンタイトルメントの照会ロジックを提供する。
// コア処理からは読み取り専用。付与・剥奪は管理プロセス（seedコマンド等）が
// リポジトリを直接操作する。
type Service struct {
	entitlementRepo repository.EntitlementRepository
}

// NewService はServiceを生成する。
func NewService(entitlementRepo repository.EntitlementRepository) *Service {
	return &Service{entitlementRepo: entitlementRepo}
}

// HasEntitlement は（ユーザー, リソースキー）のエンタイトルメント有無を返す。
// フェイルクローズド: 照会に失敗した場合は false とエラーを返し、
// 呼び出し側は拒否として扱う。userIDは必ずセッション由来の値を渡すこと。
func (s *Service) HasEntitlement(ctx context.Context, userID, resourceKey string) (bool, error) {
	if userID == "" || resourceKey == "" {
		return false, nil
	}

	exists, err := s.entitlementRepo.Exists(ctx, userID, resourceKey)
	if err != nil {
		slog.Error("entitlement check failed",
			slog.String("user_id", userID),
			slog.String("resource_key", resourceKey),
			slog.String("error", err.Error()),
		)
		return false, fmt.Errorf("failed to check entitlement: %w", err)
	}

	return exists, nil
}

// ListByUser はユーザー自身のエンタイトルメント一覧を返す。
func (s *Service) ListByUser(ctx context.Context, userID string) ([]*model.Entitlement, error) {
	if userID == "" {
		return nil, fmt.Errorf("user ID is required")
	}

	entitlements, err := s.entitlementRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list entitlements: %w", err)
	}

	return entitlements, nil
}
