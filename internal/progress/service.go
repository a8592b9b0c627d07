// Package progress はリソース完了状態の記録と照会を提供する。
package progress

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/pagegate/internal/model"
	"github.com/hitoshi/pagegate/internal/repository"
)

// UpsertRecorder は進捗UPSERTのメトリクス記録インターフェース。
type UpsertRecorder interface {
	RecordProgressUpserted()
}

// Service は進捗記録のロジックを提供する。
// 進捗は情報表示専用であり、アクセス可否の判定には一切使わない。
type Service struct {
	progressRepo repository.ProgressRepository
	recorder     UpsertRecorder // nil可
}

// NewService はServiceを生成する。
func NewService(progressRepo repository.ProgressRepository) *Service {
	return &Service{progressRepo: progressRepo}
}

// SetRecorder は進捗UPSERTのメトリクス記録先を設定する。
func (s *Service) SetRecorder(recorder UpsertRecorder) {
	s.recorder = recorder
}

// MarkComplete は（ユーザー, リソースキー）の完了を冪等に記録する。
// 同一キーへの再実行は行を増やさず、completedは単調にtrueを維持する。
// userIDは必ずセッション由来の値を渡すこと。
func (s *Service) MarkComplete(ctx context.Context, userID, resourceKey string) (*model.ProgressRecord, error) {
	if userID == "" {
		return nil, fmt.Errorf("user ID is required")
	}
	if resourceKey == "" {
		return nil, fmt.Errorf("resource key is required")
	}

	record, err := s.progressRepo.MarkComplete(ctx, userID, resourceKey, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to mark progress complete: %w", err)
	}

	if s.recorder != nil {
		s.recorder.RecordProgressUpserted()
	}

	slog.Info("progress recorded",
		slog.String("user_id", userID),
		slog.String("resource_key", resourceKey),
	)
	return record, nil
}

// CheckProgress は（ユーザー, リソースキー）の完了状態を返す。
// 記録が存在しない場合は未完了として false を返す。
func (s *Service) CheckProgress(ctx context.Context, userID, resourceKey string) (bool, error) {
	if userID == "" || resourceKey == "" {
		return false, nil
	}

	record, err := s.progressRepo.FindByUserAndResource(ctx, userID, resourceKey)
	if err != nil {
		return false, fmt.Errorf("failed to check progress: %w", err)
	}
	if record == nil {
		return false, nil
	}

	return record.Completed, nil
}
