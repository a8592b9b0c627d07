package progress

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/pagegate/internal/model"
)

// mockProgressRepo はProgressRepositoryのモック実装。
type mockProgressRepo struct {
	findFn         func(ctx context.Context, userID, resourceKey string) (*model.ProgressRecord, error)
	markCompleteFn func(ctx context.Context, userID, resourceKey string, at time.Time) (*model.ProgressRecord, error)
}

func (m *mockProgressRepo) FindByUserAndResource(ctx context.Context, userID, resourceKey string) (*model.ProgressRecord, error) {
	return m.findFn(ctx, userID, resourceKey)
}

func (m *mockProgressRepo) MarkComplete(ctx context.Context, userID, resourceKey string, at time.Time) (*model.ProgressRecord, error) {
	return m.markCompleteFn(ctx, userID, resourceKey, at)
}

// upsertStore はUPSERTの意味論（1キー1行・completed単調）を再現するテスト用ストア。
type upsertStore struct {
	mu      sync.Mutex
	records map[string]*model.ProgressRecord
}

func newUpsertStore() *upsertStore {
	return &upsertStore{records: make(map[string]*model.ProgressRecord)}
}

func (s *upsertStore) markComplete(ctx context.Context, userID, resourceKey string, at time.Time) (*model.ProgressRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := userID + "/" + resourceKey
	if existing, ok := s.records[key]; ok {
		completedAt := at
		existing.Completed = true
		existing.CompletedAt = &completedAt
		existing.UpdatedAt = at
		return existing, nil
	}
	completedAt := at
	record := &model.ProgressRecord{
		ID:          key,
		UserID:      userID,
		ResourceKey: resourceKey,
		Completed:   true,
		CompletedAt: &completedAt,
		CreatedAt:   at,
		UpdatedAt:   at,
	}
	s.records[key] = record
	return record, nil
}

// 完了記録が作成されることを検証する。
func TestService_MarkComplete(t *testing.T) {
	store := newUpsertStore()
	repo := &mockProgressRepo{markCompleteFn: store.markComplete}
	service := NewService(repo)

	record, err := service.MarkComplete(context.Background(), "user-1", "lesson-1")
	if err != nil {
		t.Fatalf("MarkComplete returned error: %v", err)
	}
	if !record.Completed {
		t.Error("record should be completed")
	}
	if record.CompletedAt == nil {
		t.Error("CompletedAt should be set")
	}
}

// 同一キーへの再実行が行を増やさないこと（冪等性）を検証する。
func TestService_MarkComplete_Idempotent(t *testing.T) {
	store := newUpsertStore()
	repo := &mockProgressRepo{markCompleteFn: store.markComplete}
	service := NewService(repo)

	first, err := service.MarkComplete(context.Background(), "user-1", "lesson-1")
	if err != nil {
		t.Fatalf("first MarkComplete returned error: %v", err)
	}
	second, err := service.MarkComplete(context.Background(), "user-1", "lesson-1")
	if err != nil {
		t.Fatalf("second MarkComplete returned error: %v", err)
	}

	if len(store.records) != 1 {
		t.Errorf("rows = %d, want 1", len(store.records))
	}
	if !second.Completed {
		t.Error("completed must stay true after repeat")
	}
	if second.ID != first.ID {
		t.Error("repeat should update the same row")
	}
}

type mockUpsertRecorder struct {
	upserts int
}

func (m *mockUpsertRecorder) RecordProgressUpserted() {
	m.upserts++
}

// UPSERT成功時にレコーダーへ記録されることを検証する。
func TestService_MarkComplete_RecordsMetric(t *testing.T) {
	store := newUpsertStore()
	repo := &mockProgressRepo{markCompleteFn: store.markComplete}
	service := NewService(repo)
	recorder := &mockUpsertRecorder{}
	service.SetRecorder(recorder)

	if _, err := service.MarkComplete(context.Background(), "user-1", "lesson-1"); err != nil {
		t.Fatalf("MarkComplete returned error: %v", err)
	}
	if recorder.upserts != 1 {
		t.Errorf("upserts = %d, want 1", recorder.upserts)
	}
}

// 空の入力が拒否されることを検証する。
func TestService_MarkComplete_EmptyInput(t *testing.T) {
	repo := &mockProgressRepo{
		markCompleteFn: func(ctx context.Context, userID, resourceKey string, at time.Time) (*model.ProgressRecord, error) {
			t.Error("repository should not be called for empty input")
			return nil, nil
		},
	}
	service := NewService(repo)

	if _, err := service.MarkComplete(context.Background(), "", "lesson-1"); err == nil {
		t.Error("empty user ID should be rejected")
	}
	if _, err := service.MarkComplete(context.Background(), "user-1", ""); err == nil {
		t.Error("empty resource key should be rejected")
	}
}

// 記録エラーが完了扱いにならず呼び出し元へ報告されることを検証する。
func TestService_MarkComplete_Error(t *testing.T) {
	wantErr := errors.New("connection refused")
	repo := &mockProgressRepo{
		markCompleteFn: func(ctx context.Context, userID, resourceKey string, at time.Time) (*model.ProgressRecord, error) {
			return nil, wantErr
		},
	}
	service := NewService(repo)

	_, err := service.MarkComplete(context.Background(), "user-1", "lesson-1")
	if !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want wrapped %v", err, wantErr)
	}
}

// 完了状態の照会を検証する。記録なしは未完了。
func TestService_CheckProgress(t *testing.T) {
	completedAt := time.Now()
	repo := &mockProgressRepo{
		findFn: func(ctx context.Context, userID, resourceKey string) (*model.ProgressRecord, error) {
			if resourceKey == "lesson-done" {
				return &model.ProgressRecord{
					UserID: userID, ResourceKey: resourceKey,
					Completed: true, CompletedAt: &completedAt,
				}, nil
			}
			return nil, nil
		},
	}
	service := NewService(repo)

	done, err := service.CheckProgress(context.Background(), "user-1", "lesson-done")
	if err != nil {
		t.Fatalf("CheckProgress returned error: %v", err)
	}
	if !done {
		t.Error("recorded completion should be reported")
	}

	done, err = service.CheckProgress(context.Background(), "user-1", "lesson-new")
	if err != nil {
		t.Fatalf("CheckProgress returned error: %v", err)
	}
	if done {
		t.Error("missing record should be reported as not completed")
	}
}
