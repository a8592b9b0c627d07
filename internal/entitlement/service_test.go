package entitlement

import (
	"context"
	"errors"
	"testing"

	"github.com/hitoshi/pagegate/internal/model"
)

// mockEntitlementRepo はEntitlementRepositoryのモック実装。
type mockEntitlementRepo struct {
	existsFn       func(ctx context.Context, userID, resourceKey string) (bool, error)
	listByUserIDFn func(ctx context.Context, userID string) ([]*model.Entitlement, error)
	grantFn        func(ctx context.Context, entitlement *model.Entitlement) error
	revokeFn       func(ctx context.Context, userID, resourceKey string) error
}

func (m *mockEntitlementRepo) Exists(ctx context.Context, userID, resourceKey string) (bool, error) {
	return m.existsFn(ctx, userID, resourceKey)
}

func (m *mockEntitlementRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Entitlement, error) {
	return m.listByUserIDFn(ctx, userID)
}

func (m *mockEntitlementRepo) Grant(ctx context.Context, entitlement *model.Entitlement) error {
	return m.grantFn(ctx, entitlement)
}

func (m *mockEntitlementRepo) Revoke(ctx context.Context, userID, resourceKey string) error {
	return m.revokeFn(ctx, userID, resourceKey)
}

// 行が存在すれば許可、不在なら拒否になることを検証する。
func TestService_HasEntitlement_Membership(t *testing.T) {
	repo := &mockEntitlementRepo{
		existsFn: func(ctx context.Context, userID, resourceKey string) (bool, error) {
			return resourceKey == "course-101", nil
		},
	}
	service := NewService(repo)

	granted, err := service.HasEntitlement(context.Background(), "user-1", "course-101")
	if err != nil {
		t.Fatalf("HasEntitlement returned error: %v", err)
	}
	if !granted {
		t.Error("existing row should grant access")
	}

	granted, err = service.HasEntitlement(context.Background(), "user-1", "course-999")
	if err != nil {
		t.Fatalf("HasEntitlement returned error: %v", err)
	}
	if granted {
		t.Error("missing row should deny access")
	}
}

// 照会エラーが拒否（フェイルクローズド）になることを検証する。
func TestService_HasEntitlement_FailClosed(t *testing.T) {
	wantErr := errors.New("connection refused")
	repo := &mockEntitlementRepo{
		existsFn: func(ctx context.Context, userID, resourceKey string) (bool, error) {
			return false, wantErr
		},
	}
	service := NewService(repo)

	granted, err := service.HasEntitlement(context.Background(), "user-1", "course-101")
	if granted {
		t.Error("query error must never grant access")
	}
	if !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want wrapped %v", err, wantErr)
	}
}

// 空のユーザーID・リソースキーがリポジトリを呼ばずに拒否されることを検証する。
func TestService_HasEntitlement_EmptyInput(t *testing.T) {
	repo := &mockEntitlementRepo{
		existsFn: func(ctx context.Context, userID, resourceKey string) (bool, error) {
			t.Error("repository should not be called for empty input")
			return false, nil
		},
	}
	service := NewService(repo)

	if granted, _ := service.HasEntitlement(context.Background(), "", "course-101"); granted {
		t.Error("empty user ID should deny")
	}
	if granted, _ := service.HasEntitlement(context.Background(), "user-1", ""); granted {
		t.Error("empty resource key should deny")
	}
}

// 自分のエンタイトルメント一覧が取得できることを検証する。
func TestService_ListByUser(t *testing.T) {
	repo := &mockEntitlementRepo{
		listByUserIDFn: func(ctx context.Context, userID string) ([]*model.Entitlement, error) {
			return []*model.Entitlement{
				{ID: "ent-1", UserID: userID, ResourceKey: "course-101"},
				{ID: "ent-2", UserID: userID, ResourceKey: "course-102"},
			}, nil
		},
	}
	service := NewService(repo)

	entitlements, err := service.ListByUser(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("ListByUser returned error: %v", err)
	}
	if len(entitlements) != 2 {
		t.Errorf("len = %d, want 2", len(entitlements))
	}
}
