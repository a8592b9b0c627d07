package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/pagegate/internal/model"
)

// 空のセッションIDではリポジトリを呼ばずに (nil, nil) を返すことを検証する。
func TestOracle_Current_EmptySessionID(t *testing.T) {
	sessionRepo := &mockSessionRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
			t.Error("repository should not be called for empty session ID")
			return nil, nil
		},
	}
	oracle := NewOracle(sessionRepo)

	session, err := oracle.Current(context.Background(), "")
	if err != nil {
		t.Fatalf("Current returned error: %v", err)
	}
	if session != nil {
		t.Errorf("session = %v, want nil", session)
	}
}

// 呼び出しごとに毎回リポジトリを読みに行くことを検証する。
// サインアウト直後の問い合わせが古い状態を観測しないための性質。
func TestOracle_Current_FreshReadPerCall(t *testing.T) {
	calls := 0
	sessionRepo := &mockSessionRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
			calls++
			if calls == 1 {
				return &model.Session{ID: id, UserID: "user-1", ExpiresAt: time.Now().Add(time.Hour)}, nil
			}
			// 2回目以降はサインアウト済みとして不在を返す
			return nil, nil
		},
	}
	oracle := NewOracle(sessionRepo)

	first, err := oracle.Current(context.Background(), "session-1")
	if err != nil {
		t.Fatalf("Current returned error: %v", err)
	}
	if first == nil {
		t.Fatal("first call should return the session")
	}

	second, err := oracle.Current(context.Background(), "session-1")
	if err != nil {
		t.Fatalf("Current returned error: %v", err)
	}
	if second != nil {
		t.Error("second call should observe the signed-out state")
	}
	if calls != 2 {
		t.Errorf("repository calls = %d, want 2 (no caching)", calls)
	}
}

// 期限切れセッション（リポジトリがnilを返す）が (nil, nil) になることを検証する。
func TestOracle_Current_ExpiredSession(t *testing.T) {
	sessionRepo := &mockSessionRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
			return nil, nil
		},
	}
	oracle := NewOracle(sessionRepo)

	session, err := oracle.Current(context.Background(), "expired")
	if err != nil {
		t.Fatalf("Current returned error: %v", err)
	}
	if session != nil {
		t.Errorf("session = %v, want nil", session)
	}
}

// リポジトリのエラーがそのまま呼び出し元へ伝播することを検証する。
func TestOracle_Current_RepositoryError(t *testing.T) {
	wantErr := errors.New("connection refused")
	sessionRepo := &mockSessionRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
			return nil, wantErr
		},
	}
	oracle := NewOracle(sessionRepo)

	_, err := oracle.Current(context.Background(), "session-1")
	if !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want %v", err, wantErr)
	}
}
