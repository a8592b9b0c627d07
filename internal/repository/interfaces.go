// Package repository はデータ永続化のインターフェースを定義する。
//
// 所有権の強制: profiles / progress_records に対する全クエリは
// 呼び出し元自身のuser_idを等価述語として必ず受け取る。
// user_idはセッションから導出された値のみを渡すこと（クライアント入力は不可）。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/pagegate/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail は指定メールアドレスのユーザーを取得する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成する。
	Create(ctx context.Context, user *model.User) error

	// UpdateName はユーザーの表示名を更新する。
	UpdateName(ctx context.Context, id, name string) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
	// DeleteExpired は期限切れセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}

// ProfileRepository はプロフィールデータの永続化インターフェース。
type ProfileRepository interface {
	// FindByUserID は指定ユーザーのプロフィールを取得する。見つからない場合はnilを返す。
	FindByUserID(ctx context.Context, userID string) (*model.Profile, error)

	// Insert はプロフィールを新規作成する。
	// UNIQUE(user_id)違反の場合はエラーをそのまま返す。
	// 呼び出し側がIsUniqueViolationで判定し、再読み込みで競合を解決する。
	Insert(ctx context.Context, profile *model.Profile) error

	// Update はプロフィールの記述フィールドを更新する。
	// user_idを所有権の述語として必ず含める。
	Update(ctx context.Context, profile *model.Profile) error
}

// EntitlementRepository はエンタイトルメントデータの永続化インターフェース。
// ゲート処理からは読み取り専用。Grant/Revokeは管理プロセス専用。
type EntitlementRepository interface {
	// Exists は（ユーザー, リソースキー）のエンタイトルメントが存在するかを返す。
	Exists(ctx context.Context, userID, resourceKey string) (bool, error)

	// ListByUserID はユーザーのエンタイトルメント一覧を返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.Entitlement, error)

	// Grant はエンタイトルメントを付与する。既に存在する場合は何もしない。
	Grant(ctx context.Context, entitlement *model.Entitlement) error

	// Revoke はエンタイトルメントを剥奪する。存在しない場合は何もしない。
	Revoke(ctx context.Context, userID, resourceKey string) error
}

// ProgressRepository は進捗データの永続化インターフェース。
type ProgressRepository interface {
	// FindByUserAndResource は（ユーザー, リソースキー）の進捗を取得する。
	// 見つからない場合はnilを返す。
	FindByUserAndResource(ctx context.Context, userID, resourceKey string) (*model.ProgressRecord, error)

	// MarkComplete は完了状態を冪等にUPSERTする。
	// UNIQUE(user_id, resource_key)制約を利用したINSERT ON CONFLICTで実装する。
	// completedは単調にtrueへ遷移し、falseへは戻らない。
	MarkComplete(ctx context.Context, userID, resourceKey string, at time.Time) (*model.ProgressRecord, error)
}

// CourseRepository はコースデータの永続化インターフェース。
type CourseRepository interface {
	// FindByKey は指定キーのコースを取得する。見つからない場合はnilを返す。
	FindByKey(ctx context.Context, key string) (*model.Course, error)

	// Create はコースを作成する。
	Create(ctx context.Context, course *model.Course) error

	// ListWithAnnouncementSource はお知らせ取得対象のコース一覧を返す。
	// announcement_feed_url または info_url が設定されているコースが対象。
	ListWithAnnouncementSource(ctx context.Context) ([]*model.Course, error)

	// UpdateAnnouncementFeedURL は自動検出されたフィードURLを保存する。
	UpdateAnnouncementFeedURL(ctx context.Context, courseID, feedURL string) error
}

// AnnouncementRepository はお知らせデータの永続化インターフェース。
type AnnouncementRepository interface {
	// Upsert はお知らせを(course_id, guid)キーで冪等にUPSERTする。
	Upsert(ctx context.Context, announcement *model.Announcement) error

	// ListByCourseID はコースのお知らせ一覧をpublished_at降順で返す。
	ListByCourseID(ctx context.Context, courseID string, limit int) ([]*model.Announcement, error)
}
