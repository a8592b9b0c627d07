// Package model はドメインモデルを定義する。
package model

import "time"

// Profile はユーザーごとのプロフィール（1:1）を表す。
// 初回の認証済みアクセス時に遅延作成される。
// 不変条件: 1ユーザーにつき必ず1行。同時初回アクセスの競合は
// UNIQUE(user_id)制約と再読み込みで解決する。
type Profile struct {
	ID          string
	UserID      string
	DisplayName string
	Bio         string
	AvatarURL   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
