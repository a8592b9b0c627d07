// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザー（アイデンティティ）を表す。
// IDは発行後に変更されない。他のエンティティは常にIDで参照する。
type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Session はユーザーのログインセッションを表す。
// サインインで作成され、サインアウトまたは期限切れで破棄される。
// 匿名アクセスの場合はセッションが存在しない。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}
