// Package model はドメインモデルを定義する。
package model

import "time"

// Entitlement は（ユーザー, リソースキー）の組で表されるアクセス権を表す。
// 行が存在すればアクセス許可、存在しなければ拒否（メンバーシップ判定のみ）。
// 付与・剥奪は外部の管理プロセス（seedコマンド等）が行い、
// ゲート処理からは読み取り専用。
type Entitlement struct {
	ID          string
	UserID      string
	ResourceKey string
	GrantedAt   time.Time
}
