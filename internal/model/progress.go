// Package model はドメインモデルを定義する。
package model

import "time"

// ProgressRecord は（ユーザー, リソースキー）ごとの完了状態を表す。
// 不変条件: 組につき最大1行。書き込みはUPSERTで冪等。
// completedは一度trueになったら本コアの契約内では戻らない（単調）。
// アクセス制御には使用しない（参考情報のみ）。
type ProgressRecord struct {
	ID          string
	UserID      string
	ResourceKey string
	Completed   bool
	CompletedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
