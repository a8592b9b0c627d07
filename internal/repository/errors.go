package repository

import (
	"errors"

	"github.com/lib/pq"
)

// uniqueViolationCode はPostgreSQLの一意性制約違反のSQLSTATEコード。
const uniqueViolationCode = "23505"

// IsUniqueViolation はエラーがPostgreSQLの一意性制約違反かどうかを判定する。
// プロフィールの同時初回作成競合の検出に使用する。
// 同時に複数の呼び出しがINSERTを試みた場合、勝者以外はこのエラーを受け取り、
// 再読み込みで勝者の行を取得する。
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == uniqueViolationCode
	}
	return false
}
