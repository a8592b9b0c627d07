package auth

import (
	"context"

	"github.com/hitoshi/pagegate/internal/model"
	"github.com/hitoshi/pagegate/internal/repository"
)

// Oracle は現在のセッション状態への問い合わせ窓口。
// 保護判定は毎回このOracleを経由して最新のセッションを取得する。
// 呼び出しをまたいだキャッシュは持たない。サインアウトやセッション
// 失効は次の問い合わせから即座に反映される。
type Oracle struct {
	sessionRepo repository.SessionRepository
}

// NewOracle はOracleを生成する。
func NewOracle(sessionRepo repository.SessionRepository) *Oracle {
	return &Oracle{sessionRepo: sessionRepo}
}

// Current は現在のセッションを取得する。
// sessionIDが空、セッションが存在しない、または期限切れの場合は
// (nil, nil) を返す。セッションの不在はエラーではなく通常の状態。
func (o *Oracle) Current(ctx context.Context, sessionID string) (*model.Session, error) {
	if sessionID == "" {
		return nil, nil
	}
	return o.sessionRepo.FindByID(ctx, sessionID)
}
