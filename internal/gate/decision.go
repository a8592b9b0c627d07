package gate

// Action は判定の終端アクション。1回のディスパッチにつき必ず1つ。
type Action int

const (
	// ActionAllow はアクセスを許可する。
	ActionAllow Action = iota
	// ActionRedirect は指定URLへのリダイレクトを指示する。
	ActionRedirect
)

// Decision はディスパッチの結果。
type Decision struct {
	Action      Action
	RedirectURL string // ActionRedirectの場合の遷移先
	Kind        Kind   // 判定に使われた保護種別
	UserID      string // 許可時のセッション所有者。KindNone・バイパス時は空
	// BootstrapErr はprofile種別でプロフィール作成に失敗した場合の
	// エラー。許可は維持され、ハンドラーが失敗を可視化する。
	// リダイレクトループを防ぐため、作成失敗をリダイレクトにはしない。
	BootstrapErr error
}

// Allowed はアクセスが許可されたかを返す。
func (d Decision) Allowed() bool {
	return d.Action == ActionAllow
}
