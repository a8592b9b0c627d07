// Package gate はルートごとに宣言された保護種別に基づく
// アクセス判定ディスパッチを提供する。
package gate

// Kind はルートに宣言される保護種別。閉じた列挙型であり、
// ここに列挙された値以外は存在しない。
type Kind int

const (
	// KindNone は保護なし。セッション照会すら行わない。
	KindNone Kind = iota
	// KindBasic は認証のみを要求する。
	KindBasic
	// KindAccount は認証を要求し、アカウント情報はallow後にハンドラーが取得する。
	KindAccount
	// KindProfile は認証とプロフィールの存在保証（遅延作成）を要求する。
	KindProfile
	// KindCourse は認証とリソースキーに対するエンタイトルメントを要求する。
	KindCourse
)

// String はメトリクスラベル・ログ用の種別名を返す。
func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindBasic:
		return "basic"
	case KindAccount:
		return "account"
	case KindProfile:
		return "profile"
	case KindCourse:
		return "course"
	default:
		return "unknown"
	}
}

// ParseKind は文字列を保護種別に変換する。
// 未知の文字列は認証要求側へ倒してKindBasicに落とし、okにfalseを返す。
// 呼び出し側はfalseを受けて警告ログを出すこと。
func ParseKind(s string) (kind Kind, ok bool) {
	switch s {
	case "none":
		return KindNone, true
	case "basic":
		return KindBasic, true
	case "account":
		return KindAccount, true
	case "profile":
		return KindProfile, true
	case "course":
		return KindCourse, true
	default:
		return KindBasic, false
	}
}
