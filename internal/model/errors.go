// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, access, validation, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeAuthRequired       = "AUTH_REQUIRED"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeNoEntitlement      = "NO_ENTITLEMENT"
	ErrCodeInvalidResourceKey = "INVALID_RESOURCE_KEY"
	ErrCodeBootstrapFailed    = "PROFILE_BOOTSTRAP_FAILED"
	ErrCodeProgressFailed     = "PROGRESS_UPDATE_FAILED"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
	ErrCodeCourseNotFound     = "COURSE_NOT_FOUND"
	ErrCodeInvalidFeedURL     = "INVALID_FEED_URL"
)

// NewAuthRequiredError は未認証エラーを生成する。
func NewAuthRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeAuthRequired,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてから再度アクセスしてください。",
	}
}

// NewInvalidCredentialsError は認証情報不一致エラーを生成する。
// メールアドレス未登録とパスワード不一致を区別しない。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewNoEntitlementError はエンタイトルメント不在エラーを生成する。
func NewNoEntitlementError(resourceKey string) *APIError {
	return &APIError{
		Code:     ErrCodeNoEntitlement,
		Message:  fmt.Sprintf("このコンテンツへのアクセス権がありません: %s", resourceKey),
		Category: "access",
		Action:   "受講登録を確認してください。",
	}
}

// NewInvalidResourceKeyError はリソースキー不正エラーを生成する。
func NewInvalidResourceKeyError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidResourceKey,
		Message:  "リソースキーが指定されていません。",
		Category: "validation",
		Action:   "URLを確認してください。",
	}
}

// NewBootstrapFailedError はプロフィール初期化失敗エラーを生成する。
func NewBootstrapFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeBootstrapFailed,
		Message:  "プロフィールの初期化に失敗しました。",
		Category: "system",
		Action:   "しばらく待ってからページを再読み込みしてください。",
	}
}

// NewProgressFailedError は進捗更新失敗エラーを生成する。
func NewProgressFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeProgressFailed,
		Message:  "進捗の更新に失敗しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewCourseNotFoundError はコースが見つからない場合のエラーを生成する。
func NewCourseNotFoundError(key string) *APIError {
	return &APIError{
		Code:     ErrCodeCourseNotFound,
		Message:  fmt.Sprintf("指定されたコースが見つかりません: %s", key),
		Category: "validation",
		Action:   "コースキーを確認してください。",
	}
}

// NewInvalidFeedURLError はお知らせフィードURLが無効な場合のエラーを生成する。
func NewInvalidFeedURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidFeedURL,
		Message:  fmt.Sprintf("無効なフィードURLです: %s", reason),
		Category: "validation",
		Action:   "http:// または https:// で始まる公開URLを指定してください。",
	}
}
