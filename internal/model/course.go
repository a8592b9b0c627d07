// Package model はドメインモデルを定義する。
package model

import "time"

// Course は保護対象のリソース（コース）を表す。
// Keyがエンタイトルメント・進捗のリソースキーとして使用される。
type Course struct {
	ID        string
	Key       string
	Title     string
	// InfoURL はコース紹介ページのURL。お知らせフィードの自動検出に使用する。
	InfoURL string
	// AnnouncementFeedURL はお知らせRSS/AtomフィードのURL。空の場合は未設定。
	AnnouncementFeedURL string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Announcement はコースのお知らせ（フィード記事）を表す。
// (course_id, guid)で同一性を判定し、UPSERTで冪等に保存する。
type Announcement struct {
	ID          string
	CourseID    string
	GUID        string
	Title       string
	ContentHTML string
	PublishedAt time.Time
	CreatedAt   time.Time
}
