package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/pagegate/internal/model"
)

// PostgresAnnouncementRepo はPostgreSQLを使用したお知らせリポジトリ。
type PostgresAnnouncementRepo struct {
	db *sql.DB
}

// NewPostgresAnnouncementRepo はPostgresAnnouncementRepoを生成する。
func NewPostgresAnnouncementRepo(db *sql.DB) *PostgresAnnouncementRepo {
	return &PostgresAnnouncementRepo{db: db}
}

// Upsert はお知らせを(course_id, guid)キーで冪等にUPSERTする。
func (r *PostgresAnnouncementRepo) Upsert(ctx context.Context, announcement *model.Announcement) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO announcements (id, course_id, guid, title, content_html, published_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (course_id, guid) DO UPDATE SET
		     title = EXCLUDED.title,
		     content_html = EXCLUDED.content_html,
		     published_at = EXCLUDED.published_at`,
		announcement.ID, announcement.CourseID, announcement.GUID,
		announcement.Title, announcement.ContentHTML,
		announcement.PublishedAt, announcement.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("お知らせのUPSERTに失敗しました: %w", err)
	}
	return nil
}

// ListByCourseID はコースのお知らせ一覧をpublished_at降順で返す。
func (r *PostgresAnnouncementRepo) ListByCourseID(ctx context.Context, courseID string, limit int) ([]*model.Announcement, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, course_id, guid, title, content_html, published_at, created_at
		 FROM announcements
		 WHERE course_id = $1
		 ORDER BY published_at DESC
		 LIMIT $2`,
		courseID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("お知らせ一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var announcements []*model.Announcement
	for rows.Next() {
		a := &model.Announcement{}
		if err := rows.Scan(
			&a.ID, &a.CourseID, &a.GUID,
			&a.Title, &a.ContentHTML,
			&a.PublishedAt, &a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("お知らせ行のスキャンに失敗しました: %w", err)
		}
		announcements = append(announcements, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("お知らせ一覧の読み取りに失敗しました: %w", err)
	}

	return announcements, nil
}

// compile-time interface check
var _ AnnouncementRepository = (*PostgresAnnouncementRepo)(nil)
