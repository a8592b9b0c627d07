package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/pagegate/internal/model"
)

// PostgresCourseRepo はPostgreSQLを使用したコースリポジトリ。
type PostgresCourseRepo struct {
	db *sql.DB
}

// NewPostgresCourseRepo はPostgresCourseRepoを生成する。
func NewPostgresCourseRepo(db *sql.DB) *PostgresCourseRepo {
	return &PostgresCourseRepo{db: db}
}

// FindByKey は指定キーのコースを取得する。見つからない場合はnilを返す。
func (r *PostgresCourseRepo) FindByKey(ctx context.Context, key string) (*model.Course, error) {
	course := &model.Course{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, key, title, info_url, announcement_feed_url, created_at, updated_at
		 FROM courses WHERE key = $1`,
		key,
	).Scan(
		&course.ID, &course.Key, &course.Title,
		&course.InfoURL, &course.AnnouncementFeedURL,
		&course.CreatedAt, &course.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("コースの取得に失敗しました: %w", err)
	}

	return course, nil
}

// Create はコースを作成する。
func (r *PostgresCourseRepo) Create(ctx context.Context, course *model.Course) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO courses (id, key, title, info_url, announcement_feed_url, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (key) DO NOTHING`,
		course.ID, course.Key, course.Title,
		course.InfoURL, course.AnnouncementFeedURL,
		course.CreatedAt, course.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("コースの作成に失敗しました: %w", err)
	}
	return nil
}

// ListWithAnnouncementSource はお知らせ取得対象のコース一覧を返す。
func (r *PostgresCourseRepo) ListWithAnnouncementSource(ctx context.Context) ([]*model.Course, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, key, title, info_url, announcement_feed_url, created_at, updated_at
		 FROM courses
		 WHERE announcement_feed_url <> '' OR info_url <> ''
		 ORDER BY key`,
	)
	if err != nil {
		return nil, fmt.Errorf("コース一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var courses []*model.Course
	for rows.Next() {
		c := &model.Course{}
		if err := rows.Scan(
			&c.ID, &c.Key, &c.Title,
			&c.InfoURL, &c.AnnouncementFeedURL,
			&c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("コース行のスキャンに失敗しました: %w", err)
		}
		courses = append(courses, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("コース一覧の読み取りに失敗しました: %w", err)
	}

	return courses, nil
}

// UpdateAnnouncementFeedURL は自動検出されたフィードURLを保存する。
func (r *PostgresCourseRepo) UpdateAnnouncementFeedURL(ctx context.Context, courseID, feedURL string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE courses SET announcement_feed_url = $2, updated_at = $3 WHERE id = $1`,
		courseID, feedURL, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("フィードURLの更新に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ CourseRepository = (*PostgresCourseRepo)(nil)
