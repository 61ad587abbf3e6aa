package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/courseman/internal/model"
)

// PostgresCourseRepo はPostgreSQLを使用した講座リポジトリ。
type PostgresCourseRepo struct {
	db *sql.DB
}

// NewPostgresCourseRepo はPostgresCourseRepoを生成する。
func NewPostgresCourseRepo(db *sql.DB) *PostgresCourseRepo {
	return &PostgresCourseRepo{db: db}
}

// FindByID は指定IDの講座を取得する。見つからない場合はnilを返す。
func (r *PostgresCourseRepo) FindByID(ctx context.Context, id string) (*model.Course, error) {
	course := &model.Course{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, title, description, price_minor_units, currency, image_url, video_url, created_at, updated_at
		 FROM courses WHERE id = $1`,
		id,
	).Scan(&course.ID, &course.Title, &course.Description, &course.PriceMinorUnits,
		&course.Currency, &course.ImageURL, &course.VideoURL, &course.CreatedAt, &course.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("講座の取得に失敗しました: %w", err)
	}

	return course, nil
}

// FindByTitle はタイトルで講座を検索する。見つからない場合はnilを返す。
func (r *PostgresCourseRepo) FindByTitle(ctx context.Context, title string) (*model.Course, error) {
	course := &model.Course{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, title, description, price_minor_units, currency, image_url, video_url, created_at, updated_at
		 FROM courses WHERE title = $1`,
		title,
	).Scan(&course.ID, &course.Title, &course.Description, &course.PriceMinorUnits,
		&course.Currency, &course.ImageURL, &course.VideoURL, &course.CreatedAt, &course.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("タイトルによる講座の検索に失敗しました: %w", err)
	}

	return course, nil
}

// List は全講座を作成日時の降順で返す。
func (r *PostgresCourseRepo) List(ctx context.Context) ([]model.Course, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, title, description, price_minor_units, currency, image_url, video_url, created_at, updated_at
		 FROM courses ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("講座一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var courses []model.Course
	for rows.Next() {
		var course model.Course
		if err := rows.Scan(&course.ID, &course.Title, &course.Description, &course.PriceMinorUnits,
			&course.Currency, &course.ImageURL, &course.VideoURL, &course.CreatedAt, &course.UpdatedAt); err != nil {
			return nil, fmt.Errorf("講座行の読み取りに失敗しました: %w", err)
		}
		courses = append(courses, course)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("講座一覧の走査に失敗しました: %w", err)
	}
	return courses, nil
}

// Count は講座の総数を返す。
func (r *PostgresCourseRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM courses`,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("講座数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// Create は講座を作成する。
func (r *PostgresCourseRepo) Create(ctx context.Context, course *model.Course) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO courses (id, title, description, price_minor_units, currency, image_url, video_url, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		course.ID, course.Title, course.Description, course.PriceMinorUnits,
		course.Currency, course.ImageURL, course.VideoURL, course.CreatedAt, course.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("講座の作成に失敗しました: %w", err)
	}
	return nil
}

// UpdateMedia は講座のメディアURL（画像・動画）を更新する。
func (r *PostgresCourseRepo) UpdateMedia(ctx context.Context, id, imageURL, videoURL string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE courses SET image_url = $2, video_url = $3, updated_at = NOW() WHERE id = $1`,
		id, imageURL, videoURL,
	)
	if err != nil {
		return fmt.Errorf("メディアURLの更新に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新結果の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("講座が見つかりません: %s", id)
	}
	return nil
}

// compile-time interface check
var _ CourseRepository = (*PostgresCourseRepo)(nil)
