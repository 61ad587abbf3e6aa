package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/courseman/internal/model"
)

// uniqueViolation はPostgreSQLのunique_violationエラーコード。
const uniqueViolation = "23505"

// PostgresEntitlementRepo はPostgreSQLを使用したエンタイトルメントリポジトリ。
// entitlementsテーブルのUNIQUE (user_id, course_id) 制約を前提とする。
type PostgresEntitlementRepo struct {
	db *sql.DB
}

// NewPostgresEntitlementRepo はPostgresEntitlementRepoを生成する。
func NewPostgresEntitlementRepo(db *sql.DB) *PostgresEntitlementRepo {
	return &PostgresEntitlementRepo{db: db}
}

// Exists は(userID, courseID)のエンタイトルメントが存在するかを返す。
func (r *PostgresEntitlementRepo) Exists(ctx context.Context, userID, courseID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM entitlements WHERE user_id = $1 AND course_id = $2)`,
		userID, courseID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("エンタイトルメントの存在確認に失敗しました: %w", err)
	}
	return exists, nil
}

// InsertIfAbsent は(userID, courseID)のエンタイトルメントが無ければ挿入する。
// ON CONFLICT DO NOTHINGにより、並行するcheck-then-insertの競合でも
// 2行目の挿入は静かに失敗し、既存行を取得して返す。
// 念のためunique_violation(23505)も既存行扱いで吸収する。
func (r *PostgresEntitlementRepo) InsertIfAbsent(ctx context.Context, ent *model.Entitlement) (*model.Entitlement, bool, error) {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO entitlements (id, user_id, course_id, checkout_session_id, purchased_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT ON CONSTRAINT entitlements_user_course_key DO NOTHING`,
		ent.ID, ent.UserID, ent.CourseID, ent.CheckoutSessionID, ent.PurchasedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && string(pqErr.Code) == uniqueViolation {
			existing, findErr := r.findByUserAndCourse(ctx, ent.UserID, ent.CourseID)
			if findErr != nil {
				return nil, false, findErr
			}
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("エンタイトルメントの挿入に失敗しました: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("挿入結果の取得に失敗しました: %w", err)
	}
	if rowsAffected == 1 {
		return ent, true, nil
	}

	// 競合により挿入されなかった: 既存行を返す
	existing, err := r.findByUserAndCourse(ctx, ent.UserID, ent.CourseID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// findByUserAndCourse は(userID, courseID)のエンタイトルメントを取得する。
func (r *PostgresEntitlementRepo) findByUserAndCourse(ctx context.Context, userID, courseID string) (*model.Entitlement, error) {
	ent := &model.Entitlement{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, course_id, checkout_session_id, purchased_at
		 FROM entitlements WHERE user_id = $1 AND course_id = $2`,
		userID, courseID,
	).Scan(&ent.ID, &ent.UserID, &ent.CourseID, &ent.CheckoutSessionID, &ent.PurchasedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ユーザーと講座によるエンタイトルメントの検索に失敗しました: %w", err)
	}

	return ent, nil
}

// ListByUser はユーザーの全エンタイトルメントを返す。
func (r *PostgresEntitlementRepo) ListByUser(ctx context.Context, userID string) ([]model.Entitlement, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, course_id, checkout_session_id, purchased_at
		 FROM entitlements WHERE user_id = $1 ORDER BY purchased_at ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("エンタイトルメント一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var ents []model.Entitlement
	for rows.Next() {
		var ent model.Entitlement
		if err := rows.Scan(&ent.ID, &ent.UserID, &ent.CourseID, &ent.CheckoutSessionID, &ent.PurchasedAt); err != nil {
			return nil, fmt.Errorf("エンタイトルメント行の読み取りに失敗しました: %w", err)
		}
		ents = append(ents, ent)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("エンタイトルメント一覧の走査に失敗しました: %w", err)
	}
	return ents, nil
}

// ListByUserWithCourseInfo はユーザーのエンタイトルメント一覧を講座情報付きで返す。
func (r *PostgresEntitlementRepo) ListByUserWithCourseInfo(ctx context.Context, userID string) ([]EntitlementWithCourseInfo, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT
			e.id, e.user_id, e.course_id, e.checkout_session_id, e.purchased_at,
			c.title, c.description, c.price_minor_units, c.currency, c.image_url, c.video_url
		 FROM entitlements e
		 JOIN courses c ON e.course_id = c.id
		 WHERE e.user_id = $1
		 ORDER BY e.purchased_at ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("エンタイトルメント一覧（講座情報付き）の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var results []EntitlementWithCourseInfo
	for rows.Next() {
		var info EntitlementWithCourseInfo
		if err := rows.Scan(
			&info.ID, &info.UserID, &info.CourseID, &info.CheckoutSessionID, &info.PurchasedAt,
			&info.CourseTitle, &info.CourseDescription, &info.PriceMinorUnits,
			&info.Currency, &info.ImageURL, &info.VideoURL,
		); err != nil {
			return nil, fmt.Errorf("エンタイトルメント行（講座情報付き）の読み取りに失敗しました: %w", err)
		}
		results = append(results, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("エンタイトルメント一覧（講座情報付き）の走査に失敗しました: %w", err)
	}
	return results, nil
}

// DeleteAll は全エンタイトルメントを削除し、削除件数を返す。
func (r *PostgresEntitlementRepo) DeleteAll(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM entitlements`)
	if err != nil {
		return 0, fmt.Errorf("エンタイトルメントの一括削除に失敗しました: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除結果の取得に失敗しました: %w", err)
	}
	return count, nil
}

// compile-time interface check
var _ EntitlementRepository = (*PostgresEntitlementRepo)(nil)
