// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/courseman/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成する。
	Create(ctx context.Context, user *model.User) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
	// DeleteExpired は期限切れセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// CourseRepository は講座カタログの永続化インターフェース。
type CourseRepository interface {
	// FindByID は指定IDの講座を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Course, error)

	// FindByTitle はタイトルで講座を検索する。見つからない場合はnilを返す。
	// カタログシード時の既存講座検出に使用する。
	FindByTitle(ctx context.Context, title string) (*model.Course, error)

	// List は全講座を作成日時の降順で返す。
	List(ctx context.Context) ([]model.Course, error)

	// Count は講座の総数を返す。
	Count(ctx context.Context) (int, error)

	// Create は講座を作成する。
	Create(ctx context.Context, course *model.Course) error

	// UpdateMedia は講座のメディアURL（画像・動画）を更新する。
	// 定常状態の講座に許される唯一のメタデータ修正。
	UpdateMedia(ctx context.Context, id, imageURL, videoURL string) error
}

// EntitlementRepository はエンタイトルメントの永続化インターフェース。
// (user_id, course_id) のUNIQUE制約を前提とし、InsertIfAbsentは
// check-then-insert競合下でも重複行を作らないことを保証する。
type EntitlementRepository interface {
	// Exists は(userID, courseID)のエンタイトルメントが存在するかを返す。
	Exists(ctx context.Context, userID, courseID string) (bool, error)

	// InsertIfAbsent は(userID, courseID)のエンタイトルメントが無ければ挿入する。
	// ストレージ層のUNIQUE制約に対してアトミックであり、並行呼び出しでも
	// 行は1件しか作られない。挿入できた場合はcreated=true、既存行があった
	// 場合はその行とcreated=falseを返す。
	InsertIfAbsent(ctx context.Context, ent *model.Entitlement) (*model.Entitlement, bool, error)

	// ListByUser はユーザーの全エンタイトルメントを返す。
	ListByUser(ctx context.Context, userID string) ([]model.Entitlement, error)

	// ListByUserWithCourseInfo はユーザーのエンタイトルメント一覧を
	// 講座情報付きで返す。
	ListByUserWithCourseInfo(ctx context.Context, userID string) ([]EntitlementWithCourseInfo, error)

	// DeleteAll は全エンタイトルメントを削除し、削除件数を返す。
	// 管理者の一括リセット専用。
	DeleteAll(ctx context.Context) (int64, error)
}

// EntitlementWithCourseInfo はエンタイトルメントと講座情報を結合した構造体。
type EntitlementWithCourseInfo struct {
	model.Entitlement
	CourseTitle       string
	CourseDescription string
	PriceMinorUnits   int
	Currency          string
	ImageURL          string
	VideoURL          string
}
