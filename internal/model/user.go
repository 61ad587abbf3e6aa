// Package model はドメインモデルを定義する。
package model

import "time"

// Role はユーザーの権限ロールを表す。
type Role string

const (
	// RoleMember は一般ユーザーのロール。
	RoleMember Role = "member"
	// RoleAdmin は管理者のロール。エンタイトルメントの一括リセット等の
	// 管理操作を実行できる。
	RoleAdmin Role = "admin"
)

// User はサービス利用ユーザーを表す。
// メールアドレスは一意であり、パスワードはbcryptハッシュとして保持する。
// 登録時に作成され、通常運用では削除されない。
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsAdmin はユーザーが管理者ロールを持つかを返す。
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Session はユーザーのログインセッションを表す。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}
