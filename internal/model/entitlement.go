// Package model はドメインモデルを定義する。
package model

import "time"

// Entitlement はユーザーが講座の対価を支払い、アクセス権を持つことを記録する。
// (UserID, CourseID) の組につき最大1件 — これがシステム唯一のハード不変条件であり、
// ストレージ層のUNIQUE制約で保証される。
// 決済確定時にPurchase Reconcilerが作成し、以後更新されない。
// 削除は管理者の一括リセット操作のみ。
type Entitlement struct {
	ID                string
	UserID            string
	CourseID          string
	CheckoutSessionID string
	PurchasedAt       time.Time
}
