// Package model はドメインモデルを定義する。
package model

import "time"

// Course はカタログ上の講座を表す。
// 価格は通貨の最小単位（USDならセント）の整数で保持する。
// カタログシード/管理者操作で作成され、定常状態ではメタデータ修正を除き不変。
type Course struct {
	ID              string
	Title           string
	Description     string
	PriceMinorUnits int
	Currency        string
	ImageURL        string
	VideoURL        string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
