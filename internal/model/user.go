// Package model はドメインモデルを定義する。
package model

// User はボットの利用ユーザーを表す。
// Telegramユーザーの初回参照時に作成され、以降は内部IDで管理する。
// このコアがユーザーを削除することはない。
type User struct {
	ID          int64
	TelegramUID int64
	IsPaying    bool
	Latitude    *float64
	Longitude   *float64
}

// HasLocation は位置情報が設定済みかどうかを返す。
func (u *User) HasLocation() bool {
	return u.Latitude != nil && u.Longitude != nil
}
