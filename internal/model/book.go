// Package model はドメインモデルを定義する。
package model

import "time"

// Book は書誌情報を表す。ISBNが同じ本はユーザー間で共有される。
type Book struct {
	ID         string
	Title      string
	Author     string
	ISBN       string
	TotalPages *int
	CoverURL   string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// BookStatus は本棚における読書状態を表す。
type BookStatus string

const (
	// BookStatusWantToRead は読みたい本。
	BookStatusWantToRead BookStatus = "want_to_read"
	// BookStatusReading は読書中の本。
	BookStatusReading BookStatus = "reading"
	// BookStatusCompleted は読了した本。
	BookStatusCompleted BookStatus = "completed"
)

// ParseBookStatus は文字列をBookStatusに変換する。未知の値の場合はfalseを返す。
func ParseBookStatus(s string) (BookStatus, bool) {
	switch BookStatus(s) {
	case BookStatusWantToRead, BookStatusReading, BookStatusCompleted:
		return BookStatus(s), true
	default:
		return "", false
	}
}

// UserBook はユーザーの本棚に置かれた本（user_booksテーブル）を表す。
type UserBook struct {
	ID          string
	UserID      string
	BookID      string
	Status      BookStatus
	CurrentPage int
	Rating      *int
	StartedAt   *time.Time
	CompletedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// UserBookWithBook は本棚の本と書誌情報を結合したモデル。
type UserBookWithBook struct {
	UserBook
	Book Book
}
