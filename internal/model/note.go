package model

import "time"

// NoteKind はメモの種別を表す。
type NoteKind string

const (
	// NoteKindNote は自由記述のメモ。
	NoteKindNote NoteKind = "note"
	// NoteKindQuote は本文からの引用。
	NoteKindQuote NoteKind = "quote"
)

// Note は本に紐づくメモまたは引用を表す。
type Note struct {
	ID        string
	UserID    string
	BookID    string
	Kind      NoteKind
	Content   string // サニタイズ済み
	Page      *int
	CreatedAt time.Time
	UpdatedAt time.Time
}
