package model

import "time"

// SessionState は読書セッションの状態を表す。
type SessionState string

const (
	// SessionStateActive は計測中の状態。
	SessionStateActive SessionState = "active"
	// SessionStatePaused は一時停止中の状態。
	SessionStatePaused SessionState = "paused"
	// SessionStateEnded は終了済みの状態。以後変更されない。
	SessionStateEnded SessionState = "ended"
)

// ReadingSession は1冊の本に対する1回の読書（一時停止を挟む場合がある）を表す。
// 状態はすべて永続化されたフィールドから導出できる。
type ReadingSession struct {
	ID                 string
	UserID             string
	BookID             string
	StartedAt          time.Time
	PausedAt           *time.Time // 一時停止中のみ値を持つ
	TotalPausedSeconds int64      // 再開時と終了時にのみ加算される
	EndedAt            *time.Time
	StartPage          *int
	EndPage            *int
	DurationSeconds    *int64 // 終了時に一度だけ計算される
	PagesRead          *int
	Notes              *string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// State はフィールドから現在の状態を導出する。
func (s *ReadingSession) State() SessionState {
	switch {
	case s.EndedAt != nil:
		return SessionStateEnded
	case s.PausedAt != nil:
		return SessionStatePaused
	default:
		return SessionStateActive
	}
}
