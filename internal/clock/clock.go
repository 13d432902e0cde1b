// Package clock は現在時刻の取得を抽象化する。
package clock

import "time"

// Clock は現在時刻を返す。テストでは固定時刻の実装に差し替える。
type Clock interface {
	Now() time.Time
}

// SystemClock はシステム時刻をUTCで返すClock。
type SystemClock struct{}

// Now は現在時刻を返す。
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// Fixed は常に同じ時刻を返すClock。
type Fixed struct {
	T time.Time
}

// Now は固定時刻を返す。
func (f *Fixed) Now() time.Time {
	return f.T
}

// Advance は固定時刻をdだけ進める。
func (f *Fixed) Advance(d time.Duration) {
	f.T = f.T.Add(d)
}
