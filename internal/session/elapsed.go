// Package session は読書セッションの経過時間計算とライフサイクル管理を提供する。
package session

import "time"

// ElapsedSeconds は現在表示すべき読書経過秒数を返す。
// 一時停止中はpausedAt、計測中はnowを基準に、開始時刻からの秒数から累積停止秒数を差し引く。
// 結果が負になる場合（時計のずれや不正な累積値）は0を返す。
// 絶対時刻から導出するため、任意の間隔で何度呼び出しても同じ値になる。
func ElapsedSeconds(now, startedAt time.Time, pausedAt *time.Time, totalPausedSeconds int64) int64 {
	ref := now
	if pausedAt != nil {
		ref = *pausedAt
	}
	elapsed := wholeSeconds(ref.Sub(startedAt)) - totalPausedSeconds
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

// FoldPause は一時停止区間 [pausedAt, now) を累積停止秒数に加算した値を返す。
// 停止区間が負になる場合は加算しない。
func FoldPause(now, pausedAt time.Time, totalPausedSeconds int64) int64 {
	additional := wholeSeconds(now.Sub(pausedAt))
	if additional < 0 {
		additional = 0
	}
	return totalPausedSeconds + additional
}

// DurationSeconds は終了時点の読書秒数を返す。負にはならない。
func DurationSeconds(startedAt, endedAt time.Time, totalPausedSeconds int64) int64 {
	d := wholeSeconds(endedAt.Sub(startedAt)) - totalPausedSeconds
	if d < 0 {
		return 0
	}
	return d
}

// PagesRead は開始ページと終了ページの両方がある場合のみ読んだページ数を返す。
func PagesRead(startPage, endPage *int) *int {
	if startPage == nil || endPage == nil {
		return nil
	}
	n := *endPage - *startPage
	return &n
}

func wholeSeconds(d time.Duration) int64 {
	return int64(d / time.Second)
}
