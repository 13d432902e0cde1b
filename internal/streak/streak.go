// Package streak は連続読書日数（ストリーク）の計算を提供する。
package streak

import (
	"fmt"
	"sort"
	"time"
)

// Date はタイムゾーンを持たない暦日を表す。
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf はtをlocにおける暦日に変換する。
func DateOf(t time.Time, loc *time.Location) Date {
	y, m, d := t.In(loc).Date()
	return Date{Year: y, Month: m, Day: d}
}

// AddDays はn日後の暦日を返す。nが負の場合は過去の日付を返す。
func (d Date) AddDays(n int) Date {
	y, m, day := time.Date(d.Year, d.Month, d.Day+n, 0, 0, 0, 0, time.UTC).Date()
	return Date{Year: y, Month: m, Day: day}
}

// Before はdがotherより前の日付かを返す。
func (d Date) Before(other Date) bool {
	if d.Year != other.Year {
		return d.Year < other.Year
	}
	if d.Month != other.Month {
		return d.Month < other.Month
	}
	return d.Day < other.Day
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// Set は読書した暦日の集合。
type Set map[Date]struct{}

// NewSet は時刻の列をlocにおける暦日の集合に変換する。
func NewSet(times []time.Time, loc *time.Location) Set {
	set := make(Set, len(times))
	for _, t := range times {
		set[DateOf(t, loc)] = struct{}{}
	}
	return set
}

// Has はdが集合に含まれるかを返す。
func (s Set) Has(d Date) bool {
	_, ok := s[d]
	return ok
}

// Compute はtodayを基準にした現在のストリークを返す。
// todayに読書していなくても前日に読書していれば、前日から数えたストリークを継続中として返す。
// todayと前日のどちらにも読書していなければ0。
func Compute(dates Set, today Date) int {
	cursor := today
	if !dates.Has(cursor) {
		cursor = today.AddDays(-1)
		if !dates.Has(cursor) {
			return 0
		}
	}

	count := 0
	for dates.Has(cursor) {
		count++
		cursor = cursor.AddDays(-1)
	}
	return count
}

// Longest は集合内で最も長い連続日数を返す。
func Longest(dates Set) int {
	if len(dates) == 0 {
		return 0
	}
	sorted := make([]Date, 0, len(dates))
	for d := range dates {
		sorted = append(sorted, d)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	longest, run := 1, 1
	for i := 1; i < len(sorted); i++ {
		if sorted[i-1].AddDays(1) == sorted[i] {
			run++
		} else {
			run = 1
		}
		if run > longest {
			longest = run
		}
	}
	return longest
}
