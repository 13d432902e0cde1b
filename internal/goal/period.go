// Package goal は読書目標の管理と進捗計算を提供する。
package goal

import (
	"time"

	"github.com/quietly/quietly/internal/model"
)

// PeriodBounds は目標種別とnowから集計期間 [start, end) を返す。
// 境界はlocにおける暦で決まり、週は月曜始まりとする。
func PeriodBounds(goalType model.GoalType, now time.Time, loc *time.Location) (time.Time, time.Time) {
	local := now.In(loc)
	y, m, d := local.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, loc)

	switch goalType {
	case model.GoalTypeDailyMinutes:
		return today, today.AddDate(0, 0, 1)
	case model.GoalTypeWeeklyMinutes:
		// Weekdayは日曜が0のため、月曜からの日数に変換する
		sinceMonday := (int(local.Weekday()) + 6) % 7
		start := today.AddDate(0, 0, -sinceMonday)
		return start, start.AddDate(0, 0, 7)
	case model.GoalTypeBooksPerMonth:
		start := time.Date(y, m, 1, 0, 0, 0, 0, loc)
		return start, start.AddDate(0, 1, 0)
	case model.GoalTypeBooksPerYear:
		start := time.Date(y, time.January, 1, 0, 0, 0, 0, loc)
		return start, start.AddDate(1, 0, 0)
	default:
		return today, today.AddDate(0, 0, 1)
	}
}
