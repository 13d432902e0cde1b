package model

import "time"

// GoalType は読書目標の種別を表す。
type GoalType string

const (
	// GoalTypeDailyMinutes は1日あたりの読書分数。
	GoalTypeDailyMinutes GoalType = "daily_minutes"
	// GoalTypeWeeklyMinutes は1週間（月曜始まり）あたりの読書分数。
	GoalTypeWeeklyMinutes GoalType = "weekly_minutes"
	// GoalTypeBooksPerMonth は1か月あたりの読了冊数。
	GoalTypeBooksPerMonth GoalType = "books_per_month"
	// GoalTypeBooksPerYear は1年あたりの読了冊数。
	GoalTypeBooksPerYear GoalType = "books_per_year"
)

// ParseGoalType は文字列をGoalTypeに変換する。未知の値の場合はfalseを返す。
func ParseGoalType(s string) (GoalType, bool) {
	switch GoalType(s) {
	case GoalTypeDailyMinutes, GoalTypeWeeklyMinutes, GoalTypeBooksPerMonth, GoalTypeBooksPerYear:
		return GoalType(s), true
	default:
		return "", false
	}
}

// IsMinutes は読書時間で計測する目標かどうかを返す。
func (t GoalType) IsMinutes() bool {
	return t == GoalTypeDailyMinutes || t == GoalTypeWeeklyMinutes
}

// ReadingGoal はユーザーの読書目標を表す。(user_id, goal_type) で一意。
// 進捗は保存せず、毎回履歴から計算する。
type ReadingGoal struct {
	ID          string
	UserID      string
	GoalType    GoalType
	TargetValue int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// GoalProgress は目標の期間内進捗を表す。
type GoalProgress struct {
	CurrentValue int
	TargetValue  int
	PeriodStart  time.Time
	PeriodEnd    time.Time
}

// Completed は目標を達成しているかを返す。
func (p GoalProgress) Completed() bool {
	return p.CurrentValue >= p.TargetValue
}

// ReadingTotals はユーザーの累計読書実績を表す。
type ReadingTotals struct {
	CompletedSessions int
	TotalSeconds      int64
	PagesRead         int
	CompletedBooks    int
}
