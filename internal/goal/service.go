package goal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/quietly/quietly/internal/clock"
	"github.com/quietly/quietly/internal/metrics"
	"github.com/quietly/quietly/internal/model"
	"github.com/quietly/quietly/internal/repository"
)

// GoalWithProgress は目標と、その時点で計算した進捗の組。
type GoalWithProgress struct {
	Goal     *model.ReadingGoal
	Progress model.GoalProgress
}

// Service は読書目標の作成・削除と進捗計算を行う。
// 進捗は保存せず、呼び出しのたびに読書履歴から計算し直す。
type Service struct {
	goalRepo     repository.GoalRepository
	sessionRepo  repository.ReadingSessionRepository
	userBookRepo repository.UserBookRepository
	metrics      metrics.MetricsCollector
	clock        clock.Clock
	loc          *time.Location
}

// NewService はServiceを生成する。locは期間境界の基準タイムゾーン。
func NewService(
	goalRepo repository.GoalRepository,
	sessionRepo repository.ReadingSessionRepository,
	userBookRepo repository.UserBookRepository,
	collector metrics.MetricsCollector,
	clk clock.Clock,
	loc *time.Location,
) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		goalRepo:     goalRepo,
		sessionRepo:  sessionRepo,
		userBookRepo: userBookRepo,
		metrics:      collector,
		clock:        clk,
		loc:          loc,
	}
}

// Upsert は目標を作成する。同じ種別の目標が既にある場合は目標値を更新する。
func (s *Service) Upsert(ctx context.Context, userID, goalType string, targetValue int) (*GoalWithProgress, error) {
	if userID == "" {
		return nil, model.NewNotAuthenticatedError()
	}
	gt, ok := model.ParseGoalType(goalType)
	if !ok {
		return nil, model.NewValidationError(fmt.Sprintf("不明な目標種別です: %s", goalType))
	}
	if targetValue <= 0 {
		return nil, model.NewValidationError("目標値は1以上で指定してください")
	}

	now := s.clock.Now()
	saved, err := s.goalRepo.Upsert(ctx, &model.ReadingGoal{
		ID:          uuid.NewString(),
		UserID:      userID,
		GoalType:    gt,
		TargetValue: targetValue,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return nil, fmt.Errorf("読書目標の保存に失敗しました: %w", err)
	}

	slog.InfoContext(ctx, "読書目標を保存しました",
		slog.String("user_id", userID),
		slog.String("goal_type", string(gt)),
		slog.Int("target_value", targetValue),
	)

	progress, err := s.Progress(ctx, userID, saved, now)
	if err != nil {
		return nil, err
	}
	return &GoalWithProgress{Goal: saved, Progress: progress}, nil
}

// Delete は目標を削除する。他のユーザーの目標は存在しないものとして扱う。
func (s *Service) Delete(ctx context.Context, userID, goalID string) error {
	if userID == "" {
		return model.NewNotAuthenticatedError()
	}
	g, err := s.goalRepo.FindByID(ctx, goalID)
	if err != nil {
		return fmt.Errorf("読書目標の取得に失敗しました: %w", err)
	}
	if g == nil || g.UserID != userID {
		return model.NewGoalNotFoundError(goalID)
	}
	if err := s.goalRepo.Delete(ctx, goalID); err != nil {
		if errors.Is(err, repository.ErrNotUpdated) {
			return model.NewGoalNotFoundError(goalID)
		}
		return fmt.Errorf("読書目標の削除に失敗しました: %w", err)
	}

	slog.InfoContext(ctx, "読書目標を削除しました",
		slog.String("user_id", userID),
		slog.String("goal_id", goalID),
	)
	return nil
}

// List はユーザーの目標を、now時点の進捗とともに返す。
func (s *Service) List(ctx context.Context, userID string, now time.Time) ([]GoalWithProgress, error) {
	if userID == "" {
		return nil, model.NewNotAuthenticatedError()
	}
	goals, err := s.goalRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("読書目標一覧の取得に失敗しました: %w", err)
	}

	result := make([]GoalWithProgress, 0, len(goals))
	for _, g := range goals {
		progress, err := s.Progress(ctx, userID, g, now)
		if err != nil {
			return nil, err
		}
		result = append(result, GoalWithProgress{Goal: g, Progress: progress})
	}
	return result, nil
}

// ListNow は現在時刻で List を呼び出す。
func (s *Service) ListNow(ctx context.Context, userID string) ([]GoalWithProgress, error) {
	return s.List(ctx, userID, s.clock.Now())
}

// Progress はnow時点の集計期間における目標の進捗を計算する。
// 読書時間の目標は終了済みセッションの読書秒数の合計を分に切り捨て、
// 冊数の目標は期間内に読了した本を数える。
func (s *Service) Progress(ctx context.Context, userID string, g *model.ReadingGoal, now time.Time) (model.GoalProgress, error) {
	start, end := PeriodBounds(g.GoalType, now, s.loc)
	progress := model.GoalProgress{
		TargetValue: g.TargetValue,
		PeriodStart: start,
		PeriodEnd:   end,
	}

	if g.GoalType.IsMinutes() {
		seconds, err := s.sessionRepo.SumDurationInRange(ctx, userID, start, end)
		if err != nil {
			return model.GoalProgress{}, fmt.Errorf("読書時間の集計に失敗しました: %w", err)
		}
		progress.CurrentValue = int(seconds / 60)
	} else {
		count, err := s.userBookRepo.CountCompletedInRange(ctx, userID, start, end)
		if err != nil {
			return model.GoalProgress{}, fmt.Errorf("読了冊数の集計に失敗しました: %w", err)
		}
		progress.CurrentValue = count
	}

	if s.metrics != nil {
		s.metrics.RecordGoalEvaluation(string(g.GoalType), progress.Completed())
	}
	return progress, nil
}
