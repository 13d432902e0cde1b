package streak

import (
	"context"
	"fmt"
	"time"

	"github.com/quietly/quietly/internal/clock"
	"github.com/quietly/quietly/internal/model"
	"github.com/quietly/quietly/internal/repository"
)

// Stats はユーザーの読書統計を表す。
type Stats struct {
	CurrentStreak int
	LongestStreak int
	Totals        model.ReadingTotals
}

// Service は読書履歴からストリークと統計を計算する。
type Service struct {
	sessionRepo  repository.ReadingSessionRepository
	userBookRepo repository.UserBookRepository
	clock        clock.Clock
	loc          *time.Location
}

// NewService はServiceを生成する。locは暦日の基準タイムゾーン。
func NewService(
	sessionRepo repository.ReadingSessionRepository,
	userBookRepo repository.UserBookRepository,
	clk clock.Clock,
	loc *time.Location,
) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		sessionRepo:  sessionRepo,
		userBookRepo: userBookRepo,
		clock:        clk,
		loc:          loc,
	}
}

// Current はnow時点の現在のストリークを返す。
func (s *Service) Current(ctx context.Context, userID string, now time.Time) (int, error) {
	if userID == "" {
		return 0, model.NewNotAuthenticatedError()
	}
	dates, err := s.loadDates(ctx, userID)
	if err != nil {
		return 0, err
	}
	return Compute(dates, DateOf(now, s.loc)), nil
}

// Stats は現在と最長のストリーク、累計の読書実績を返す。
func (s *Service) Stats(ctx context.Context, userID string) (*Stats, error) {
	if userID == "" {
		return nil, model.NewNotAuthenticatedError()
	}
	dates, err := s.loadDates(ctx, userID)
	if err != nil {
		return nil, err
	}

	totals, err := s.sessionRepo.Totals(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("読書実績の集計に失敗しました: %w", err)
	}
	completed, err := s.userBookRepo.CountCompleted(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("読了冊数の集計に失敗しました: %w", err)
	}
	totals.CompletedBooks = completed

	return &Stats{
		CurrentStreak: Compute(dates, DateOf(s.clock.Now(), s.loc)),
		LongestStreak: Longest(dates),
		Totals:        totals,
	}, nil
}

// loadDates はセッションを開始した暦日の集合を読み込む。
// リポジトリは基準タイムゾーンの暦日を返すため、年月日のみを取り出す。
func (s *Service) loadDates(ctx context.Context, userID string) (Set, error) {
	starts, err := s.sessionRepo.ListStartDates(ctx, userID, s.loc)
	if err != nil {
		return nil, fmt.Errorf("読書日の取得に失敗しました: %w", err)
	}
	set := make(Set, len(starts))
	for _, t := range starts {
		y, m, d := t.Date()
		set[Date{Year: y, Month: m, Day: d}] = struct{}{}
	}
	return set, nil
}
