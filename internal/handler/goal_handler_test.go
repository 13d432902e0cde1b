package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/quietly/quietly/internal/model"
)

// --- モック定義 ---

// mockGoalService はGoalServiceInterfaceのモック実装。
type mockGoalService struct {
	listGoalsFn  func(ctx context.Context, userID string) ([]goalResponse, error)
	upsertGoalFn func(ctx context.Context, userID, goalType string, targetValue int) (*goalResponse, error)
	deleteGoalFn func(ctx context.Context, userID, goalID string) error
}

func (m *mockGoalService) ListGoals(ctx context.Context, userID string) ([]goalResponse, error) {
	if m.listGoalsFn != nil {
		return m.listGoalsFn(ctx, userID)
	}
	return []goalResponse{}, nil
}

func (m *mockGoalService) UpsertGoal(ctx context.Context, userID, goalType string, targetValue int) (*goalResponse, error) {
	if m.upsertGoalFn != nil {
		return m.upsertGoalFn(ctx, userID, goalType, targetValue)
	}
	return &goalResponse{GoalType: goalType, TargetValue: targetValue}, nil
}

func (m *mockGoalService) DeleteGoal(ctx context.Context, userID, goalID string) error {
	if m.deleteGoalFn != nil {
		return m.deleteGoalFn(ctx, userID, goalID)
	}
	return nil
}

// mockStatsService はStatsServiceInterfaceのモック実装。
type mockStatsService struct {
	statsFn func(ctx context.Context, userID string) (*statsResponse, error)
}

func (m *mockStatsService) Stats(ctx context.Context, userID string) (*statsResponse, error) {
	if m.statsFn != nil {
		return m.statsFn(ctx, userID)
	}
	return &statsResponse{Goals: []goalResponse{}}, nil
}

// --- 目標テスト ---

func TestGoalHandler_ListGoals_ReturnsProgress(t *testing.T) {
	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	svc := &mockGoalService{
		listGoalsFn: func(ctx context.Context, userID string) ([]goalResponse, error) {
			return []goalResponse{{
				ID:           testGoalID,
				GoalType:     string(model.GoalTypeWeeklyMinutes),
				TargetValue:  120,
				CurrentValue: 130,
				Completed:    true,
				PeriodStart:  start,
				PeriodEnd:    start.AddDate(0, 0, 7),
			}}, nil
		},
	}
	h := NewGoalHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/goals", nil)
	req = withUserID(req, "user-123")
	w := httptest.NewRecorder()

	h.ListGoals(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var result []map[string]interface{}
	decodeBody(t, w, &result)
	if len(result) != 1 {
		t.Fatalf("len = %d, want 1", len(result))
	}
	if result[0]["completed"] != true {
		t.Errorf("completed = %v, want true", result[0]["completed"])
	}
	if result[0]["period_start"] != "2026-03-02T00:00:00Z" {
		t.Errorf("period_start = %v", result[0]["period_start"])
	}
}

func TestGoalHandler_UpsertGoal_PassesTypeAndTarget(t *testing.T) {
	var gotType string
	var gotTarget int
	svc := &mockGoalService{
		upsertGoalFn: func(ctx context.Context, userID, goalType string, targetValue int) (*goalResponse, error) {
			gotType = goalType
			gotTarget = targetValue
			return &goalResponse{ID: testGoalID, GoalType: goalType, TargetValue: targetValue}, nil
		},
	}
	h := NewGoalHandler(svc)

	req := httptest.NewRequest(http.MethodPut, "/api/goals/daily_minutes", bytes.NewBufferString(`{"target_value":30}`))
	req = withUserID(req, "user-123")
	req = withChiURLParam(req, goalPathParam, "daily_minutes")
	w := httptest.NewRecorder()

	h.UpsertGoal(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if gotType != "daily_minutes" || gotTarget != 30 {
		t.Errorf("got (%q, %d), want (daily_minutes, 30)", gotType, gotTarget)
	}
}

func TestGoalHandler_UpsertGoal_ValidationError(t *testing.T) {
	svc := &mockGoalService{
		upsertGoalFn: func(ctx context.Context, userID, goalType string, targetValue int) (*goalResponse, error) {
			return nil, model.NewValidationError("目標値は1以上で指定してください")
		},
	}
	h := NewGoalHandler(svc)

	req := httptest.NewRequest(http.MethodPut, "/api/goals/monthly", bytes.NewBufferString(`{"target_value":0}`))
	req = withUserID(req, "user-123")
	req = withChiURLParam(req, goalPathParam, "monthly")
	w := httptest.NewRecorder()

	h.UpsertGoal(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestGoalHandler_DeleteGoal(t *testing.T) {
	tests := []struct {
		name       string
		goalID     string
		err        error
		wantStatus int
	}{
		{"正常に削除", testGoalID, nil, http.StatusNoContent},
		{"存在しない目標", testGoalID, model.NewGoalNotFoundError(testGoalID), http.StatusNotFound},
		{"UUIDでないID", "daily_minutes", nil, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockGoalService{
				deleteGoalFn: func(ctx context.Context, userID, goalID string) error {
					return tt.err
				},
			}
			h := NewGoalHandler(svc)

			req := httptest.NewRequest(http.MethodDelete, "/api/goals/"+tt.goalID, nil)
			req = withUserID(req, "user-123")
			req = withChiURLParam(req, goalPathParam, tt.goalID)
			w := httptest.NewRecorder()

			h.DeleteGoal(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

// --- 統計テスト ---

func TestStatsHandler_Stats_ReturnsSummary(t *testing.T) {
	svc := &mockStatsService{
		statsFn: func(ctx context.Context, userID string) (*statsResponse, error) {
			if userID != "user-123" {
				t.Errorf("userID = %q, want %q", userID, "user-123")
			}
			return &statsResponse{
				CurrentStreak:     3,
				LongestStreak:     10,
				TotalMinutes:      95,
				CompletedSessions: 7,
				PagesRead:         210,
				CompletedBooks:    2,
				Goals:             []goalResponse{},
			}, nil
		},
	}
	h := NewStatsHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	req = withUserID(req, "user-123")
	w := httptest.NewRecorder()

	h.Stats(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var result map[string]interface{}
	decodeBody(t, w, &result)
	if result["current_streak"] != float64(3) {
		t.Errorf("current_streak = %v, want 3", result["current_streak"])
	}
	if result["longest_streak"] != float64(10) {
		t.Errorf("longest_streak = %v, want 10", result["longest_streak"])
	}
	goals, ok := result["goals"].([]interface{})
	if !ok || len(goals) != 0 {
		t.Errorf("goals = %v, want []", result["goals"])
	}
}

func TestStatsHandler_Stats_NoUserID_ReturnsUnauthorized(t *testing.T) {
	h := NewStatsHandler(&mockStatsService{})

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	w := httptest.NewRecorder()

	h.Stats(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}
