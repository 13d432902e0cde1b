package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/quietly/quietly/internal/model"
)

// goalPathParam は /api/goals/{goal} のURLパラメータ名。
// PUTでは目標種別、DELETEでは目標IDを表す。
const goalPathParam = "goal"

// GoalServiceInterface は読書目標ハンドラーが必要とするサービスインターフェース。
type GoalServiceInterface interface {
	// ListGoals は目標の一覧を現在の進捗付きで返す。
	ListGoals(ctx context.Context, userID string) ([]goalResponse, error)
	// UpsertGoal は種別ごとの目標を作成または更新する。
	UpsertGoal(ctx context.Context, userID, goalType string, targetValue int) (*goalResponse, error)
	DeleteGoal(ctx context.Context, userID, goalID string) error
}

// GoalHandler は読書目標のHTTPハンドラー。
type GoalHandler struct {
	service GoalServiceInterface
}

// NewGoalHandler はGoalHandlerを生成する。
func NewGoalHandler(service GoalServiceInterface) *GoalHandler {
	return &GoalHandler{service: service}
}

type upsertGoalRequest struct {
	TargetValue int `json:"target_value"`
}

// goalResponse は読書目標と期間内の進捗のAPIレスポンス。
// 期間は [period_start, period_end) の半開区間。
type goalResponse struct {
	ID           string    `json:"id"`
	GoalType     string    `json:"goal_type"`
	TargetValue  int       `json:"target_value"`
	CurrentValue int       `json:"current_value"`
	Completed    bool      `json:"completed"`
	PeriodStart  time.Time `json:"period_start"`
	PeriodEnd    time.Time `json:"period_end"`
}

// ListGoals は目標の一覧を返す。
// GET /api/goals
func (h *GoalHandler) ListGoals(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	goals, err := h.service.ListGoals(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, goals)
}

// UpsertGoal は目標を設定する。
// PUT /api/goals/{goal}
func (h *GoalHandler) UpsertGoal(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req upsertGoalRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	goal, err := h.service.UpsertGoal(r.Context(), userID, strings.TrimSpace(chi.URLParam(r, goalPathParam)), req.TargetValue)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, goal)
}

// DeleteGoal は目標を削除する。
// DELETE /api/goals/{goal}
func (h *GoalHandler) DeleteGoal(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	goalID, ok := idParam(w, r, goalPathParam, model.NewGoalNotFoundError)
	if !ok {
		return
	}

	if err := h.service.DeleteGoal(r.Context(), userID, goalID); err != nil {
		handleServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
