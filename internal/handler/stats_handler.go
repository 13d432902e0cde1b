package handler

import (
	"context"
	"net/http"
)

// StatsServiceInterface は統計ハンドラーが必要とするサービスインターフェース。
type StatsServiceInterface interface {
	Stats(ctx context.Context, userID string) (*statsResponse, error)
}

// StatsHandler は読書統計のHTTPハンドラー。
type StatsHandler struct {
	service StatsServiceInterface
}

// NewStatsHandler はStatsHandlerを生成する。
func NewStatsHandler(service StatsServiceInterface) *StatsHandler {
	return &StatsHandler{service: service}
}

type statsResponse struct {
	CurrentStreak     int            `json:"current_streak"`
	LongestStreak     int            `json:"longest_streak"`
	TotalMinutes      int64          `json:"total_minutes"`
	CompletedSessions int            `json:"completed_sessions"`
	PagesRead         int            `json:"pages_read"`
	CompletedBooks    int            `json:"completed_books"`
	Goals             []goalResponse `json:"goals"`
}

// Stats はストリーク、累計実績、目標の進捗をまとめて返す。
// GET /api/stats
func (h *StatsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	stats, err := h.service.Stats(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}
