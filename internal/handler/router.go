package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/quietly/quietly/internal/metrics"
	"github.com/quietly/quietly/internal/middleware"
)

// mountAuthRoutes はOAuthフローとログインセッションのルートを登録する。
// これらはセッションミドルウェアの外側に置く。
func mountAuthRoutes(r chi.Router, h *AuthHandler) {
	r.Route("/auth", func(r chi.Router) {
		r.Get("/google/login", h.Login)
		r.Get("/google/callback", h.Callback)
		r.Post("/logout", h.Logout)
		r.Get("/me", h.Me)
	})
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	AuthSessionFinder middleware.AuthSessionFinder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	// CSRF がnilの場合はCSRF検証を行わない
	CSRF    *middleware.CSRFConfig
	Logger  *slog.Logger
	Metrics metrics.MetricsCollector

	// 運用エンドポイント
	MetricsHandler http.Handler
	HealthChecker  HealthChecker

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// 読書記録
	BookService    BookServiceInterface
	NoteService    NoteServiceInterface
	SessionService SessionServiceInterface
	GoalService    GoalServiceInterface
	StatsService   StatsServiceInterface

	// ユーザー
	UserService UserServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → Logging → Recovery → SecurityHeaders → CORS → Session → RateLimit(General) → CSRF
//
// Recoveryをログの内側に置き、panicによる500もhttp_requestとして記録する。
//
// 認証ルート（/auth/*）と運用エンドポイントはSession以降のチェーンの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.Use(chimw.RequestID)
	r.Use(middleware.NewLoggingMiddleware(logger, deps.Metrics))
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	bookHandler := NewBookHandler(deps.BookService)
	noteHandler := NewNoteHandler(deps.NoteService)
	sessionHandler := NewSessionHandler(deps.SessionService)
	goalHandler := NewGoalHandler(deps.GoalService)
	statsHandler := NewStatsHandler(deps.StatsService)
	userHandler := NewUserHandler(deps.UserService, deps.AuthConfig)

	// --- 認証不要のルート ---

	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	mountAuthRoutes(r, authHandler)

	if deps.CSRF != nil {
		r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(*deps.CSRF))
	}

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Session → RateLimit(General) → CSRF
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.AuthSessionFinder))
		r.Use(deps.RateLimiter.GeneralMiddleware())
		if deps.CSRF != nil {
			r.Use(middleware.NewCSRFMiddleware(*deps.CSRF))
		}

		// 本棚
		r.Route("/api/books", func(r chi.Router) {
			// POST /api/books - 本の追加（追加専用レート制限を追加）
			r.With(deps.RateLimiter.BookAddMiddleware()).Post("/", bookHandler.AddBook)
			r.Get("/", bookHandler.ListBooks)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", bookHandler.GetBook)
				r.Delete("/", bookHandler.RemoveBook)
				r.Patch("/status", bookHandler.UpdateStatus)
				r.Patch("/progress", bookHandler.UpdateProgress)
				r.Put("/rating", bookHandler.Rate)

				// メモ・引用
				r.Get("/notes", noteHandler.ListNotes)
				r.Post("/notes", noteHandler.CreateNote)
			})
		})

		r.Delete("/api/notes/{id}", noteHandler.DeleteNote)

		// 読書セッション
		r.Route("/api/sessions", func(r chi.Router) {
			r.Post("/", sessionHandler.Start)
			r.Get("/", sessionHandler.List)
			r.Get("/active", sessionHandler.GetActive)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", sessionHandler.Get)
				r.Delete("/", sessionHandler.Delete)
				r.Post("/pause", sessionHandler.Pause)
				r.Post("/resume", sessionHandler.Resume)
				r.Post("/end", sessionHandler.End)
				r.Post("/cancel", sessionHandler.Cancel)
			})
		})

		// 読書目標
		r.Route("/api/goals", func(r chi.Router) {
			r.Get("/", goalHandler.ListGoals)
			r.Put("/{goal}", goalHandler.UpsertGoal)
			r.Delete("/{goal}", goalHandler.DeleteGoal)
		})

		r.Get("/api/stats", statsHandler.Stats)

		// ユーザー管理
		r.Route("/api/users", func(r chi.Router) {
			r.Delete("/me", userHandler.Withdraw)
		})
	})

	return r
}
