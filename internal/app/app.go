package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/quietly/quietly/internal/auth"
	"github.com/quietly/quietly/internal/clock"
	"github.com/quietly/quietly/internal/config"
	"github.com/quietly/quietly/internal/database"
	"github.com/quietly/quietly/internal/goal"
	"github.com/quietly/quietly/internal/handler"
	"github.com/quietly/quietly/internal/library"
	"github.com/quietly/quietly/internal/logger"
	"github.com/quietly/quietly/internal/metrics"
	"github.com/quietly/quietly/internal/middleware"
	"github.com/quietly/quietly/internal/note"
	"github.com/quietly/quietly/internal/repository"
	"github.com/quietly/quietly/internal/security"
	"github.com/quietly/quietly/internal/session"
	"github.com/quietly/quietly/internal/streak"
	"github.com/quietly/quietly/internal/user"
	"github.com/quietly/quietly/internal/worker/cleanup"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、設定に従って構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	if err := logger.SetupDefault(w, logger.Options{}); err != nil {
		return nil, fmt.Errorf("failed to setup logger: %w", err)
	}

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたフォーマットとレベルでログを再設定
	if err := logger.SetupDefault(w, logger.Options{Format: cfg.LogFormat, Level: cfg.LogLevel}); err != nil {
		return nil, fmt.Errorf("failed to setup logger: %w", err)
	}

	return cfg, nil
}

// openDB はDBに接続する。起動直後のDBを待つためConnectTimeoutまでリトライする。
func openDB(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	return database.Connect(ctx, cfg.DatabaseURL, database.PoolOptions{
		MaxOpenConns:    cfg.DB.MaxOpenConns,
		MaxIdleConns:    cfg.DB.MaxIdleConns,
		ConnMaxLifetime: cfg.DB.ConnMaxLifetime,
	}, cfg.DB.ConnectTimeout)
}

// signalContext はSIGINTまたはSIGTERMでキャンセルされるコンテキストを返す。
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// newRateLimiterConfig は設定値（req/min）からレートリミッターの設定を組み立てる。
func newRateLimiterConfig(cfg *config.Config) middleware.RateLimiterConfig {
	rlCfg := middleware.DefaultRateLimiterConfig()
	if cfg.RateLimitGeneral > 0 {
		rlCfg.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
		rlCfg.GeneralBurst = cfg.RateLimitGeneral
	}
	return rlCfg
}

// buildRouter は全依存関係をワイヤリングし、APIルーターを返す。
func buildRouter(cfg *config.Config, db *sql.DB, reg *prometheus.Registry, limiter *middleware.RateLimiter) http.Handler {
	clk := clock.SystemClock{}
	collector := metrics.NewCollector(reg)
	tx, dbGetter := database.NewTransactor(db)

	// 1. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(dbGetter, tx)
	identRepo := repository.NewPostgresIdentityRepo(dbGetter)
	authSessionRepo := repository.NewPostgresAuthSessionRepo(dbGetter)
	bookRepo := repository.NewPostgresBookRepo(dbGetter)
	userBookRepo := repository.NewPostgresUserBookRepo(dbGetter)
	sessionRepo := repository.NewPostgresReadingSessionRepo(dbGetter)
	goalRepo := repository.NewPostgresGoalRepo(dbGetter)
	noteRepo := repository.NewPostgresNoteRepo(dbGetter)

	// 2. セキュリティサービスの初期化
	sanitizer := security.NewTextSanitizer()

	// 3. ドメインサービスの初期化
	oauthProvider := auth.NewGoogleOAuthProvider(auth.GoogleOAuthConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
		HTTPClient:   &http.Client{Timeout: 10 * time.Second},
	})
	authService := auth.NewService(
		oauthProvider, userRepo, identRepo, authSessionRepo, clk,
		auth.ServiceConfig{SessionTTL: time.Duration(cfg.SessionMaxAge) * time.Second},
	)

	libraryService := library.NewService(bookRepo, userBookRepo, sessionRepo, noteRepo, tx, sanitizer, clk)
	noteService := note.NewService(noteRepo, userBookRepo, sanitizer, clk, cfg.NoteMaxLength)
	sessionService := session.NewService(sessionRepo, userBookRepo, sanitizer, collector, clk, session.ServiceConfig{
		ListLimit:     cfg.SessionListLimit,
		NoteMaxLength: cfg.NoteMaxLength,
	})
	goalService := goal.NewService(goalRepo, sessionRepo, userBookRepo, collector, clk, cfg.ReadingLocation)
	streakService := streak.NewService(sessionRepo, userBookRepo, clk, cfg.ReadingLocation)
	userService := user.NewService(userRepo, authSessionRepo, noteRepo, goalRepo, sessionRepo, userBookRepo, tx)

	// 4. ルーターの構築
	deps := &handler.RouterDeps{
		AuthSessionFinder: authSessionRepo,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       limiter,
		CSRF: &middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		Logger:         slog.Default(),
		Metrics:        collector,
		MetricsHandler: metrics.Handler(reg),
		HealthChecker:  db,

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			BaseURL:       cfg.BaseURL,
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},

		BookService:    handler.NewBookServiceAdapter(libraryService),
		NoteService:    handler.NewNoteServiceAdapter(noteService),
		SessionService: handler.NewSessionServiceAdapter(sessionService),
		GoalService:    handler.NewGoalServiceAdapter(goalService),
		StatsService:   handler.NewStatsServiceAdapter(streakService, goalService),
		UserService:    handler.NewUserServiceAdapter(userService),
	}

	return handler.NewRouter(deps)
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	ctx, stop := signalContext()
	defer stop()

	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established")

	reg := prometheus.NewRegistry()
	limiter := middleware.NewRateLimiter(newRateLimiterConfig(cfg))
	defer limiter.Stop()

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      buildRouter(cfg, db, reg, limiter),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return serveUntilDone(ctx, server, "API server")
}

// serveUntilDone はctxがキャンセルされるまでserverを動かし、その後グレースフルシャットダウンする。
func serveUntilDone(ctx context.Context, server *http.Server, name string) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info(name+" starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok && err != nil {
			return fmt.Errorf("%s listen error: %w", name, err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down " + name + "...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("%s shutdown failed: %w", name, err)
	}

	slog.Info(name + " stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、クリーンアップジョブを定期実行する。ジョブのメトリクスは/metricsで公開する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	ctx, stop := signalContext()
	defer stop()

	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established (worker)")

	_, dbGetter := database.NewTransactor(db)
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	cleanupJob := cleanup.NewCleanupJob(
		repository.NewPostgresAuthSessionRepo(dbGetter),
		repository.NewPostgresBookRepo(dbGetter),
		collector,
		clock.SystemClock{},
		slog.Default(),
	)

	metricsServer := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           metrics.NewWorkerMux(reg),
		ReadHeaderTimeout: 5 * time.Second,
	}

	slog.Info("worker starting", slog.Duration("cleanup_interval", cfg.CleanupInterval))

	done := make(chan struct{})
	go func() {
		defer close(done)
		cleanupJob.Start(ctx, cfg.CleanupInterval)
	}()

	err = serveUntilDone(ctx, metricsServer, "worker metrics server")
	stop()
	<-done

	slog.Info("worker stopped gracefully")
	return err
}

// runMigrate はデータベースマイグレーションを実行する。
// stepsが0なら未適用分をすべて適用し、負の値なら指定数だけロールバックする。
func runMigrate(cfg *config.Config, steps int) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
		slog.Int("steps", steps),
	)

	version, err := database.Migrate(cfg.DatabaseURL, steps)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully",
		slog.Uint64("version", uint64(version.Version)),
		slog.Bool("dirty", version.Dirty),
	)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// healthcheckPort はヘルスチェック対象のポートを返す。フラグ指定がなければSERVER_PORTを使う。
func healthcheckPort(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		return port
	}
	return "8080"
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
