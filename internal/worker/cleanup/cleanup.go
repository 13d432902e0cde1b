// Package cleanup は不要データの定期削除ジョブを提供する。
// 期限切れのログインセッションと、どの本棚からも参照されなくなった書誌情報を削除する。
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/quietly/quietly/internal/clock"
	"github.com/quietly/quietly/internal/metrics"
)

// ExpiredSessionDeleter は期限切れログインセッションの削除インターフェース。
type ExpiredSessionDeleter interface {
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// UnreferencedBookDeleter は参照されていない書誌情報の削除インターフェース。
type UnreferencedBookDeleter interface {
	DeleteUnreferenced(ctx context.Context, olderThan time.Time) (int64, error)
}

// CleanupJob は不要データの削除ジョブ。
// 削除条件は現在時刻からの相対で決まるため、何度実行しても結果は変わらない。
type CleanupJob struct {
	sessions ExpiredSessionDeleter
	books    UnreferencedBookDeleter
	metrics  metrics.MetricsCollector
	clock    clock.Clock
	logger   *slog.Logger
	// BookGracePeriod より新しい書誌情報は、参照されていなくても削除しない。
	// 本棚への追加途中の本を消さないため。
	BookGracePeriod time.Duration
}

// NewCleanupJob は新しいCleanupJobを生成する。collectorはnilでもよい。
func NewCleanupJob(
	sessions ExpiredSessionDeleter,
	books UnreferencedBookDeleter,
	collector metrics.MetricsCollector,
	clk clock.Clock,
	logger *slog.Logger,
) *CleanupJob {
	return &CleanupJob{
		sessions:        sessions,
		books:           books,
		metrics:         collector,
		clock:           clk,
		logger:          logger,
		BookGracePeriod: 24 * time.Hour,
	}
}

// Run は削除を1回実行する。片方の削除が失敗しても、もう片方は実行する。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := j.clock.Now()

	var errs []error
	if err := j.purge(ctx, "auth_sessions", func() (int64, error) {
		return j.sessions.DeleteExpired(ctx, start)
	}); err != nil {
		errs = append(errs, err)
	}
	if err := j.purge(ctx, "books", func() (int64, error) {
		return j.books.DeleteUnreferenced(ctx, start.Add(-j.BookGracePeriod))
	}); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// Start は起動直後に1回実行し、以降intervalごとに実行する。ctxがキャンセルされるまでブロックする。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	if err := j.Run(ctx); err != nil {
		j.logger.Error("cleanup job failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Error("cleanup job failed", slog.String("error", err.Error()))
			}
		}
	}
}

func (j *CleanupJob) purge(ctx context.Context, target string, del func() (int64, error)) error {
	deleted, err := del()
	if err != nil {
		j.logger.ErrorContext(ctx, "クリーンアップに失敗しました",
			slog.String("target", target),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("%s のクリーンアップに失敗: %w", target, err)
	}

	if j.metrics != nil {
		j.metrics.RecordCleanupDeleted(target, deleted)
	}
	j.logger.InfoContext(ctx, "クリーンアップが完了しました",
		slog.String("target", target),
		slog.Int64("deleted_count", deleted),
	)
	return nil
}
