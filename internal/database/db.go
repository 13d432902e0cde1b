// Package database はPostgreSQLへの接続、トランザクション、スキーママイグレーションを扱う。
package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/Thiht/transactor"
	txStdLib "github.com/Thiht/transactor/stdlib"
	_ "github.com/lib/pq"
)

// PoolOptions はコネクションプールの設定。0の項目はデフォルト値を使う。
type PoolOptions struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

func (o PoolOptions) withDefaults() PoolOptions {
	if o.MaxOpenConns <= 0 {
		o.MaxOpenConns = 20
	}
	if o.MaxIdleConns <= 0 {
		o.MaxIdleConns = 5
	}
	if o.MaxIdleConns > o.MaxOpenConns {
		o.MaxIdleConns = o.MaxOpenConns
	}
	if o.ConnMaxLifetime <= 0 {
		o.ConnMaxLifetime = 30 * time.Minute
	}
	return o
}

// Open はlib/pqドライバでDBハンドルを作る。接続はまだ確立しない。
func Open(databaseURL string, opts PoolOptions) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	opts = opts.withDefaults()
	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(opts.MaxIdleConns)
	db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	return db, nil
}

// connectRetryInterval はConnectのPing間隔。
var connectRetryInterval = time.Second

// Connect はDBを開き、Pingが通るまでtimeoutの間リトライする。
// コンテナ起動直後でPostgreSQLがまだ接続を受け付けていない場合に備える。
func Connect(ctx context.Context, databaseURL string, opts PoolOptions, timeout time.Duration) (*sql.DB, error) {
	db, err := Open(databaseURL, opts)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for attempt := 1; ; attempt++ {
		err = db.PingContext(ctx)
		if err == nil {
			return db, nil
		}
		slog.WarnContext(ctx, "database not ready",
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()),
		)

		select {
		case <-ctx.Done():
			db.Close()
			return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", attempt, err)
		case <-time.After(connectRetryInterval):
		}
	}
}

// NewTransactor はdbに対するトランザクション管理とDBGetterを生成する。
// リポジトリはDBGetter経由でクエリを発行するため、WithinTransaction内では同じトランザクションに参加する。
// ネストしたトランザクションはセーブポイントになる。
func NewTransactor(db *sql.DB) (transactor.Transactor, txStdLib.DBGetter) {
	return txStdLib.NewTransactor(db, txStdLib.NestedTransactionsSavepoints)
}
