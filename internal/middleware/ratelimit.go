package middleware

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/quietly/quietly/internal/model"
)

// RateLimiterConfig はレート制限の設定を保持する。
type RateLimiterConfig struct {
	GeneralRate     rate.Limit    // API全般のレート（req/sec）。120/60 = 2 req/sec
	GeneralBurst    int           // API全般のバーストサイズ
	BookAddRate     rate.Limit    // 本の追加のレート（req/sec）。30/60
	BookAddBurst    int           // 本の追加のバーストサイズ
	CleanupInterval time.Duration // 期限切れエントリのクリーンアップ間隔
}

// DefaultRateLimiterConfig はデフォルトのレート制限設定を返す。
// API全般 120 req/min/user、本の追加 30 req/min/user
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		GeneralRate:     rate.Limit(120.0 / 60.0),
		GeneralBurst:    120,
		BookAddRate:     rate.Limit(30.0 / 60.0),
		BookAddBurst:    30,
		CleanupInterval: 5 * time.Minute,
	}
}

const (
	scopeGeneral = "general"
	scopeBookAdd = "book_add"
)

// limiterPool はひとつの制限種別についてユーザーごとのトークンバケットを保持する。
type limiterPool struct {
	scope string
	limit rate.Limit
	burst int

	mu      sync.Mutex
	entries map[string]*poolEntry
}

type poolEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newLimiterPool(scope string, limit rate.Limit, burst int) *limiterPool {
	return &limiterPool{
		scope:   scope,
		limit:   limit,
		burst:   burst,
		entries: make(map[string]*poolEntry),
	}
}

// reserve はuserIDのバケットから1トークンを予約する。
// 即時に使えない場合は予約を取り消し、待つべき時間を返す。
func (p *limiterPool) reserve(userID string, now time.Time) (time.Duration, bool) {
	p.mu.Lock()
	e, ok := p.entries[userID]
	if !ok {
		e = &poolEntry{limiter: rate.NewLimiter(p.limit, p.burst)}
		p.entries[userID] = e
	}
	e.lastSeen = now
	p.mu.Unlock()

	res := e.limiter.ReserveN(now, 1)
	if !res.OK() {
		return p.refillInterval(), false
	}
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return delay, false
	}
	return 0, true
}

// refillInterval は1トークンが補充されるまでの時間。
func (p *limiterPool) refillInterval() time.Duration {
	if p.limit <= 0 {
		return time.Minute
	}
	return time.Duration(float64(time.Second) / float64(p.limit))
}

// evictIdle はlastSeenがcutoffより前のエントリを削除する。
func (p *limiterPool) evictIdle(cutoff time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for userID, e := range p.entries {
		if e.lastSeen.Before(cutoff) {
			delete(p.entries, userID)
		}
	}
}

func (p *limiterPool) size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// RateLimiter はユーザーごとのレート制限を管理する。
// API全般と本の追加の2種類の制限は独立したバケットを持つ。
type RateLimiter struct {
	config  RateLimiterConfig
	general *limiterPool
	bookAdd *limiterPool
	now     func() time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewRateLimiter は新しいRateLimiterを生成し、アイドルエントリの掃除をバックグラウンドで開始する。
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	rl := &RateLimiter{
		config:  config,
		general: newLimiterPool(scopeGeneral, config.GeneralRate, config.GeneralBurst),
		bookAdd: newLimiterPool(scopeBookAdd, config.BookAddRate, config.BookAddBurst),
		now:     time.Now,
		stopCh:  make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Stop はバックグラウンドの掃除を停止する。複数回呼んでもよい。
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

// GeneralMiddleware はAPI全般のレート制限ミドルウェアを返す。
// SessionMiddlewareの後に配置する。
func (rl *RateLimiter) GeneralMiddleware() func(next http.Handler) http.Handler {
	return rl.middleware(rl.general)
}

// BookAddMiddleware は本の追加専用のレート制限ミドルウェアを返す。
func (rl *RateLimiter) BookAddMiddleware() func(next http.Handler) http.Handler {
	return rl.middleware(rl.bookAdd)
}

func (rl *RateLimiter) middleware(pool *limiterPool) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := UserIDFromContext(r.Context())
			if err != nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewNotAuthenticatedError())
				return
			}

			wait, ok := pool.reserve(userID, rl.now())
			if !ok {
				slog.WarnContext(r.Context(), "rate limit exceeded",
					slog.String("user_id", userID),
					slog.String("limit_type", pool.scope),
					slog.Duration("retry_after", wait),
				)
				writeRateLimitResponse(w, wait)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// GeneralLimiterCount は現在管理されているAPI全般リミッターのエントリ数を返す。
func (rl *RateLimiter) GeneralLimiterCount() int {
	return rl.general.size()
}

// BookAddLimiterCount は現在管理されている本の追加リミッターのエントリ数を返す。
func (rl *RateLimiter) BookAddLimiterCount() int {
	return rl.bookAdd.size()
}

func (rl *RateLimiter) cleanupLoop() {
	if rl.config.CleanupInterval <= 0 {
		return
	}
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCh:
			return
		}
	}
}

// cleanup はCleanupIntervalの2倍以上アクセスのないエントリを削除する。
func (rl *RateLimiter) cleanup() {
	cutoff := rl.now().Add(-2 * rl.config.CleanupInterval)
	rl.general.evictIdle(cutoff)
	rl.bookAdd.evictIdle(cutoff)
}

// writeRateLimitResponse は429をRetry-After（切り上げ秒、最低1秒）付きで書き込む。
func writeRateLimitResponse(w http.ResponseWriter, wait time.Duration) {
	retryAfter := int(math.Ceil(wait.Seconds()))
	if retryAfter < 1 {
		retryAfter = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	WriteErrorResponse(w, http.StatusTooManyRequests, model.NewRateLimitedError())
}
