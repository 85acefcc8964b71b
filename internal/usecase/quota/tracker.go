package quota

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/normgate/internal/domain"
)

// Action defines behavior when the request quota is exceeded.
type Action string

const (
	// ActionWarn logs a warning but allows the request.
	ActionWarn Action = "warn"
	// ActionReject blocks the request.
	ActionReject Action = "reject"
)

// Store is the persistence interface for quota counters.
// Implementations must be idempotent (IncrBy can be called repeatedly).
type Store interface {
	IncrBy(ctx context.Context, key string, val int64) error
	Get(ctx context.Context, key string) (int64, error)
}

// Tracker is an in-memory request quota tracker with optional persistence.
// Hot path (Check) is in-memory only, no round-trip.
// Record updates in-memory first, then write-behind to store.
type Tracker struct {
	mu             sync.Mutex
	dailyUsed      int64
	monthlyUsed    int64
	totalUsed      int64
	dailyLimit     int64
	monthlyLimit   int64
	action         Action
	scope          string
	keyPrefix      string
	lastDayReset   time.Time
	lastMonthReset time.Time
	store          Store
	logger         *zap.Logger
	now            func() time.Time
}

// NewTracker creates a quota tracker with the given limits. A zero limit is unlimited.
func NewTracker(
	scope, keyPrefix string, dailyLimit, monthlyLimit int64,
	action Action, logger *zap.Logger,
) *Tracker {
	if action == "" {
		action = ActionWarn
	}
	t := &Tracker{
		dailyLimit:   dailyLimit,
		monthlyLimit: monthlyLimit,
		action:       action,
		scope:        scope,
		keyPrefix:    keyPrefix,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
	now := t.now()
	t.lastDayReset = truncateToDay(now)
	t.lastMonthReset = truncateToMonth(now)
	return t
}

// WithStore attaches a persistence store and loads current counters.
func (t *Tracker) WithStore(ctx context.Context, store Store) *Tracker {
	t.store = store
	t.loadFromStore(ctx)
	return t
}

func (t *Tracker) loadFromStore(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if val, err := t.store.Get(ctx, t.dailyKey(now)); err == nil {
		t.dailyUsed = val
	} else {
		t.logger.Warn("Failed to load daily quota from store", zap.Error(err))
	}

	if val, err := t.store.Get(ctx, t.monthlyKey(now)); err == nil {
		t.monthlyUsed = val
	} else {
		t.logger.Warn("Failed to load monthly quota from store", zap.Error(err))
	}

	t.logger.Info("Quota loaded from store",
		zap.String("scope", t.scope),
		zap.Int64("daily_used", t.dailyUsed),
		zap.Int64("monthly_used", t.monthlyUsed),
	)
}

func (t *Tracker) dailyKey(at time.Time) string {
	return fmt.Sprintf("%squota:%s:daily:%s", t.keyPrefix, t.scope, at.Format("2006-01-02"))
}

func (t *Tracker) monthlyKey(at time.Time) string {
	return fmt.Sprintf("%squota:%s:monthly:%s", t.keyPrefix, t.scope, at.Format("2006-01"))
}

// Check verifies the quota allows a new request. In-memory only (hot path).
func (t *Tracker) Check(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.resetIfNeeded()

	dailyExceeded := t.dailyLimit > 0 && t.dailyUsed >= t.dailyLimit
	monthlyExceeded := t.monthlyLimit > 0 && t.monthlyUsed >= t.monthlyLimit

	if !dailyExceeded && !monthlyExceeded {
		return nil
	}

	if t.action == ActionReject {
		return domain.ErrQuotaExceeded
	}

	// action=warn: log but allow the request through
	t.logger.Warn("Request quota exceeded",
		zap.String("scope", t.scope),
		zap.Int64("daily_used", t.dailyUsed),
		zap.Int64("daily_limit", t.dailyLimit),
		zap.Int64("monthly_used", t.monthlyUsed),
		zap.Int64("monthly_limit", t.monthlyLimit),
	)
	return nil
}

// Record registers n requests sent upstream.
// Updates in-memory counters, then write-behind to store (if attached).
func (t *Tracker) Record(n int64) {
	t.mu.Lock()
	t.resetIfNeeded()
	t.dailyUsed += n
	t.monthlyUsed += n
	t.totalUsed += n
	store := t.store
	now := t.now()
	dailyKey := t.dailyKey(now)
	monthlyKey := t.monthlyKey(now)
	t.mu.Unlock()

	if store == nil {
		return
	}

	// Background context so that a cancelled client request still gets counted.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := store.IncrBy(ctx, dailyKey, n); err != nil {
		t.logger.Warn("Failed to persist daily quota", zap.String("key", dailyKey), zap.Error(err))
	}
	if err := store.IncrBy(ctx, monthlyKey, n); err != nil {
		t.logger.Warn("Failed to persist monthly quota", zap.String("key", monthlyKey), zap.Error(err))
	}
}

// RemainingDaily returns requests left today (-1 if unlimited).
func (t *Tracker) RemainingDaily() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.resetIfNeeded()
	return remaining(t.dailyLimit, t.dailyUsed)
}

// RemainingMonthly returns requests left this month (-1 if unlimited).
func (t *Tracker) RemainingMonthly() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.resetIfNeeded()
	return remaining(t.monthlyLimit, t.monthlyUsed)
}

func remaining(limit, used int64) int64 {
	if limit == 0 {
		return -1 // unlimited
	}
	if left := limit - used; left > 0 {
		return left
	}
	return 0
}

// DailyLimit returns the daily request cap.
func (t *Tracker) DailyLimit() int64 { return t.dailyLimit }

// MonthlyLimit returns the monthly request cap.
func (t *Tracker) MonthlyLimit() int64 { return t.monthlyLimit }

// DailyUsed returns requests sent today.
func (t *Tracker) DailyUsed() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resetIfNeeded()
	return t.dailyUsed
}

// MonthlyUsed returns requests sent this month.
func (t *Tracker) MonthlyUsed() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resetIfNeeded()
	return t.monthlyUsed
}

// TotalUsed returns requests sent since the process started.
func (t *Tracker) TotalUsed() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.totalUsed
}

// resetIfNeeded zeroes counters when the day or month rolls over.
func (t *Tracker) resetIfNeeded() {
	now := t.now()
	today := truncateToDay(now)
	thisMonth := truncateToMonth(now)

	if today.After(t.lastDayReset) {
		t.dailyUsed = 0
		t.lastDayReset = today
	}
	if thisMonth.After(t.lastMonthReset) {
		t.monthlyUsed = 0
		t.lastMonthReset = thisMonth
	}
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func truncateToMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
