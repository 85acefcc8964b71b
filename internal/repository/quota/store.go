// Package quota persists upstream request counters. Every counter key ends
// with the window it counts, "2006-01-02" for a day or "2006-01" for a month,
// and lives until that window closes plus a grace period.
package quota

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kailas-cloud/normgate/internal/db"
)

const (
	dayLayout   = "2006-01-02"
	monthLayout = "2006-01"
)

type counters interface {
	Get(ctx context.Context, key string) ([]byte, error)
	IncrBy(ctx context.Context, key string, val int64) error
	Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error
}

// Store keeps windowed counters in the database.
type Store struct {
	kv    counters
	grace time.Duration
	now   func() time.Time
}

// New creates a counter store. grace is how long a counter outlives its
// window, so /usage can still read yesterday's numbers.
func New(kv counters, grace time.Duration) *Store {
	return &Store{
		kv:    kv,
		grace: grace,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// IncrBy adds val to the counter. The expiry is set once, on the first write
// of the window.
func (s *Store) IncrBy(ctx context.Context, key string, val int64) error {
	ttl, err := s.expiry(key)
	if err != nil {
		return err
	}
	if err := s.kv.IncrBy(ctx, key, val); err != nil {
		return fmt.Errorf("quota incr %s: %w", key, err)
	}
	if err := s.kv.Expire(ctx, key, ttl, true); err != nil {
		return fmt.Errorf("quota expire %s: %w", key, err)
	}
	return nil
}

// Get returns the counter, 0 when it was never written or has expired.
func (s *Store) Get(ctx context.Context, key string) (int64, error) {
	data, err := s.kv.Get(ctx, key)
	switch {
	case errors.Is(err, db.ErrKeyNotFound):
		return 0, nil
	case err != nil:
		return 0, fmt.Errorf("quota get %s: %w", key, err)
	}

	val, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("quota get %s: counter %q: %w", key, data, err)
	}
	return val, nil
}

// expiry is the time left until the key's window closes, plus grace.
func (s *Store) expiry(key string) (time.Duration, error) {
	end, ok := windowEnd(key[strings.LastIndexByte(key, ':')+1:])
	if !ok {
		return 0, fmt.Errorf("quota key %q has no day or month suffix", key)
	}
	ttl := end.Add(s.grace).Sub(s.now()).Truncate(time.Second)
	if ttl < time.Second {
		// Late write for a closed window: keep it just long enough to be read.
		ttl = time.Second
	}
	return ttl, nil
}

func windowEnd(stamp string) (time.Time, bool) {
	if day, err := time.Parse(dayLayout, stamp); err == nil {
		return day.AddDate(0, 0, 1), true
	}
	if month, err := time.Parse(monthLayout, stamp); err == nil {
		return month.AddDate(0, 1, 0), true
	}
	return time.Time{}, false
}
