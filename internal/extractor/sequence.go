package extractor

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"
)

// Clock abstracts the current time so extraction output is deterministic under
// test. The system clock is used everywhere outside of tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns a Clock backed by time.Now.
func SystemClock() Clock { return systemClock{} }

// SequenceGenerator produces a sequence number when none could be extracted
// from the text.
type SequenceGenerator interface {
	Generate(ctx context.Context) (string, error)
}

// TimestampSuffixGenerator returns the last 6 digits of the current epoch
// milliseconds. Not date-scoped and not strictly monotonic; collisions are
// possible under rapid repeated calls within the same millisecond.
type TimestampSuffixGenerator struct {
	Clock Clock
}

func (g *TimestampSuffixGenerator) Generate(ctx context.Context) (string, error) {
	ts := strconv.FormatInt(g.Clock.Now().UnixMilli(), 10)
	if len(ts) > 6 {
		ts = ts[len(ts)-6:]
	}
	return ts, nil
}

// SequenceCounterProvider supplies the per-day counter used by the
// date-prefixed strategy.
type SequenceCounterProvider interface {
	// Next returns the counter value for the given day, in [1, 999].
	Next(ctx context.Context, day time.Time) (int, error)
}

// RandomCounterProvider substitutes a random integer in [1, 999] for the
// per-day sequence. It needs no database but gives no uniqueness guarantee;
// use AtomicDailyCounterProvider where sequence numbers must be unique.
type RandomCounterProvider struct{}

func (RandomCounterProvider) Next(ctx context.Context, day time.Time) (int, error) {
	return rand.IntN(999) + 1, nil
}

// DailySequenceStore is the persistence seam for the atomic counter. The db
// package implements it against a per-day counter table.
type DailySequenceStore interface {
	NextDailySequence(ctx context.Context, day string) (int, error)
}

// AtomicDailyCounterProvider sources the counter from an atomically
// incremented per-day sequence in the persistence store.
type AtomicDailyCounterProvider struct {
	Store DailySequenceStore
}

func (p *AtomicDailyCounterProvider) Next(ctx context.Context, day time.Time) (int, error) {
	n, err := p.Store.NextDailySequence(ctx, day.Format("2006-01-02"))
	if err != nil {
		return 0, fmt.Errorf("daily sequence lookup failed: %w", err)
	}
	if n > 999 {
		return 0, fmt.Errorf("daily sequence exhausted: %d", n)
	}
	return n, nil
}

// DailyCounterGenerator formats YYYYMMDD plus a zero-padded 3-digit counter.
type DailyCounterGenerator struct {
	Clock   Clock
	Counter SequenceCounterProvider
}

func (g *DailyCounterGenerator) Generate(ctx context.Context) (string, error) {
	now := g.Clock.Now()
	n, err := g.Counter.Next(ctx, now)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%03d", now.Format("20060102"), n), nil
}
