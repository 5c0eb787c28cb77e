package extractor

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"
)

type fixedClock struct {
	t time.Time
}

func (c fixedClock) Now() time.Time { return c.t }

type fakeSequenceStore struct {
	next int
	err  error
	day  string
}

func (s *fakeSequenceStore) NextDailySequence(ctx context.Context, day string) (int, error) {
	s.day = day
	if s.err != nil {
		return 0, s.err
	}
	s.next++
	return s.next, nil
}

func TestTimestampSuffixGenerator(t *testing.T) {
	now := time.Date(2026, time.March, 15, 10, 30, 0, 0, time.UTC)
	gen := &TimestampSuffixGenerator{Clock: fixedClock{now}}

	got, err := gen.Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	ts := strconv.FormatInt(now.UnixMilli(), 10)
	want := ts[len(ts)-6:]
	if got != want {
		t.Errorf("Generate() = %q, want %q", got, want)
	}
	if len(got) != 6 {
		t.Errorf("Generate() returned %d digits, want 6", len(got))
	}
}

func TestDailyCounterGenerator(t *testing.T) {
	now := time.Date(2026, time.March, 15, 10, 30, 0, 0, time.UTC)
	store := &fakeSequenceStore{}
	gen := &DailyCounterGenerator{
		Clock:   fixedClock{now},
		Counter: &AtomicDailyCounterProvider{Store: store},
	}

	got, err := gen.Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got != "20260315001" {
		t.Errorf("Generate() = %q, want %q", got, "20260315001")
	}
	if store.day != "2026-03-15" {
		t.Errorf("store queried with day %q, want %q", store.day, "2026-03-15")
	}

	got, err = gen.Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got != "20260315002" {
		t.Errorf("second Generate() = %q, want %q", got, "20260315002")
	}
}

func TestDailyCounterGeneratorRandomRange(t *testing.T) {
	now := time.Date(2026, time.March, 15, 10, 30, 0, 0, time.UTC)
	gen := &DailyCounterGenerator{
		Clock:   fixedClock{now},
		Counter: RandomCounterProvider{},
	}

	for i := 0; i < 50; i++ {
		got, err := gen.Generate(context.Background())
		if err != nil {
			t.Fatalf("Generate() error = %v", err)
		}
		if len(got) != 11 {
			t.Fatalf("Generate() = %q, want 8-digit date plus 3-digit counter", got)
		}
		n, err := strconv.Atoi(got[8:])
		if err != nil || n < 1 || n > 999 {
			t.Fatalf("counter part = %q, want integer in [1, 999]", got[8:])
		}
	}
}

func TestAtomicDailyCounterProviderExhausted(t *testing.T) {
	store := &fakeSequenceStore{next: 999}
	provider := &AtomicDailyCounterProvider{Store: store}

	_, err := provider.Next(context.Background(), time.Now())
	if err == nil {
		t.Fatal("Next() expected error when counter exceeds 999")
	}
}

func TestAtomicDailyCounterProviderStoreError(t *testing.T) {
	storeErr := errors.New("connection refused")
	provider := &AtomicDailyCounterProvider{Store: &fakeSequenceStore{err: storeErr}}

	_, err := provider.Next(context.Background(), time.Now())
	if !errors.Is(err, storeErr) {
		t.Fatalf("Next() error = %v, want wrapped %v", err, storeErr)
	}
}
