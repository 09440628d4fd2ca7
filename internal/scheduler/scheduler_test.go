package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestNextTickAligned(t *testing.T) {
	s := New(Options{Interval: time.Minute, AlignToStart: true}, zerolog.Nop())

	now := time.Date(2026, 8, 20, 12, 34, 17, 0, time.UTC)
	next := s.nextTick(now)
	want := time.Date(2026, 8, 20, 12, 35, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("expected %s, got %s", want, next)
	}

	// Exactly on the boundary still schedules the next interval.
	boundary := time.Date(2026, 8, 20, 12, 35, 0, 0, time.UTC)
	next = s.nextTick(boundary)
	want = boundary.Add(time.Minute)
	if !next.Equal(want) {
		t.Fatalf("expected %s, got %s", want, next)
	}
}

func TestNextTickUnaligned(t *testing.T) {
	s := New(Options{Interval: time.Minute, AlignToStart: false}, zerolog.Nop())
	now := time.Date(2026, 8, 20, 12, 34, 17, 0, time.UTC)
	if next := s.nextTick(now); !next.Equal(now.Add(time.Minute)) {
		t.Fatalf("unexpected next tick %s", next)
	}
}

func TestCycleStartTruncates(t *testing.T) {
	s := New(Options{Interval: 5 * time.Minute, AlignToStart: true}, zerolog.Nop())
	at := time.Date(2026, 8, 20, 12, 34, 17, 0, time.UTC)
	want := time.Date(2026, 8, 20, 12, 30, 0, 0, time.UTC)
	if got := s.cycleStart(at); !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	s := New(Options{Interval: time.Hour, AlignToStart: false}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx, func(ctx context.Context, cycleStart time.Time) error { return nil })
	}()

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop after cancellation")
	}
}
