package system

import (
	"context"
	"errors"
	"testing"
	"time"
)

// TestClockNowUTC ensures the clock returns UTC timestamps.
func TestClockNowUTC(t *testing.T) {
	t.Parallel()

	clk := New()
	before := time.Now().UTC().Add(-time.Second)
	got := clk.Now()
	after := time.Now().UTC().Add(time.Second)

	if got.Location() != time.UTC {
		t.Fatalf("expected UTC location, got %v", got.Location())
	}
	if got.Before(before) || got.After(after) {
		t.Fatalf("expected %v to be between %v and %v", got, before, after)
	}
}

func TestSleepWaits(t *testing.T) {
	t.Parallel()

	start := time.Now()
	if err := New().Sleep(context.Background(), 30*time.Millisecond); err != nil {
		t.Fatalf("Sleep() error = %v", err)
	}
	if time.Since(start) < 25*time.Millisecond {
		t.Fatal("expected Sleep to block for the duration")
	}
}

func TestSleepCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := New().Sleep(ctx, time.Hour)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if err := New().Sleep(ctx, 0); err != nil {
		t.Fatalf("zero sleep should not fail, got %v", err)
	}
}
