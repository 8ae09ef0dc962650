package engine

import (
	"context"
	"testing"
	"time"
)

func TestPacerZeroIntervalNeverSleeps(t *testing.T) {
	p := NewPacer(0, 0, 0)
	p.sleep = func(ctx context.Context, d time.Duration) error {
		t.Fatalf("sleep called with %v for a zero-interval pacer", d)
		return nil
	}

	for i := 0; i < 5; i++ {
		if err := p.Wait(context.Background(), "alpha"); err != nil {
			t.Fatalf("Wait: %v", err)
		}
	}
}

func TestPacerFirstWaitSkipsJitter(t *testing.T) {
	var sleeps []time.Duration
	p := NewPacer(time.Nanosecond, 5*time.Millisecond, 5*time.Millisecond)
	p.sleep = func(ctx context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}

	for i := 0; i < 3; i++ {
		if err := p.Wait(context.Background(), "alpha"); err != nil {
			t.Fatalf("Wait: %v", err)
		}
	}

	if len(sleeps) != 2 {
		t.Fatalf("jitter sleeps = %d, want 2 (first wait proceeds immediately)", len(sleeps))
	}
	for _, d := range sleeps {
		if d != 5*time.Millisecond {
			t.Fatalf("jitter = %v, want fixed 5ms", d)
		}
	}
}

func TestPacerJitterBounds(t *testing.T) {
	p := NewPacer(0, 500*time.Millisecond, 1500*time.Millisecond)
	for i := 0; i < 50; i++ {
		j := p.jitter()
		if j < 500*time.Millisecond || j > 1500*time.Millisecond {
			t.Fatalf("jitter %v outside bounds", j)
		}
	}
}

func TestPacerCancelledContext(t *testing.T) {
	p := NewPacer(time.Hour, 0, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := p.Wait(ctx, "alpha"); err == nil {
		t.Fatalf("Wait with cancelled context returned nil")
	}
}

func TestPacerPerSiteLimitersAreIndependent(t *testing.T) {
	p := NewPacer(0, 0, 0)
	if err := p.Wait(context.Background(), "alpha"); err != nil {
		t.Fatalf("Wait alpha: %v", err)
	}
	if err := p.Wait(context.Background(), "beta"); err != nil {
		t.Fatalf("Wait beta: %v", err)
	}
	if len(p.perSite) != 2 {
		t.Fatalf("per-site limiters = %d, want 2", len(p.perSite))
	}
}
