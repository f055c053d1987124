package credit

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"subburner/internal/pkg/errors"
	"subburner/internal/store/memory"
)

func TestTryConsumeSequential(t *testing.T) {
	ctx := context.Background()
	g := New(memory.New(), nil)

	for i := 0; i < 3; i++ {
		ok, err := g.TryConsume(ctx, "usr_1", 3)
		if err != nil {
			t.Fatalf("TryConsume %d: %v", i+1, err)
		}
		if !ok {
			t.Fatalf("TryConsume %d: expected allowed below limit", i+1)
		}
	}

	ok, err := g.TryConsume(ctx, "usr_1", 3)
	if err != nil {
		t.Fatalf("TryConsume at limit: %v", err)
	}
	if ok {
		t.Error("expected denial once the daily limit is reached")
	}
}

// For any N concurrent calls with limit L, exactly min(N, L) succeed.
func TestTryConsumeConcurrent(t *testing.T) {
	tests := []struct {
		name      string
		callers   int
		limit     int
		wantGrant int
	}{
		{name: "more callers than credits", callers: 64, limit: 5, wantGrant: 5},
		{name: "fewer callers than credits", callers: 3, limit: 10, wantGrant: 3},
		{name: "exactly at limit", callers: 8, limit: 8, wantGrant: 8},
		{name: "zero limit", callers: 16, limit: 0, wantGrant: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			g := New(memory.New(), nil)

			var granted int64
			var wg sync.WaitGroup
			start := make(chan struct{})

			for i := 0; i < tt.callers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					<-start
					ok, err := g.TryConsume(ctx, "usr_1", tt.limit)
					if err != nil {
						t.Errorf("TryConsume: %v", err)
						return
					}
					if ok {
						atomic.AddInt64(&granted, 1)
					}
				}()
			}

			close(start)
			wg.Wait()

			if got := atomic.LoadInt64(&granted); got != int64(tt.wantGrant) {
				t.Errorf("granted = %d, want exactly %d", got, tt.wantGrant)
			}
		})
	}
}

func TestTryConsumePerUserIsolation(t *testing.T) {
	ctx := context.Background()
	g := New(memory.New(), nil)

	if ok, _ := g.TryConsume(ctx, "usr_1", 1); !ok {
		t.Fatal("usr_1 first consume should succeed")
	}
	if ok, _ := g.TryConsume(ctx, "usr_1", 1); ok {
		t.Fatal("usr_1 second consume should be denied")
	}
	if ok, _ := g.TryConsume(ctx, "usr_2", 1); !ok {
		t.Error("usr_2 must not be affected by usr_1's counter")
	}
}

func TestDayWindowTimezone(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tzdata unavailable")
	}

	g := New(memory.New(), loc)
	// 03:30 UTC on Aug 29 is still Aug 28 in New York.
	g.now = func() time.Time {
		return time.Date(2026, 8, 29, 3, 30, 0, 0, time.UTC)
	}

	if got := g.Day(); got != "2026-08-28" {
		t.Errorf("Day() = %s, want 2026-08-28 in reference timezone", got)
	}
}

type failingCreditStore struct{}

func (failingCreditStore) ConsumeCredit(context.Context, string, string, int) (bool, error) {
	return false, fmt.Errorf("connection refused")
}

func TestTryConsumeStoreError(t *testing.T) {
	g := New(failingCreditStore{}, nil)

	ok, err := g.TryConsume(context.Background(), "usr_1", 5)
	if ok {
		t.Error("store failure must not silently allow")
	}
	if err == nil {
		t.Fatal("expected a distinct error on store failure")
	}
	if !errors.IsCode(err, errors.CodeUnavailable) {
		t.Errorf("expected UNAVAILABLE, got %v", errors.GetCode(err))
	}
}
