package engine

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRounds(t *testing.T) {
	tests := []struct {
		duration, interval time.Duration
		want               int
	}{
		{10 * time.Second, 2 * time.Second, 5},
		{10 * time.Second, 3 * time.Second, 3},
		{time.Second, 2 * time.Second, 0},
		{0, time.Second, 0},
		{time.Second, 0, 0},
	}

	for _, tt := range tests {
		if got := rounds(tt.duration, tt.interval); got != tt.want {
			t.Errorf("rounds(%v, %v) = %d, want %d", tt.duration, tt.interval, got, tt.want)
		}
	}
}

func TestPoll_RunsEveryRound(t *testing.T) {
	calls := 0
	verdict, done, err := poll(context.Background(), time.Millisecond, 4, func(context.Context) (bool, bool) {
		calls++
		return false, false
	})
	if err != nil || done || verdict {
		t.Fatalf("poll() = %v, %v, %v", verdict, done, err)
	}
	if calls != 4 {
		t.Errorf("calls = %d, want 4", calls)
	}
}

func TestPoll_StopsOnVerdict(t *testing.T) {
	calls := 0
	verdict, done, err := poll(context.Background(), time.Millisecond, 10, func(context.Context) (bool, bool) {
		calls++
		return true, calls == 2
	})
	if err != nil || !done || !verdict {
		t.Fatalf("poll() = %v, %v, %v", verdict, done, err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestPoll_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, done, err := poll(ctx, time.Hour, 3, func(context.Context) (bool, bool) {
		calls++
		cancel()
		return false, false
	})
	if !errors.Is(err, context.Canceled) || done {
		t.Fatalf("poll() done=%v err=%v", done, err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestQualify(t *testing.T) {
	boom := errors.New("rpc down")
	tests := []struct {
		name      string
		interval  time.Duration
		duration  time.Duration
		required  int
		results   []bool
		errs      map[int]error
		want      bool
		wantCalls int
	}{
		{"disabled by interval", 0, time.Second, 1, []bool{false}, nil, true, 0},
		{"disabled by duration", time.Millisecond, 0, 1, []bool{false}, nil, true, 0},
		{"first match", time.Millisecond, 10 * time.Millisecond, 1, []bool{true}, nil, true, 1},
		{"consecutive after reset", time.Millisecond, 10 * time.Millisecond, 2, []bool{true, false, true, true}, nil, true, 4},
		{"budget exhausted", time.Millisecond, 5 * time.Millisecond, 2, []bool{true, false}, nil, false, 5},
		{"error resets streak", time.Millisecond, 3 * time.Millisecond, 2, []bool{true, true, true}, map[int]error{2: boom}, false, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := baseConfig()
			cfg.FilterCheckInterval = tt.interval
			cfg.FilterCheckDuration = tt.duration
			cfg.ConsecutiveFilterMatches = tt.required

			h := newHarness(t, cfg, &fakeSwapper{})
			h.filter.results = tt.results
			h.filter.errs = tt.errs

			if got := h.engine.qualify(context.Background(), testPoolKeys(t)); got != tt.want {
				t.Errorf("qualify() = %v, want %v", got, tt.want)
			}
			if h.filter.calls != tt.wantCalls {
				t.Errorf("filter calls = %d, want %d", h.filter.calls, tt.wantCalls)
			}
		})
	}
}
