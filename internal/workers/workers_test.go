package workers

import (
	"context"
	"runtime"
	"testing"
	"time"
)

func TestCount(t *testing.T) {
	t.Setenv(OverrideEnv, "")

	available := runtime.GOMAXPROCS(0)

	tests := []struct {
		name       string
		multiplier float64
		limit      int
		want       int
	}{
		{"cpu bound", 1.0, 0, available},
		{"io bound", 2.0, 0, available * 2},
		{"limit applies", 2.0, 1, 1},
		{"zero multiplier still yields one", 0, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Count(tt.multiplier, tt.limit); got != tt.want {
				t.Errorf("Count(%v, %d) = %d, want %d", tt.multiplier, tt.limit, got, tt.want)
			}
		})
	}
}

func TestCountOverride(t *testing.T) {
	tests := []struct {
		name  string
		env   string
		limit int
		want  int
	}{
		{"override used", "7", 0, 7},
		{"override capped by limit", "7", 3, 3},
		{"invalid override ignored", "lots", 1, 1},
		{"negative override ignored", "-2", 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(OverrideEnv, tt.env)
			if got := Count(1.0, tt.limit); got != tt.want {
				t.Errorf("Count with %s=%q = %d, want %d", OverrideEnv, tt.env, got, tt.want)
			}
		})
	}
}

func TestHelpersRespectLimit(t *testing.T) {
	t.Setenv(OverrideEnv, "")

	for name, fn := range map[string]func(int) int{"ForCPU": ForCPU, "ForIO": ForIO, "ForMixed": ForMixed} {
		if got := fn(1); got != 1 {
			t.Errorf("%s(1) = %d, want 1", name, got)
		}
	}
}

func TestSemaphore(t *testing.T) {
	t.Parallel()

	sem := NewSemaphore(1)
	if sem.Size() != 1 {
		t.Fatalf("Size() = %d, want 1", sem.Size())
	}

	if err := sem.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if sem.InUse() != 1 {
		t.Errorf("InUse() = %d, want 1", sem.InUse())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := sem.Acquire(ctx); err == nil {
		t.Fatal("second Acquire should block until the context expires")
	}

	sem.Release()
	if err := sem.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire after Release failed: %v", err)
	}
	sem.Release()
}

func TestNewSemaphoreMinimum(t *testing.T) {
	t.Parallel()

	if got := NewSemaphore(0).Size(); got != 1 {
		t.Errorf("NewSemaphore(0).Size() = %d, want 1", got)
	}
}
