package memory

import (
	"context"
	"errors"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"photo-vault/internal/logging"
	"photo-vault/internal/metrics"
)

// ErrStopped is returned by Wait when the monitor stops while the gate is
// closed.
var ErrStopped = errors.New("memory monitor stopped")

// Config holds the monitor thresholds.
type Config struct {
	// LimitBytes is the heap budget. Zero uses GOMEMLIMIT; with neither the
	// gate never closes.
	LimitBytes int64
	// PauseRatio of the limit closes the gate.
	PauseRatio float64
	// ResumeRatio of the limit reopens it.
	ResumeRatio   float64
	CheckInterval time.Duration
	// ReadHeap reports the live heap size. Defaults to runtime.MemStats.
	ReadHeap func() uint64
}

// DefaultConfig returns the default thresholds.
func DefaultConfig() Config {
	return Config{
		PauseRatio:    0.85,
		ResumeRatio:   0.7,
		CheckInterval: 5 * time.Second,
	}
}

func readHeap() uint64 {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return stats.HeapAlloc
}

// Monitor gates memory-heavy work on heap usage.
type Monitor struct {
	cfg   Config
	limit int64

	mu      sync.RWMutex
	current uint64
	paused  bool
	resume  chan struct{}

	stopChan  chan struct{}
	doneChan  chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
	started   bool
}

// NewMonitor creates a monitor. Call Start to begin sampling.
func NewMonitor(cfg Config) *Monitor {
	def := DefaultConfig()
	if cfg.PauseRatio <= 0 || cfg.PauseRatio > 1 {
		cfg.PauseRatio = def.PauseRatio
	}
	if cfg.ResumeRatio <= 0 || cfg.ResumeRatio >= cfg.PauseRatio {
		cfg.ResumeRatio = cfg.PauseRatio * (def.ResumeRatio / def.PauseRatio)
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = def.CheckInterval
	}
	if cfg.ReadHeap == nil {
		cfg.ReadHeap = readHeap
	}

	limit := cfg.LimitBytes
	if limit <= 0 {
		if goMemLimit := debug.SetMemoryLimit(-1); goMemLimit > 0 && goMemLimit < 1<<62 {
			limit = goMemLimit
		}
	}
	if limit <= 0 {
		logging.Info("Memory monitor: no memory limit configured, ingest backpressure disabled")
	} else {
		logging.Info("Memory monitor: pausing ingest above %s of %s heap",
			formatBytes(int64(float64(limit)*cfg.PauseRatio)), formatBytes(limit))
	}

	return &Monitor{
		cfg:      cfg,
		limit:    limit,
		resume:   make(chan struct{}),
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

// Start begins sampling. It does nothing without a limit.
func (m *Monitor) Start() {
	if m.limit <= 0 {
		return
	}
	m.startOnce.Do(func() {
		m.started = true
		go m.loop()
	})
}

// Stop ends sampling and releases every waiter.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopChan)
		if m.started {
			<-m.doneChan
		}
	})
}

func (m *Monitor) loop() {
	defer close(m.doneChan)

	ticker := time.NewTicker(m.cfg.CheckInterval)
	defer ticker.Stop()

	m.check()
	for {
		select {
		case <-ticker.C:
			m.check()
		case <-m.stopChan:
			return
		}
	}
}

// check samples the heap and opens or closes the gate.
func (m *Monitor) check() {
	if m.limit <= 0 {
		return
	}
	heap := m.cfg.ReadHeap()
	usage := float64(heap) / float64(m.limit)
	metrics.MemoryUsageRatio.Set(usage)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = heap

	switch {
	case !m.paused && usage >= m.cfg.PauseRatio:
		logging.Warn("Memory critical (%.1f%% of limit), pausing ingest", usage*100)
		m.paused = true
		metrics.MemoryPaused.Set(1)
		metrics.MemoryPausesTotal.Inc()
		go runtime.GC()
	case m.paused && usage < m.cfg.ResumeRatio:
		logging.Info("Memory recovered (%.1f%% of limit), resuming ingest", usage*100)
		m.paused = false
		metrics.MemoryPaused.Set(0)
		close(m.resume)
		m.resume = make(chan struct{})
	}
}

// Wait blocks while the gate is closed. It returns ctx.Err() if ctx ends
// first and ErrStopped if the monitor stops.
func (m *Monitor) Wait(ctx context.Context) error {
	m.mu.RLock()
	if !m.paused {
		m.mu.RUnlock()
		return nil
	}
	resume := m.resume
	m.mu.RUnlock()

	select {
	case <-resume:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-m.stopChan:
		return ErrStopped
	}
}

// Paused reports whether the gate is closed.
func (m *Monitor) Paused() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.paused
}

// Usage returns the last sampled heap as a fraction of the limit, or 0
// without a limit.
func (m *Monitor) Usage() float64 {
	if m.limit <= 0 {
		return 0
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return float64(m.current) / float64(m.limit)
}

// Limit returns the heap budget in bytes, 0 when unlimited.
func (m *Monitor) Limit() int64 {
	return m.limit
}
