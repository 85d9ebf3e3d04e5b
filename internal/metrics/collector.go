package metrics

import (
	"context"
	"sync"
	"time"

	"photo-vault/internal/logging"
)

// StatsProvider supplies the gauges the collector samples.
type StatsProvider interface {
	Stats(ctx context.Context) (Stats, error)
}

// Stats holds the current library statistics
type Stats struct {
	CommittedPhotos int64
	PendingPhotos   int64
	FreeBytes       uint64
	DBFileSizes     map[string]int64 // keyed by "main", "wal", "shm"
	DBOpenConns     int
}

// Collector periodically samples a StatsProvider into gauges.
type Collector struct {
	statsProvider StatsProvider
	interval      time.Duration
	stopChan      chan struct{}
	doneChan      chan struct{}
	startOnce     sync.Once
	stopOnce      sync.Once
	started       bool
}

// NewCollector creates a new metrics collector
func NewCollector(provider StatsProvider, interval time.Duration) *Collector {
	return &Collector{
		statsProvider: provider,
		interval:      interval,
		stopChan:      make(chan struct{}),
		doneChan:      make(chan struct{}),
	}
}

// Start begins the metrics collection loop
func (c *Collector) Start() {
	c.startOnce.Do(func() {
		c.started = true
		go c.collectLoop()
	})
}

// Stop stops the collection loop and waits for it to exit. Safe to call
// more than once, and before Start.
func (c *Collector) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopChan)
		c.startOnce.Do(func() {})
		if c.started {
			<-c.doneChan
		}
	})
}

func (c *Collector) collectLoop() {
	defer close(c.doneChan)

	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	if c.statsProvider == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.interval)
	defer cancel()

	stats, err := c.statsProvider.Stats(ctx)
	if err != nil {
		logging.Warn("Metrics collection failed: %v", err)
		return
	}

	CatalogPhotos.WithLabelValues("committed").Set(float64(stats.CommittedPhotos))
	CatalogPhotos.WithLabelValues("pending").Set(float64(stats.PendingPhotos))
	StorageFreeBytes.Set(float64(stats.FreeBytes))
	DBConnectionsOpen.Set(float64(stats.DBOpenConns))
	for file, size := range stats.DBFileSizes {
		DBSizeBytes.WithLabelValues(file).Set(float64(size))
	}

	logging.Debug("Metrics collected: committed=%d, pending=%d, free=%d",
		stats.CommittedPhotos, stats.PendingPhotos, stats.FreeBytes)
}
