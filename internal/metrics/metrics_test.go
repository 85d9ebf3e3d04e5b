package metrics

import (
	"errors"
	"fmt"
	"io/fs"
	"syscall"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	return m.GetCounter().GetValue()
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	return m.GetGauge().GetValue()
}

func TestMetricsExist(t *testing.T) {
	tests := []struct {
		name   string
		metric interface{}
	}{
		{"HTTPRequestsTotal", HTTPRequestsTotal},
		{"HTTPRequestDuration", HTTPRequestDuration},
		{"DBQueryTotal", DBQueryTotal},
		{"IngestTotal", IngestTotal},
		{"IngestStageDuration", IngestStageDuration},
		{"IngestRollbacksTotal", IngestRollbacksTotal},
		{"DerivativeDuration", DerivativeDuration},
		{"BlobWritesTotal", BlobWritesTotal},
		{"StorageFreeBytes", StorageFreeBytes},
		{"CatalogPhotos", CatalogPhotos},
		{"RecordCacheHits", RecordCacheHits},
		{"FilesystemRetryAttempts", FilesystemRetryAttempts},
		{"AppInfo", AppInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.metric == nil {
				t.Errorf("%s metric is nil", tt.name)
			}
		})
	}
}

func TestInitializeMetrics(t *testing.T) {
	InitializeMetrics()

	// Pre-populated series exist at zero.
	for _, r := range IngestResults {
		if _, err := IngestTotal.GetMetricWithLabelValues(r); err != nil {
			t.Errorf("IngestTotal{%s} error = %v", r, err)
		}
	}

	// Calling twice is harmless.
	InitializeMetrics()
}

func TestSetAppInfo(t *testing.T) {
	SetAppInfo("1.2.3", "abc123", "go1.25")

	if got := gaugeValue(t, AppInfo.WithLabelValues("1.2.3", "abc123", "go1.25")); got != 1 {
		t.Errorf("AppInfo = %v, want 1", got)
	}
}

func TestErrorKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{syscall.ENOSPC, "no_space"},
		{fmt.Errorf("write: %w", syscall.EDQUOT), "no_space"},
		{fs.ErrPermission, "permission"},
		{&fs.PathError{Op: "open", Path: "/x", Err: syscall.ENOENT}, "not_found"},
		{syscall.ESTALE, "stale"},
		{errors.New("boom"), "other"},
	}

	for _, tt := range tests {
		if got := errorKind(tt.err); got != tt.want {
			t.Errorf("errorKind(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestFilesystemObserver(t *testing.T) {
	obs := NewFilesystemObserver()

	full := FilesystemOperationErrors.WithLabelValues("original", "write", "no_space")
	errsBefore := counterValue(t, full)
	obs.ObserveOperation("original", "write", 0.01, &fs.PathError{Op: "write", Path: "/x", Err: syscall.ENOSPC})
	obs.ObserveOperation("original", "write", 0.01, nil)
	if got := counterValue(t, full); got != errsBefore+1 {
		t.Errorf("no_space errors = %v, want %v", got, errsBefore+1)
	}

	staleBefore := counterValue(t, FilesystemStaleErrors.WithLabelValues("open", "preview"))
	obs.ObserveStaleError("open", "preview")
	if got := counterValue(t, FilesystemStaleErrors.WithLabelValues("open", "preview")); got != staleBefore+1 {
		t.Errorf("stale errors = %v, want %v", got, staleBefore+1)
	}

	attemptsBefore := counterValue(t, FilesystemRetryAttempts.WithLabelValues("open", "preview"))
	obs.ObserveRetryAttempt("open", "preview")
	obs.ObserveRetrySuccess("open", "preview")
	obs.ObserveRetryFailure("open", "preview")
	obs.ObserveRetryDuration("open", "preview", 0.2)
	if got := counterValue(t, FilesystemRetryAttempts.WithLabelValues("open", "preview")); got != attemptsBefore+1 {
		t.Errorf("retry attempts = %v, want %v", got, attemptsBefore+1)
	}
}
