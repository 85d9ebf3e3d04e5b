package memory

import (
	"math"
	"runtime/debug"
	"testing"
)

// restoreMemoryLimit puts the runtime limit back after a test changes it.
func restoreMemoryLimit(t *testing.T) {
	t.Helper()
	old := debug.SetMemoryLimit(-1)
	t.Cleanup(func() { debug.SetMemoryLimit(old) })
}

func TestConfigureFromEnv(t *testing.T) {
	tests := []struct {
		name       string
		limit      string
		ratio      string
		configured bool
		source     string
		goLimit    int64
		wantRatio  float64
	}{
		{"unset", "", "", false, "none", 0, 0},
		{"default ratio", "1073741824", "", true, "MEMORY_LIMIT", 912680550, 0.85},
		{"custom ratio", "1000000", "0.5", true, "MEMORY_LIMIT", 500000, 0.5},
		{"ratio out of range", "1000000", "1.5", true, "MEMORY_LIMIT", 850000, 0.85},
		{"ratio not a number", "1000000", "most", true, "MEMORY_LIMIT", 850000, 0.85},
		{"limit not a number", "2Gi", "", false, "none", 0, 0},
		{"negative limit", "-5", "", false, "none", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			restoreMemoryLimit(t)
			t.Setenv("GOMEMLIMIT", "")
			t.Setenv("MEMORY_LIMIT", tt.limit)
			t.Setenv("MEMORY_RATIO", tt.ratio)

			got := ConfigureFromEnv()
			if got.Configured != tt.configured || got.Source != tt.source {
				t.Fatalf("ConfigureFromEnv() = %+v, want configured=%v source=%s", got, tt.configured, tt.source)
			}
			if got.GoMemLimit != tt.goLimit {
				t.Errorf("GoMemLimit = %d, want %d", got.GoMemLimit, tt.goLimit)
			}
			if got.Ratio != tt.wantRatio {
				t.Errorf("Ratio = %v, want %v", got.Ratio, tt.wantRatio)
			}
			if tt.configured {
				if applied := debug.SetMemoryLimit(-1); applied != tt.goLimit {
					t.Errorf("runtime limit = %d, want %d", applied, tt.goLimit)
				}
			}
		})
	}
}

func TestConfigureFromEnvPrefersGOMEMLIMIT(t *testing.T) {
	restoreMemoryLimit(t)
	t.Setenv("GOMEMLIMIT", "512MiB")
	t.Setenv("MEMORY_LIMIT", "1000000")

	got := ConfigureFromEnv()
	if got.Source != "GOMEMLIMIT" || got.ContainerLimit != 0 {
		t.Errorf("ConfigureFromEnv() = %+v, want GOMEMLIMIT to win", got)
	}
	// The runtime reads GOMEMLIMIT at startup only, so the applied value
	// depends on how the test binary was launched.
	if got.Configured && (got.GoMemLimit <= 0 || got.GoMemLimit == math.MaxInt64) {
		t.Errorf("GoMemLimit = %d", got.GoMemLimit)
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		bytes int64
		want  string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1536, "1.5 KiB"},
		{912680550, "870.4 MiB"},
		{1073741824, "1.0 GiB"},
		{1152921504606846976, "1.0 EiB"},
	}

	for _, tt := range tests {
		if got := formatBytes(tt.bytes); got != tt.want {
			t.Errorf("formatBytes(%d) = %q, want %q", tt.bytes, got, tt.want)
		}
	}
}
