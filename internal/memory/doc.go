// Package memory keeps image decoding inside the container's memory budget.
//
// [ConfigureFromEnv] sets GOMEMLIMIT from MEMORY_LIMIT (the container limit,
// typically passed through the Kubernetes Downward API) scaled by
// MEMORY_RATIO, leaving headroom for libvips and other non-heap allocations.
// Call it early in main.
//
// [Monitor] samples the heap on a ticker and closes a gate when usage
// crosses the pause ratio of the limit. Ingest runs call [Monitor.Wait]
// before they decode anything, so a burst of large uploads queues instead of
// driving the process into the OOM killer. The gate reopens once usage falls
// below the resume ratio.
package memory
