package filesystem

// Observer records filesystem operation metrics. The metrics package provides
// the implementation so that filesystem does not import it.
type Observer interface {
	// ObserveOperation records duration and error status for one call.
	// volume is the resolved label, operation one of "stat", "read", "write", "remove".
	ObserveOperation(volume, operation string, durationSeconds float64, err error)

	ObserveRetryAttempt(retryOp, volume string)
	ObserveRetrySuccess(retryOp, volume string)
	ObserveRetryFailure(retryOp, volume string)
	ObserveRetryDuration(retryOp, volume string, durationSeconds float64)
	ObserveStaleError(retryOp, volume string)
}

// nopObserver discards everything.
type nopObserver struct{}

func (nopObserver) ObserveOperation(string, string, float64, error) {}
func (nopObserver) ObserveRetryAttempt(string, string)              {}
func (nopObserver) ObserveRetrySuccess(string, string)              {}
func (nopObserver) ObserveRetryFailure(string, string)              {}
func (nopObserver) ObserveRetryDuration(string, string, float64)    {}
func (nopObserver) ObserveStaleError(string, string)                {}

var defaultObserver Observer = nopObserver{}

// SetObserver sets the package-level metrics observer. Passing nil restores
// the no-op observer. It is not synchronized and must be called during
// startup, before any filesystem operation runs.
func SetObserver(o Observer) {
	if o == nil {
		o = nopObserver{}
	}
	defaultObserver = o
}

func observe() Observer {
	return defaultObserver
}
