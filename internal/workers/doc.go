/*
Package workers sizes worker pools from GOMAXPROCS and provides a small
semaphore for bounding concurrent pipeline runs.

runtime.NumCPU reports host CPUs even inside a CPU-limited container, while
GOMAXPROCS follows the quota, so every helper here starts from GOMAXPROCS:

	numWorkers := workers.ForCPU(8) // decode/resize, 1 per CPU, max 8
	numWorkers := workers.ForIO(16) // disk bound, 2 per CPU, max 16

Operators can pin the count with INGEST_WORKERS; the limit passed by the
caller still applies.

The Semaphore is used by the library to keep at most ForCPU(0) uploads in
their CPU-heavy stages at once:

	sem := workers.NewSemaphore(workers.ForCPU(0))
	if err := sem.Acquire(ctx); err != nil {
		return err
	}
	defer sem.Release()
*/
package workers
