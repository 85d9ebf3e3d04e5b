/*
Package library is the entry point the HTTP handlers and the CLI use. It
wires the catalog, the blob store and the ingest coordinator together and
adds what neither owns on its own:

  - a semaphore bounding concurrent ingest runs
  - detaching runs from caller cancellation
  - a read-through LRU of committed records
  - the pending-record reaper
  - statistics for the metrics collector

Every method returns errors from the photo package taxonomy so callers can
map them with errors.Is and errors.As.
*/
package library
