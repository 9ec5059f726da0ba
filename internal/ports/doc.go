// Package ports holds the interfaces between internal/app and the adapters.
//
//   - [RecordStore]: durable application records
//   - [QueueStore]: the durable mutation queue and its dead letters
//   - [ResponseCache]: cached GET responses for offline reads
//   - [Lease]: cross-process mutual exclusion for drains
//   - [Transport]: executes HTTP mutations against the remote API
//   - [NetworkStatus]: read-only connectivity snapshot
//   - [TokenSource]: bearer token supplier
//   - [MetricsRecorder]: queue metrics sink
//   - [Logger]: structured logging abstraction
//   - [HTTPClient]: *http.Client or a test double
//   - [NetworkReporter]: sink for probe observations
package ports
