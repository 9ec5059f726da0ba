// Package domain contains the core entities and value objects for offlinesync.
//
// This package is the innermost layer. It has no dependencies on
// infrastructure concerns (HTTP, SQLite, logging) and contains only data
// shapes and the rules that belong to them.
//
// # Entities
//
//   - [Record]: an application record (assessment, journal entry, settings)
//     held on the device, with its synced flag and timestamps
//   - [QueueItem]: one not-yet-confirmed outbound HTTP mutation
//   - [DeadLetter]: a queue item that failed terminally, kept for inspection
//   - [NetworkState]: a snapshot of connectivity
//   - [Conflict] and [Resolved]: the input and output of conflict resolution
package domain
