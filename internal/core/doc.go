// Package core provides the batch import engine.
//
// This package holds the domain logic of the importer, independent of any
// storage or transport. The web server, the CLI and the tests drive it
// through the same [Runner].
//
// # Architecture
//
//   - Ports: [RecordStore], [TaxonomyStore], [AssetStore], [StateStore],
//     [Scheduler] and [DiagnosticLog] are implemented by the store
//     packages.
//   - Reconciler: maps one CSV row onto a record, deciding between create,
//     update and skip by identifier and then by title.
//   - Runner: the chunk state machine. It persists an [ImportState] after
//     every row, so an interrupted chunk resumes at the next unread row.
//   - Queue and sweeper: in-process delivery of "run next chunk" triggers.
//
// # Run Lifecycle
//
//	Idle -> Initializing -> Running -> Suspended -> Running -> ... -> Completed
//	                                                          \-> Aborted
//
// [Runner.Start] reads and resolves the header, persists the state and
// schedules the first chunk. Each [Runner.RunChunk] claims a lease on the
// state, processes up to ChunkSize rows or until the soft time budget is
// spent, and either schedules the next chunk or, at end of file, deletes
// the state and the source file.
//
// # Single Writer
//
// Every state write is a compare-and-swap on ImportState.Version. A chunk
// whose write fails with [ErrStateConflict] stops immediately; this is how
// cancellation reaches an in-flight chunk. Duplicate triggers are rejected
// by the lease or, if they race past it, by the version check. Rows that
// are reprocessed after a crash are absorbed by identity-based
// reconciliation.
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Per-row errors never abort a run; only header problems
// ([StructuralError]) and a missing state or source file
// ([ErrStateCorruption]) do.
package core
