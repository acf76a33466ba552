// Package tasks drives conversions: it batches tracks through the matcher and keeps the jobs that do so.
//
// # Jobs
//
// A [Job] holds the tracks of one conversion, the results appended so far and a cursor that only
// moves at batch boundaries. Nothing outside this package mutates a job; callers read
// [models.Snapshot] copies.
//
// # Orchestration
//
// [Orchestrator.Process] takes the next [BatchConfig.BatchSize] tracks at the cursor, matches
// them concurrently and appends their results in index order. A batch that outlives
// [BatchConfig.PerBatchTimeout] is salvaged track by track with a short timeout. Consecutive
// failed batches trip a circuit breaker that fails the remainder and completes the job, and an
// optional global deadline does the same. Pause is honored between batches.
//
// The fast, background and paged modes are [Profile] values over the same orchestrator.
//
// # Registry
//
// [Registry] creates jobs, runs each on its own goroutine and serves pause, resume, delete,
// listing and garbage collection. Completed jobs with a playlist key are handed to a
// [ResultStore].
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and the job snapshot for
// UI rendering. Updates use select with default to prevent blocking.
package tasks
