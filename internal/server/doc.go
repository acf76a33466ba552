// Package server exposes the job control surface over HTTP using chi.
//
// # Routes
//
//	GET    /api/health               → liveness and job count
//	POST   /api/jobs                 → create an asynchronous job (202 with job_id)
//	GET    /api/jobs                 → list job snapshots
//	GET    /api/jobs/{id}            → poll status, progress and timing
//	GET    /api/jobs/{id}/results    → per-track results, matched ids and watch URLs
//	GET    /api/jobs/{id}/events     → server-sent progress events until the job stops
//	POST   /api/jobs/{id}/pause      → pause at the next batch boundary
//	POST   /api/jobs/{id}/resume     → resume from the cursor
//	DELETE /api/jobs/{id}            → cancel and forget a job
//	POST   /api/convert              → synchronous conversion under the fast profile
//
// Successful responses use the {"data": ...} envelope and failures use
// {"error": {"code", "message"}}. Unknown jobs are 404 JOB_NOT_FOUND and invalid pause or
// resume requests are 409 INVALID_TRANSITION.
//
// # Middleware
//
// [Logger] writes one charm log line per request and [Recovery] converts handler panics into
// 500 responses. Both follow the standard func(http.Handler) http.Handler shape ([Middleware]).
//
// # Large playlists
//
// A job may cover a window of a playlist (start_from, max_tracks). The create response carries
// next_start_from while tracks remain, so clients can page through a large playlist one job at
// a time. Only jobs covering a whole playlist are persisted.
package server
