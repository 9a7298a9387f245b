// Package detection implements the camera-frame ingestion pipeline:
// the brightness gate, the cat classifier boundary, the frame filename
// counter, and the rolling detection record store.
//
// The pipeline for each posted frame is:
//
//	gate (too dark?) -> classifier -> frame file write -> store insert
//
// The store keeps an append-only SQLite log of detections. Retention is
// enforced by TrimToLatest, which the dashboard calls on every view:
// the row set can transiently exceed the window between views, but the
// dashboard never shows more than the configured number of rows.
//
// Frame files and log rows are deliberately not transactional: a crash
// between the file write and the row insert (or between row delete and
// file unlink) can leave an orphan. Cleanup is best-effort.
package detection
