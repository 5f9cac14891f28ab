// Package tasks runs player operations that span several remote calls.
//
// # Snapshot Polling
//
// [Poller] fetches the pull channel every poll interval and hands the result to a [SnapshotSink].
// The reconciler is the production sink: polled snapshots update the track and position and
// reconcile the paused flag, but never drive transition detection.
//
// # Resume
//
// [Resumer.Resume] looks up the saved position for a (user, playlist) pair and starts the playlist
// context at that track, from the beginning of the track. With nothing saved the playlist starts at
// its first track. The track list is then loaded page by page.
//
// # Progress Reporting
//
// Resume reports progress over a non-blocking channel of [ProgressUpdate]. Updates use select with
// default so a slow reader never stalls playback.
package tasks
