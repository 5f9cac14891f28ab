// Package reconcile merges the two views of "what is playing" into one.
//
// Push events arrive from the browser SDK with low latency but carry SDK track ids.
// Snapshots arrive from the Web API on demand and carry the ids the position store keys on.
// A [Reconciler] applies the paused flag and position from push events immediately, then
// fetches a snapshot for playlist contexts and compares the Web API track id and the
// playlist against the previous event to detect transitions.
//
// On a playlist change the position of the playlist being left is saved. On a track change
// within the same playlist the new track is saved. A transition without a Web API id is
// skipped with a warning.
//
// Commands issued through the reconciler update the view before the remote acknowledges
// them and restore the previous value when the command fails.
package reconcile
