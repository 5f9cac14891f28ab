// Package progress interpolates the playback position between authoritative updates.
//
// An [Interpolator] is Synced right after an update, Animating while playing, and Dragging while
// the pointer holds the scrub control. Ticks add the real time elapsed since the previous tick.
// Every update bumps a generation counter so a tick computed against an older baseline is dropped.
//
// Drag releases and clicks show the target position at once and issue the seek in the background.
package progress
