// Package ui implements the terminal now playing screen using bubbletea's Elm architecture.
//
// The [Model] has three screens:
//  1. [NowPlayingView] : track, paused state, progress bar, volume and the next queued track
//  2. [TracksView] : tracks of the current playlist; enter starts the selected track
//  3. [QueueView] : the playback queue
//
// The model subscribes to a [Player] (the reconciler in production) and receives every merged view as a
// message. A progress interpolator animates the bar between views on a frame tick; views published
// only for queue or track list refreshes leave the animated position alone.
//
// The bar accepts mouse presses: press starts a drag, motion follows the pointer, release seeks. Arrow
// keys scrub by five seconds. Space, n and p send toggle, next and previous through the player, which
// applies them optimistically and rolls back on failure.
package ui
