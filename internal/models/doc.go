// Package models defines the playback and persistence types shared by every other package.
//
// # Identifier Namespaces
//
// The browser SDK (push channel) and the Web API (pull channel) describe the same track with ids from
// two different namespaces. They are kept apart by type:
//   - [SDKTrackID] : id reported by the SDK, only valid for change detection within push events
//   - [APITrackID] : id reported by the Web API, the only id that is ever persisted
//   - [TrackURI] : "spotify:track:<id>", the single identifier comparable across both channels
//
// [TrackRef] is generic over the id type, so an [SDKTrack] can never be passed where an [APITrack] is expected.
//
// # Playback Types
//
//   - [PlaybackSnapshot] : pull channel result of GET /me/player
//   - [SdkPlaybackEvent] : push channel player_state_changed payload
//   - [MergedPlaybackView] : the reconciled state the UI renders
//   - [TransitionState] : previous track/playlist identity used for edge detection
//
// # Persistence
//
// [Position] is the last played track per (user, playlist). [PositionStore] is implemented by the
// sqlite and postgres repositories and by the HTTP client in the services package.
package models
