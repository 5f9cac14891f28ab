// Package services implements the remote collaborators of the playback reconciler.
//
// # Interfaces
//
// The reconciler depends only on small interfaces declared here:
//   - [TokenProvider] : bearer token plus an explicit refresh
//   - [SnapshotFetcher] : pull channel (GET /me/player)
//   - [Commander] : play, pause, seek, skip and volume commands
//   - [Catalog] : upcoming queue and paginated playlist tracks
//   - [PushChannel] : SDK event subscription returning an unsubscribe handle
//
// # Spotify Implementation
//
// [SpotifyService] wraps github.com/zmb3/spotify/v2. Every request passes through an auth transport that
// waits on a [rate.Limiter], sets the bearer token, and on a 401 calls [TokenProvider.Refresh] once and
// retries. A failed refresh surfaces as [shared.ErrNotAuthenticated].
//
// [OAuthTokenProvider] refreshes tokens with golang.org/x/oauth2 and reports new tokens through a callback
// so the CLI can write them back to config.toml. The authorization code exchange itself is not handled here.
//
// # Position Store Client
//
// [PositionClient] talks to the /api/playlist-positions endpoint served by the server package and implements
// [models.PositionStore], so a player can persist positions on a remote host instead of a local database.
//
// # Error Handling
//
// Services use sentinel errors from the shared package:
//   - [shared.ErrNotAuthenticated] : no token, or the refresh failed
//   - [shared.ErrAPIRequest] : a read (snapshot, queue, tracks, store) failed
//   - [shared.ErrCommandRejected] : a playback command was refused
//   - [shared.ErrNoActiveDevice] : the command had no device to act on
package services
