// Package server hosts the HTTP side of playhead: the position store API, the push channel relay
// for the browser SDK, and the bridge page that runs the SDK.
//
// # Router Infrastructure
//
// [BasicRouter] implements [Router] over [http.ServeMux]. [Middleware] added with Use wraps every
// route registered afterwards; the first middleware added runs outermost. Handlers that own several
// patterns implement [Handler] and list them from Routes.
//
// [NewRouter] assembles the full surface from [Deps]:
//
//	GET|POST|DELETE /api/playlist-positions   PositionHandler
//	GET /api/token                            TokenHandler
//	GET /api/state                            StateHandler
//	GET /sdk/events                           Relay (websocket)
//	GET /player                               BridgeHandler
//	GET /healthz
//
// # Push Channel Relay
//
// The SDK only runs in a browser. The bridge page served at /player loads it, asks /api/token for an
// access token, and forwards the SDK's ready, not_ready and player_state_changed callbacks over a
// websocket to [Relay]. The relay decodes state changes into [models.SdkPlaybackEvent] and delivers
// them to subscribers, which makes it the production [services.PushChannel]. Ready messages carry
// the SDK device id so context playback can target the browser.
//
// # Login Callback
//
// [LoginHandler] handles the authorization code redirect for `playhead auth login`. It validates
// the state parameter, exchanges the code and reports the token pair once through [LoginHandler.Wait].
package server
