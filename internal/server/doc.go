// Package server provides the HTTP API of the playlist mirror: routing, middleware and handlers.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method dispatch per path.
//
// # Middleware
//
// Every request passes through [Recover], [RequestLogger], [CORS] and [LoadSession].
// Routes add their own requirements on top:
//   - [RequireSession] answers 401 without a valid session cookie
//   - [RequireCSRF] answers 403 unless X-CSRF-Token matches the session
//   - [RateLimiter] answers 429 per client IP (status 5/min, url 2/min, callback 3/min)
//
// # Routes
//
//	GET  /api/auth/url            → {url}, sets the oauth_state cookie
//	GET  /api/auth/callback       → provider redirect, ends in a redirect to the frontend
//	POST /api/auth/callback       → {code} → {success}
//	GET  /api/auth/status         → {authenticated, user?, csrfToken?}
//	POST /api/auth/logout         → {success}
//	POST /api/auth/revoke         → {success}
//	GET  /api/playlists           → {success, data, meta{total, source}}
//	POST /api/playlists           → {playlistId} → {success, count}
//	GET  /api/playlists/music     → music playlists with their available videos
//	GET  /api/videos/unavailable  → unavailable videos with their playlist name
//	GET  /healthz                 → {status}
//
// Failures are written as {error, details}. Remote and store failures are logged
// in full while the client receives a generic message.
//
// # Handler Interface
//
// Handlers implement [Handler] by listing their [Route] values, which keeps each
// area's route definitions next to its implementation.
package server
