// Package models defines domain entities for the tubesync playlist mirror.
//
// The package contains two categories of types:
//
// 1. Records: lightweight structs mapped from the remote playlist API
//   - [PlaylistRecord] : playlist metadata from playlists.list
//   - [VideoRecord] : playlist item metadata from playlistItems.list
//
// 2. Persistent Entities: database-backed rows
//   - [User] : account keyed by email, holding the most recent OAuth token
//   - [Session] : opaque session id bound to a user with an expiry
//   - [Playlist] : mirrored playlist keyed by its YouTube id
//   - [Video] : mirrored playlist item keyed by its video id
//
// [Token] is the OAuth credential pair exchanged at login and refreshed in place.
// Derived fields (music playlist flag, availability, watch URL) are computed here so
// every writer agrees on them.
package models
