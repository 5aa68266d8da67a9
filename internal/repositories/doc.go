// Package repositories implements SQLite persistence for all domain entities.
//
// Key Implementations:
//   - [UserRepository] : accounts keyed by email, with token columns optionally sealed by [shared.Cipher]
//   - [SessionRepository] : opaque session ids with expiry
//   - [PlaylistRepository] : mirrored playlists, upserted by YouTube id
//   - [VideoRepository] : mirrored playlist items, upserted by video id
//
// [Store] groups the repositories and runs work in a transaction with [Store.InTx];
// all writes touching a playlist and its videos go through one transaction.
//
// Failures are returned as [shared.PersistenceError] carrying the operation and key.
// A missing row unwraps to [shared.ErrNotFound].
//
// Sequence numbers provide stable, human-readable ordering (e.g., user #42, playlist #15) independent of UUIDs and creation timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
