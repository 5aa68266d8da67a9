// Package tasks mirrors remote playlists into the local store with real-time progress reporting.
//
// # Core Operations
//
// [Syncer] decides the source of truth per request:
//
//  1. [Syncer.Playlists] : answer from the store, or hydrate on cold start
//     - A user with zero stored playlists is hydrated from the remote API
//     - Once any playlist exists, reads never reconsult the remote API
//     - A per-user lock keeps concurrent cold starts from importing twice
//
//  2. [Syncer.ProcessPlaylist] : re-sync one stored playlist's videos
//     - The playlist and all its videos are written in one transaction
//     - Videos gone from the remote playlist are removed
//
//  3. [Syncer.Rehydrate] : forced re-import of every playlist
//
// Upserts are keyed by the provider's ids, so repeated syncs with unchanged
// remote data keep every primary key and relationship.
//
// # Batching
//
// [ProcessInBatches] partitions work into fixed-size batches and retries a failing
// batch with exponential backoff. Persistence and refresh errors are never retried.
//
// # Locking
//
// A [Locker] serializes work per playlist. [MemoryLocker] covers a single process;
// [RedisLocker] shares locks between processes through SET NX PX keys.
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
// Updates use select with default to prevent blocking.
//
// # Stuck Videos
//
// [Poller] periodically re-checks videos still marked processing, grouped by owner,
// through a rate-limited worker pool.
package tasks
