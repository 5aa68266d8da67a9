// Package services implements the [Remote] playlist source against the YouTube Data API.
//
// # Remote Interface
//
// [Remote] lists playlists, playlist items and video statuses. Each call takes the user's
// authenticated [http.Client] (see auth.Manager.Client), so token refresh happens in the transport.
//
// # YouTube Implementation
//
// [YouTubeService] uses google.golang.org/api/youtube/v3:
//   - playlists.list(part=snippet,contentDetails; mine=true)
//   - playlistItems.list(part=snippet,contentDetails,status)
//   - videos.list(part=status), in chunks of 50 ids
//
// Listings follow nextPageToken with maxResults=50 until the provider returns none.
//
// # Error Handling
//
// Every provider failure is returned as [shared.RemoteFetchError] naming the API method.
// Pages fetched before the failure are discarded.
//
// # API Mappings
//
// Playlists map to [models.PlaylistRecord] and items to [models.VideoRecord]. The thumbnail
// is the best of maxres, high, medium and default. An item's status is its privacy status.
package services
