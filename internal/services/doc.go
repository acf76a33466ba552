// Package services implements the outbound collaborators of the matching pipeline.
//
// # Track Sources
//
// [TrackSource] flattens a playlist into an ordered list of [models.Track].
//
// [SpotifyService] uses the OAuth2 client-credentials grant (no user login) and pages through
// /playlists/{id}/tracks until the API stops returning a next link. [FileTrackSource] reads
// "Artist - Title" lines or a name,artist CSV for offline use.
//
// # Search Backend
//
// [Searcher] is the black-box search dependency. [YouTubeScraper] fetches the public results
// page and decodes the ytInitialData blob embedded in it. The scraper never follows redirects:
// consent and bot-check redirects surface as [shared.ErrRedirect] so callers can treat the
// query as permanently failed instead of looping.
//
// The scraper makes no promises about latency; wrapping it in a timeout is the job of the
// search package.
//
// # Job API Client
//
// [APIService] performs raw HTTP calls against a running sp2yt server for the jobs commands.
package services
