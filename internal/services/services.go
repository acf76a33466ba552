// package services defines the collaborator interfaces consumed by the pipeline
package services

import (
	"context"
	"strings"

	"github.com/desertthunder/sp2yt/internal/models"
)

// TrackSource fetches the flattened, ordered track list of a playlist.
type TrackSource interface {
	// FetchTracks resolves playlistRef (an ID, URI, URL or path, depending on the source) into tracks.
	FetchTracks(ctx context.Context, playlistRef string) ([]models.Track, error)

	// Name returns the name of the source (e.g., "Spotify")
	Name() string
}

// Searcher is the external video search dependency.
//
// Implementations may hang, return nothing for valid queries, or fail with transport errors.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]RawVideo, error)
}

// SearcherFunc adapts a function to [Searcher].
type SearcherFunc func(ctx context.Context, query string, maxResults int) ([]RawVideo, error)

// Search calls f.
func (f SearcherFunc) Search(ctx context.Context, query string, maxResults int) ([]RawVideo, error) {
	return f(ctx, query, maxResults)
}

// RawVideo is one unvalidated result as returned by a [Searcher].
type RawVideo struct {
	ID          string
	Title       string
	Channel     string
	Description string
	PublishedAt string
	Thumbnail   string
}

// PlaylistKey is the persistence key for ref as read from source: the lowercased source name
// and the canonical playlist id, or ref itself when the source has no canonical form.
func PlaylistKey(source TrackSource, ref string) string {
	ref = strings.TrimSpace(ref)
	if _, ok := source.(*SpotifyService); ok {
		if id, err := ParsePlaylistRef(ref); err == nil {
			ref = id
		}
	}
	return strings.ToLower(source.Name()) + ":" + ref
}
