// package models defines the data model for the playlist matching pipeline
package models

import (
	"strings"
)

// Track is the input unit: one song from the source playlist.
type Track struct {
	Name   string `json:"name"`
	Artist string `json:"artist"`
}

// Artists splits a comma or ampersand separated artist credit into individual names.
func (t Track) Artists() []string {
	fields := strings.FieldsFunc(t.Artist, func(r rune) bool { return r == ',' || r == '&' })
	artists := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			artists = append(artists, f)
		}
	}
	return artists
}

// String renders the track as "Artist - Name".
func (t Track) String() string {
	return t.Artist + " - " + t.Name
}

// Candidate is a single search-result video. Produced per query and never persisted.
type Candidate struct {
	VideoID      string `json:"video_id"`
	Title        string `json:"title"`
	ChannelName  string `json:"channel_name"`
	Description  string `json:"description,omitempty"`
	PublishedAt  string `json:"published_at,omitempty"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
}
