package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/desertthunder/sp2yt/internal/shared"
)

func newSpotifyTestServer(t *testing.T, pages []string, status int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"app-token","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/v1/playlists/", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer app-token" {
			t.Errorf("expected bearer token, got %q", got)
		}
		if status != 0 {
			w.WriteHeader(status)
			return
		}
		var offset int
		fmt.Sscan(r.URL.Query().Get("offset"), &offset)
		idx := offset / 2
		if idx >= len(pages) {
			t.Errorf("unexpected offset %d", offset)
			return
		}
		w.Write([]byte(pages[idx]))
	})
	return httptest.NewServer(mux)
}

func TestSpotifyService(t *testing.T) {
	t.Run("Requires Credentials", func(t *testing.T) {
		_, err := NewSpotifyService(context.Background(), SpotifyOpts{ClientID: "id"})
		if !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})

	t.Run("FetchTracks Follows Pagination", func(t *testing.T) {
		pages := []string{
			`{"items":[
				{"track":{"id":"1","name":"Yellow","artists":[{"name":"Coldplay"}]}},
				{"track":null}
			],"total":4,"limit":2,"offset":0,"next":"more"}`,
			`{"items":[
				{"track":{"id":"3","name":"Under Pressure","artists":[{"name":"Queen"},{"name":"David Bowie"}]}},
				{"track":{"id":"4","name":"","artists":[]}}
			],"total":4,"limit":2,"offset":2,"next":null}`,
		}
		server := newSpotifyTestServer(t, pages, 0)
		defer server.Close()

		srv, err := NewSpotifyService(context.Background(), SpotifyOpts{
			ClientID: "id", ClientSecret: "secret",
			TokenURL: server.URL + "/token", BaseURL: server.URL + "/v1",
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		tracks, err := srv.FetchTracks(context.Background(), "spotify:playlist:abc")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(tracks) != 2 {
			t.Fatalf("expected 2 tracks, got %d: %+v", len(tracks), tracks)
		}
		if tracks[0].Name != "Yellow" || tracks[0].Artist != "Coldplay" {
			t.Errorf("unexpected first track: %+v", tracks[0])
		}
		if tracks[1].Artist != "Queen, David Bowie" {
			t.Errorf("expected joined artists, got %q", tracks[1].Artist)
		}
	})

	t.Run("Not Found", func(t *testing.T) {
		server := newSpotifyTestServer(t, nil, http.StatusNotFound)
		defer server.Close()

		srv, _ := NewSpotifyService(context.Background(), SpotifyOpts{
			ClientID: "id", ClientSecret: "secret",
			TokenURL: server.URL + "/token", BaseURL: server.URL + "/v1",
		})
		_, err := srv.FetchTracks(context.Background(), "missing")
		if !errors.Is(err, shared.ErrPlaylistNotFound) {
			t.Errorf("expected ErrPlaylistNotFound, got %v", err)
		}
	})

	t.Run("Server Error", func(t *testing.T) {
		server := newSpotifyTestServer(t, nil, http.StatusInternalServerError)
		defer server.Close()

		srv, _ := NewSpotifyService(context.Background(), SpotifyOpts{
			ClientID: "id", ClientSecret: "secret",
			TokenURL: server.URL + "/token", BaseURL: server.URL + "/v1",
		})
		_, err := srv.FetchTracks(context.Background(), "abc")
		if !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected ErrAPIRequest, got %v", err)
		}
	})

	t.Run("Name", func(t *testing.T) {
		if (&SpotifyService{}).Name() != "Spotify" {
			t.Error("unexpected service name")
		}
	})
}

func TestParsePlaylistRef(t *testing.T) {
	tests := []struct {
		name    string
		ref     string
		want    string
		wantErr bool
	}{
		{"Raw ID", "37i9dQZF1DXcBWIGoYBM5M", "37i9dQZF1DXcBWIGoYBM5M", false},
		{"URI", "spotify:playlist:37i9dQZF1DXcBWIGoYBM5M", "37i9dQZF1DXcBWIGoYBM5M", false},
		{"URL", "https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M?si=abc", "37i9dQZF1DXcBWIGoYBM5M", false},
		{"Localized URL", "https://open.spotify.com/intl-de/playlist/xyz", "xyz", false},
		{"Padded", "  abc  ", "abc", false},
		{"Empty", "", "", true},
		{"Album URL", "https://open.spotify.com/album/xyz", "", true},
		{"Garbage", "not a playlist", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePlaylistRef(tt.ref)
			if tt.wantErr {
				if !errors.Is(err, shared.ErrInvalidInput) {
					t.Errorf("expected ErrInvalidInput, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestPlaylistKey(t *testing.T) {
	t.Run("SpotifyCanonicalizes", func(t *testing.T) {
		s := &SpotifyService{}
		for _, ref := range []string{
			"37i9dQZF1DXcBWIGoYBM5M",
			"spotify:playlist:37i9dQZF1DXcBWIGoYBM5M",
			"https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M?si=abc",
		} {
			if got := PlaylistKey(s, ref); got != "spotify:37i9dQZF1DXcBWIGoYBM5M" {
				t.Errorf("PlaylistKey(%q) = %q", ref, got)
			}
		}
	})

	t.Run("OtherSourcesKeepRef", func(t *testing.T) {
		if got := PlaylistKey(FileTrackSource{}, " mix.csv "); got != "file:mix.csv" {
			t.Errorf("unexpected key %q", got)
		}
	})
}
