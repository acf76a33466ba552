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

const resultsPage = `<html><head><script>var ytInitialData = {"contents":{"twoColumnSearchResultsRenderer":{"primaryContents":{"sectionListRenderer":{"contents":[
{"itemSectionRenderer":{"contents":[
	{"adSlotRenderer":{}},
	{"videoRenderer":{"videoId":"yKNxeF4KMsY","title":{"runs":[{"text":"Coldplay - Yellow "},{"text":"(Official Video)"}]},
		"ownerText":{"runs":[{"text":"Coldplay"}]},
		"publishedTimeText":{"simpleText":"15 years ago"},
		"detailedMetadataSnippets":[{"snippetText":{"runs":[{"text":"Official video for Yellow"}]}}],
		"thumbnail":{"thumbnails":[{"url":"small.jpg"},{"url":"large.jpg"}]}}},
	{"videoRenderer":{"videoId":"","title":{"runs":[{"text":"broken"}]}}},
	{"videoRenderer":{"videoId":"abc123","title":{"simpleText":"Yellow (cover)"},"ownerText":{"runs":[{"text":"Someone"}]}}}
]}},
{"continuationItemRenderer":{}}
]}}}}};</script></head><body></body></html>`

func TestParseResultsPage(t *testing.T) {
	t.Run("Extracts Videos", func(t *testing.T) {
		videos, err := ParseResultsPage([]byte(resultsPage), 0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(videos) != 2 {
			t.Fatalf("expected 2 videos, got %d: %+v", len(videos), videos)
		}

		v := videos[0]
		if v.ID != "yKNxeF4KMsY" {
			t.Errorf("unexpected id %q", v.ID)
		}
		if v.Title != "Coldplay - Yellow (Official Video)" {
			t.Errorf("expected joined title runs, got %q", v.Title)
		}
		if v.Channel != "Coldplay" || v.PublishedAt != "15 years ago" {
			t.Errorf("unexpected channel/published: %+v", v)
		}
		if v.Description != "Official video for Yellow" {
			t.Errorf("unexpected description %q", v.Description)
		}
		if v.Thumbnail != "large.jpg" {
			t.Errorf("expected largest thumbnail, got %q", v.Thumbnail)
		}
		if videos[1].Title != "Yellow (cover)" {
			t.Errorf("expected simpleText title, got %q", videos[1].Title)
		}
	})

	t.Run("Respects Max Results", func(t *testing.T) {
		videos, err := ParseResultsPage([]byte(resultsPage), 1)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(videos) != 1 {
			t.Errorf("expected 1 video, got %d", len(videos))
		}
	})

	t.Run("Missing Blob", func(t *testing.T) {
		_, err := ParseResultsPage([]byte("<html>consent</html>"), 5)
		if !errors.Is(err, shared.ErrMalformed) {
			t.Errorf("expected ErrMalformed, got %v", err)
		}
	})

	t.Run("Truncated Blob", func(t *testing.T) {
		_, err := ParseResultsPage([]byte(`var ytInitialData = {"contents":{`), 5)
		if !errors.Is(err, shared.ErrMalformed) {
			t.Errorf("expected ErrMalformed, got %v", err)
		}
	})

	t.Run("No Results Is Empty Not Nil", func(t *testing.T) {
		videos, err := ParseResultsPage([]byte(`var ytInitialData = {"contents":{}};`), 5)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if videos == nil || len(videos) != 0 {
			t.Errorf("expected empty non-nil slice, got %#v", videos)
		}
	})
}

func TestYouTubeScraper(t *testing.T) {
	t.Run("Search", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if q := r.URL.Query().Get("search_query"); q != "coldplay yellow" {
				t.Errorf("unexpected query %q", q)
			}
			if r.Header.Get("User-Agent") == "" {
				t.Error("expected a user agent")
			}
			fmt.Fprint(w, resultsPage)
		}))
		defer server.Close()

		videos, err := NewYouTubeScraper(server.URL, "").Search(context.Background(), "coldplay yellow", 10)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(videos) != 2 {
			t.Errorf("expected 2 videos, got %d", len(videos))
		}
	})

	t.Run("Redirect", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/consent", http.StatusFound)
		}))
		defer server.Close()

		_, err := NewYouTubeScraper(server.URL, "").Search(context.Background(), "q", 5)
		if !errors.Is(err, shared.ErrRedirect) {
			t.Errorf("expected ErrRedirect, got %v", err)
		}
	})

	t.Run("Status Error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer server.Close()

		_, err := NewYouTubeScraper(server.URL, "").Search(context.Background(), "q", 5)
		if !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected ErrAPIRequest, got %v", err)
		}
	})

	t.Run("Defaults", func(t *testing.T) {
		y := NewYouTubeScraper("", "")
		if y.searchURL != defaultSearchURL || y.userAgent != defaultUserAgent {
			t.Errorf("unexpected defaults: %s %s", y.searchURL, y.userAgent)
		}
		if y.Name() != "YouTube" {
			t.Errorf("unexpected name %q", y.Name())
		}
	})
}
