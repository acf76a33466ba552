// YouTube results-page [Searcher] implementation
//
// Scrapes the unauthenticated search results page and decodes the embedded ytInitialData blob.
// No API key or account is involved.
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/desertthunder/sp2yt/internal/shared"
)

const (
	defaultSearchURL = "https://www.youtube.com/results"
	defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0 Safari/537.36"

	initialDataMarker = "var ytInitialData = "
	maxPageBytes      = 8 << 20
)

type ytText struct {
	SimpleText string `json:"simpleText"`
	Runs       []struct {
		Text string `json:"text"`
	} `json:"runs"`
}

func (t ytText) String() string {
	if t.SimpleText != "" {
		return t.SimpleText
	}
	var b strings.Builder
	for _, r := range t.Runs {
		b.WriteString(r.Text)
	}
	return b.String()
}

type ytVideoRenderer struct {
	VideoID                  string `json:"videoId"`
	Title                    ytText `json:"title"`
	OwnerText                ytText `json:"ownerText"`
	PublishedTimeText        ytText `json:"publishedTimeText"`
	DetailedMetadataSnippets []struct {
		SnippetText ytText `json:"snippetText"`
	} `json:"detailedMetadataSnippets"`
	Thumbnail struct {
		Thumbnails []struct {
			URL string `json:"url"`
		} `json:"thumbnails"`
	} `json:"thumbnail"`
}

type ytInitialData struct {
	Contents struct {
		TwoColumnSearchResultsRenderer struct {
			PrimaryContents struct {
				SectionListRenderer struct {
					Contents []struct {
						ItemSectionRenderer struct {
							Contents []struct {
								VideoRenderer *ytVideoRenderer `json:"videoRenderer"`
							} `json:"contents"`
						} `json:"itemSectionRenderer"`
					} `json:"contents"`
				} `json:"sectionListRenderer"`
			} `json:"primaryContents"`
		} `json:"twoColumnSearchResultsRenderer"`
	} `json:"contents"`
}

// YouTubeScraper implements [Searcher] by fetching the public search results page.
type YouTubeScraper struct {
	searchURL  string
	userAgent  string
	httpClient *http.Client
}

// NewYouTubeScraper creates a scraper. Empty arguments fall back to the public endpoint and a desktop user agent.
//
// Redirects are never followed: a redirected search (consent wall, throttling page) is reported as [shared.ErrRedirect].
func NewYouTubeScraper(searchURL, userAgent string) *YouTubeScraper {
	if searchURL == "" {
		searchURL = defaultSearchURL
	}
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	return &YouTubeScraper{
		searchURL: searchURL,
		userAgent: userAgent,
		httpClient: &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return shared.ErrRedirect
			},
		},
	}
}

// Name returns the service name.
func (y *YouTubeScraper) Name() string {
	return "YouTube"
}

// Search fetches the results page for query and returns up to maxResults videos.
//
// Timeouts are the caller's concern; cancel ctx to abandon the request.
func (y *YouTubeScraper) Search(ctx context.Context, query string, maxResults int) ([]RawVideo, error) {
	endpoint := y.searchURL + "?" + url.Values{"search_query": {query}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", y.userAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := y.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, shared.ErrRedirect) {
			return nil, shared.ErrRedirect
		}
		return nil, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: search page status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	page, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}

	return ParseResultsPage(page, maxResults)
}

// ParseResultsPage extracts video results from a raw results page.
//
// A maxResults of zero or less returns every video on the page.
func ParseResultsPage(page []byte, maxResults int) ([]RawVideo, error) {
	start := bytes.Index(page, []byte(initialDataMarker))
	if start < 0 {
		return nil, fmt.Errorf("%w: ytInitialData not found", shared.ErrMalformed)
	}

	// The decoder stops at the end of the first JSON value, ignoring the trailing script.
	var data ytInitialData
	dec := json.NewDecoder(bytes.NewReader(page[start+len(initialDataMarker):]))
	if err := dec.Decode(&data); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrMalformed, err)
	}

	videos := []RawVideo{}
	sections := data.Contents.TwoColumnSearchResultsRenderer.PrimaryContents.SectionListRenderer.Contents
	for _, section := range sections {
		for _, item := range section.ItemSectionRenderer.Contents {
			v := item.VideoRenderer
			if v == nil || v.VideoID == "" {
				continue
			}

			video := RawVideo{
				ID:          v.VideoID,
				Title:       v.Title.String(),
				Channel:     v.OwnerText.String(),
				PublishedAt: v.PublishedTimeText.String(),
			}
			if len(v.DetailedMetadataSnippets) > 0 {
				video.Description = v.DetailedMetadataSnippets[0].SnippetText.String()
			}
			if thumbs := v.Thumbnail.Thumbnails; len(thumbs) > 0 {
				video.Thumbnail = thumbs[len(thumbs)-1].URL
			}

			videos = append(videos, video)
			if maxResults > 0 && len(videos) >= maxResults {
				return videos, nil
			}
		}
	}

	return videos, nil
}
