// package formatter renders conversion results as watch URLs and exports them to JSON, CSV, Markdown or plain text
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/desertthunder/sp2yt/internal/models"
	"github.com/desertthunder/sp2yt/internal/shared"
)

const (
	// WatchVideosURL builds an anonymous playlist from comma separated video ids.
	WatchVideosURL = "https://www.youtube.com/watch_videos?video_ids="
	// MaxWatchIDs is the most ids YouTube accepts in one watch_videos URL.
	MaxWatchIDs = 50
)

// Formats lists the export formats understood by [Export].
var Formats = []string{"json", "csv", "markdown", "txt"}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// MatchedIDs returns the video id of every found result in index order. It never truncates.
func MatchedIDs(results []models.TrackResult) []string {
	ids := make([]string, 0, len(results))
	for _, r := range results {
		if id := r.Result.VideoID(); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// WatchURLs chunks ids into watch_videos URLs of at most size ids each. A size outside
// 1..[MaxWatchIDs] uses [MaxWatchIDs].
func WatchURLs(ids []string, size int) []string {
	if size <= 0 || size > MaxWatchIDs {
		size = MaxWatchIDs
	}
	urls := make([]string, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		urls = append(urls, WatchVideosURL+strings.Join(ids[start:end], ","))
	}
	return urls
}

// Report is the exported form of one conversion.
type Report struct {
	Name       string               `json:"name"`
	Outcome    models.Outcome       `json:"outcome,omitempty"`
	Stats      models.Stats         `json:"stats"`
	WatchURLs  []string             `json:"watch_urls"`
	MatchedIDs []string             `json:"matched_ids"`
	Results    []models.TrackResult `json:"results"`
}

// NewReport builds a report from a job snapshot.
func NewReport(name string, snap models.Snapshot) Report {
	r := ReportFromResults(name, snap.TrackResults())
	r.Outcome = snap.Outcome
	r.Stats.Total = snap.Stats.Total
	return r
}

// ReportFromResults builds a report from stored results, recomputing the counters.
func ReportFromResults(name string, results []models.TrackResult) Report {
	var stats models.Stats
	for _, r := range results {
		stats.Record(r.Result)
	}
	stats.Total = len(results)

	ids := MatchedIDs(results)
	return Report{
		Name:       name,
		Stats:      stats,
		WatchURLs:  WatchURLs(ids, MaxWatchIDs),
		MatchedIDs: ids,
		Results:    results,
	}
}

// ExportToJSON renders the report as indented JSON.
func ExportToJSON(r Report) ([]byte, error) {
	return shared.MarshalJSON(r, true)
}

// ExportToCSV renders one row per track with columns: Index, Artist, Title, Status, VideoID,
// VideoTitle, Channel, Official, Query, Reason, Error
func ExportToCSV(r Report) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Index", "Artist", "Title", "Status", "VideoID", "VideoTitle", "Channel", "Official", "Query", "Reason", "Error"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, tr := range r.Results {
		record := []string{strconv.Itoa(tr.Index), tr.Track.Artist, tr.Track.Name}
		if f, ok := tr.Result.Found(); ok {
			record = append(record, "found", f.VideoID, f.Title, f.ChannelName, strconv.FormatBool(f.IsOfficial), f.MatchedQuery, "", "")
		} else {
			nf, _ := tr.Result.NotFound()
			record = append(record, "not_found", "", "", "", "", "", string(nf.Reason), nf.LastError)
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

// ExportToMarkdown renders a summary, the watch links and a numbered track list.
func ExportToMarkdown(r Report) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", r.Name)
	fmt.Fprintf(&buf, "**Tracks**: %d\n", r.Stats.Total)
	fmt.Fprintf(&buf, "**Found**: %d (%.1f%%)\n", r.Stats.Found, r.Stats.SuccessRate())
	fmt.Fprintf(&buf, "**Failed**: %d\n", r.Stats.Failed)
	if r.Outcome != "" {
		fmt.Fprintf(&buf, "**Outcome**: %s\n", r.Outcome)
	}
	buf.WriteString("\n")

	if len(r.WatchURLs) > 0 {
		buf.WriteString("## Watch\n\n")
		for i, u := range r.WatchURLs {
			fmt.Fprintf(&buf, "- [Part %d](%s)\n", i+1, u)
		}
		buf.WriteString("\n")
	}

	buf.WriteString("## Tracks\n\n")
	for _, tr := range r.Results {
		if f, ok := tr.Result.Found(); ok {
			official := ""
			if f.IsOfficial {
				official = " (official)"
			}
			fmt.Fprintf(&buf, "%d. %s - %s → [%s](https://www.youtube.com/watch?v=%s)%s\n", tr.Index+1, tr.Track.Artist, tr.Track.Name, f.Title, f.VideoID, official)
			continue
		}
		fmt.Fprintf(&buf, "%d. %s - %s → not found (%s)\n", tr.Index+1, tr.Track.Artist, tr.Track.Name, tr.Result.Reason())
	}
	return buf.Bytes(), nil
}

// ExportToText renders the watch URLs followed by the unmatched tracks.
func ExportToText(r Report) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Playlist: %s\n", r.Name)
	fmt.Fprintf(&buf, "Found: %d/%d\n\n", r.Stats.Found, r.Stats.Total)

	for _, u := range r.WatchURLs {
		buf.WriteString(u + "\n")
	}

	var missing []models.TrackResult
	for _, tr := range r.Results {
		if !tr.Result.IsFound() {
			missing = append(missing, tr)
		}
	}
	if len(missing) > 0 {
		buf.WriteString("\nNot found:\n")
		for _, tr := range missing {
			fmt.Fprintf(&buf, "%d. %s - %s (%s)\n", tr.Index+1, tr.Track.Artist, tr.Track.Name, tr.Result.Reason())
		}
	}
	return buf.Bytes(), nil
}

// Extension returns the file extension for format.
func Extension(format string) (string, error) {
	switch strings.ToLower(format) {
	case "", "json":
		return ".json", nil
	case "csv":
		return ".csv", nil
	case "markdown", "md":
		return ".md", nil
	case "txt", "text":
		return ".txt", nil
	default:
		return "", fmt.Errorf("%w: unknown format %q (want one of %s)", shared.ErrInvalidArgument, format, strings.Join(Formats, ", "))
	}
}

// Export renders r in format and returns the bytes with the file extension for that format.
func Export(r Report, format string) ([]byte, string, error) {
	ext, err := Extension(format)
	if err != nil {
		return nil, "", err
	}

	var data []byte
	switch ext {
	case ".csv":
		data, err = ExportToCSV(r)
	case ".md":
		data, err = ExportToMarkdown(r)
	case ".txt":
		data, err = ExportToText(r)
	default:
		data, err = ExportToJSON(r)
	}
	return data, ext, err
}

// FileName derives a safe base file name from a report name.
func FileName(name string) string {
	base := strings.Trim(unsafeName.ReplaceAllString(name, "_"), "_")
	if base == "" {
		return "conversion"
	}
	return base
}

// WriteExport writes r in format to path and returns the path written.
//
// Defaults to {FileName(r.Name)}{ext} in the working directory.
func WriteExport(r Report, format, path string) (string, error) {
	data, ext, err := Export(r, format)
	if err != nil {
		return "", err
	}
	if path == "" {
		path = FileName(r.Name) + ext
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s export: %w", format, err)
	}
	return path, nil
}
