package services

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/desertthunder/sp2yt/internal/models"
	"github.com/desertthunder/sp2yt/internal/shared"
)

// FileTrackSource reads tracks from local files: ".csv" files with name,artist columns,
// anything else as "Artist - Title" lines. Blank lines and lines starting with # are ignored.
type FileTrackSource struct{}

// Name returns the source name.
func (FileTrackSource) Name() string { return "file" }

// FetchTracks reads the file at path.
func (f FileTrackSource) FetchTracks(ctx context.Context, path string) ([]models.Track, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open track file: %w", err)
	}
	defer file.Close()

	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return ReadTrackCSV(file)
	}
	return ReadTrackLines(file)
}

// ReadTrackLines parses "Artist - Title" lines.
func ReadTrackLines(r io.Reader) ([]models.Track, error) {
	var tracks []models.Track
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		artist, title, ok := strings.Cut(text, " - ")
		if !ok || strings.TrimSpace(artist) == "" || strings.TrimSpace(title) == "" {
			return nil, fmt.Errorf("%w: line %d: expected \"Artist - Title\"", shared.ErrInvalidInput, line)
		}
		tracks = append(tracks, models.Track{Name: strings.TrimSpace(title), Artist: strings.TrimSpace(artist)})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read track file: %w", err)
	}
	return tracks, nil
}

// ReadTrackCSV parses a CSV with a header row containing "name" and "artist" columns.
func ReadTrackCSV(r io.Reader) ([]models.Track, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: missing CSV header: %v", shared.ErrInvalidInput, err)
	}

	nameCol, artistCol := -1, -1
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "name", "title", "track":
			nameCol = i
		case "artist", "artists":
			artistCol = i
		}
	}
	if nameCol < 0 || artistCol < 0 {
		return nil, fmt.Errorf("%w: CSV header needs name and artist columns", shared.ErrInvalidInput)
	}

	var tracks []models.Track
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV record: %w", err)
		}
		if nameCol >= len(record) || artistCol >= len(record) {
			continue
		}
		name, artist := strings.TrimSpace(record[nameCol]), strings.TrimSpace(record[artistCol])
		if name == "" {
			continue
		}
		tracks = append(tracks, models.Track{Name: name, Artist: artist})
	}
	return tracks, nil
}
