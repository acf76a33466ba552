package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/desertthunder/sp2yt/internal/shared"
	tu "github.com/desertthunder/sp2yt/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBulkConvert(t *testing.T) {
	orch := NewOrchestrator(&fakeMatcher{}, testConfig(), nil)

	t.Run("Success", func(t *testing.T) {
		dir := t.TempDir()
		source := &tu.MockTrackSource{Tracks: tu.Tracks(3)}
		progress := make(chan ProgressUpdate, 100)

		result, err := orch.BulkConvert(context.Background(), progress, source, []string{"playlist-a", "playlist-b"}, BulkConvertOpts{
			Format:    "csv",
			OutputDir: dir,
			RateLimit: 100,
		})
		require.NoError(t, err)

		assert.Equal(t, 2, result.TotalPlaylists)
		assert.Equal(t, 2, result.Successful)
		assert.Equal(t, 0, result.Failed)
		assert.ElementsMatch(t, []string{"playlist-a", "playlist-b"}, source.Refs)

		for _, res := range result.Results {
			require.True(t, res.Success, res.ErrorMessage)
			require.Len(t, res.Files, 1)
			tu.AssertFileExists(t, res.Files[0])
			assert.Equal(t, ".csv", filepath.Ext(res.Files[0]))
			assert.Equal(t, 3, res.Stats.Found)
		}

		tu.AssertFileExists(t, result.ManifestPath)
		var manifest BulkConvertResult
		require.NoError(t, json.Unmarshal([]byte(tu.MustReadFile(t, result.ManifestPath)), &manifest))
		assert.Equal(t, 2, manifest.Successful)

		updates := drain(progress)
		assert.Len(t, phases(updates, FetchTracks), 2)
		assert.Len(t, phases(updates, ExportPlaylist), 2)
	})

	t.Run("FetchFailures", func(t *testing.T) {
		dir := t.TempDir()
		source := &tu.MockTrackSource{Err: shared.ErrPlaylistNotFound}

		result, err := orch.BulkConvert(context.Background(), nil, source, []string{"gone"}, BulkConvertOpts{OutputDir: dir, RateLimit: 100})
		require.NoError(t, err)

		assert.Equal(t, 1, result.Failed)
		require.Len(t, result.Results, 1)
		assert.False(t, result.Results[0].Success)
		assert.ErrorIs(t, result.Results[0].Error, shared.ErrPlaylistNotFound)
		tu.AssertFileExists(t, filepath.Join(dir, "manifest.json"))
	})

	t.Run("UnknownFormat", func(t *testing.T) {
		_, err := orch.BulkConvert(context.Background(), nil, &tu.MockTrackSource{}, []string{"x"}, BulkConvertOpts{Format: "xml", OutputDir: t.TempDir()})
		assert.ErrorIs(t, err, shared.ErrInvalidArgument)
	})

	t.Run("NilSource", func(t *testing.T) {
		_, err := orch.BulkConvert(context.Background(), nil, nil, nil, BulkConvertOpts{})
		assert.ErrorIs(t, err, shared.ErrServiceUnavailable)
	})

	t.Run("DefaultOutputDir", func(t *testing.T) {
		tempDir := t.TempDir()
		originalDir := tu.MustGetwd(t)
		tu.MustChdir(t, tempDir)
		defer tu.MustChdir(t, originalDir)

		result, err := orch.BulkConvert(context.Background(), nil, &tu.MockTrackSource{Tracks: tu.Tracks(1)}, []string{"p"}, BulkConvertOpts{RateLimit: 100})
		require.NoError(t, err)
		assert.Regexp(t, `^sp2yt_export_\d+$`, result.OutputDirectory)
		tu.AssertDirExists(t, result.OutputDirectory)
	})

	t.Run("Cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		result, err := orch.BulkConvert(ctx, nil, &tu.MockTrackSource{Tracks: tu.Tracks(1)}, []string{"p"}, BulkConvertOpts{OutputDir: t.TempDir()})
		assert.True(t, errors.Is(err, context.Canceled))
		require.NotNil(t, result)
		_, statErr := os.Stat(result.ManifestPath)
		assert.NoError(t, statErr)
	})
}
