package repositories

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/sp2yt/internal/models"
	"github.com/desertthunder/sp2yt/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := shared.RunMigrations(context.Background(), db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

func sampleResults() []models.TrackResult {
	return []models.TrackResult{
		{
			Index: 0,
			Track: models.Track{Name: "Yellow", Artist: "Coldplay"},
			Result: models.NewFound(models.Found{
				VideoID:      "yKNxeF4KMsY",
				Title:        "Coldplay - Yellow (Official Video)",
				ChannelName:  "Coldplay",
				IsOfficial:   true,
				MatchedQuery: "Coldplay Yellow official video",
			}),
		},
		{
			Index:  1,
			Track:  models.Track{Name: "Unfindable", Artist: "Nobody"},
			Result: models.NewNotFound(models.ReasonAllRejected, ""),
		},
	}
}

func TestConversionRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("SaveAndLoad", func(t *testing.T) {
		repo := NewConversionRepository(setupTestDB(t))

		if err := repo.Save(ctx, "spotify:abc", sampleResults()); err != nil {
			t.Fatalf("failed to save conversion: %v", err)
		}

		results, ok, err := repo.Load(ctx, "spotify:abc")
		if err != nil {
			t.Fatalf("failed to load conversion: %v", err)
		}
		if !ok {
			t.Fatal("expected conversion to be found")
		}
		if len(results) != 2 {
			t.Fatalf("expected 2 results, got %d", len(results))
		}

		found, isFound := results[0].Result.Found()
		if !isFound {
			t.Fatal("expected first result to be found")
		}
		if found.VideoID != "yKNxeF4KMsY" || !found.IsOfficial {
			t.Errorf("unexpected found result: %+v", found)
		}
		if results[0].Track.Artist != "Coldplay" {
			t.Errorf("expected artist Coldplay, got %s", results[0].Track.Artist)
		}
		if results[1].Result.Reason() != models.ReasonAllRejected {
			t.Errorf("expected all_rejected, got %s", results[1].Result.Reason())
		}
	})

	t.Run("LoadMissing", func(t *testing.T) {
		repo := NewConversionRepository(setupTestDB(t))

		results, ok, err := repo.Load(ctx, "missing")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ok || results != nil {
			t.Errorf("expected nothing for a missing key, got %v", results)
		}
	})

	t.Run("SaveReplaces", func(t *testing.T) {
		repo := NewConversionRepository(setupTestDB(t))

		if err := repo.Save(ctx, "k", sampleResults()); err != nil {
			t.Fatalf("failed to save conversion: %v", err)
		}
		if err := repo.Save(ctx, "k", sampleResults()[:1]); err != nil {
			t.Fatalf("failed to resave conversion: %v", err)
		}

		results, _, err := repo.Load(ctx, "k")
		if err != nil {
			t.Fatalf("failed to load conversion: %v", err)
		}
		if len(results) != 1 {
			t.Errorf("expected the second save to replace the tracks, got %d", len(results))
		}
	})

	t.Run("WindowedIndexes", func(t *testing.T) {
		repo := NewConversionRepository(setupTestDB(t))
		results := sampleResults()
		results[0].Index, results[1].Index = 100, 101

		if err := repo.Save(ctx, "k", results); err != nil {
			t.Fatalf("failed to save conversion: %v", err)
		}
		loaded, _, _ := repo.Load(ctx, "k")
		if loaded[0].Index != 100 || loaded[1].Index != 101 {
			t.Errorf("expected positions to survive, got %d and %d", loaded[0].Index, loaded[1].Index)
		}
	})

	t.Run("EmptyKey", func(t *testing.T) {
		repo := NewConversionRepository(setupTestDB(t))
		if err := repo.Save(ctx, "", sampleResults()); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewConversionRepository(db)

		if err := repo.Save(ctx, "k", sampleResults()); err != nil {
			t.Fatalf("failed to save conversion: %v", err)
		}
		if err := repo.Delete(ctx, "k"); err != nil {
			t.Fatalf("failed to delete conversion: %v", err)
		}

		if _, ok, _ := repo.Load(ctx, "k"); ok {
			t.Error("conversion should be gone after delete")
		}

		var count int
		if err := db.QueryRow("SELECT COUNT(*) FROM conversion_tracks").Scan(&count); err != nil {
			t.Fatalf("failed to count tracks: %v", err)
		}
		if count != 0 {
			t.Errorf("expected tracks to cascade, %d remain", count)
		}

		if err := repo.Delete(ctx, "k"); !errors.Is(err, shared.ErrConversionNotFound) {
			t.Errorf("expected ErrConversionNotFound, got %v", err)
		}
	})

	t.Run("ListAndPrune", func(t *testing.T) {
		repo := NewConversionRepository(setupTestDB(t))
		base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

		repo.now = func() time.Time { return base }
		if err := repo.Save(ctx, "old", sampleResults()); err != nil {
			t.Fatalf("failed to save old conversion: %v", err)
		}
		repo.now = func() time.Time { return base.Add(48 * time.Hour) }
		if err := repo.Save(ctx, "new", sampleResults()[:1]); err != nil {
			t.Fatalf("failed to save new conversion: %v", err)
		}

		list, err := repo.List(ctx)
		if err != nil {
			t.Fatalf("failed to list conversions: %v", err)
		}
		if len(list) != 2 || list[0].PlaylistKey != "new" {
			t.Fatalf("expected newest first, got %+v", list)
		}
		if list[1].TrackCount != 2 || list[1].FoundCount != 1 {
			t.Errorf("unexpected counts: %+v", list[1])
		}

		removed, err := repo.Prune(ctx, base.Add(24*time.Hour))
		if err != nil {
			t.Fatalf("failed to prune: %v", err)
		}
		if removed != 1 {
			t.Errorf("expected 1 pruned, got %d", removed)
		}
		if _, ok, _ := repo.Load(ctx, "old"); ok {
			t.Error("old conversion should be pruned")
		}
	})

	t.Run("ClosedDatabase", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewConversionRepository(db)
		db.Close()

		if err := repo.Save(ctx, "k", sampleResults()); err == nil {
			t.Error("expected error saving to a closed database")
		}
		if _, _, err := repo.Load(ctx, "k"); err == nil {
			t.Error("expected error loading from a closed database")
		}
		if _, err := repo.List(ctx); err == nil {
			t.Error("expected error listing a closed database")
		}
	})
}
