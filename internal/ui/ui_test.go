package ui

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/sp2yt/internal/models"
	"github.com/desertthunder/sp2yt/internal/tasks"
)

func finalSnapshot() models.Snapshot {
	found := models.NewFound(models.Found{VideoID: "abc123", Title: "Yellow"})
	missing := models.NewNotFound(models.ReasonNoCandidates, "")
	stats := models.Stats{Total: 2, Processed: 2, Found: 1, Failed: 1}
	return models.Snapshot{
		ID:      "job_1",
		Status:  models.JobCompleted,
		Outcome: models.OutcomeCompletedWithFailures,
		Stats:   stats,
		Tracks:  []models.Track{{Name: "Yellow", Artist: "Coldplay"}, {Name: "Nope", Artist: "Nobody"}},
		Results: []models.MatchResult{found, missing},
	}
}

func TestModel(t *testing.T) {
	t.Run("runs the conversion and shows results", func(t *testing.T) {
		snap := finalSnapshot()
		m := NewModel(context.Background(), "Converting mix", func(ctx context.Context, progress chan<- tasks.ProgressUpdate) models.Snapshot {
			progress <- tasks.ProgressUpdate{Phase: tasks.MatchBatch, Step: 1, Total: 2, Message: "batch 1"}
			return snap
		})
		m.Update(tea.WindowSizeMsg{Width: 80, Height: 40})

		cmd := m.start()
		msg := cmd()
		m.Update(msg)
		if m.progress.Step != 1 {
			t.Fatalf("expected progress update, got %+v", m.progress)
		}
		if view := m.View(); !strings.Contains(view, "Matching tracks (1/2)") || !strings.Contains(view, "batch 1") {
			t.Errorf("expected progress view, got %q", view)
		}

		m.Update(m.waitForProgress()())
		if m.view != ResultView {
			t.Fatalf("expected result view, got %v", m.view)
		}
		if m.Snapshot().ID != "job_1" {
			t.Errorf("expected final snapshot, got %+v", m.Snapshot())
		}

		view := m.View()
		for _, want := range []string{"completed with failures", "Matched 1/2", "watch_videos?video_ids=abc123", "Yellow"} {
			if !strings.Contains(view, want) {
				t.Errorf("expected %q in result view, got %q", want, view)
			}
		}
	})

	t.Run("esc cancels the conversion", func(t *testing.T) {
		m := NewModel(context.Background(), "t", func(ctx context.Context, _ chan<- tasks.ProgressUpdate) models.Snapshot {
			<-ctx.Done()
			return models.Snapshot{ID: "job_2", Status: models.JobProcessing}
		})
		cmd := m.start()

		m.Update(tea.KeyMsg{Type: tea.KeyEsc})
		if !m.stopping {
			t.Error("expected stopping flag")
		}
		if !strings.Contains(m.View(), "Stopping") {
			t.Error("expected stopping notice")
		}

		m.Update(cmd())
		if m.Snapshot().ID != "job_2" {
			t.Errorf("expected snapshot after cancel, got %+v", m.Snapshot())
		}
	})

	t.Run("q quits", func(t *testing.T) {
		m := NewModel(context.Background(), "t", func(ctx context.Context, _ chan<- tasks.ProgressUpdate) models.Snapshot {
			<-ctx.Done()
			return models.Snapshot{}
		})
		m.start()

		_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
		if cmd == nil {
			t.Fatal("expected quit command")
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Error("expected tea.QuitMsg")
		}
		if m.ctx.Err() == nil {
			t.Error("expected context to be cancelled")
		}
	})
}

func TestResultItem(t *testing.T) {
	snap := finalSnapshot()
	items := resultItems(snap.TrackResults())

	found := items[0].(resultItem)
	if !strings.HasPrefix(found.Title(), "✓ 1.") || !strings.Contains(found.Description(), "abc123") {
		t.Errorf("unexpected found item %q / %q", found.Title(), found.Description())
	}

	missing := items[1].(resultItem)
	if !strings.HasPrefix(missing.Title(), "✗ 2.") || missing.Description() != "no_candidates" {
		t.Errorf("unexpected missing item %q / %q", missing.Title(), missing.Description())
	}
}

func TestPaletteHeadline(t *testing.T) {
	tests := []struct {
		outcome models.Outcome
		want    string
	}{
		{models.OutcomeCompleted, "Conversion complete"},
		{models.OutcomeFailed, "Conversion failed"},
		{models.OutcomeStoppedEarly, "Conversion stopped early"},
		{models.OutcomeCompletedWithFailures, "Conversion completed with failures"},
	}
	for _, tt := range tests {
		t.Run(string(tt.outcome), func(t *testing.T) {
			if got := styles.Headline(tt.outcome); !strings.Contains(got, tt.want) {
				t.Errorf("expected %q in %q", tt.want, got)
			}
		})
	}
}
