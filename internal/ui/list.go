package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/sp2yt/internal/models"
)

var _ list.Item = resultItem{}

// resultItem wraps [models.TrackResult] to implement [list.Item].
type resultItem struct {
	result models.TrackResult
}

func (i resultItem) FilterValue() string { return i.result.Track.String() }

func (i resultItem) Title() string {
	mark := "✗"
	if i.result.Result.IsFound() {
		mark = "✓"
	}
	return fmt.Sprintf("%s %d. %s", mark, i.result.Index+1, i.result.Track)
}

func (i resultItem) Description() string {
	if f, ok := i.result.Result.Found(); ok {
		desc := fmt.Sprintf("%s • %s", f.VideoID, f.Title)
		if f.IsOfficial {
			desc += " • official"
		}
		return desc
	}
	nf, _ := i.result.Result.NotFound()
	if nf.LastError != "" {
		return fmt.Sprintf("%s: %s", nf.Reason, nf.LastError)
	}
	return string(nf.Reason)
}

func resultItems(results []models.TrackResult) []list.Item {
	items := make([]list.Item, len(results))
	for i, r := range results {
		items[i] = resultItem{result: r}
	}
	return items
}
