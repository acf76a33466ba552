package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/sp2yt/internal/formatter"
	"github.com/desertthunder/sp2yt/internal/models"
	"github.com/desertthunder/sp2yt/internal/tasks"
)

const progressBuffer = 64

// ViewState represents the current view in the TUI.
type ViewState int

const (
	ProgressView ViewState = iota
	ResultView
)

// RunFunc runs a conversion, reporting on progress, and returns its final snapshot.
type RunFunc func(ctx context.Context, progress chan<- tasks.ProgressUpdate) models.Snapshot

// Model represents the monitor state.
type Model struct {
	ctx    context.Context
	cancel context.CancelFunc
	run    RunFunc
	title  string

	view     ViewState
	width    int
	height   int
	progress tasks.ProgressUpdate
	snap     models.Snapshot
	started  time.Time
	stopping bool

	progressChan chan tasks.ProgressUpdate
	final        chan models.Snapshot

	bar     progress.Model
	spinner spinner.Model
	results list.Model
	help    help.Model
	keys    keyMap
}

// NewModel creates a monitor that runs fn once the program starts.
func NewModel(ctx context.Context, title string, fn RunFunc) *Model {
	ctx, cancel := context.WithCancel(ctx)
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return &Model{
		ctx:     ctx,
		cancel:  cancel,
		run:     fn,
		title:   title,
		view:    ProgressView,
		bar:     progress.New(progress.WithDefaultGradient()),
		spinner: sp,
		help:    help.New(),
		keys:    newKeyMap(),
	}
}

// Snapshot returns the final snapshot once the conversion has finished.
func (m *Model) Snapshot() models.Snapshot {
	return m.snap
}

// Init starts the conversion and the spinner.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.start(), m.spinner.Tick)
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.Width = max(msg.Width-4, 10)
		if m.view == ResultView {
			m.results.SetSize(msg.Width-4, m.listHeight())
		}
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case ProgressView:
			return m.handleProgressKeys(msg)
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case spinner.TickMsg:
		if m.view != ProgressView {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case Msg:
		switch msg.kind {
		case MsgProgressUpdate:
			m.progress = msg.data.(tasks.ProgressUpdate)
			return m, m.waitForProgress()
		case MsgConversionComplete:
			m.snap = msg.data.(models.Snapshot)
			m.view = ResultView
			m.cancel()
			m.results = list.New(resultItems(m.snap.TrackResults()), list.NewDefaultDelegate(), m.width-4, m.listHeight())
			m.results.Title = "Tracks"
			m.results.SetShowHelp(false)
			return m, nil
		}
	}

	if m.view == ResultView {
		var cmd tea.Cmd
		m.results, cmd = m.results.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case ProgressView:
		return m.renderProgress()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) handleProgressKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		m.cancel()
		return m, tea.Quit
	case key.Matches(msg, m.keys.cancel):
		m.stopping = true
		m.cancel()
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.results.FilterState() != list.Filtering && key.Matches(msg, m.keys.quit) {
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.results, cmd = m.results.Update(msg)
	return m, cmd
}

func (m *Model) start() tea.Cmd {
	m.progressChan = make(chan tasks.ProgressUpdate, progressBuffer)
	m.final = make(chan models.Snapshot, 1)
	m.started = time.Now()

	ch, final := m.progressChan, m.final
	go func() {
		final <- m.run(m.ctx, ch)
		close(ch)
	}()

	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	ch, final := m.progressChan, m.final
	return func() tea.Msg {
		update, ok := <-ch
		if !ok {
			return conversionCompleteMsg(<-final)
		}
		return progressUpdateMsg(update)
	}
}

func (m *Model) listHeight() int {
	return max(m.height-12, 5)
}

func (m *Model) renderProgress() string {
	var b strings.Builder
	b.WriteString(styles.title.Render(m.title))
	b.WriteString("\n")

	p := m.progress
	var phase string
	switch p.Phase {
	case tasks.FetchTracks:
		phase = "Fetching tracks..."
	case tasks.MatchBatch:
		phase = fmt.Sprintf("Matching tracks (%d/%d)", p.Step, p.Total)
	case tasks.Salvage:
		phase = "Salvaging a slow batch..."
	case tasks.RetryPass:
		phase = "Retrying unmatched tracks..."
	default:
		phase = "Starting..."
	}
	if m.stopping {
		phase = styles.stopped.Render("Stopping at the next batch boundary...")
	}
	fmt.Fprintf(&b, "%s %s\n\n", m.spinner.View(), phase)

	var pct float64
	if p.Total > 0 {
		pct = float64(p.Step) / float64(p.Total)
	}
	b.WriteString(m.bar.ViewAs(pct))
	b.WriteString("\n\n")

	stats := p.Data.Stats
	fmt.Fprintln(&b, styles.Stat("Found", stats.Found, styles.found))
	fmt.Fprintln(&b, styles.Stat("Failed", stats.Failed, styles.failed))
	fmt.Fprintf(&b, "%s%s\n", styles.label.Render("Elapsed"), time.Since(m.started).Round(time.Second))
	if eta := p.Data.Timing.EstimatedTimeRemaining; eta > 0 {
		fmt.Fprintf(&b, "%s%s\n", styles.label.Render("ETA"), eta.Round(time.Second))
	}
	if p.Message != "" {
		fmt.Fprintf(&b, "\n%s\n", styles.muted.Render(p.Message))
	}

	b.WriteString("\n")
	b.WriteString(m.help.ShortHelpView([]key.Binding{m.keys.cancel, m.keys.quit}))
	return b.String()
}

func (m *Model) renderResult() string {
	var b strings.Builder

	s := m.snap
	b.WriteString(styles.Headline(s.Outcome))
	fmt.Fprintf(&b, "\n\nMatched %d/%d (%.1f%%)", s.Stats.Found, s.Stats.Total, s.Stats.SuccessRate())
	if s.StopReason != models.StopNone {
		fmt.Fprintf(&b, " • stopped: %s", s.StopReason)
	}
	b.WriteString("\n")

	ids := formatter.MatchedIDs(s.TrackResults())
	for i, u := range formatter.WatchURLs(ids, formatter.MaxWatchIDs) {
		fmt.Fprintf(&b, "%s %s\n", styles.muted.Render(fmt.Sprintf("[%d]", i+1)), u)
	}

	b.WriteString("\n")
	b.WriteString(m.results.View())
	b.WriteString("\n")
	b.WriteString(m.help.ShortHelpView([]key.Binding{m.keys.up, m.keys.down, m.keys.filter, m.keys.quit}))
	return b.String()
}
