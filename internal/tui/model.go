// Package tui renders the live transaction feed and the fraud alert list in
// the terminal.
package tui

import (
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Veraticus/fraudwatch/internal/common"
	"github.com/Veraticus/fraudwatch/internal/feed"
	"github.com/Veraticus/fraudwatch/internal/model"
	"github.com/Veraticus/fraudwatch/internal/tui/themes"
)

// Simulator is the part of a simulation session the dashboard drives.
type Simulator interface {
	SimulateLegit() (feed.Handle, error)
	SimulateFraud() (feed.Handle, error)
	Feed() *feed.Feed
}

// Model holds the dashboard state.
type Model struct {
	theme    themes.Theme
	sim      Simulator
	feed     *feed.Feed
	events   <-chan feed.Event
	cancel   func()
	help     help.Model
	keymap   KeyMap
	config   Config
	lastErr  string
	entries  []model.FeedEntry
	alerts   []model.FeedEntry
	stats    feed.Stats
	offsets  [2]int
	width    int
	height   int
	pane     Pane
	showHelp bool
	quitting bool
}

// NewModel subscribes to the simulator's feed. Close releases the
// subscription.
func NewModel(sim Simulator, opts ...Option) Model {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	f := sim.Feed()
	events, cancel := f.Subscribe(cfg.EventBuffer)

	m := Model{
		theme:  cfg.Theme,
		sim:    sim,
		feed:   f,
		events: events,
		cancel: cancel,
		help:   help.New(),
		keymap: DefaultKeyMap(),
		config: cfg,
		width:  cfg.Width,
		height: cfg.Height,
	}
	m.refresh()
	return m
}

// Close ends the feed subscription.
func (m Model) Close() {
	m.cancel()
}

// Init starts listening for feed events.
func (m Model) Init() tea.Cmd {
	return waitForEvent(m.events)
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.clampOffsets()

	case feedEventMsg:
		m.refresh()
		if msg.event.Type == feed.EventCleared {
			m.offsets = [2]int{}
		}
		return m, waitForEvent(m.events)

	case feedClosedMsg:
		return m, nil

	case submitErrMsg:
		m.lastErr = common.Describe(msg.err)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keymap.ForceQuit), key.Matches(msg, m.keymap.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keymap.Legit):
		return m.submit(m.sim.SimulateLegit)

	case key.Matches(msg, m.keymap.Fraud):
		return m.submit(m.sim.SimulateFraud)

	case key.Matches(msg, m.keymap.Clear):
		m.feed.Clear()
		m.lastErr = ""
		m.offsets = [2]int{}
		m.refresh()

	case key.Matches(msg, m.keymap.Help):
		m.showHelp = !m.showHelp
		m.help.ShowAll = m.showHelp

	case key.Matches(msg, m.keymap.SwitchPane):
		m.pane = (m.pane + 1) % 2

	case key.Matches(msg, m.keymap.Up):
		if m.offsets[m.pane] > 0 {
			m.offsets[m.pane]--
		}

	case key.Matches(msg, m.keymap.Down):
		m.offsets[m.pane]++
		m.clampOffsets()
	}
	return m, nil
}

func (m Model) submit(fn func() (feed.Handle, error)) (tea.Model, tea.Cmd) {
	if _, err := fn(); err != nil {
		m.config.Logger.Warn("Submission failed", "error", err)
		return m, func() tea.Msg { return submitErrMsg{err: err} }
	}
	m.lastErr = ""
	m.refresh()
	return m, nil
}

func (m *Model) refresh() {
	m.entries = m.feed.Entries()
	m.alerts = m.feed.Alerts()
	m.stats = m.feed.Stats()
	m.clampOffsets()
}

func (m *Model) clampOffsets() {
	lists := [2][]model.FeedEntry{m.entries, m.alerts}
	for i, list := range lists {
		maxOffset := max(len(list)-m.paneRows(), 0)
		m.offsets[i] = min(max(m.offsets[i], 0), maxOffset)
	}
}

func waitForEvent(events <-chan feed.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return feedClosedMsg{}
		}
		return feedEventMsg{event: ev}
	}
}
