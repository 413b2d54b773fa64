package tui

import (
	"github.com/Veraticus/fraudwatch/internal/feed"
)

// feedEventMsg carries one feed change into the update loop.
type feedEventMsg struct {
	event feed.Event
}

// feedClosedMsg is sent once the subscription channel closes.
type feedClosedMsg struct{}

// submitErrMsg reports a submission that never reached the feed.
type submitErrMsg struct {
	err error
}

// Pane identifies a dashboard pane.
type Pane int

const (
	PaneFeed Pane = iota
	PaneAlerts
)
