package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Veraticus/fraudwatch/internal/model"
)

const (
	// chrome is the number of rows used by the header, the error line, the
	// footer and the pane borders.
	chrome         = 8
	compactWidth   = 80
	emptyFeedText  = "Nenhuma transação ainda. Pressione l ou f."
	emptyAlertText = "Nenhum alerta de fraude."
)

// View renders the UI.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	header := lipgloss.JoinVertical(lipgloss.Left,
		m.theme.Title.Render("Monitor de Fraudes"),
		m.renderStats(),
	)

	var body string
	if m.width < compactWidth {
		w := max(m.width-2, 20)
		body = lipgloss.JoinVertical(lipgloss.Left,
			m.renderPane(PaneFeed, w),
			m.renderPane(PaneAlerts, w),
		)
	} else {
		w := m.width/2 - 2
		body = lipgloss.JoinHorizontal(lipgloss.Top,
			m.renderPane(PaneFeed, w),
			m.renderPane(PaneAlerts, w),
		)
	}

	errLine := ""
	if m.lastErr != "" {
		errLine = m.theme.StatusError.Render(m.lastErr)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		body,
		errLine,
		m.help.View(m.keymap),
	)
}

func (m Model) renderStats() string {
	s := m.stats
	parts := []string{
		m.theme.Faint.Render(fmt.Sprintf("Total %d", s.Total)),
		m.theme.StatusPending.Render(fmt.Sprintf("Pendentes %d", s.Pending)),
		m.theme.StatusSuccess.Render(fmt.Sprintf("Aprovadas %d", s.Approved)),
		m.theme.StatusError.Render(fmt.Sprintf("Alertas %d", s.Flagged)),
		m.theme.StatusWarning.Render(fmt.Sprintf("Erros %d", s.Errored)),
	}
	return strings.Join(parts, "  ")
}

func (m Model) renderPane(p Pane, width int) string {
	title := "Feed de Transações"
	list := m.entries
	empty := emptyFeedText
	if p == PaneAlerts {
		title = "Alertas de Fraude"
		list = m.alerts
		empty = emptyAlertText
	}

	style := m.theme.Pane
	if p == m.pane {
		style = m.theme.ActivePane
	}

	rows := m.paneRows()
	lines := make([]string, 0, rows+1)
	lines = append(lines, m.theme.Bold.Render(title))

	if len(list) == 0 {
		lines = append(lines, m.theme.Faint.Render(empty))
	} else {
		start := min(m.offsets[p], len(list))
		end := min(start+rows, len(list))
		for _, e := range list[start:end] {
			lines = append(lines, m.renderEntry(e, p, width-2))
		}
	}

	return style.Width(width).Render(strings.Join(lines, "\n"))
}

func (m Model) renderEntry(e model.FeedEntry, p Pane, width int) string {
	line := e.Describe()
	if p == PaneAlerts && e.Result != nil {
		line += " " + m.theme.ForRisk(e.Result.RiskLevel).Render(string(e.Result.RiskLevel))
	}
	return m.theme.ForEntry(e).MaxWidth(width).Render(line)
}

func (m Model) paneRows() int {
	return max(m.height-chrome, 1)
}
