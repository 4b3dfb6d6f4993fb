package ui

import (
	"strings"
	"time"

	"charm.land/lipgloss/v2"

	"github.com/aebaduq/arabsocial-chat/internal/domain"
)

var (
	// Dark gray background matching the lipgloss example
	statusBarBg = lipgloss.Color("#353533")
	// Bright magenta for the status pill and time highlight
	statusPillBg    = lipgloss.Color("#FF5FAF")
	statusPillBgOff = lipgloss.Color("#6C5098")
	// Teal/cyan for the time pill
	statusTimeBg = lipgloss.Color("#6124DF")
)

type statusModel struct {
	conn      domain.ConnState
	errText   string
	roomTitle string
	userName  string
	width     int
}

func newStatusModel(userName string) statusModel {
	return statusModel{conn: domain.ConnDisconnected, userName: userName}
}

// SetWidth sets the full terminal width for the status bar.
func (m statusModel) SetWidth(w int) statusModel {
	m.width = w
	return m
}

func (m statusModel) SetConn(s domain.ConnState) statusModel {
	m.conn = s
	return m
}

// SetError shows text next to the room title until cleared with "".
func (m statusModel) SetError(text string) statusModel {
	m.errText = text
	return m
}

// SetRoomTitle updates the active room name shown on the left.
func (m statusModel) SetRoomTitle(title string) statusModel {
	m.roomTitle = title
	return m
}

// View renders a full-width status bar:
// [STATE pill] [room title] [error] ... [user] [time pill]
func (m statusModel) View() string {
	pillBg := statusPillBgOff
	if m.conn == domain.ConnConnected {
		pillBg = statusPillBg
	}
	pillStyle := lipgloss.NewStyle().
		Background(pillBg).
		Foreground(lipgloss.Color("#FFFFFF")).
		Bold(true).
		Padding(0, 1)
	pill := pillStyle.Render(strings.ToUpper(m.conn.String()))

	titleStyle := lipgloss.NewStyle().
		Background(statusBarBg).
		Foreground(lipgloss.Color("#FFFFFF")).
		Bold(true).
		Padding(0, 1)
	title := titleStyle.Render(m.roomTitle)

	left := pill + title
	if m.errText != "" {
		left += lipgloss.NewStyle().
			Background(statusBarBg).
			Foreground(lipgloss.Color("#FF8787")).
			Padding(0, 1).
			Render(m.errText)
	}

	timeStyle := lipgloss.NewStyle().
		Background(statusTimeBg).
		Foreground(lipgloss.Color("#FFFFFF")).
		Bold(true).
		Padding(0, 1)
	timePill := timeStyle.Render(time.Now().Format("15:04"))

	userStyle := lipgloss.NewStyle().
		Background(lipgloss.Color("#7B5EA7")).
		Foreground(lipgloss.Color("#FFFFFF")).
		Bold(true).
		Padding(0, 1)
	userPill := userStyle.Render(m.userName)

	right := userPill + timePill

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}
	filler := lipgloss.NewStyle().
		Background(statusBarBg).
		Render(strings.Repeat(" ", gap))

	barStyle := lipgloss.NewStyle().
		Background(statusBarBg).
		Width(m.width).
		MaxHeight(1)

	return barStyle.Render(left + filler + right)
}
