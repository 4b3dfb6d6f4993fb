package ui

import (
	"fmt"
	"strings"

	"charm.land/bubbles/v2/viewport"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/glamour"

	"github.com/aebaduq/arabsocial-chat/internal/domain"
	"github.com/aebaduq/arabsocial-chat/internal/session"
)

// loadMoreThreshold is how close to the top (in lines) scrolling has to get
// before the next older page is requested.
const loadMoreThreshold = 3

// MessageViewModel displays one room's timeline using a viewport and glamour
// for markdown.
type MessageViewModel struct {
	viewport viewport.Model
	renderer *glamour.TermRenderer
	selfID   string
	focused  bool
	width    int
	height   int

	roomID      string
	messages    []domain.Message
	state       domain.SessionState
	err         error
	hasMore     bool
	otherTyping bool
}

func NewMessageViewModel(selfID string) MessageViewModel {
	vp := viewport.New()
	return MessageViewModel{viewport: vp, selfID: selfID}
}

func (m MessageViewModel) Update(msg tea.Msg) (MessageViewModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "j":
			m.viewport.ScrollDown(1)
			return m, nil
		case "k":
			m.viewport.ScrollUp(1)
			return m, m.checkScrollTop()
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)

	var cmds []tea.Cmd
	if cmd != nil {
		cmds = append(cmds, cmd)
	}
	if scrollCmd := m.checkScrollTop(); scrollCmd != nil {
		cmds = append(cmds, scrollCmd)
	}
	return m, tea.Batch(cmds...)
}

// checkScrollTop returns a command to load older history when scrolled near
// the top.
func (m MessageViewModel) checkScrollTop() tea.Cmd {
	if m.roomID == "" || m.state != domain.SessionReady || m.err != nil || !m.hasMore {
		return nil
	}
	if m.viewport.YOffset() > loadMoreThreshold {
		return nil
	}
	roomID := m.roomID
	return func() tea.Msg {
		return LoadMoreMsg{RoomID: roomID}
	}
}

func (m MessageViewModel) View() string {
	contentH := m.height - 2
	if contentH < 0 {
		contentH = 0
	}

	content := truncateHeight(m.viewport.View(), contentH)

	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		Width(m.width).
		Height(m.height)
	style = applyBorderColor(style, m.focused)

	return style.Render(content)
}

func (m MessageViewModel) SetSize(w, h int) MessageViewModel {
	m.width = w
	m.height = h
	// Viewport inner: subtract border (2)
	vpW := w - 2
	vpH := h - 2
	if vpW < 1 {
		vpW = 1
	}
	if vpH < 1 {
		vpH = 1
	}
	m.viewport.SetWidth(vpW)
	m.viewport.SetHeight(vpH)
	m = m.recreateRenderer()
	m = m.renderContent(true)
	return m
}

func (m MessageViewModel) SetFocused(f bool) MessageViewModel {
	m.focused = f
	return m
}

// Clear empties the view when no room is open.
func (m MessageViewModel) Clear() MessageViewModel {
	m.roomID = ""
	m.messages = nil
	m.err = nil
	m.state = domain.SessionIdle
	m.otherTyping = false
	return m.renderContent(true)
}

// SetSnapshot renders snap. Older pages arriving at the head keep the lines
// the user is looking at in place; new messages at the tail follow the bottom
// only when the view was already there.
func (m MessageViewModel) SetSnapshot(snap session.Snapshot) MessageViewModel {
	switched := snap.RoomID != m.roomID
	prepended := !switched && isPrepend(m.messages, snap.Messages)
	follow := switched || m.viewport.AtBottom()

	oldTotal := m.viewport.TotalLineCount()
	oldOffset := m.viewport.YOffset()

	m.roomID = snap.RoomID
	m.messages = snap.Messages
	m.state = snap.State
	m.err = snap.Err
	m.hasMore = snap.Cursor.HasMore
	m.otherTyping = snap.OtherTyping

	switch {
	case prepended:
		m = m.renderContent(false)
		delta := m.viewport.TotalLineCount() - oldTotal
		if delta < 0 {
			delta = 0
		}
		m.viewport.SetYOffset(oldOffset + delta)
	case follow:
		m = m.renderContent(true)
	default:
		m = m.renderContent(false)
		m.viewport.SetYOffset(oldOffset)
	}
	return m
}

// LastFailed returns the client id of the newest failed optimistic message.
func (m MessageViewModel) LastFailed() (string, bool) {
	for i := len(m.messages) - 1; i >= 0; i-- {
		msg := m.messages[i]
		if msg.Optimistic() && msg.Status == domain.StatusFailed {
			return msg.ClientID, true
		}
	}
	return "", false
}

// isPrepend reports whether next is prev with older messages added in front.
func isPrepend(prev, next []domain.Message) bool {
	if len(prev) == 0 || len(next) <= len(prev) {
		return false
	}
	if next[0].ID == prev[0].ID {
		return false
	}
	for _, msg := range next {
		if msg.ID == prev[0].ID {
			return true
		}
	}
	return false
}

func (m MessageViewModel) recreateRenderer() MessageViewModel {
	wordWrap := m.viewport.Width() - 2
	if wordWrap < 10 {
		wordWrap = 10
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStylePath("dark"),
		glamour.WithWordWrap(wordWrap),
	)
	if err == nil {
		m.renderer = r
	}
	return m
}

func (m MessageViewModel) renderContent(gotoBottom bool) MessageViewModel {
	var b strings.Builder

	switch {
	case m.roomID == "":
		b.WriteString(noticeStyle.Render("Select a room to start chatting."))
	case m.state == domain.SessionLoading:
		b.WriteString(noticeStyle.Render("Loading messages..."))
	case m.state == domain.SessionLoadingMore:
		b.WriteString(noticeStyle.Render("Loading older messages...") + "\n")
	case m.err != nil:
		b.WriteString(failedStyle.Render(fmt.Sprintf("Could not load messages: %v (Ctrl+R to retry)", m.err)) + "\n")
	case !m.hasMore && len(m.messages) > 0:
		b.WriteString(daySeparatorStyle.Render("· beginning of conversation ·") + "\n")
	}

	var currentDate string
	for _, msg := range m.messages {
		ts := msg.CreatedAt.Local()
		msgDate := ts.Format("January 2, 2006")
		if msgDate != currentDate {
			if currentDate != "" {
				b.WriteString("\n")
			}
			sep := daySeparatorStyle.Render(fmt.Sprintf("───── %s ─────", msgDate))
			b.WriteString(sep + "\n")
			currentDate = msgDate
		}

		stamp := timeStyle.Render(ts.Format("15:04"))

		var name string
		if msg.SenderID == m.selfID {
			name = outNameStyle.Render("You:")
		} else {
			name = inNameStyle.Render(msg.SenderID + ":")
		}

		text := msg.Content
		suffix := statusSuffix(msg)
		if looksLikeMarkdown(text) {
			fmt.Fprintf(&b, "%s %s%s\n%s\n\n", stamp, name, suffix, m.renderMessageText(text))
		} else if strings.Contains(text, "\n") {
			fmt.Fprintf(&b, "%s %s%s\n%s\n\n", stamp, name, suffix, text)
		} else {
			fmt.Fprintf(&b, "%s %s %s%s\n", stamp, name, text, suffix)
		}
	}

	if m.otherTyping {
		b.WriteString("\n")
		b.WriteString(typingStyle.Render("typing..."))
	}

	// Wrap content to viewport width so long lines don't overflow
	wrapped := lipgloss.NewStyle().Width(m.viewport.Width()).Render(b.String())
	m.viewport.SetContent(wrapped)
	if gotoBottom {
		m.viewport.GotoBottom()
	}
	return m
}

func statusSuffix(msg domain.Message) string {
	if !msg.Optimistic() {
		return ""
	}
	switch msg.Status {
	case domain.StatusPending:
		return pendingStyle.Render(" (sending)")
	case domain.StatusFailed:
		return failedStyle.Render(" (failed: r resend, x discard)")
	}
	return ""
}

// looksLikeMarkdown is a cheap check for content worth sending through glamour.
func looksLikeMarkdown(text string) bool {
	if strings.Contains(text, "```") || strings.Contains(text, "**") || strings.Contains(text, "`") {
		return true
	}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "# ") || strings.HasPrefix(line, "## ") ||
			strings.HasPrefix(line, "- ") || strings.HasPrefix(line, "> ") {
			return true
		}
	}
	return isMultiLineMarkdown(text)
}

func (m MessageViewModel) renderMessageText(text string) string {
	if m.renderer == nil {
		return text
	}

	// Glamour collapses single newlines (standard markdown paragraph
	// continuation). Multi-line constructs (tables, fenced code) are rendered
	// as a whole; other blocks line by line to keep the sender's line breaks.
	blocks := strings.Split(text, "\n\n")
	renderedBlocks := make([]string, len(blocks))

	for i, block := range blocks {
		if block == "" {
			continue
		}

		if isMultiLineMarkdown(block) {
			renderedBlocks[i] = m.renderBlock(block)
			continue
		}
		lines := strings.Split(block, "\n")
		renderedLines := make([]string, len(lines))
		for j, line := range lines {
			if line != "" {
				renderedLines[j] = m.renderBlock(line)
			}
		}
		renderedBlocks[i] = strings.Join(renderedLines, "\n")
	}

	return strings.Join(renderedBlocks, "\n")
}

// renderBlock renders a single text block through glamour, trimming whitespace.
func (m MessageViewModel) renderBlock(text string) string {
	r, err := m.renderer.Render(text)
	if err != nil {
		return text
	}
	r = strings.TrimRight(r, "\n ")
	r = strings.TrimLeft(r, "\n")
	return r
}

// isMultiLineMarkdown returns true if the block is a multi-line markdown
// construct that must be rendered as a whole (tables, fenced code blocks).
func isMultiLineMarkdown(block string) bool {
	if !strings.Contains(block, "\n") {
		return false
	}
	trimmed := strings.TrimSpace(block)
	if strings.HasPrefix(trimmed, "```") {
		return true
	}
	// Tables: all lines contain pipes.
	for _, line := range strings.Split(trimmed, "\n") {
		if !strings.Contains(line, "|") {
			return false
		}
	}
	return true
}
