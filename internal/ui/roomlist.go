package ui

import (
	"fmt"
	"io"

	"charm.land/bubbles/v2/list"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/aebaduq/arabsocial-chat/internal/domain"
)

// roomItem implements list.Item for the room list.
type roomItem struct {
	roomID      string
	title       string
	unreadCount int
	memberCount int
	lastMessage string
}

func (i roomItem) FilterValue() string { return i.title }

// roomItemDelegate renders a roomItem in the list.
type roomItemDelegate struct{}

func (d roomItemDelegate) Height() int                             { return 2 }
func (d roomItemDelegate) Spacing() int                            { return 1 }
func (d roomItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }

func (d roomItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	ci, ok := item.(roomItem)
	if !ok {
		return
	}

	title := ci.title
	if title == "" {
		title = "#" + ci.roomID
	}
	if ci.unreadCount > 0 {
		title = fmt.Sprintf("%s (%d)", title, ci.unreadCount)
	}

	desc := ci.lastMessage
	if desc == "" && ci.memberCount > 0 {
		desc = fmt.Sprintf("%d members", ci.memberCount)
	}

	isSelected := index == m.Index()
	// Account for the cursor prefix ("  " or "> ") in available width.
	contentWidth := m.Width() - 2
	if contentWidth < 1 {
		contentWidth = 1
	}

	titleStyle := lipgloss.NewStyle().MaxWidth(contentWidth).MaxHeight(1)
	descStyle := lipgloss.NewStyle().MaxWidth(contentWidth).MaxHeight(1).Foreground(lipgloss.Color("240"))

	cursor := "  "
	if isSelected {
		cursor = "> "
		titleStyle = titleStyle.Foreground(lipgloss.Color("170")).Bold(true)
		descStyle = descStyle.Foreground(lipgloss.Color("250"))
	}
	if ci.unreadCount > 0 {
		titleStyle = titleStyle.Bold(true)
	}

	fmt.Fprintf(w, "%s%s\n%s%s", cursor, titleStyle.Render(title), "  ", descStyle.Render(desc))
}

// RoomListModel wraps bubbles/list for the room sidebar.
type RoomListModel struct {
	list    list.Model
	focused bool
	width   int
	height  int
}

func NewRoomListModel() RoomListModel {
	delegate := roomItemDelegate{}
	l := list.New(nil, delegate, 0, 0)
	l.SetShowTitle(false)
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(true)
	l.DisableQuitKeybindings()

	return RoomListModel{list: l}
}

func (m RoomListModel) Update(msg tea.Msg) (RoomListModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		// Only handle enter for room selection when not filtering.
		if msg.String() == "enter" && m.list.FilterState() != list.Filtering {
			if item, ok := m.list.SelectedItem().(roomItem); ok {
				return m, func() tea.Msg {
					return RoomSelectedMsg{RoomID: item.roomID}
				}
			}
			return m, nil
		}
	}

	// Delegate all other keys (including j/k and filter '/') to the list
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m RoomListModel) View() string {
	contentH := m.height - 2
	if contentH < 0 {
		contentH = 0
	}

	// Truncate list output to content area inside border
	content := truncateHeight(m.list.View(), contentH)

	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		Width(m.width).
		Height(m.height)
	style = applyBorderColor(style, m.focused)

	return style.Render(content)
}

func (m RoomListModel) WithItems(rooms []domain.Room) RoomListModel {
	items := make([]list.Item, len(rooms))
	for i, r := range rooms {
		items[i] = roomItem{
			roomID:      r.ID,
			title:       r.Title,
			unreadCount: r.UnreadCount,
			memberCount: r.MemberCount,
			lastMessage: r.LastMessage,
		}
	}
	m.list.SetItems(items)
	return m
}

// IsFiltering reports whether the filter prompt is capturing keys.
func (m RoomListModel) IsFiltering() bool {
	return m.list.FilterState() == list.Filtering
}

func (m RoomListModel) SetSize(w, h int) RoomListModel {
	m.width = w
	m.height = h
	innerW := w - 2
	innerH := h - 2
	if innerW < 1 {
		innerW = 1
	}
	if innerH < 1 {
		innerH = 1
	}
	m.list.SetSize(innerW, innerH)
	return m
}

func (m RoomListModel) SetFocused(f bool) RoomListModel {
	m.focused = f
	return m
}
