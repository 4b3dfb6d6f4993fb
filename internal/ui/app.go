package ui

import (
	"context"
	"fmt"
	"time"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/aebaduq/arabsocial-chat/internal/domain"
	"github.com/aebaduq/arabsocial-chat/internal/session"
)

type focusTarget int

const (
	focusRoomList focusTarget = iota
	focusMessages
	focusInput
)

const roomListWidth = 36

// Sessions is the chat session manager as seen by the screens.
type Sessions interface {
	Open(ctx context.Context, roomID string) error
	Close(roomID string)
	CloseAll()
	LoadMore(ctx context.Context, roomID string) error
	Retry(ctx context.Context, roomID string) error
	Send(roomID, text string) error
	Resend(roomID, clientID string) error
	Discard(roomID, clientID string) error
	Typing(roomID string) error
	Snapshot(roomID string) (session.Snapshot, bool)
}

// Rooms is the room list cache.
type Rooms interface {
	Rooms() []domain.Room
	Room(roomID string) (domain.Room, bool)
	SetActiveRoom(roomID string)
	ActiveRoom() string
	MarkRoomRead(roomID string)
}

type Tokens interface {
	Token() string
	Set(token string) error
	Clear() error
}

type RoomRefresher interface {
	Refresh(ctx context.Context) error
}

type Deps struct {
	Sessions  Sessions
	Rooms     Rooms
	Tokens    Tokens
	Refresher RoomRefresher
	SelfID    string
}

// Model is the root Bubble Tea model.
type Model struct {
	roomList    RoomListModel
	messageView MessageViewModel
	input       InputModel
	prompt      TokenPromptModel
	help        HelpModel
	status      statusModel
	splash      SplashModel

	deps Deps

	focus  focusTarget
	width  int
	height int
}

// NewModel creates the root model with all sub-components.
func NewModel(deps Deps) Model {
	m := Model{
		roomList:    NewRoomListModel(),
		messageView: NewMessageViewModel(deps.SelfID),
		input:       NewInputModel(),
		prompt:      NewTokenPromptModel(),
		help:        NewHelpModel(),
		status:      newStatusModel(deps.SelfID),
		splash:      NewSplashModel(),
		deps:        deps,
		focus:       focusRoomList,
	}
	if deps.Tokens.Token() == "" {
		m.splash = m.splash.Dismiss()
		m.prompt = m.prompt.Show("")
	}
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.input.Init(),
		tea.Tick(3*time.Second, func(time.Time) tea.Msg { return SplashDoneMsg{} }),
		clockTick(),
		m.refreshRooms(),
	)
}

func clockTick() tea.Cmd {
	return tea.Tick(time.Minute, func(time.Time) tea.Msg { return clockTickMsg{} })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m = m.distributeSize()
		return m, nil

	case StoreUpdatedMsg:
		m = m.refreshFromStore()
		// Auto-select the first room if none is active yet.
		if m.deps.Rooms.ActiveRoom() == "" && !m.prompt.IsVisible() {
			rooms := m.deps.Rooms.Rooms()
			if len(rooms) > 0 {
				return m, func() tea.Msg {
					return RoomSelectedMsg{RoomID: rooms[0].ID}
				}
			}
		}
		return m, nil

	case ConnStateMsg:
		m.status = m.status.SetConn(msg.State)
		if msg.State == domain.ConnConnected {
			m.splash = m.splash.ConnReady()
			m.status = m.status.SetError("")
			return m, m.refreshRooms()
		}
		return m, nil

	case RoomSelectedMsg:
		prev := m.deps.Rooms.ActiveRoom()
		if prev == msg.RoomID {
			m.focus = focusInput
			m = m.updateFocus()
			return m, nil
		}
		if prev != "" {
			m.deps.Sessions.Close(prev)
		}
		m.deps.Rooms.SetActiveRoom(msg.RoomID)
		m.deps.Rooms.MarkRoomRead(msg.RoomID)
		title := msg.RoomID
		if r, ok := m.deps.Rooms.Room(msg.RoomID); ok && r.Title != "" {
			title = r.Title
		}
		m.status = m.status.SetRoomTitle(title)
		m.focus = focusInput
		m = m.updateFocus()
		sessions := m.deps.Sessions
		roomID := msg.RoomID
		return m, func() tea.Msg {
			if err := sessions.Open(context.Background(), roomID); err != nil {
				return ErrorMsg{Err: err}
			}
			return StoreUpdatedMsg{}
		}

	case LoadMoreMsg:
		if m.deps.Rooms.ActiveRoom() != msg.RoomID {
			return m, nil
		}
		sessions := m.deps.Sessions
		roomID := msg.RoomID
		return m, func() tea.Msg {
			sessions.LoadMore(context.Background(), roomID)
			return StoreUpdatedMsg{}
		}

	case sendMessageMsg:
		roomID := m.deps.Rooms.ActiveRoom()
		if roomID == "" {
			return m, nil
		}
		sessions := m.deps.Sessions
		text := msg.text
		return m, func() tea.Msg {
			if err := sessions.Send(roomID, text); err != nil {
				return ErrorMsg{Err: fmt.Errorf("send: %w", err)}
			}
			return nil
		}

	case keystrokeMsg:
		if roomID := m.deps.Rooms.ActiveRoom(); roomID != "" {
			sessions := m.deps.Sessions
			return m, func() tea.Msg {
				sessions.Typing(roomID)
				return nil
			}
		}
		return m, nil

	case tokenSubmittedMsg:
		tokens := m.deps.Tokens
		token := msg.token
		return m, func() tea.Msg {
			if err := tokens.Set(token); err != nil {
				return ErrorMsg{Err: fmt.Errorf("save token: %w", err)}
			}
			return nil
		}

	case SplashDoneMsg:
		m.splash = m.splash.TimerDone()
		return m, nil

	case clockTickMsg:
		return m, clockTick()

	case ErrorMsg:
		m.status = m.status.SetError(msg.Err.Error())
		return m, nil

	case tea.KeyMsg:
		if m.splash.IsVisible() {
			if msg.String() == "ctrl+c" {
				return m, tea.Quit
			}
			return m, nil
		}

		if m.prompt.IsVisible() {
			if msg.String() == "ctrl+c" {
				return m, tea.Quit
			}
			var cmd tea.Cmd
			m.prompt, cmd = m.prompt.Update(msg)
			return m, cmd
		}

		if m.help.IsVisible() {
			switch msg.String() {
			case "ctrl+c":
				return m, tea.Quit
			case "h", "f1", "esc":
				m.help = m.help.Toggle()
			}
			return m, nil
		}

		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "q":
			if m.focus != focusInput && !m.roomList.IsFiltering() {
				return m, tea.Quit
			}
		case "f1":
			m.help = m.help.Toggle()
			return m, nil
		case "h":
			if m.focus != focusInput && !m.roomList.IsFiltering() {
				m.help = m.help.Toggle()
				return m, nil
			}
		case "tab":
			m.focus = (m.focus + 1) % 3
			m = m.updateFocus()
			return m, nil
		case "shift+tab":
			m.focus = (m.focus + 2) % 3
			m = m.updateFocus()
			return m, nil
		case "esc":
			if !m.roomList.IsFiltering() {
				m.focus = focusRoomList
				m = m.updateFocus()
				return m, nil
			}
		case "ctrl+r":
			return m, m.retry()
		case "ctrl+l":
			return m.logout(), nil
		}

		switch m.focus {
		case focusRoomList:
			var cmd tea.Cmd
			m.roomList, cmd = m.roomList.Update(msg)
			cmds = append(cmds, cmd)
		case focusMessages:
			switch msg.String() {
			case "r":
				return m, m.resendLastFailed()
			case "x":
				return m, m.discardLastFailed()
			}
			var cmd tea.Cmd
			m.messageView, cmd = m.messageView.Update(msg)
			cmds = append(cmds, cmd)
		case focusInput:
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)

	default:
		// Cursor blink and other component ticks.
		if m.prompt.IsVisible() {
			var cmd tea.Cmd
			m.prompt, cmd = m.prompt.Update(msg)
			return m, cmd
		}
		if m.focus == focusInput {
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			return m, cmd
		}
	}

	return m, nil
}

func (m Model) retry() tea.Cmd {
	roomID := m.deps.Rooms.ActiveRoom()
	sessions := m.deps.Sessions
	return tea.Batch(m.refreshRooms(), func() tea.Msg {
		if roomID == "" {
			return nil
		}
		sessions.Retry(context.Background(), roomID)
		return StoreUpdatedMsg{}
	})
}

func (m Model) resendLastFailed() tea.Cmd {
	roomID := m.deps.Rooms.ActiveRoom()
	clientID, ok := m.messageView.LastFailed()
	if roomID == "" || !ok {
		return nil
	}
	sessions := m.deps.Sessions
	return func() tea.Msg {
		if err := sessions.Resend(roomID, clientID); err != nil {
			return ErrorMsg{Err: err}
		}
		return StoreUpdatedMsg{}
	}
}

func (m Model) discardLastFailed() tea.Cmd {
	roomID := m.deps.Rooms.ActiveRoom()
	clientID, ok := m.messageView.LastFailed()
	if roomID == "" || !ok {
		return nil
	}
	sessions := m.deps.Sessions
	return func() tea.Msg {
		if err := sessions.Discard(roomID, clientID); err != nil {
			return ErrorMsg{Err: err}
		}
		return StoreUpdatedMsg{}
	}
}

// logout closes every room and drops the token; the transport binding
// disconnects when it sees the empty token.
func (m Model) logout() Model {
	m.deps.Sessions.CloseAll()
	m.deps.Rooms.SetActiveRoom("")
	m.deps.Tokens.Clear()
	m.messageView = m.messageView.Clear()
	m.status = m.status.SetRoomTitle("").SetError("")
	m.prompt = m.prompt.Show("Signed out.")
	return m
}

func (m Model) refreshRooms() tea.Cmd {
	if m.deps.Refresher == nil || m.deps.Tokens.Token() == "" {
		return nil
	}
	refresher := m.deps.Refresher
	return func() tea.Msg {
		if err := refresher.Refresh(context.Background()); err != nil {
			return ErrorMsg{Err: fmt.Errorf("load rooms: %w", err)}
		}
		return nil
	}
}

func (m Model) View() tea.View {
	v := tea.NewView("")
	v.AltScreen = true

	if m.width == 0 || m.height == 0 {
		return v
	}

	if m.prompt.IsVisible() {
		v.SetContent(m.prompt.View())
		return v
	}

	roomListView := m.roomList.View()

	// Right pane: messages + input stacked vertically
	messagesView := m.messageView.View()
	inputView := m.input.View()
	rightPane := lipgloss.JoinVertical(lipgloss.Left, messagesView, inputView)

	panes := lipgloss.JoinHorizontal(lipgloss.Top, roomListView, rightPane)
	full := lipgloss.JoinVertical(lipgloss.Left, panes, m.status.View())

	// Clamp to terminal dimensions
	mainContent := lipgloss.NewStyle().
		MaxWidth(m.width).
		MaxHeight(m.height).
		Render(full)

	var box string
	var x, y int
	switch {
	case m.splash.IsVisible():
		box = m.splash.View()
		x, y = m.splash.BoxOffset()
	case m.help.IsVisible():
		box = m.help.View()
		x, y = m.help.BoxOffset()
	}

	if box != "" {
		bg := lipgloss.NewLayer(mainContent)
		fg := lipgloss.NewLayer(box).X(x).Y(y).Z(1)
		comp := lipgloss.NewCompositor(bg, fg)
		v.SetContent(comp.Render())
	} else {
		v.SetContent(mainContent)
	}
	return v
}

func (m Model) distributeSize() Model {
	// One row for the status bar
	contentHeight := m.height - 1
	if contentHeight < 1 {
		contentHeight = 1
	}

	rlWidth := roomListWidth
	if rlWidth > m.width {
		rlWidth = m.width
	}
	m.roomList = m.roomList.SetSize(rlWidth, contentHeight)

	rightWidth := m.width - rlWidth
	if rightWidth < 1 {
		rightWidth = 1
	}

	// Input gets fixed height, messages get the rest
	messagesHeight := contentHeight - inputRenderedHeight
	if messagesHeight < 1 {
		messagesHeight = 1
	}

	m.messageView = m.messageView.SetSize(rightWidth, messagesHeight)
	m.input = m.input.SetSize(rightWidth, inputRenderedHeight)

	m.status = m.status.SetWidth(m.width)
	m.prompt = m.prompt.SetSize(m.width, m.height)
	m.help = m.help.SetSize(m.width, m.height)
	m.splash = m.splash.SetSize(m.width, m.height)

	return m
}

func (m Model) updateFocus() Model {
	m.roomList = m.roomList.SetFocused(m.focus == focusRoomList)
	m.messageView = m.messageView.SetFocused(m.focus == focusMessages)
	m.input = m.input.SetFocused(m.focus == focusInput)
	return m
}

func (m Model) refreshFromStore() Model {
	m.roomList = m.roomList.WithItems(m.deps.Rooms.Rooms())

	active := m.deps.Rooms.ActiveRoom()
	if active == "" {
		return m
	}
	if snap, ok := m.deps.Sessions.Snapshot(active); ok {
		m.messageView = m.messageView.SetSnapshot(snap)
	}
	return m
}

// App wraps the Bubble Tea program for external use.
type App struct {
	program *tea.Program
}

// NewApp creates a new App ready to Run.
func NewApp(deps Deps) *App {
	p := tea.NewProgram(NewModel(deps))
	return &App{program: p}
}

// Run starts the Bubble Tea event loop (blocks until quit).
func (a *App) Run() error {
	_, err := a.program.Run()
	return err
}

// Send sends a message into the Bubble Tea event loop from external goroutines.
func (a *App) Send(msg tea.Msg) {
	go a.program.Send(msg)
}

// Quit stops the event loop from outside, e.g. on SIGINT.
func (a *App) Quit() {
	a.program.Quit()
}

// DrawFunc returns a function suitable for state.Store that triggers a re-render.
func (a *App) DrawFunc() func() {
	return func() {
		a.Send(StoreUpdatedMsg{})
	}
}
