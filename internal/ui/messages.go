package ui

import (
	tea "charm.land/bubbletea/v2"

	"github.com/aebaduq/arabsocial-chat/internal/domain"
)

// StoreUpdatedMsg signals that the store or a session has changed.
type StoreUpdatedMsg struct{}

// ConnStateMsg reports a transport state transition.
type ConnStateMsg struct {
	State domain.ConnState
}

// RoomSelectedMsg is emitted when the user picks a room.
type RoomSelectedMsg struct {
	RoomID string
}

// LoadMoreMsg is emitted when the user scrolls near the top of a room.
type LoadMoreMsg struct {
	RoomID string
}

// sendMessageMsg is emitted when the user presses Enter in the input.
type sendMessageMsg struct {
	text string
}

// keystrokeMsg is emitted when the input text changes.
type keystrokeMsg struct{}

// tokenSubmittedMsg carries the token typed into the prompt.
type tokenSubmittedMsg struct {
	token string
}

// ErrorMsg shows an error in the status bar.
type ErrorMsg struct {
	Err error
}

// SplashDoneMsg signals that the splash screen timeout has elapsed.
type SplashDoneMsg struct{}

// clockTickMsg triggers a status bar time refresh.
type clockTickMsg struct{}

// StoreUpdatedCmd returns a command that emits StoreUpdatedMsg.
func StoreUpdatedCmd() tea.Msg {
	return StoreUpdatedMsg{}
}
