package ui

import "charm.land/lipgloss/v2"

// overlay is a box drawn centered over the main layout.
type overlay struct {
	visible       bool
	width, height int
}

func (o overlay) IsVisible() bool { return o.visible }

func (o overlay) sized() bool { return o.visible && o.width > 0 && o.height > 0 }

const helpText = ` Keyboard Shortcuts

 General
   Ctrl+C        Quit
   h / F1        Toggle this help
   Tab           Next pane
   Shift+Tab     Previous pane
   Esc           Back to room list
   Ctrl+R        Retry a failed load
   Ctrl+L        Log out

 Rooms
   j/k / ↑/↓     Navigate rooms
   Enter         Open room
   /             Filter rooms

 Messages
   j / k         Scroll down / up (older pages load near the top)
   PgUp / PgDn   Page scroll
   r             Resend last failed message
   x             Discard last failed message

 Input
   Enter         Send message

 Press h, F1, or Esc to close`

// HelpModel is the keyboard shortcut sheet, toggled with h or F1.
type HelpModel struct{ overlay }

func NewHelpModel() HelpModel { return HelpModel{} }

func (h HelpModel) Toggle() HelpModel {
	h.visible = !h.visible
	return h
}

func (h HelpModel) SetSize(w, ht int) HelpModel {
	h.width, h.height = w, ht
	return h
}

func (h HelpModel) View() string {
	if !h.sized() {
		return ""
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		Padding(1, 3).
		BorderForegroundBlend(rainbowBlend...).
		Render(helpText)
}

func (h HelpModel) BoxOffset() (int, int) {
	return centerOffset(h.View(), h.width, h.height)
}

const splashArt = `
                 _                    _       _
  __ _ _ __ __ _| |__  ___  ___   ___(_) __ _| |
 / _` + "`" + ` | '__/ _` + "`" + ` | '_ \/ __|/ _ \ / __| |/ _` + "`" + ` | |
| (_| | | | (_| | |_) \__ \ (_) | (__| | (_| | |
 \__,_|_|  \__,_|_.__/|___/\___/ \___|_|\__,_|_|
`

// splash conditions still outstanding
const (
	waitTimer = 1 << iota
	waitConn
)

// SplashModel shows the banner until both the minimum display time has
// passed and the socket is up.
type SplashModel struct {
	overlay
	waiting int
}

func NewSplashModel() SplashModel {
	return SplashModel{overlay: overlay{visible: true}, waiting: waitTimer | waitConn}
}

func (s SplashModel) SetSize(w, h int) SplashModel {
	s.width, s.height = w, h
	return s
}

func (s SplashModel) TimerDone() SplashModel { return s.clear(waitTimer) }

func (s SplashModel) ConnReady() SplashModel { return s.clear(waitConn) }

// Dismiss hides the splash without waiting, for the token prompt.
func (s SplashModel) Dismiss() SplashModel {
	s.visible = false
	return s
}

func (s SplashModel) clear(flag int) SplashModel {
	s.waiting &^= flag
	if s.waiting == 0 {
		s.visible = false
	}
	return s
}

func (s SplashModel) View() string {
	if !s.sized() {
		return ""
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(highlightColor).
		Padding(1, 3).
		Render(splashArt)
}

func (s SplashModel) BoxOffset() (int, int) {
	return centerOffset(s.View(), s.width, s.height)
}
