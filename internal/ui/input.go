package ui

import (
	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
)

// inputRenderedHeight is the total height of the input box (1 inner + 2 border).
const inputRenderedHeight = 3

// InputModel is the single-line message composer.
type InputModel struct {
	field   textinput.Model
	focused bool
	width   int
	height  int
}

func NewInputModel() InputModel {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Type a message..."
	ti.CharLimit = 4000
	return InputModel{field: ti}
}

func (m InputModel) Init() tea.Cmd {
	return nil
}

func (m InputModel) Update(msg tea.Msg) (InputModel, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok && key.String() == "enter" {
		text := m.field.Value()
		if text == "" {
			return m, nil
		}
		m.field.Reset()
		return m, func() tea.Msg { return sendMessageMsg{text: text} }
	}

	before := m.field.Value()
	var cmd tea.Cmd
	m.field, cmd = m.field.Update(msg)
	if m.field.Value() != before && m.field.Value() != "" {
		return m, tea.Batch(cmd, func() tea.Msg { return keystrokeMsg{} })
	}
	return m, cmd
}

func (m InputModel) View() string {
	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		Width(m.width).
		Height(m.height)
	style = applyBorderColor(style, m.focused)
	return style.Render(m.field.View())
}

func (m InputModel) SetSize(w, h int) InputModel {
	m.width = w
	m.height = h
	inner := w - 2 - lipgloss.Width(m.field.Prompt)
	if inner < 1 {
		inner = 1
	}
	m.field.SetWidth(inner)
	return m
}

func (m InputModel) SetFocused(f bool) InputModel {
	m.focused = f
	if f {
		m.field.Focus()
	} else {
		m.field.Blur()
	}
	return m
}
