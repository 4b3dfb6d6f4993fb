package ui

import (
	"strings"

	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
)

// TokenPromptModel asks for the bearer token when none is configured.
type TokenPromptModel struct {
	field         textinput.Model
	visible       bool
	errText       string
	width, height int
}

func NewTokenPromptModel() TokenPromptModel {
	ti := textinput.New()
	ti.Prompt = "Token: "
	ti.Placeholder = "paste your access token"
	ti.EchoMode = textinput.EchoPassword
	ti.SetWidth(40)
	return TokenPromptModel{field: ti}
}

func (p TokenPromptModel) IsVisible() bool {
	return p.visible
}

// Show displays the prompt; errText explains why, and may be empty.
func (p TokenPromptModel) Show(errText string) TokenPromptModel {
	p.visible = true
	p.errText = errText
	p.field.Reset()
	p.field.Focus()
	return p
}

func (p TokenPromptModel) Hide() TokenPromptModel {
	p.visible = false
	p.field.Blur()
	return p
}

func (p TokenPromptModel) SetSize(w, h int) TokenPromptModel {
	p.width = w
	p.height = h
	return p
}

func (p TokenPromptModel) Update(msg tea.Msg) (TokenPromptModel, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok && key.String() == "enter" {
		token := strings.TrimSpace(p.field.Value())
		if token == "" {
			return p, nil
		}
		p = p.Hide()
		return p, func() tea.Msg { return tokenSubmittedMsg{token: token} }
	}

	var cmd tea.Cmd
	p.field, cmd = p.field.Update(msg)
	return p, cmd
}

func (p TokenPromptModel) View() string {
	if !p.visible {
		return ""
	}

	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().Bold(true).Render("Sign in"))
	b.WriteString("\n\n")
	b.WriteString(p.field.View())
	if p.errText != "" {
		b.WriteString("\n\n")
		b.WriteString(failedStyle.Render(p.errText))
	}
	b.WriteString("\n\n")
	b.WriteString(timeStyle.Render("Enter to connect, Ctrl+C to quit"))

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(highlightColor).
		Padding(1, 3).
		Render(b.String())

	return lipgloss.Place(p.width, p.height, lipgloss.Center, lipgloss.Center, box)
}
