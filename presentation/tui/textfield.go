package tui

import (
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// TextField is a single-line prompt, used by the wizard for free-form
// values (hostnames, hex keys, prefixes).
type TextField struct {
	ti       textinput.Model
	label    string
	quit     bool
	validate func(string) error
	errMsg   string
}

func NewTextField(label, placeholder, defaultValue string) *TextField {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.SetValue(defaultValue)
	ti.Focus()
	ti.CharLimit = 256
	ti.Width = 60
	return &TextField{ti: ti, label: label}
}

// WithValidate sets a validator run against the value on enter; a non-nil
// error re-prompts instead of quitting.
func (m *TextField) WithValidate(fn func(string) error) *TextField {
	m.validate = fn
	return m
}

func (m *TextField) Value() string {
	return m.ti.Value()
}

func (m *TextField) Init() tea.Cmd {
	return textinput.Blink
}

func (m *TextField) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "enter":
			if m.validate != nil {
				if err := m.validate(m.ti.Value()); err != nil {
					m.errMsg = err.Error()
					return m, nil
				}
			}
			m.quit = true
			return m, tea.Quit
		case "ctrl+c", "esc":
			m.quit = true
			return m, tea.Quit
		}
	}
	var cmd tea.Cmd
	m.ti, cmd = m.ti.Update(msg)
	return m, cmd
}

func (m *TextField) View() string {
	s := m.label + "\n\n" + m.ti.View() + "\n"
	if m.errMsg != "" {
		s += "\n! " + m.errMsg + "\n"
	}
	return s
}
