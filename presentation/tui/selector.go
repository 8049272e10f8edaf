package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

// Selector is a single-choice list prompt, used by the wizard for the
// keying role.
type Selector struct {
	placeholder string
	options     []string
	cursor      int
	choice      string
	checked     int
}

func NewSelector(placeholder string, options []string) Selector {
	return Selector{
		placeholder: placeholder,
		options:     options,
		checked:     -1,
	}
}

// Choice returns the selected option, or "" if the user quit without one.
func (m Selector) Choice() string {
	return m.choice
}

func (m Selector) Init() tea.Cmd {
	return nil
}

func (m Selector) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.options)-1 {
				m.cursor++
			}
		case "enter":
			m.choice = m.options[m.cursor]
			m.checked = m.cursor
			return m, tea.Quit
		case "ctrl+c", "esc":
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m Selector) View() string {
	s := fmt.Sprintf("%s\n\n", m.placeholder)
	for i, opt := range m.options {
		checked := "[ ]"
		if m.checked == i {
			checked = "[x]"
		}
		line := fmt.Sprintf("%s %s", checked, opt)
		if m.cursor == i {
			line = "> " + line
		} else {
			line = "  " + line
		}
		s += line + "\n"
	}
	s += "\n(up/down to move, enter to choose, esc to quit)\n"
	return s
}
