package cli

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// List styles
var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listNormalStyle   = lipgloss.NewStyle().Foreground(colorWhite)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
)

// =============================================================================
// layerPickerModel - Interactive artwork file selection
// =============================================================================

// layerPickerModel is the bubbletea model for picking the artwork
// file that fills one role in a scaffolded job file. The user can
// skip a role entirely with "s".
type layerPickerModel struct {
	Title     string
	Candidates []layerCandidate
	Cursor    int
	Chosen    string // selected file, empty when skipped or aborted
	Skipped   bool
	Aborted   bool
	Height    int
	Offset    int
}

// layerCandidate is one selectable artwork file.
type layerCandidate struct {
	Path   string
	Format string // "gerber" or "excellon"
	Guess  bool   // heuristic match for the role being filled
}

// newLayerPicker creates a picker for one layer role. The cursor
// starts on the first heuristic match.
func newLayerPicker(title string, candidates []layerCandidate) layerPickerModel {
	cursor := 0
	for i, c := range candidates {
		if c.Guess {
			cursor = i
			break
		}
	}
	return layerPickerModel{
		Title:      title,
		Candidates: candidates,
		Cursor:     cursor,
		Height:     15,
	}
}

func (m layerPickerModel) Init() tea.Cmd {
	return nil
}

func (m layerPickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.Aborted = true
			return m, tea.Quit
		case "s":
			m.Skipped = true
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
				if m.Cursor < m.Offset {
					m.Offset = m.Cursor
				}
			}
		case "down", "j":
			if m.Cursor < len(m.Candidates)-1 {
				m.Cursor++
				if m.Cursor >= m.Offset+m.Height {
					m.Offset = m.Cursor - m.Height + 1
				}
			}
		case "enter":
			m.Chosen = m.Candidates[m.Cursor].Path
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.Height = msg.Height - 6
		if m.Height < 5 {
			m.Height = 5
		}
	}
	return m, nil
}

func (m layerPickerModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render(m.Title))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  ⏎ select  s skip  q quit"))
	b.WriteString("\n\n")

	end := m.Offset + m.Height
	if end > len(m.Candidates) {
		end = len(m.Candidates)
	}

	for i := m.Offset; i < end; i++ {
		c := m.Candidates[i]

		cursor := "  "
		style := listNormalStyle
		if i == m.Cursor {
			cursor = "▸ "
			style = listSelectedStyle
		}

		line := fmt.Sprintf("%s%s", cursor, style.Render(c.Path))
		line += listDimStyle.Render("  " + c.Format)
		if c.Guess {
			line += listDimStyle.Render("  (suggested)")
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	if len(m.Candidates) > end {
		b.WriteString(listDimStyle.Render(fmt.Sprintf("\n… %d more", len(m.Candidates)-end)))
		b.WriteString("\n")
	}

	return b.String()
}

// pickLayer runs the picker and returns the chosen path, or "" when
// the role was skipped. An abort is reported as an error.
func pickLayer(title string, candidates []layerCandidate) (string, error) {
	if len(candidates) == 0 {
		return "", nil
	}

	final, err := tea.NewProgram(newLayerPicker(title, candidates)).Run()
	if err != nil {
		return "", err
	}
	m, ok := final.(layerPickerModel)
	if !ok {
		return "", fmt.Errorf("unexpected picker model %T", final)
	}
	if m.Aborted {
		return "", fmt.Errorf("aborted")
	}
	if m.Skipped {
		return "", nil
	}
	return m.Chosen, nil
}
