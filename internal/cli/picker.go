package cli

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/miltonlaufer/diffgraph/pkg/structure"
)

// List styles
var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listNormalStyle   = lipgloss.NewStyle().Foreground(colorWhite)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
)

// viewItem is one selectable row in the view picker.
type viewItem struct {
	name     string
	oldNodes int
	newNodes int
}

// viewListModel is the bubbletea model for interactive view selection.
type viewListModel struct {
	items    []viewItem
	cursor   int
	selected string
}

func newViewListModel(bundle *structure.Bundle) viewListModel {
	items := make([]viewItem, 0, len(bundle.Views))
	for _, name := range bundle.ViewNames() {
		pair := bundle.Views[name]
		items = append(items, viewItem{
			name:     name,
			oldNodes: len(pair.Old.Nodes),
			newNodes: len(pair.New.Nodes),
		})
	}
	return viewListModel{items: items}
}

func (m viewListModel) Init() tea.Cmd {
	return nil
}

func (m viewListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.items)-1 {
				m.cursor++
			}
		case "enter":
			m.selected = m.items[m.cursor].name
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m viewListModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Select View"))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  ⏎ select  q quit"))
	b.WriteString("\n\n")

	for i, item := range m.items {
		cursor := "  "
		style := listNormalStyle
		if i == m.cursor {
			cursor = "▸ "
			style = listSelectedStyle
		}
		counts := listDimStyle.Render(
			fmt.Sprintf("  %d old · %d new", item.oldNodes, item.newNodes))
		b.WriteString(cursor + style.Render(item.name) + counts + "\n")
	}

	return b.String()
}

// pickView runs the interactive view picker and returns the chosen view name.
func pickView(bundle *structure.Bundle) (string, error) {
	final, err := tea.NewProgram(newViewListModel(bundle)).Run()
	if err != nil {
		return "", fmt.Errorf("view picker: %w", err)
	}
	m, ok := final.(viewListModel)
	if !ok || m.selected == "" {
		return "", fmt.Errorf("no view selected")
	}
	return m.selected, nil
}
