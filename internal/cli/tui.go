package cli

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/phylotrace/phylotrace/pkg/config"
)

// List styles
var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listNormalStyle   = lipgloss.NewStyle().Foreground(colorWhite)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
)

// VariantListModel is the bubbletea model for interactive variant selection.
type VariantListModel struct {
	Variants []config.Variant
	Cursor   int
	Selected *config.Variant
	Height   int
	Offset   int
}

// NewVariantListModel creates a new variant list model.
func NewVariantListModel(variants []config.Variant) VariantListModel {
	return VariantListModel{
		Variants: variants,
		Cursor:   0,
		Height:   15,
		Offset:   0,
	}
}

func (m VariantListModel) Init() tea.Cmd {
	return nil
}

func (m VariantListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
				if m.Cursor < m.Offset {
					m.Offset = m.Cursor
				}
			}
		case "down", "j":
			if m.Cursor < len(m.Variants)-1 {
				m.Cursor++
				if m.Cursor >= m.Offset+m.Height {
					m.Offset = m.Cursor - m.Height + 1
				}
			}
		case "enter":
			v := m.Variants[m.Cursor]
			m.Selected = &v
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

func (m VariantListModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Select Variant"))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  ⏎ select  q quit"))
	b.WriteString("\n\n")

	end := m.Offset + m.Height
	if end > len(m.Variants) {
		end = len(m.Variants)
	}

	rows := [][]string{}
	for i := m.Offset; i < end; i++ {
		v := m.Variants[i]

		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}

		translate := "—"
		if v.Translate != "" {
			translate = v.Translate
		}

		space := "leaf labels"
		if v.ExpandStates {
			space = "matrix alphabet"
		}

		rows = append(rows, []string{cursor, v.Name, v.Matrix, translate, space})
	}

	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("", "Variant", "Matrix", "Translate", "State space").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return headerStyle
			}
			actualIdx := m.Offset + row
			if actualIdx >= len(m.Variants) {
				return lipgloss.NewStyle()
			}
			if actualIdx == m.Cursor {
				return listSelectedStyle
			}
			if col >= 2 {
				return listDimStyle
			}
			return listNormalStyle
		})

	b.WriteString(t.Render())
	b.WriteString("\n\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]", m.Cursor+1, len(m.Variants))))

	return b.String()
}
