package cli

import (
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/matzehuels/bulkstat/pkg/metabase"
)

// List styles
var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listNormalStyle   = lipgloss.NewStyle().Foreground(colorWhite)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
)

// =============================================================================
// DatasetListModel - Interactive dataset selection
// =============================================================================

// DatasetListModel is the bubbletea model for picking a dataset. Typing
// narrows the list to codes containing the typed text.
type DatasetListModel struct {
	All      []string
	Visible  []string
	Filter   string
	Cursor   int
	Offset   int
	Height   int
	Selected string
}

// NewDatasetListModel creates a new dataset list model.
func NewDatasetListModel(datasets []string) DatasetListModel {
	return DatasetListModel{
		All:     datasets,
		Visible: datasets,
		Height:  15,
	}
}

func (m DatasetListModel) Init() tea.Cmd {
	return nil
}

func (m DatasetListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyUp:
			if m.Cursor > 0 {
				m.Cursor--
				if m.Cursor < m.Offset {
					m.Offset = m.Cursor
				}
			}
		case tea.KeyDown:
			if m.Cursor < len(m.Visible)-1 {
				m.Cursor++
				if m.Cursor >= m.Offset+m.Height {
					m.Offset = m.Cursor - m.Height + 1
				}
			}
		case tea.KeyEnter:
			if len(m.Visible) == 0 {
				return m, nil
			}
			m.Selected = m.Visible[m.Cursor]
			return m, tea.Quit
		case tea.KeyBackspace:
			if m.Filter != "" {
				m.Filter = m.Filter[:len(m.Filter)-1]
				m.refilter()
			}
		case tea.KeyRunes:
			m.Filter += strings.ToLower(string(msg.Runes))
			m.refilter()
		}
	case tea.WindowSizeMsg:
		m.Height = max(msg.Height-6, 5)
	}
	return m, nil
}

func (m *DatasetListModel) refilter() {
	m.Cursor, m.Offset = 0, 0
	if m.Filter == "" {
		m.Visible = m.All
		return
	}
	m.Visible = nil
	for _, d := range m.All {
		if strings.Contains(strings.ToLower(d), m.Filter) {
			m.Visible = append(m.Visible, d)
		}
	}
}

func (m DatasetListModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Select Dataset"))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("type to filter  ↑/↓ navigate  ⏎ select  esc quit"))
	b.WriteString("\n")
	b.WriteString("filter: " + listSelectedStyle.Render(m.Filter) + "\n\n")

	end := min(m.Offset+m.Height, len(m.Visible))
	for i := m.Offset; i < end; i++ {
		if i == m.Cursor {
			b.WriteString(listSelectedStyle.Render("▸ " + m.Visible[i]))
		} else {
			b.WriteString(listNormalStyle.Render("  " + m.Visible[i]))
		}
		b.WriteString("\n")
	}
	if len(m.Visible) == 0 {
		b.WriteString(listDimStyle.Render("  no match"))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]", min(m.Cursor+1, len(m.Visible)), len(m.Visible))))
	return b.String()
}

// =============================================================================
// browse command
// =============================================================================

// browseCommand creates the "browse" command.
func (c *CLI) browseCommand() *cobra.Command {
	var mf metabaseFlags

	cmd := &cobra.Command{
		Use:   "browse",
		Short: "Pick a dataset interactively and show its dimensions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ix, err := c.index(ctx, &mf)
			if err != nil {
				return err
			}
			datasets, err := ix.Values(ctx, metabase.FieldDataset, metabase.Filter{})
			if err != nil {
				return err
			}

			p := tea.NewProgram(NewDatasetListModel(datasets), tea.WithContext(ctx))
			final, err := p.Run()
			if err != nil {
				return err
			}
			picked := final.(DatasetListModel).Selected
			if picked == "" {
				return nil
			}

			rows, err := dimensionRows(ix, picked)
			if err != nil {
				return err
			}
			fmt.Println(StyleTitle.Render(picked))
			fmt.Println(renderTable([]string{"Dimension", "Labels", "Sample"}, rows))
			return nil
		},
	}

	cmd.Flags().StringVar(&mf.file, "file", "", "read the metabase from a local file")
	cmd.Flags().BoolVar(&mf.lenient, "lenient", false, "skip malformed lines instead of failing")
	return cmd
}

// dimensionRows summarises each dimension of dataset: label count and the
// first few labels.
func dimensionRows(ix *metabase.Index, dataset string) ([][]string, error) {
	const sample = 5

	dims, err := ix.DimensionsFor(dataset)
	if err != nil {
		return nil, err
	}
	rows := make([][]string, 0, len(dims))
	for _, dim := range dims {
		labels, err := ix.LabelsFor(dim, dataset)
		if err != nil {
			return nil, err
		}
		shown := labels[:min(sample, len(labels))]
		more := ""
		if len(labels) > sample {
			more = ", …"
		}
		rows = append(rows, []string{dim, strconv.Itoa(len(labels)), strings.Join(shown, ", ") + more})
	}
	return rows, nil
}
