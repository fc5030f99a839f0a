// Package tui is the terminal project browser: a collapsible tree on the
// left and the selected file's content on the right.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/novacode/novacode/pkg/presenter"
	"github.com/novacode/novacode/pkg/view"
)

type pane int

const (
	treePane pane = iota
	contentPane
)

const treeWidth = 36

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("51")).
			Bold(true).
			Padding(0, 1)

	folderStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("45")).
			Bold(true)

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("231")).
			Bold(true)

	cursorStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("238"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	paneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238"))

	activePaneStyle = paneStyle.
			BorderForeground(lipgloss.Color("51"))

	footerKeyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true)
)

// listingMsg reports a finished listing fetch.
type listingMsg struct{ err error }

// contentMsg reports a finished content fetch.
type contentMsg struct {
	path string
	err  error
}

// Model is the bubbletea model of the browser.
type Model struct {
	ctx      context.Context
	view     *view.View
	rows     []presenter.Entry
	cursor   int
	focus    pane
	content  viewport.Model
	width    int
	height   int
	loading  bool
	quitting bool
}

// NewModel creates a browser over v. Fetches run with ctx.
func NewModel(ctx context.Context, v *view.View) Model {
	return Model{
		ctx:     ctx,
		view:    v,
		content: viewport.New(80, 20),
		width:   120,
		height:  30,
		loading: true,
	}
}

// Init starts the first listing fetch.
func (m Model) Init() tea.Cmd {
	return m.loadListing()
}

func (m Model) loadListing() tea.Cmd {
	v, ctx := m.view, m.ctx
	return func() tea.Msg {
		return listingMsg{err: v.Load(ctx)}
	}
}

func (m Model) selectFile(path string) tea.Cmd {
	v, ctx := m.view, m.ctx
	return func() tea.Msg {
		return contentMsg{path: path, err: v.Select(ctx, path)}
	}
}

func (m Model) retryContent() tea.Cmd {
	v, ctx := m.view, m.ctx
	sel, _ := v.Selected()
	return func() tea.Msg {
		return contentMsg{path: sel, err: v.Retry(ctx)}
	}
}

func (m *Model) refreshRows() {
	m.rows = m.view.Rows()
	if m.cursor >= len(m.rows) {
		m.cursor = len(m.rows) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m *Model) refreshContent() {
	c := m.view.Content()
	switch {
	case c.Path == "":
		m.content.SetContent(dimStyle.Render("Select a file to view its content"))
	case c.Loading:
		m.content.SetContent(dimStyle.Render("Loading " + c.Path + "..."))
	case c.Err != nil:
		m.content.SetContent(errorStyle.Render("✗ "+c.Err.Error()) + "\n\n" + dimStyle.Render("press R to retry"))
	default:
		m.content.SetContent(string(c.Data))
	}
	m.content.GotoTop()
}

func (m *Model) resize() {
	m.content.Width = max(m.width-treeWidth-4, 10)
	m.content.Height = max(m.height-5, 3)
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		return m, nil

	case listingMsg:
		if errors.Is(msg.err, view.ErrSuperseded) {
			return m, nil
		}
		m.loading = false
		m.refreshRows()
		m.refreshContent()
		// A recovered listing restores the selection but not its content.
		if _, ok := m.view.Selected(); ok && msg.err == nil && m.view.Content().Path == "" {
			return m, m.retryContent()
		}
		return m, nil

	case contentMsg:
		if errors.Is(msg.err, view.ErrSuperseded) {
			return m, nil
		}
		m.refreshRows()
		m.refreshContent()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit
	case "tab":
		if m.focus == treePane {
			m.focus = contentPane
		} else {
			m.focus = treePane
		}
		return m, nil
	case "r":
		m.loading = true
		return m, m.loadListing()
	case "R":
		if _, ok := m.view.Selected(); !ok {
			return m, nil
		}
		m.refreshContent()
		return m, m.retryContent()
	}

	if m.focus == contentPane {
		var cmd tea.Cmd
		m.content, cmd = m.content.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.rows)-1 {
			m.cursor++
		}
	case "e":
		m.view.ExpandAll()
		m.refreshRows()
	case "c":
		m.view.CollapseAll()
		m.refreshRows()
	case "s":
		sel, ok := m.view.Selected()
		if !ok || !m.view.Reveal(sel) {
			return m, nil
		}
		m.refreshRows()
		for i, row := range m.rows {
			if row.Path == sel {
				m.cursor = i
				break
			}
		}
	case "enter", " ", "right", "left", "l", "h":
		if m.cursor >= len(m.rows) {
			return m, nil
		}
		row := m.rows[m.cursor]
		if row.Node.IsFolder() {
			key := msg.String()
			if (key == "right" || key == "l") && row.Expanded || (key == "left" || key == "h") && !row.Expanded {
				return m, nil
			}
			m.view.Toggle(row.Path)
			m.refreshRows()
			return m, nil
		}
		if key := msg.String(); key == "left" || key == "h" {
			return m, nil
		}
		return m, m.selectFile(row.Path)
	}
	return m, nil
}

// View renders the browser.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	header := headerStyle.Render("novacode · " + m.view.ProjectID())

	treeStyle, contentStyle := activePaneStyle, paneStyle
	if m.focus == contentPane {
		treeStyle, contentStyle = paneStyle, activePaneStyle
	}
	left := treeStyle.Width(treeWidth).Height(m.content.Height).Render(m.renderTree())
	right := contentStyle.Render(m.renderContentTitle() + "\n" + m.content.View())

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		lipgloss.JoinHorizontal(lipgloss.Top, left, right),
		m.renderFooter(),
	)
}

func (m Model) renderTree() string {
	if m.loading && len(m.rows) == 0 {
		return dimStyle.Render("Loading...")
	}
	if m.view.Empty() {
		msg := dimStyle.Render("No files available")
		if err := m.view.ListingErr(); err != nil {
			msg += "\n\n" + errorStyle.Render("✗ "+err.Error())
		}
		return msg
	}

	var b strings.Builder
	for i, row := range m.rows {
		line := strings.Repeat("  ", row.Depth) + renderRow(row)
		if i == m.cursor && m.focus == treePane {
			line = cursorStyle.Render(line)
		}
		b.WriteString(line)
		if i < len(m.rows)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func renderRow(row presenter.Entry) string {
	switch {
	case row.Node.IsFolder() && row.Expanded:
		return folderStyle.Render("▾ " + row.Node.Name)
	case row.Node.IsFolder():
		return folderStyle.Render("▸ " + row.Node.Name)
	case row.Selected:
		return selectedStyle.Render("• " + row.Node.Name)
	default:
		return "  " + row.Node.Name
	}
}

func (m Model) renderContentTitle() string {
	c := m.view.Content()
	if c.Path == "" {
		return dimStyle.Render("no file selected")
	}
	return fmt.Sprintf("%s %s", selectedStyle.Render(c.Path), dimStyle.Render("["+c.Resolution.Language()+"]"))
}

func (m Model) renderFooter() string {
	keys := []struct{ key, desc string }{
		{"↑/↓", "move"},
		{"enter", "open"},
		{"e/c", "expand/collapse all"},
		{"s", "show selected"},
		{"tab", "switch pane"},
		{"r", "reload"},
		{"R", "retry file"},
		{"q", "quit"},
	}
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, footerKeyStyle.Render(k.key)+" "+dimStyle.Render(k.desc))
	}
	return strings.Join(parts, "  ")
}
