package tui

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/novacode/novacode/pkg/client"
	"github.com/novacode/novacode/pkg/logging"
	"github.com/novacode/novacode/pkg/protocol"
	"github.com/novacode/novacode/pkg/resolver"
	"github.com/novacode/novacode/pkg/view"
)

func init() {
	logging.Replace(zap.NewNop())
}

type fakeSource struct {
	paths   []string
	files   map[string]string
	listErr error
}

func (f *fakeSource) FetchListing(ctx context.Context, projectID string) (*protocol.Listing, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return &protocol.Listing{Paths: f.paths}, nil
}

func (f *fakeSource) FetchContent(ctx context.Context, req resolver.FetchRequest) ([]byte, error) {
	data, ok := f.files[req.Path]
	if !ok {
		return nil, client.ErrNotFound
	}
	return []byte(data), nil
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// run feeds msg to the model and then the message produced by its command,
// if any, the way the bubbletea runtime would.
func run(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	updated, cmd := m.Update(msg)
	m = updated.(Model)
	if cmd == nil {
		return m
	}
	next := cmd()
	if _, quit := next.(tea.QuitMsg); quit {
		return m
	}
	updated, _ = m.Update(next)
	return updated.(Model)
}

func loadedModel(t *testing.T, src *fakeSource) Model {
	t.Helper()
	m := NewModel(context.Background(), view.New("p1", src, src))
	cmd := m.Init()
	require.NotNil(t, cmd)
	updated, _ := m.Update(cmd())
	return updated.(Model)
}

func rowNames(m Model) []string {
	var out []string
	for _, r := range m.rows {
		out = append(out, r.Path)
	}
	return out
}

func TestModel_InitLoadsListing(t *testing.T) {
	m := loadedModel(t, &fakeSource{paths: []string{"src/index.html", "README.md"}})
	assert.False(t, m.loading)
	assert.Equal(t, []string{"src", "README.md"}, rowNames(m))
	assert.Contains(t, m.View(), "src")
}

func TestModel_ToggleFolderAndSelectFile(t *testing.T) {
	src := &fakeSource{
		paths: []string{"src/index.html", "README.md"},
		files: map[string]string{"src/index.html": "<h1>hello</h1>"},
	}
	m := loadedModel(t, src)

	m = run(t, m, key("enter"))
	assert.Equal(t, []string{"src", "src/index.html", "README.md"}, rowNames(m))

	m = run(t, m, key("down"))
	assert.Equal(t, 1, m.cursor)
	m = run(t, m, key("enter"))

	sel, ok := m.view.Selected()
	require.True(t, ok)
	assert.Equal(t, "src/index.html", sel)
	assert.Contains(t, m.content.View(), "<h1>hello</h1>")
	assert.Contains(t, m.View(), "[html]")
}

func TestModel_ContentNotFoundShowsInlineError(t *testing.T) {
	src := &fakeSource{paths: []string{"gone.md"}, files: map[string]string{}}
	m := loadedModel(t, src)

	m = run(t, m, key("enter"))
	assert.Contains(t, m.content.View(), "not found")
	sel, ok := m.view.Selected()
	assert.True(t, ok)
	assert.Equal(t, "gone.md", sel)

	src.files["gone.md"] = "# back"
	m = run(t, m, key("R"))
	assert.Contains(t, m.content.View(), "# back")
}

func TestModel_EmptyProject(t *testing.T) {
	m := loadedModel(t, &fakeSource{})
	assert.Empty(t, m.rows)
	assert.Contains(t, m.View(), "No files available")

	m = run(t, m, key("enter"))
	assert.Empty(t, m.rows)
}

func TestModel_ListingUnavailable(t *testing.T) {
	m := loadedModel(t, &fakeSource{listErr: errors.New("connection refused")})
	out := m.View()
	assert.Contains(t, out, "No files available")
	assert.Contains(t, out, "connection refused")
}

func TestModel_ExpandCollapseAll(t *testing.T) {
	m := loadedModel(t, &fakeSource{paths: []string{"a/b/c.txt", "d.txt"}})

	m = run(t, m, key("e"))
	assert.Equal(t, []string{"a", "a/b", "a/b/c.txt", "d.txt"}, rowNames(m))

	m.cursor = 3
	m = run(t, m, key("c"))
	assert.Equal(t, []string{"a", "d.txt"}, rowNames(m))
	assert.Equal(t, 1, m.cursor, "cursor is clamped to the visible rows")
}

func TestModel_ShowSelected(t *testing.T) {
	src := &fakeSource{
		paths: []string{"a/b/c.txt", "d.txt"},
		files: map[string]string{"a/b/c.txt": "third level"},
	}
	m := loadedModel(t, src)

	m = run(t, m, key("s"))
	assert.Equal(t, 0, m.cursor, "nothing selected yet")

	m = run(t, m, key("e"))
	m.cursor = 2
	m = run(t, m, key("enter"))
	m = run(t, m, key("c"))
	assert.Equal(t, []string{"a", "d.txt"}, rowNames(m))

	m = run(t, m, key("s"))
	assert.Equal(t, []string{"a", "a/b", "a/b/c.txt", "d.txt"}, rowNames(m))
	assert.Equal(t, 2, m.cursor)
	assert.Contains(t, m.content.View(), "third level")
}

func TestModel_Reload(t *testing.T) {
	src := &fakeSource{paths: []string{"a.txt"}}
	m := loadedModel(t, src)

	src.paths = []string{"a.txt", "b.txt"}
	m = run(t, m, key("r"))
	assert.Equal(t, []string{"a.txt", "b.txt"}, rowNames(m))
}

func TestModel_TabSwitchesFocus(t *testing.T) {
	m := loadedModel(t, &fakeSource{paths: []string{"a.txt", "b.txt"}})
	m = run(t, m, key("tab"))
	assert.Equal(t, contentPane, m.focus)

	m = run(t, m, key("down"))
	assert.Equal(t, 0, m.cursor, "arrow keys scroll the content pane while it has focus")

	m = run(t, m, key("tab"))
	assert.Equal(t, treePane, m.focus)
}

func TestModel_QuitKey(t *testing.T) {
	m := NewModel(context.Background(), view.New("p1", &fakeSource{}, &fakeSource{}))
	updated, cmd := m.Update(key("q"))
	assert.True(t, updated.(Model).quitting)
	assert.NotNil(t, cmd)
	assert.Empty(t, updated.(Model).View())
}

func TestModel_WindowSize(t *testing.T) {
	m := NewModel(context.Background(), view.New("p1", &fakeSource{}, &fakeSource{}))
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	got := updated.(Model)
	assert.Equal(t, 100-treeWidth-4, got.content.Width)
	assert.Equal(t, 35, got.content.Height)
}

func TestModel_ListingRecoveryRefetchesSelection(t *testing.T) {
	src := &fakeSource{paths: []string{"a.md"}, files: map[string]string{"a.md": "# a"}}
	m := loadedModel(t, src)
	m = run(t, m, key("enter"))
	require.Contains(t, m.content.View(), "# a")

	src.listErr = errors.New("offline")
	m = run(t, m, key("r"))
	assert.Contains(t, m.View(), "No files available")

	src.listErr = nil
	updated, cmd := m.Update(key("r"))
	m = updated.(Model)
	updated, cmd = m.Update(cmd())
	m = updated.(Model)
	require.NotNil(t, cmd, "the restored selection is fetched again")
	updated, _ = m.Update(cmd())
	m = updated.(Model)
	assert.Contains(t, m.content.View(), "# a")
}
