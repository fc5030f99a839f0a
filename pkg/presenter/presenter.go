// Package presenter tracks per-view expand/select state over an immutable
// project tree and produces the rows a tree view renders.
package presenter

import (
	"iter"
	"strings"

	"github.com/novacode/novacode/pkg/models"
	"github.com/novacode/novacode/pkg/tree"
)

// State is the transient presentation state of one view. Folders are keyed
// by full path so that equally named folders at different depths never
// alias each other.
type State struct {
	Expanded map[string]bool
	Selected string // empty means no selection
}

// Entry is one rendered row.
type Entry struct {
	Node     *models.TreeNode
	Path     string
	Depth    int
	Expanded bool
	Selected bool
}

// Presenter is owned by a single view and is not safe for concurrent use.
// It never modifies the tree it presents.
type Presenter struct {
	root  *models.TreeNode
	state State
	held  *State // state set aside by Suspend
}

// New returns a presenter with every folder collapsed and nothing selected.
// A nil root is treated as an empty project.
func New(root *models.TreeNode) *Presenter {
	if root == nil {
		root = models.NewFolder("")
	}
	return &Presenter{
		root:  root,
		state: State{Expanded: make(map[string]bool)},
	}
}

// Root returns the presented tree.
func (p *Presenter) Root() *models.TreeNode {
	return p.root
}

// State returns a copy of the current presentation state.
func (p *Presenter) State() State {
	expanded := make(map[string]bool, len(p.state.Expanded))
	for k := range p.state.Expanded {
		expanded[k] = true
	}
	return State{Expanded: expanded, Selected: p.state.Selected}
}

func clean(path string) string {
	return strings.Trim(path, "/")
}

func (p *Presenter) folder(path string) bool {
	if path == "" {
		return false
	}
	return tree.Find(p.root, path).IsFolder()
}

// Toggle expands a collapsed folder or collapses an expanded one. Paths
// that do not resolve to a folder, including the always-open root, are
// ignored. It reports whether the state changed.
func (p *Presenter) Toggle(path string) bool {
	path = clean(path)
	if !p.folder(path) {
		return false
	}
	if p.state.Expanded[path] {
		delete(p.state.Expanded, path)
	} else {
		p.state.Expanded[path] = true
	}
	return true
}

// SelectFile selects a file. Selecting a folder toggles it instead and
// leaves the selection alone; unknown paths are ignored. It reports
// whether the state changed.
func (p *Presenter) SelectFile(path string) bool {
	path = clean(path)
	n := tree.Find(p.root, path)
	switch {
	case n == nil || path == "":
		return false
	case n.IsFolder():
		return p.Toggle(path)
	default:
		p.state.Selected = path
		return true
	}
}

// Selected returns the selected file path, if any.
func (p *Presenter) Selected() (string, bool) {
	return p.state.Selected, p.state.Selected != ""
}

// IsExpanded reports whether the folder at path is open.
func (p *Presenter) IsExpanded(path string) bool {
	return p.state.Expanded[clean(path)]
}

// ExpandAll opens every folder.
func (p *Presenter) ExpandAll() {
	tree.Walk(p.root, func(path string, n *models.TreeNode, _ int) bool {
		if path != "" && n.IsFolder() {
			p.state.Expanded[path] = true
		}
		return true
	})
}

// CollapseAll closes every folder.
func (p *Presenter) CollapseAll() {
	clear(p.state.Expanded)
}

// Reveal expands every ancestor folder of path so its row becomes visible.
// Unknown paths are ignored.
func (p *Presenter) Reveal(path string) bool {
	path = clean(path)
	if path == "" || tree.Find(p.root, path) == nil {
		return false
	}
	segments := strings.Split(path, "/")
	prefix := ""
	for _, seg := range segments[:len(segments)-1] {
		prefix = tree.JoinPath(prefix, seg)
		p.state.Expanded[prefix] = true
	}
	return true
}

// Retain moves the presenter onto a freshly built tree, keeping expanded
// folders and the selection wherever their paths still resolve to the same
// kind of node.
func (p *Presenter) Retain(root *models.TreeNode) {
	if root == nil {
		root = models.NewFolder("")
	}
	p.root = root
	if p.held != nil {
		p.state, p.held = *p.held, nil
	}
	for path := range p.state.Expanded {
		if !p.folder(path) {
			delete(p.state.Expanded, path)
		}
	}
	if sel := p.state.Selected; sel != "" {
		if n := tree.Find(root, sel); n == nil || n.IsFolder() {
			p.state.Selected = ""
		}
	}
}

// Suspend shows an empty tree and sets the current state aside. The next
// Retain restores it against the new tree. Repeated calls keep the state
// set aside first.
func (p *Presenter) Suspend() {
	if p.held == nil {
		held := p.state
		p.held = &held
	}
	p.root = models.NewFolder("")
	p.state = State{Expanded: make(map[string]bool)}
}

// VisibleEntries yields the rows currently rendered, depth first from the
// top-level entries (depth 0). The root itself is never a row. Each call
// walks the tree afresh from the current state.
func (p *Presenter) VisibleEntries() iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		p.visit(p.root.Children, "", 0, yield)
	}
}

func (p *Presenter) visit(nodes []*models.TreeNode, parent string, depth int, yield func(Entry) bool) bool {
	for _, n := range nodes {
		path := tree.JoinPath(parent, n.Name)
		open := n.IsFolder() && p.state.Expanded[path]
		e := Entry{
			Node:     n,
			Path:     path,
			Depth:    depth,
			Expanded: open,
			Selected: !n.IsFolder() && path == p.state.Selected,
		}
		if !yield(e) {
			return false
		}
		if open && !p.visit(n.Children, path, depth+1, yield) {
			return false
		}
	}
	return true
}

// Rows collects VisibleEntries into a slice.
func (p *Presenter) Rows() []Entry {
	var rows []Entry
	for e := range p.VisibleEntries() {
		rows = append(rows, e)
	}
	return rows
}
