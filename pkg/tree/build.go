package tree

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/novacode/novacode/pkg/models"
	"github.com/novacode/novacode/pkg/protocol"
)

// builder indexes every node it creates by full path so that inserting a
// path costs one map lookup per segment.
type builder struct {
	root  *models.TreeNode
	nodes map[string]*models.TreeNode
}

func newBuilder() *builder {
	root := models.NewFolder("")
	return &builder{
		root:  root,
		nodes: map[string]*models.TreeNode{"": root},
	}
}

// FromPaths builds a tree from slash-delimited paths relative to the project
// root. Intermediate folders are created on demand; a trailing slash
// declares a folder with no files. Inserting the same file twice is a no-op.
func FromPaths(paths []string) (*models.TreeNode, error) {
	b := newBuilder()
	for _, p := range paths {
		if err := b.insertPath(p); err != nil {
			return nil, err
		}
	}
	return b.root, nil
}

func (b *builder) insertPath(raw string) error {
	p := strings.TrimPrefix(raw, "/")
	folderOnly := strings.HasSuffix(p, "/")
	p = strings.TrimSuffix(p, "/")
	if p == "" {
		if raw == "" {
			return malformed(raw, "empty path")
		}
		// "/" names the root itself.
		return nil
	}
	if !utf8.ValidString(p) {
		return malformed(raw, "path is not valid UTF-8")
	}

	segments := strings.Split(p, "/")
	parent, parentPath := b.root, ""
	for i, seg := range segments {
		if err := checkSegment(raw, seg); err != nil {
			return err
		}
		path := JoinPath(parentPath, seg)
		last := i == len(segments)-1

		existing := b.nodes[path]
		switch {
		case last && !folderOnly:
			if existing == nil {
				b.attach(parent, path, models.NewFile(seg))
				return nil
			}
			if existing.IsFolder() {
				return malformed(path, "file collides with a folder of the same name")
			}
			return nil
		case existing == nil:
			existing = models.NewFolder(seg)
			b.attach(parent, path, existing)
		case !existing.IsFolder():
			return malformed(path, "segment is a file where a folder is required")
		}
		parent, parentPath = existing, path
	}
	return nil
}

func (b *builder) attach(parent *models.TreeNode, path string, n *models.TreeNode) {
	parent.Children = append(parent.Children, n)
	b.nodes[path] = n
}

func checkSegment(raw, seg string) error {
	switch seg {
	case "":
		return malformed(raw, "empty path segment")
	case ".", "..":
		return malformed(raw, "relative segment %q", seg)
	}
	return nil
}

type claim int

const (
	claimNone claim = iota
	claimLeaf
	claimBranch
)

func claimOf(typ string) claim {
	switch strings.ToLower(typ) {
	case "":
		return claimNone
	case string(models.KindFolder), "directory", "dir":
		return claimBranch
	default:
		return claimLeaf
	}
}

// FromEntries builds a tree from the nested {name, type?, children?} form.
// An entry is a folder iff it carries a children attribute; a type naming a
// folder without children yields an empty folder.
func FromEntries(entries []protocol.ListingEntry) (*models.TreeNode, error) {
	b := newBuilder()
	if err := b.addEntries(b.root, "", entries); err != nil {
		return nil, err
	}
	return b.root, nil
}

// validName reports whether name can label a single tree node.
func validName(name string) bool {
	return name != "" && name != "." && name != ".." && !strings.Contains(name, "/")
}

func (b *builder) addEntries(parent *models.TreeNode, parentPath string, entries []protocol.ListingEntry) error {
	for _, e := range entries {
		if e.Name == "" {
			return malformed(parentPath, "entry without a name")
		}
		if !validName(e.Name) {
			return malformed(parentPath, "invalid entry name %q", e.Name)
		}
		path := JoinPath(parentPath, e.Name)
		if _, dup := b.nodes[path]; dup {
			return malformed(path, "duplicate sibling name")
		}

		c := claimOf(e.Type)
		hasChildren := e.Children != nil
		if hasChildren && c == claimLeaf {
			return malformed(path, "entry of type %q claims to be both leaf and branch", e.Type)
		}

		if !hasChildren && c != claimBranch {
			b.attach(parent, path, models.NewFile(e.Name))
			continue
		}

		folder := models.NewFolder(e.Name)
		b.attach(parent, path, folder)
		if hasChildren {
			if err := b.addEntries(folder, path, *e.Children); err != nil {
				return err
			}
		}
	}
	return nil
}

// FromDirectoryIndex builds a tree from the {directories, files} form.
func FromDirectoryIndex(idx *protocol.DirectoryIndex) (*models.TreeNode, error) {
	b := newBuilder()
	if err := b.addIndex(b.root, "", idx); err != nil {
		return nil, err
	}
	return b.root, nil
}

func (b *builder) addIndex(parent *models.TreeNode, parentPath string, idx *protocol.DirectoryIndex) error {
	if idx == nil {
		return nil
	}

	names := make([]string, 0, len(idx.Directories))
	for name := range idx.Directories {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if !validName(name) {
			return malformed(parentPath, "invalid directory name %q", name)
		}
		path := JoinPath(parentPath, name)
		folder := models.NewFolder(name)
		b.attach(parent, path, folder)
		if err := b.addIndex(folder, path, idx.Directories[name]); err != nil {
			return err
		}
	}

	for _, name := range idx.Files {
		if !validName(name) {
			return malformed(parentPath, "invalid file name %q", name)
		}
		path := JoinPath(parentPath, name)
		if _, dup := b.nodes[path]; dup {
			return malformed(path, "duplicate sibling name")
		}
		b.attach(parent, path, models.NewFile(name))
	}
	return nil
}

// FromListing builds a tree from whichever form the listing carries. A nil
// or empty listing yields a root folder with no children.
func FromListing(l *protocol.Listing) (*models.TreeNode, error) {
	if l == nil {
		return models.NewFolder(""), nil
	}

	forms := 0
	for _, present := range []bool{len(l.Paths) > 0, len(l.Entries) > 0, l.Index != nil} {
		if present {
			forms++
		}
	}
	if forms > 1 {
		return nil, malformed("", "listing carries more than one representation")
	}

	switch {
	case len(l.Entries) > 0:
		return FromEntries(l.Entries)
	case l.Index != nil:
		return FromDirectoryIndex(l.Index)
	default:
		return FromPaths(l.Paths)
	}
}

// Build parses a listing and applies the ordering policy.
func Build(l *protocol.Listing) (*models.TreeNode, error) {
	root, err := FromListing(l)
	if err != nil {
		return nil, err
	}
	return Normalize(root), nil
}
