package tree

import (
	"errors"
	"fmt"
	"math/rand"
	"reflect"
	"testing"

	"github.com/novacode/novacode/pkg/filetype"
	"github.com/novacode/novacode/pkg/models"
	"github.com/novacode/novacode/pkg/protocol"
)

func childNames(n *models.TreeNode) []string {
	names := make([]string, 0, len(n.Children))
	for _, c := range n.Children {
		names = append(names, c.Name)
	}
	return names
}

func TestFromPaths_Example(t *testing.T) {
	root, err := FromPaths([]string{"src/index.html", "src/styles.css", "README.md"})
	if err != nil {
		t.Fatalf("FromPaths: %v", err)
	}
	Normalize(root)

	if got, want := childNames(root), []string{"src", "README.md"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("root children = %v, want %v", got, want)
	}
	src := root.Children[0]
	if !src.IsFolder() || src.Kind != models.KindFolder {
		t.Fatalf("src should be a folder, got %+v", src)
	}
	if got, want := childNames(src), []string{"index.html", "styles.css"}; !reflect.DeepEqual(got, want) {
		t.Errorf("src children = %v, want %v", got, want)
	}
	if src.Children[0].FileType != filetype.HTML {
		t.Errorf("index.html FileType = %q", src.Children[0].FileType)
	}
	readme := root.Children[1]
	if readme.IsFolder() || readme.Kind != models.KindFile || readme.FileType != filetype.Markdown {
		t.Errorf("README.md = %+v, want md file", readme)
	}
}

func TestFromPaths_SharedPrefixCreatesFolderOnce(t *testing.T) {
	root, err := FromPaths([]string{"a/b/c.js", "a/b/d.js", "a/e.js", "a/b/c.js"})
	if err != nil {
		t.Fatalf("FromPaths: %v", err)
	}
	if len(root.Children) != 1 {
		t.Fatalf("root has %d children, want 1", len(root.Children))
	}
	b := Find(root, "a/b")
	if b == nil || len(b.Children) != 2 {
		t.Fatalf("a/b = %+v, want folder with 2 children", b)
	}
	if got := CountNodes(root); got != 6 {
		t.Errorf("CountNodes = %d, want 6", got)
	}
}

func TestFromPaths_Tolerated(t *testing.T) {
	root, err := FromPaths([]string{"/lead.txt", "docs/", "docs/", "/"})
	if err != nil {
		t.Fatalf("FromPaths: %v", err)
	}
	if Find(root, "lead.txt") == nil {
		t.Error("leading slash should be stripped")
	}
	docs := Find(root, "docs")
	if docs == nil || !docs.IsFolder() || len(docs.Children) != 0 {
		t.Errorf("docs = %+v, want empty folder", docs)
	}
}

func TestFromPaths_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		paths []string
	}{
		{"empty path", []string{""}},
		{"empty segment", []string{"a//b"}},
		{"dot segment", []string{"a/./b"}},
		{"dotdot segment", []string{"../etc/passwd"}},
		{"file then folder", []string{"a", "a/b"}},
		{"folder then file", []string{"a/b", "a"}},
		{"folder marker on file", []string{"a.txt", "a.txt/"}},
		{"invalid utf8", []string{"bad\xff.txt"}},
	}
	for _, tt := range tests {
		root, err := FromPaths(tt.paths)
		if err == nil {
			t.Errorf("%s: expected error", tt.name)
			continue
		}
		if root != nil {
			t.Errorf("%s: partial tree returned", tt.name)
		}
		if !errors.Is(err, ErrMalformedListing) {
			t.Errorf("%s: error %v is not ErrMalformedListing", tt.name, err)
		}
		var mle *MalformedListingError
		if !errors.As(err, &mle) {
			t.Errorf("%s: error %T is not *MalformedListingError", tt.name, err)
		}
	}
}

func TestFromEntries(t *testing.T) {
	entries := []protocol.ListingEntry{
		protocol.FileEntry("README.md", "md"),
		protocol.FolderEntry("src",
			protocol.FileEntry("index.html", "html"),
			protocol.FolderEntry("empty"),
		),
		{Name: "assets", Type: "folder"},
	}
	root, err := FromEntries(entries)
	if err != nil {
		t.Fatalf("FromEntries: %v", err)
	}
	if n := Find(root, "src/empty"); n == nil || !n.IsFolder() || len(n.Children) != 0 {
		t.Errorf("src/empty = %+v, want empty folder", n)
	}
	if n := Find(root, "assets"); n == nil || !n.IsFolder() {
		t.Errorf("assets = %+v, want folder", n)
	}
	if n := Find(root, "README.md"); n == nil || n.IsFolder() {
		t.Errorf("README.md = %+v, want file", n)
	}
}

func TestFromEntries_Malformed(t *testing.T) {
	children := []protocol.ListingEntry{}
	tests := []struct {
		name    string
		entries []protocol.ListingEntry
	}{
		{"missing name", []protocol.ListingEntry{{Type: "js"}}},
		{"nested missing name", []protocol.ListingEntry{protocol.FolderEntry("src", protocol.ListingEntry{})}},
		{"leaf and branch", []protocol.ListingEntry{{Name: "x.js", Type: "file", Children: &children}}},
		{"typed leaf with children", []protocol.ListingEntry{{Name: "x.js", Type: "js", Children: &children}}},
		{"duplicate siblings", []protocol.ListingEntry{protocol.FileEntry("a", ""), protocol.FolderEntry("a")}},
		{"duplicate nested", []protocol.ListingEntry{protocol.FolderEntry("s", protocol.FileEntry("a", ""), protocol.FileEntry("a", ""))}},
		{"separator in name", []protocol.ListingEntry{protocol.FileEntry("a/b", "")}},
		{"dot name", []protocol.ListingEntry{protocol.FolderEntry(".")}},
		{"dot-dot name", []protocol.ListingEntry{protocol.FileEntry("..", "")}},
	}
	for _, tt := range tests {
		root, err := FromEntries(tt.entries)
		if !errors.Is(err, ErrMalformedListing) {
			t.Errorf("%s: err = %v, want ErrMalformedListing", tt.name, err)
		}
		if root != nil {
			t.Errorf("%s: partial tree returned", tt.name)
		}
	}
}

func TestFromDirectoryIndex(t *testing.T) {
	idx := &protocol.DirectoryIndex{
		Directories: map[string]*protocol.DirectoryIndex{
			"src": {Files: []string{"index.html", "styles.css"}},
			"lib": nil,
		},
		Files: []string{"README.md"},
	}
	root, err := FromDirectoryIndex(idx)
	if err != nil {
		t.Fatalf("FromDirectoryIndex: %v", err)
	}
	flat, err := FromPaths([]string{"src/index.html", "src/styles.css", "README.md", "lib/"})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(Normalize(root), Normalize(flat)) {
		t.Error("directory index and flat paths produced different trees")
	}

	dup := &protocol.DirectoryIndex{
		Directories: map[string]*protocol.DirectoryIndex{"a": {}},
		Files:       []string{"a"},
	}
	if _, err := FromDirectoryIndex(dup); !errors.Is(err, ErrMalformedListing) {
		t.Errorf("dir/file collision err = %v", err)
	}
}

func TestFromDirectoryIndex_InvalidNames(t *testing.T) {
	tests := []struct {
		name string
		idx  *protocol.DirectoryIndex
	}{
		{"empty file", &protocol.DirectoryIndex{Files: []string{""}}},
		{"dot file", &protocol.DirectoryIndex{Files: []string{"."}}},
		{"dot-dot file", &protocol.DirectoryIndex{Files: []string{".."}}},
		{"separator in file", &protocol.DirectoryIndex{Files: []string{"a/b"}}},
		{"dot directory", &protocol.DirectoryIndex{Directories: map[string]*protocol.DirectoryIndex{".": {}}}},
		{"dot-dot directory", &protocol.DirectoryIndex{Directories: map[string]*protocol.DirectoryIndex{"..": {Files: []string{"x"}}}}},
		{"nested dot-dot", &protocol.DirectoryIndex{Directories: map[string]*protocol.DirectoryIndex{
			"src": {Files: []string{".."}},
		}}},
	}
	for _, tt := range tests {
		root, err := FromDirectoryIndex(tt.idx)
		if !errors.Is(err, ErrMalformedListing) {
			t.Errorf("%s: err = %v, want ErrMalformedListing", tt.name, err)
		}
		if root != nil {
			t.Errorf("%s: partial tree returned", tt.name)
		}
	}
}

func TestFromListing(t *testing.T) {
	for _, l := range []*protocol.Listing{nil, {}, {Paths: []string{}}} {
		root, err := FromListing(l)
		if err != nil {
			t.Fatalf("FromListing(%+v): %v", l, err)
		}
		if !root.IsFolder() || len(root.Children) != 0 {
			t.Errorf("empty listing root = %+v", root)
		}
	}

	mixed := &protocol.Listing{
		Paths:   []string{"a"},
		Entries: []protocol.ListingEntry{protocol.FileEntry("a", "")},
	}
	if _, err := FromListing(mixed); !errors.Is(err, ErrMalformedListing) {
		t.Errorf("mixed listing err = %v", err)
	}
}

func TestFlatAndNestedAgree(t *testing.T) {
	paths := []string{"src/index.html", "src/styles.css", "README.md", "src/lib/util.js"}
	flat, err := Build(&protocol.Listing{Paths: paths})
	if err != nil {
		t.Fatal(err)
	}
	nested, err := Build(&protocol.Listing{Entries: []protocol.ListingEntry{
		protocol.FolderEntry("src",
			protocol.FileEntry("styles.css", "css"),
			protocol.FolderEntry("lib", protocol.FileEntry("util.js", "js")),
			protocol.FileEntry("index.html", "html"),
		),
		protocol.FileEntry("README.md", "md"),
	}})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(flat, nested) {
		t.Error("flat and nested listings built different trees")
	}
}

// randomPaths produces a well-formed flat path set: file names carry an
// extension and folder names never do, so no segment can be both.
func randomPaths(r *rand.Rand) []string {
	folders := []string{"src", "lib", "Docs", "assets", "éclair", "zeta", "Alpha"}
	files := []string{"index.html", "styles.css", "README.md", "app.js", "main.ts", "data.json", "notes.txt", "Zed.md", "ärger.js"}
	n := r.Intn(25)
	paths := make([]string, 0, n)
	for i := 0; i < n; i++ {
		depth := r.Intn(4)
		p := ""
		for d := 0; d < depth; d++ {
			p += folders[r.Intn(len(folders))] + "/"
		}
		p += files[r.Intn(len(files))]
		paths = append(paths, p)
	}
	return paths
}

func TestProperties_RandomPathSets(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for i := 0; i < 200; i++ {
		paths := randomPaths(r)
		name := fmt.Sprintf("set %d", i)

		root, err := FromPaths(paths)
		if err != nil {
			t.Fatalf("%s: FromPaths(%v): %v", name, paths, err)
		}
		Normalize(root)
		if !IsNormalized(root) {
			t.Fatalf("%s: tree not normalized after Normalize", name)
		}

		// Idempotence: a second pass changes nothing.
		again, _ := FromPaths(paths)
		Normalize(again)
		Normalize(again)
		if !reflect.DeepEqual(root, again) {
			t.Fatalf("%s: normalize is not idempotent", name)
		}

		// Upload order does not matter.
		shuffled := append([]string(nil), paths...)
		r.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		other, err := FromPaths(shuffled)
		if err != nil {
			t.Fatalf("%s: shuffled FromPaths: %v", name, err)
		}
		if !reflect.DeepEqual(root, Normalize(other)) {
			t.Fatalf("%s: result depends on input order", name)
		}

		// Kind agrees with the children attribute everywhere.
		Walk(root, func(path string, n *models.TreeNode, _ int) bool {
			if n.IsFolder() != (n.Kind == models.KindFolder) {
				t.Errorf("%s: node %q kind %q disagrees with children", name, path, n.Kind)
			}
			return true
		})
	}
}

func TestNormalize_Order(t *testing.T) {
	root, err := FromPaths([]string{"zeta.md", "Banana/x", "apple/x", "éclair.js", "eclair.js", "ezra.js", "Apple.txt"})
	if err != nil {
		t.Fatal(err)
	}
	Normalize(root)
	want := []string{"apple", "Banana", "Apple.txt", "eclair.js", "éclair.js", "ezra.js", "zeta.md"}
	if got := childNames(root); !reflect.DeepEqual(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
}

func TestNormalize_Nil(t *testing.T) {
	if Normalize(nil) != nil {
		t.Error("Normalize(nil) should return nil")
	}
	if !IsNormalized(nil) {
		t.Error("IsNormalized(nil) should be true")
	}
}
