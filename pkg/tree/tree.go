// Package tree builds, orders and queries project directory trees.
package tree

import (
	"strings"

	"github.com/novacode/novacode/pkg/models"
	"github.com/novacode/novacode/pkg/protocol"
)

// JoinPath constructs a child path from parent + name. The root path is "".
func JoinPath(parentPath, name string) string {
	if parentPath == "" {
		return name
	}
	return parentPath + "/" + name
}

// Find resolves a path in the tree. The empty path is the root.
func Find(root *models.TreeNode, path string) *models.TreeNode {
	if root == nil {
		return nil
	}
	path = strings.Trim(path, "/")
	if path == "" {
		return root
	}
	node := root
	for _, seg := range strings.Split(path, "/") {
		node = node.Child(seg)
		if node == nil {
			return nil
		}
	}
	return node
}

// WalkFunc is called for every node in depth-first pre-order. Returning
// false skips the node's children.
type WalkFunc func(path string, node *models.TreeNode, depth int) bool

// Walk visits root and all descendants. The root has depth 0.
func Walk(root *models.TreeNode, fn WalkFunc) {
	if root == nil {
		return
	}
	walk("", root, 0, fn)
}

func walk(path string, n *models.TreeNode, depth int, fn WalkFunc) {
	if !fn(path, n, depth) {
		return
	}
	for _, child := range n.Children {
		walk(JoinPath(path, child.Name), child, depth+1, fn)
	}
}

// CountNodes counts all nodes in a tree, root included.
func CountNodes(root *models.TreeNode) int {
	count := 0
	Walk(root, func(string, *models.TreeNode, int) bool {
		count++
		return true
	})
	return count
}

// Paths returns the flat form of the tree: every file path, plus a
// trailing-slash entry for each folder that has no children. Feeding the
// result to FromPaths rebuilds an equal tree.
func Paths(root *models.TreeNode) []string {
	var out []string
	Walk(root, func(path string, n *models.TreeNode, _ int) bool {
		switch {
		case path == "":
		case !n.IsFolder():
			out = append(out, path)
		case len(n.Children) == 0:
			out = append(out, path+"/")
		}
		return true
	})
	return out
}

// ToEntries converts the root's children to the nested wire form.
func ToEntries(root *models.TreeNode) []protocol.ListingEntry {
	if root == nil {
		return nil
	}
	return toEntries(root.Children)
}

func toEntries(nodes []*models.TreeNode) []protocol.ListingEntry {
	out := make([]protocol.ListingEntry, 0, len(nodes))
	for _, n := range nodes {
		if n.IsFolder() {
			out = append(out, protocol.FolderEntry(n.Name, toEntries(n.Children)...))
			continue
		}
		out = append(out, protocol.FileEntry(n.Name, string(n.FileType)))
	}
	return out
}
