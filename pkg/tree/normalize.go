package tree

import (
	"slices"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/novacode/novacode/pkg/models"
)

// A Collator keeps scratch buffers, so each Normalize call gets its own.
func newCollator() *collate.Collator {
	return collate.New(language.Und)
}

// compare orders folders before files, then names by root-locale collation.
// Names the collator considers equal fall back to byte order.
func compare(c *collate.Collator, a, b *models.TreeNode) int {
	if fa, fb := a.IsFolder(), b.IsFolder(); fa != fb {
		if fa {
			return -1
		}
		return 1
	}
	if r := c.CompareString(a.Name, b.Name); r != 0 {
		return r
	}
	return strings.Compare(a.Name, b.Name)
}

// Normalize sorts every sibling list in place, root to leaves, and returns
// root. Normalizing an already normalized tree leaves it unchanged.
func Normalize(root *models.TreeNode) *models.TreeNode {
	if root == nil {
		return nil
	}
	c := newCollator()
	normalize(c, root)
	return root
}

func normalize(c *collate.Collator, n *models.TreeNode) {
	if !n.IsFolder() {
		return
	}
	slices.SortStableFunc(n.Children, func(a, b *models.TreeNode) int {
		return compare(c, a, b)
	})
	for _, child := range n.Children {
		normalize(c, child)
	}
}

// IsNormalized reports whether every sibling list already satisfies the
// ordering policy.
func IsNormalized(root *models.TreeNode) bool {
	if root == nil {
		return true
	}
	return isNormalized(newCollator(), root)
}

func isNormalized(c *collate.Collator, n *models.TreeNode) bool {
	for i := 1; i < len(n.Children); i++ {
		if compare(c, n.Children[i-1], n.Children[i]) >= 0 {
			return false
		}
	}
	for _, child := range n.Children {
		if !isNormalized(c, child) {
			return false
		}
	}
	return true
}
