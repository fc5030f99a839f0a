// Package models contains the data types shared by the server and the explorer.
package models

import "github.com/novacode/novacode/pkg/filetype"

// Kind discriminates folder nodes from file nodes.
type Kind string

const (
	KindFolder Kind = "folder"
	KindFile   Kind = "file"
)

// TreeNode is a file or folder in a project snapshot.
//
// A folder always carries a non-nil Children slice, even when empty. A file
// never carries Children. Nodes are owned by exactly one parent and the
// tree shape is not modified after construction.
type TreeNode struct {
	Name     string            `json:"name"`
	Kind     Kind              `json:"type"`
	FileType filetype.FileType `json:"fileType,omitempty"`
	Children []*TreeNode       `json:"children,omitempty"`
}

// NewFolder returns an empty folder node.
func NewFolder(name string) *TreeNode {
	return &TreeNode{
		Name:     name,
		Kind:     KindFolder,
		Children: []*TreeNode{},
	}
}

// NewFile returns a file node classified by its name.
func NewFile(name string) *TreeNode {
	return &TreeNode{
		Name:     name,
		Kind:     KindFile,
		FileType: filetype.Classify(name),
	}
}

// IsFolder reports whether the node has a children attribute.
func (n *TreeNode) IsFolder() bool {
	return n != nil && n.Children != nil
}

// Child returns the direct child with the given name, or nil.
func (n *TreeNode) Child(name string) *TreeNode {
	if n == nil {
		return nil
	}
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}
