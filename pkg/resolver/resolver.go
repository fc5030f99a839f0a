// Package resolver maps a selected file to the request that fetches its
// content and to the kind used to display it.
package resolver

import (
	"net/url"
	"strings"

	"github.com/novacode/novacode/pkg/filetype"
)

// FetchRequest addresses one file of one project.
type FetchRequest struct {
	ProjectID string
	Path      string
}

// URL returns the content endpoint for the request under baseURL, escaping
// every path segment.
func (r FetchRequest) URL(baseURL string) string {
	segments := strings.Split(strings.Trim(r.Path, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.TrimSuffix(baseURL, "/") +
		"/api/v1/projects/" + url.PathEscape(r.ProjectID) +
		"/content/" + strings.Join(segments, "/")
}

// ObjectKey returns the storage key the upload pipeline writes the file to.
func (r FetchRequest) ObjectKey() string {
	return r.ProjectID + "/" + strings.Trim(r.Path, "/")
}

// Resolution is the outcome of resolving a selection.
type Resolution struct {
	Request     FetchRequest
	DisplayKind filetype.DisplayKind
}

// Language returns the editor language id for the resolved file.
func (r Resolution) Language() string {
	return r.DisplayKind.EditorLanguage()
}

// Resolve builds the fetch request and display kind for a selected path.
// Content-kind detection never fails; unknown extensions resolve to
// plain text.
func Resolve(projectID, selectedPath string) Resolution {
	path := strings.Trim(selectedPath, "/")
	return Resolution{
		Request:     FetchRequest{ProjectID: projectID, Path: path},
		DisplayKind: filetype.DisplayKindOf(path),
	}
}
