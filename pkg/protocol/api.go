// Package protocol defines the API request/response types.
package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ListingFormat selects the shape of a listing response.
type ListingFormat string

const (
	FormatFlat   ListingFormat = "flat"
	FormatNested ListingFormat = "nested"
)

// ParseListingFormat maps a query value to a format. Empty means flat.
func ParseListingFormat(s string) (ListingFormat, error) {
	switch ListingFormat(s) {
	case "", FormatFlat:
		return FormatFlat, nil
	case FormatNested:
		return FormatNested, nil
	default:
		return "", fmt.Errorf("unknown listing format %q", s)
	}
}

// Listing is returned by GET /api/v1/projects/{id}/listing.
// Exactly one of Paths, Entries or Index is meaningful; an all-empty
// listing describes a project with no files.
type Listing struct {
	ProjectID string          `json:"projectId,omitempty"`
	Format    ListingFormat   `json:"format,omitempty"`
	Paths     []string        `json:"paths,omitempty"`
	Entries   []ListingEntry  `json:"entries,omitempty"`
	Index     *DirectoryIndex `json:"index,omitempty"`
}

// ListingEntry is one node of the nested listing form.
// Children is a pointer so that an empty folder ("children": []) can be
// told apart from a file (no children attribute).
type ListingEntry struct {
	Name     string          `json:"name"`
	Type     string          `json:"type,omitempty"`
	Children *[]ListingEntry `json:"children,omitempty"`
}

// FolderEntry returns a nested entry with a (possibly empty) children list.
func FolderEntry(name string, children ...ListingEntry) ListingEntry {
	if children == nil {
		children = []ListingEntry{}
	}
	return ListingEntry{Name: name, Children: &children}
}

// FileEntry returns a nested entry without children.
func FileEntry(name, typ string) ListingEntry {
	return ListingEntry{Name: name, Type: typ}
}

// DirectoryIndex is the {directories, files} shape written by the codebase
// analyzer: directories keyed by name, files as bare names.
type DirectoryIndex struct {
	Directories map[string]*DirectoryIndex `json:"directories"`
	Files       []string                   `json:"files"`
}

// DecodeListing accepts any of the listing shapes a backend may produce:
// a Listing object, a bare array of paths, a bare array of nested entries,
// a DirectoryIndex object, or an empty object/array.
func DecodeListing(data []byte) (*Listing, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return &Listing{}, nil
	}

	switch data[0] {
	case '[':
		var raw []json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("decode listing array: %w", err)
		}
		if len(raw) == 0 {
			return &Listing{}, nil
		}
		if first := bytes.TrimSpace(raw[0]); len(first) > 0 && first[0] == '"' {
			var paths []string
			if err := json.Unmarshal(data, &paths); err != nil {
				return nil, fmt.Errorf("decode flat listing: %w", err)
			}
			return &Listing{Format: FormatFlat, Paths: paths}, nil
		}
		var entries []ListingEntry
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("decode nested listing: %w", err)
		}
		return &Listing{Format: FormatNested, Entries: entries}, nil

	case '{':
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(data, &fields); err != nil {
			return nil, fmt.Errorf("decode listing object: %w", err)
		}
		_, hasDirs := fields["directories"]
		_, hasFiles := fields["files"]
		if hasDirs || hasFiles {
			var idx DirectoryIndex
			if err := json.Unmarshal(data, &idx); err != nil {
				return nil, fmt.Errorf("decode directory index: %w", err)
			}
			return &Listing{Format: FormatNested, Index: &idx}, nil
		}
		var l Listing
		if err := json.Unmarshal(data, &l); err != nil {
			return nil, fmt.Errorf("decode listing: %w", err)
		}
		return &l, nil

	default:
		return nil, fmt.Errorf("decode listing: unexpected %q", data[0])
	}
}

// ErrorResponse is returned on API errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Details string `json:"details,omitempty"`
}

// UploadResponse is returned by PUT /api/v1/projects/{id}/files/{path}.
type UploadResponse struct {
	ProjectID string `json:"projectId"`
	Path      string `json:"path"`
	Size      int64  `json:"size"`
	Hash      string `json:"hash"`
}

// CreateProjectResponse is returned by POST /api/v1/projects.
type CreateProjectResponse struct {
	Message   string `json:"message"`
	ProjectID string `json:"projectId"`
	Path      string `json:"path,omitempty"`
	URL       string `json:"url,omitempty"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}
