// Package view holds one project view session: the built tree, its
// presentation state, and the content of the selected file.
//
// Listing and content fetches follow last-request-wins. Every fetch takes a
// generation number when it starts; when a result comes back after a newer
// fetch of the same kind has started, it is dropped and the caller gets
// ErrSuperseded. In-flight requests are never aborted.
package view

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/novacode/novacode/pkg/client"
	"github.com/novacode/novacode/pkg/logging"
	"github.com/novacode/novacode/pkg/models"
	"github.com/novacode/novacode/pkg/presenter"
	"github.com/novacode/novacode/pkg/protocol"
	"github.com/novacode/novacode/pkg/resolver"
	"github.com/novacode/novacode/pkg/tree"
)

// ErrSuperseded is returned to a fetch whose result arrived after a newer
// fetch of the same kind was issued.
var ErrSuperseded = errors.New("superseded by a newer request")

// ListingUnavailableError reports that the project's listing could not be
// obtained or built. The view shows an empty tree while it is set.
type ListingUnavailableError struct {
	ProjectID string
	Err       error
}

func (e *ListingUnavailableError) Error() string {
	return fmt.Sprintf("listing for project %s unavailable: %v", e.ProjectID, e.Err)
}

func (e *ListingUnavailableError) Unwrap() error {
	return e.Err
}

// ContentFetchError reports that the selected file's bytes could not be
// fetched. The selection is kept so the fetch can be retried.
type ContentFetchError struct {
	Path     string
	NotFound bool
	Err      error
}

func (e *ContentFetchError) Error() string {
	if e.NotFound {
		return fmt.Sprintf("file %s not found", e.Path)
	}
	return fmt.Sprintf("fetch %s: %v", e.Path, e.Err)
}

func (e *ContentFetchError) Unwrap() error {
	return e.Err
}

// ListingSource returns the listing of a project.
type ListingSource interface {
	FetchListing(ctx context.Context, projectID string) (*protocol.Listing, error)
}

// ContentSource returns the bytes of one file.
type ContentSource interface {
	FetchContent(ctx context.Context, req resolver.FetchRequest) ([]byte, error)
}

// Content is the editor pane state for the selected file.
type Content struct {
	Path       string
	Resolution resolver.Resolution
	Data       []byte
	Loading    bool
	Err        error
}

// View is a single project view. It is safe for concurrent use; fetch
// results are applied from whichever goroutine ran the fetch.
type View struct {
	projectID string
	listings  ListingSource
	contents  ContentSource

	mu         sync.Mutex
	pres       *presenter.Presenter
	loaded     bool
	listingErr error
	listingGen uint64
	contentGen uint64
	content    Content
}

// New returns a view of projectID with an empty tree. Call Load to fetch
// the listing.
func New(projectID string, listings ListingSource, contents ContentSource) *View {
	return &View{
		projectID: projectID,
		listings:  listings,
		contents:  contents,
		pres:      presenter.New(nil),
	}
}

// ProjectID returns the project this view shows.
func (v *View) ProjectID() string {
	return v.projectID
}

// Load fetches the listing and rebuilds the tree. Expanded folders and the
// selection carry over where their paths still exist. On failure the view
// shows an empty tree and the returned *ListingUnavailableError is kept
// until the next successful load, which restores the expanded folders and
// selection held from before the failure.
func (v *View) Load(ctx context.Context) error {
	v.mu.Lock()
	v.listingGen++
	gen := v.listingGen
	v.mu.Unlock()

	root, err := v.fetchTree(ctx)

	v.mu.Lock()
	defer v.mu.Unlock()
	if gen != v.listingGen {
		logging.Debug("discarding superseded listing", logging.Project(v.projectID))
		return ErrSuperseded
	}

	v.loaded = true
	if err != nil {
		v.listingErr = &ListingUnavailableError{ProjectID: v.projectID, Err: err}
		v.pres.Suspend()
		v.clearContent()
		logging.Warn("listing unavailable", logging.Project(v.projectID), logging.Err(err))
		return v.listingErr
	}

	v.listingErr = nil
	v.pres.Retain(root)
	if sel, ok := v.pres.Selected(); !ok || sel != v.content.Path {
		v.clearContent()
	}
	return nil
}

func (v *View) fetchTree(ctx context.Context) (*models.TreeNode, error) {
	l, err := v.listings.FetchListing(ctx, v.projectID)
	if err != nil {
		return nil, err
	}
	return tree.Build(l)
}

// clearContent drops the editor pane and orphans any pending content fetch.
func (v *View) clearContent() {
	v.contentGen++
	v.content = Content{}
}

// Loaded reports whether a listing fetch has completed, successfully or not.
func (v *View) Loaded() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.loaded
}

// ListingErr returns the error of the last completed listing fetch.
func (v *View) ListingErr() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.listingErr
}

// Empty reports whether the project currently shows no entries.
func (v *View) Empty() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.pres.Root().Children) == 0
}

// Rows returns the visible rows.
func (v *View) Rows() []presenter.Entry {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.pres.Rows()
}

// Toggle opens or closes a folder.
func (v *View) Toggle(path string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.pres.Toggle(path)
}

// ExpandAll opens every folder.
func (v *View) ExpandAll() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.pres.ExpandAll()
}

// CollapseAll closes every folder.
func (v *View) CollapseAll() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.pres.CollapseAll()
}

// Reveal expands the ancestors of path.
func (v *View) Reveal(path string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.pres.Reveal(path)
}

// IsFolder reports whether path names a folder in the current tree.
func (v *View) IsFolder(path string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return tree.Find(v.pres.Root(), path).IsFolder()
}

// Selected returns the selected file path, if any.
func (v *View) Selected() (string, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.pres.Selected()
}

// Content returns a copy of the editor pane state.
func (v *View) Content() Content {
	v.mu.Lock()
	defer v.mu.Unlock()
	c := v.content
	c.Data = append([]byte(nil), v.content.Data...)
	return c
}

// Select activates the entry at path. A folder is toggled and nothing is
// fetched. A file becomes the selection and its content is fetched,
// superseding any fetch still pending.
func (v *View) Select(ctx context.Context, path string) error {
	v.mu.Lock()
	if !v.pres.SelectFile(path) {
		v.mu.Unlock()
		return nil
	}
	sel, ok := v.pres.Selected()
	if !ok || tree.Find(v.pres.Root(), path).IsFolder() {
		v.mu.Unlock()
		return nil
	}
	gen, res := v.beginFetch(sel)
	v.mu.Unlock()
	return v.fetchContent(ctx, gen, res)
}

// Retry re-fetches the content of the current selection.
func (v *View) Retry(ctx context.Context) error {
	v.mu.Lock()
	sel, ok := v.pres.Selected()
	if !ok {
		v.mu.Unlock()
		return nil
	}
	gen, res := v.beginFetch(sel)
	v.mu.Unlock()
	return v.fetchContent(ctx, gen, res)
}

// beginFetch starts a content fetch generation for path. The caller holds
// v.mu, so the selection and the generation change together.
func (v *View) beginFetch(path string) (uint64, resolver.Resolution) {
	res := resolver.Resolve(v.projectID, path)
	v.contentGen++
	v.content = Content{Path: path, Resolution: res, Loading: true}
	return v.contentGen, res
}

func (v *View) fetchContent(ctx context.Context, gen uint64, res resolver.Resolution) error {
	path := res.Request.Path
	data, err := v.contents.FetchContent(ctx, res.Request)

	v.mu.Lock()
	defer v.mu.Unlock()
	if gen != v.contentGen {
		logging.Debug("discarding superseded content", logging.Project(v.projectID), logging.Path(path))
		return ErrSuperseded
	}

	v.content.Loading = false
	if err != nil {
		ferr := &ContentFetchError{Path: path, NotFound: errors.Is(err, client.ErrNotFound), Err: err}
		v.content.Err = ferr
		logging.Warn("content fetch failed", logging.Project(v.projectID), logging.Path(path), logging.Err(err))
		return ferr
	}
	v.content.Data = data
	return nil
}
