// Package listing serves the file listing of a project, read from the
// PathRecord store or, without a database, from object storage.
package listing

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/novacode/novacode/internal/metrics"
	"github.com/novacode/novacode/internal/storage"
	"github.com/novacode/novacode/pkg/logging"
	"github.com/novacode/novacode/pkg/protocol"
	"github.com/novacode/novacode/pkg/tree"
)

// PathStore returns the stored paths of a project.
type PathStore interface {
	ListPaths(ctx context.Context, projectID string) ([]string, error)
}

// ObjectLister lists object keys under a prefix.
type ObjectLister interface {
	List(ctx context.Context, prefix string) ([]string, error)
}

// Service builds project listings. It is safe for concurrent use.
type Service struct {
	paths   PathStore
	objects ObjectLister
	cache   *lru.Cache[string, []string]

	// versions counts invalidations per project. A read only populates the
	// cache if no invalidation happened while it ran.
	mu       sync.Mutex
	versions map[string]uint64
}

// New creates a service. paths takes precedence; objects is used when
// paths is nil.
func New(paths PathStore, objects ObjectLister, cacheSize int) (*Service, error) {
	if paths == nil && objects == nil {
		return nil, fmt.Errorf("listing: a path store or object lister is required")
	}
	if cacheSize <= 0 {
		cacheSize = 256
	}
	cache, err := lru.New[string, []string](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("listing cache: %w", err)
	}
	return &Service{
		paths:    paths,
		objects:  objects,
		cache:    cache,
		versions: make(map[string]uint64),
	}, nil
}

func (s *Service) source() string {
	if s.paths != nil {
		return "db"
	}
	return "storage"
}

// Paths returns the cleaned, sorted, duplicate-free paths of a project. An
// unknown project has no paths.
func (s *Service) Paths(ctx context.Context, projectID string) ([]string, string, error) {
	if cached, ok := s.cache.Get(projectID); ok {
		return slices.Clone(cached), "cache", nil
	}

	s.mu.Lock()
	version := s.versions[projectID]
	s.mu.Unlock()

	var raw []string
	var err error
	if s.paths != nil {
		raw, err = s.paths.ListPaths(ctx, projectID)
	} else {
		raw, err = s.objects.List(ctx, storage.ProjectPrefix(projectID))
	}
	if err != nil {
		return nil, s.source(), fmt.Errorf("list paths of %s: %w", projectID, err)
	}

	paths := CleanPaths(raw)
	s.mu.Lock()
	if s.versions[projectID] == version {
		s.cache.Add(projectID, slices.Clone(paths))
	} else {
		logging.Debug("listing changed during read, not caching", logging.Project(projectID))
	}
	s.mu.Unlock()
	return paths, s.source(), nil
}

// Listing returns a project's listing in the requested format. The nested
// form is built and normalized here, so a stored layout that cannot form a
// tree surfaces as a *tree.MalformedListingError.
func (s *Service) Listing(ctx context.Context, projectID string, format protocol.ListingFormat) (*protocol.Listing, error) {
	paths, source, err := s.Paths(ctx, projectID)
	if err != nil {
		metrics.RecordListing(string(format), source, false)
		return nil, err
	}

	l := &protocol.Listing{ProjectID: projectID, Format: format}
	switch format {
	case protocol.FormatNested:
		root, err := tree.FromPaths(paths)
		if err != nil {
			metrics.RecordListing(string(format), source, false)
			logging.Warn("stored layout is not a tree",
				logging.Project(projectID),
				logging.Err(err),
			)
			return nil, err
		}
		tree.Normalize(root)
		metrics.SetListingTreeSize(tree.CountNodes(root))
		l.Entries = tree.ToEntries(root)
		if l.Entries == nil {
			l.Entries = []protocol.ListingEntry{}
		}
	default:
		l.Format = protocol.FormatFlat
		l.Paths = paths
		if l.Paths == nil {
			l.Paths = []string{}
		}
	}

	metrics.RecordListing(string(l.Format), source, true)
	return l, nil
}

// Invalidate drops the cached paths of a project.
func (s *Service) Invalidate(projectID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.versions[projectID]++
	s.cache.Remove(projectID)
}

// CleanPaths converts backslash separators to slashes, strips leading
// slashes, drops empty and duplicate paths, and sorts the rest. A trailing
// slash is kept since it marks an empty folder.
func CleanPaths(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		p = strings.TrimLeft(strings.ReplaceAll(p, "\\", "/"), "/")
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	slices.Sort(out)
	return slices.Compact(out)
}
