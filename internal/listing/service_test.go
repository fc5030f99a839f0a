package listing

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/novacode/novacode/pkg/logging"
	"github.com/novacode/novacode/pkg/protocol"
	"github.com/novacode/novacode/pkg/tree"
)

func init() {
	logging.Replace(zap.NewNop())
}

type fakePaths struct {
	mu    sync.Mutex
	paths map[string][]string
	err   error
	calls int
}

func (f *fakePaths) ListPaths(ctx context.Context, projectID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.paths[projectID], nil
}

type fakeObjects struct {
	keys   map[string][]string
	prefix string
}

func (f *fakeObjects) List(ctx context.Context, prefix string) ([]string, error) {
	f.prefix = prefix
	return f.keys[prefix], nil
}

func TestCleanPaths(t *testing.T) {
	got := CleanPaths([]string{"src\\index.html", "/README.md", "", "README.md", "docs/", "/"})
	assert.Equal(t, []string{"README.md", "docs/", "src/index.html"}, got)
	assert.Empty(t, CleanPaths(nil))
}

func TestNew_RequiresSource(t *testing.T) {
	_, err := New(nil, nil, 10)
	assert.Error(t, err)
}

func TestListing_Flat(t *testing.T) {
	store := &fakePaths{paths: map[string][]string{
		"p1": {"src/styles.css", "README.md", "src/index.html"},
	}}
	svc, err := New(store, nil, 10)
	require.NoError(t, err)

	l, err := svc.Listing(context.Background(), "p1", protocol.FormatFlat)
	require.NoError(t, err)
	assert.Equal(t, "p1", l.ProjectID)
	assert.Equal(t, protocol.FormatFlat, l.Format)
	assert.Equal(t, []string{"README.md", "src/index.html", "src/styles.css"}, l.Paths)
	assert.Nil(t, l.Entries)
}

func TestListing_Nested(t *testing.T) {
	store := &fakePaths{paths: map[string][]string{
		"p1": {"src/styles.css", "README.md", "src/index.html"},
	}}
	svc, err := New(store, nil, 10)
	require.NoError(t, err)

	l, err := svc.Listing(context.Background(), "p1", protocol.FormatNested)
	require.NoError(t, err)
	require.Len(t, l.Entries, 2)
	assert.Equal(t, "src", l.Entries[0].Name)
	require.NotNil(t, l.Entries[0].Children)
	children := *l.Entries[0].Children
	require.Len(t, children, 2)
	assert.Equal(t, "index.html", children[0].Name)
	assert.Equal(t, "styles.css", children[1].Name)
	assert.Equal(t, "README.md", l.Entries[1].Name)
	assert.Nil(t, l.Entries[1].Children)

	root, err := tree.Build(l)
	require.NoError(t, err)
	flat, err := tree.Build(&protocol.Listing{Paths: []string{"README.md", "src/index.html", "src/styles.css"}})
	require.NoError(t, err)
	assert.Equal(t, flat, root)
}

func TestListing_UnknownProjectIsEmpty(t *testing.T) {
	svc, err := New(&fakePaths{}, nil, 10)
	require.NoError(t, err)

	l, err := svc.Listing(context.Background(), "nope", protocol.FormatFlat)
	require.NoError(t, err)
	assert.Empty(t, l.Paths)

	l, err = svc.Listing(context.Background(), "nope", protocol.FormatNested)
	require.NoError(t, err)
	assert.Empty(t, l.Entries)
}

func TestListing_MalformedLayout(t *testing.T) {
	store := &fakePaths{paths: map[string][]string{"p1": {"a", "a/b"}}}
	svc, err := New(store, nil, 10)
	require.NoError(t, err)

	_, err = svc.Listing(context.Background(), "p1", protocol.FormatNested)
	assert.ErrorIs(t, err, tree.ErrMalformedListing)
}

func TestListing_StoreError(t *testing.T) {
	boom := errors.New("db down")
	svc, err := New(&fakePaths{err: boom}, nil, 10)
	require.NoError(t, err)

	_, err = svc.Listing(context.Background(), "p1", protocol.FormatFlat)
	assert.ErrorIs(t, err, boom)
}

func TestCacheAndInvalidate(t *testing.T) {
	store := &fakePaths{paths: map[string][]string{"p1": {"a.txt"}}}
	svc, err := New(store, nil, 10)
	require.NoError(t, err)
	ctx := context.Background()

	_, src, err := svc.Paths(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "db", src)

	paths, src, err := svc.Paths(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "cache", src)
	assert.Equal(t, []string{"a.txt"}, paths)
	assert.Equal(t, 1, store.calls)

	store.mu.Lock()
	store.paths["p1"] = []string{"a.txt", "b.txt"}
	store.mu.Unlock()
	svc.Invalidate("p1")

	paths, _, err = svc.Paths(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "b.txt"}, paths)
	assert.Equal(t, 2, store.calls)
}

func TestPaths_FromObjectStorage(t *testing.T) {
	objects := &fakeObjects{keys: map[string][]string{"p1/": {"src/a.ts", "README.md"}}}
	svc, err := New(nil, objects, 10)
	require.NoError(t, err)

	paths, src, err := svc.Paths(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "storage", src)
	assert.Equal(t, "p1/", objects.prefix)
	assert.Equal(t, []string{"README.md", "src/a.ts"}, paths)
}

type blockingPaths struct {
	fakePaths
	entered chan struct{}
	release chan struct{}
}

func (b *blockingPaths) ListPaths(ctx context.Context, projectID string) ([]string, error) {
	b.mu.Lock()
	snapshot := slices.Clone(b.paths[projectID])
	b.mu.Unlock()
	if b.entered != nil {
		close(b.entered)
		b.entered = nil
		<-b.release
	}
	return snapshot, nil
}

func TestInvalidateDuringRead(t *testing.T) {
	store := &blockingPaths{
		fakePaths: fakePaths{paths: map[string][]string{"p": {"a.txt"}}},
		entered:   make(chan struct{}),
		release:   make(chan struct{}),
	}
	svc, err := New(store, nil, 10)
	require.NoError(t, err)
	ctx := context.Background()
	entered := store.entered

	done := make(chan []string)
	go func() {
		paths, _, err := svc.Paths(ctx, "p")
		assert.NoError(t, err)
		done <- paths
	}()

	<-entered
	store.mu.Lock()
	store.paths["p"] = []string{"a.txt", "b.txt"}
	store.mu.Unlock()
	svc.Invalidate("p")
	close(store.release)

	assert.Equal(t, []string{"a.txt"}, <-done, "the in-flight read returns what it saw")

	paths, src, err := svc.Paths(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, "db", src, "the in-flight read must not have been cached")
	assert.Equal(t, []string{"a.txt", "b.txt"}, paths)

	_, src, err = svc.Paths(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, "cache", src)
}
