package apicheck

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/apicheck/internal/descriptor"
	"github.com/jward/apicheck/internal/diff"
	"github.com/jward/apicheck/internal/logging"
	"github.com/jward/apicheck/internal/resolve"
	"github.com/jward/apicheck/internal/rustparse"
)

func newTestChecker(t *testing.T, opts ...Option) *Checker {
	t.Helper()
	opts = append([]Option{WithLogger(logging.Discard())}, opts...)
	c, err := New(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

// writeCrate writes files under dir and returns the path of src/lib.rs.
func writeCrate(t *testing.T, dir string, files map[string]string) string {
	t.Helper()
	for name, src := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	}
	return filepath.Join(dir, "src", "lib.rs")
}

// =============================================================================
// Construction
// =============================================================================

func TestNew_Defaults(t *testing.T) {
	t.Parallel()
	c, err := New()
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, DefaultCacheSize, c.cacheSize)
	assert.Nil(t, c.Store())
	assert.Equal(t, logging.LevelError, c.log.Level())
}

func TestNew_DebugLevel(t *testing.T) {
	t.Parallel()
	c, err := New(WithDebug(2))
	require.NoError(t, err)
	defer c.Close()
	assert.Equal(t, logging.LevelDebug, c.log.Level())
}

func TestNew_WithDBMigrates(t *testing.T) {
	t.Parallel()
	dbPath := filepath.Join(t.TempDir(), "snapshots.db")
	c := newTestChecker(t, WithDB(dbPath))
	require.NotNil(t, c.Store())

	infos, err := c.Store().ListSnapshots()
	require.NoError(t, err)
	assert.Empty(t, infos)
}

func TestNew_BadDBPath(t *testing.T) {
	t.Parallel()
	dbPath := filepath.Join(t.TempDir(), "missing", "dir", "snapshots.db")
	_, err := New(WithLogger(logging.Discard()), WithDB(dbPath))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "apicheck:")
}

// =============================================================================
// Extraction
// =============================================================================

func TestExtractSource_SingleFunction(t *testing.T) {
	t.Parallel()
	c := newTestChecker(t)

	doc, err := c.ExtractSource(context.Background(), "lib.rs", []byte("pub fn f(x: u32) -> u32 { x }\n"))
	require.NoError(t, err)
	require.Len(t, doc.Modules, 1)
	assert.Equal(t, "lib.rs", doc.Modules[0].Path)
	require.Len(t, doc.Modules[0].Items, 1)

	d := doc.Modules[0].Items[0]
	assert.Equal(t, descriptor.KindFunction, d.Kind)
	assert.Equal(t, "f", d.Name)
	assert.Equal(t, []descriptor.Input{{Name: "x", Type: "u32"}}, d.Inputs)
	assert.Equal(t, "u32", d.Output)
	assert.False(t, d.Unsafe)
	assert.False(t, d.Const)
	assert.False(t, d.Variadic)
}

func TestExtractSource_ParseError(t *testing.T) {
	t.Parallel()
	c := newTestChecker(t)

	_, err := c.ExtractSource(context.Background(), "broken.rs", []byte("pub fn f( {\n"))
	require.Error(t, err)
	var perr *rustparse.ParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "broken.rs", perr.Path)
}

func TestExtract_FollowsModules(t *testing.T) {
	t.Parallel()
	c := newTestChecker(t)
	dir := t.TempDir()
	root := writeCrate(t, dir, map[string]string{
		"src/lib.rs":  "pub mod util;\n",
		"src/util.rs": "pub fn helper() {}\nfn hidden() {}\n",
	})

	doc, err := c.Extract(context.Background(), root)
	require.NoError(t, err)
	require.Len(t, doc.Modules, 2)
	assert.Equal(t, filepath.ToSlash(root), doc.Modules[0].Path)
	assert.Equal(t, filepath.ToSlash(filepath.Join(dir, "src", "util.rs")), doc.Modules[1].Path)

	require.Len(t, doc.Modules[1].Items, 1)
	assert.Equal(t, "helper", doc.Modules[1].Items[0].Name)
}

func TestExtract_MissingModule(t *testing.T) {
	t.Parallel()
	c := newTestChecker(t)
	root := writeCrate(t, t.TempDir(), map[string]string{
		"src/lib.rs": "pub mod gone;\n",
	})

	_, err := c.Extract(context.Background(), root)
	require.Error(t, err)
	var merr *resolve.ModuleError
	require.True(t, errors.As(err, &merr))
	assert.Equal(t, "gone", merr.Module)
}

func TestExtract_Ignore(t *testing.T) {
	t.Parallel()
	c := newTestChecker(t, WithIgnore("generated.rs"))
	root := writeCrate(t, t.TempDir(), map[string]string{
		"src/lib.rs":       "pub mod generated;\npub fn kept() {}\n",
		"src/generated.rs": "pub fn noise() {}\n",
	})

	doc, err := c.Extract(context.Background(), root)
	require.NoError(t, err)
	require.Len(t, doc.Modules, 1)
	require.Len(t, doc.Modules[0].Items, 1)
	assert.Equal(t, "kept", doc.Modules[0].Items[0].Name)
}

func TestExtract_Deterministic(t *testing.T) {
	t.Parallel()
	c := newTestChecker(t)
	root := filepath.Join("testdata", "rust", "modules", "src", "lib.rs")

	first, err := c.Extract(context.Background(), root)
	require.NoError(t, err)
	second, err := c.Extract(context.Background(), root)
	require.NoError(t, err)

	a, err := Encode(first)
	require.NoError(t, err)
	b, err := Encode(second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestExtract_WithoutCache(t *testing.T) {
	t.Parallel()
	cached := newTestChecker(t)
	uncached := newTestChecker(t, WithCacheSize(0))
	root := filepath.Join("testdata", "rust", "basic", "src", "lib.rs")

	_, err := cached.Extract(context.Background(), root)
	require.NoError(t, err)
	hit, err := cached.Extract(context.Background(), root)
	require.NoError(t, err)
	miss, err := uncached.Extract(context.Background(), root)
	require.NoError(t, err)

	a, err := Encode(hit)
	require.NoError(t, err)
	b, err := Encode(miss)
	require.NoError(t, err)
	assert.Equal(t, string(b), string(a))
}

func TestExtract_LogsSkippedItems(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	c := newTestChecker(t, WithLogger(logging.New(&buf, "apicheck", logging.LevelInfo)))

	_, err := c.ExtractSource(context.Background(), "lib.rs", []byte("fn private() {}\n"))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "skipping non-public function private")
}

// =============================================================================
// Diff
// =============================================================================

func TestDiff_Identical(t *testing.T) {
	t.Parallel()
	c := newTestChecker(t)
	doc, err := c.Extract(context.Background(), filepath.Join("testdata", "rust", "traits", "src", "lib.rs"))
	require.NoError(t, err)

	r, err := c.Diff(doc, doc, DiffOptions{})
	require.NoError(t, err)
	assert.False(t, r.HasChanges())
	assert.Empty(t, r.Changes)
}

func TestCompare_ChangedSignature(t *testing.T) {
	t.Parallel()
	c := newTestChecker(t)
	before := writeCrate(t, filepath.Join(t.TempDir(), "v1"), map[string]string{
		"src/lib.rs": "pub fn f(x: u32) -> u32 { x }\n",
	})
	after := writeCrate(t, filepath.Join(t.TempDir(), "v2"), map[string]string{
		"src/lib.rs": "pub fn f(x: u32) -> u64 { x as u64 }\n",
	})

	// The two crates live under different temp roots, so match modules
	// by their last two path segments.
	strip := len(strings.Split(filepath.ToSlash(before), "/")) - 2
	r, err := c.Compare(context.Background(), before, after, DiffOptions{Strip: strip})
	require.NoError(t, err)
	assert.Equal(t, 1, r.ItemsChanged)
	assert.Equal(t, 1, r.ModulesChanged)
	assert.Equal(t, 0, r.ModulesAdded)
	assert.Equal(t, 0, r.ModulesRemoved)

	var changed *Change
	for i := range r.Changes {
		if r.Changes[i].Kind == diff.ItemChanged {
			changed = &r.Changes[i]
		}
	}
	require.NotNil(t, changed)
	assert.Equal(t, "f", changed.Item)
	assert.Equal(t, "output", changed.Key)
}

func TestCompare_MissingRoot(t *testing.T) {
	t.Parallel()
	c := newTestChecker(t)
	_, err := c.Compare(context.Background(), filepath.Join(t.TempDir(), "nope.rs"), "also-missing.rs", DiffOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

// =============================================================================
// Snapshots
// =============================================================================

func TestSaveAndLoadTree(t *testing.T) {
	t.Parallel()
	c := newTestChecker(t, WithDB(filepath.Join(t.TempDir(), "snapshots.db")))
	doc, err := c.Extract(context.Background(), filepath.Join("testdata", "rust", "basic", "src", "lib.rs"))
	require.NoError(t, err)

	saved, err := c.Save("v1", "testdata/rust/basic/src/lib.rs", doc)
	require.NoError(t, err)
	assert.True(t, saved)

	stored, err := c.LoadTree("v1")
	require.NoError(t, err)
	fresh, err := diff.FromDocument(doc)
	require.NoError(t, err)
	assert.Equal(t, fresh, stored)

	r := c.DiffTrees(stored, fresh, DiffOptions{})
	assert.False(t, r.HasChanges())
}

func TestLoadTree_Missing(t *testing.T) {
	t.Parallel()
	c := newTestChecker(t, WithDB(filepath.Join(t.TempDir(), "snapshots.db")))

	_, err := c.LoadTree("nope")
	require.Error(t, err)
	var ierr *diff.InputError
	require.True(t, errors.As(err, &ierr))
	assert.Equal(t, "snapshot nope", ierr.Source)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestSnapshots_NoStore(t *testing.T) {
	t.Parallel()
	c := newTestChecker(t)

	_, err := c.Save("v1", "lib.rs", &Document{})
	assert.ErrorIs(t, err, ErrNoStore)
	_, err = c.LoadTree("v1")
	assert.ErrorIs(t, err, ErrNoStore)
	_, err = c.Delete("v1")
	assert.ErrorIs(t, err, ErrNoStore)
}

func TestDelete(t *testing.T) {
	t.Parallel()
	c := newTestChecker(t, WithDB(filepath.Join(t.TempDir(), "snapshots.db")))
	_, err := c.Save("v1", "lib.rs", &Document{Modules: []*Module{{Path: "src/lib.rs"}}})
	require.NoError(t, err)

	deleted, err := c.Delete("v1")
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = c.LoadTree("v1")
	assert.True(t, errors.Is(err, os.ErrNotExist))

	deleted, err = c.Delete("v1")
	require.NoError(t, err)
	assert.False(t, deleted)
}
