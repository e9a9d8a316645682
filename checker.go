package apicheck

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/jward/apicheck/internal/diff"
	"github.com/jward/apicheck/internal/extract"
	"github.com/jward/apicheck/internal/logging"
	"github.com/jward/apicheck/internal/render"
	"github.com/jward/apicheck/internal/resolve"
	"github.com/jward/apicheck/internal/rustparse"
	"github.com/jward/apicheck/internal/store"
)

// DefaultCacheSize is the number of parsed files kept between extractions.
const DefaultCacheSize = 256

// ErrNoStore is returned by snapshot operations on a Checker created
// without WithDB.
var ErrNoStore = errors.New("apicheck: no snapshot database configured")

// Checker runs extraction and comparison. It is not safe for concurrent use.
type Checker struct {
	resolver  *resolve.Resolver
	printer   render.Printer
	log       *logging.Logger
	store     *store.Store
	debug     int
	ignores   []string
	cacheSize int
	dbPath    string
}

// DiffOptions controls a comparison.
type DiffOptions struct {
	// Strip drops leading module path segments before matching, so trees
	// extracted under different roots line up.
	Strip int
}

// Option configures a Checker.
type Option func(*Checker)

// WithDebug sets the diagnostic verbosity used when no logger is given:
// 0 is silent, 1 info, 2 debug, 3 and up trace.
func WithDebug(level int) Option {
	return func(c *Checker) {
		c.debug = level
	}
}

// WithLogger sets the diagnostic logger, overriding WithDebug.
func WithLogger(l *logging.Logger) Option {
	return func(c *Checker) {
		c.log = l
	}
}

// WithIgnore skips module files matching gitignore-style patterns,
// relative to the crate root's directory.
func WithIgnore(patterns ...string) Option {
	return func(c *Checker) {
		c.ignores = append(c.ignores, patterns...)
	}
}

// WithCacheSize bounds the parse cache. Zero disables it.
func WithCacheSize(n int) Option {
	return func(c *Checker) {
		c.cacheSize = n
	}
}

// WithDB opens a snapshot database at dbPath.
func WithDB(dbPath string) Option {
	return func(c *Checker) {
		c.dbPath = dbPath
	}
}

// New creates a Checker.
func New(opts ...Option) (*Checker, error) {
	c := &Checker{cacheSize: DefaultCacheSize}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logging.New(os.Stderr, "apicheck", extract.DebugLevel(c.debug))
	}

	ropts := []resolve.Option{resolve.WithLogger(c.log), resolve.WithIgnore(c.ignores...)}
	if c.cacheSize > 0 {
		cache, err := resolve.NewCache(c.cacheSize)
		if err != nil {
			return nil, fmt.Errorf("apicheck: %w", err)
		}
		ropts = append(ropts, resolve.WithCache(cache))
	}
	c.resolver = resolve.New(rustparse.New(), ropts...)

	if c.dbPath != "" {
		s, err := store.NewStore(c.dbPath)
		if err != nil {
			return nil, fmt.Errorf("apicheck: create store: %w", err)
		}
		if err := s.Migrate(); err != nil {
			s.Close()
			return nil, fmt.Errorf("apicheck: migrate: %w", err)
		}
		c.store = s
	}
	return c, nil
}

// Close releases the snapshot database, if any.
func (c *Checker) Close() error {
	if c.store == nil {
		return nil
	}
	return c.store.Close()
}

// Store returns the snapshot store, or nil without WithDB.
func (c *Checker) Store() *Store {
	return c.store
}

// Extract loads the crate rooted at rootFile and describes its public API.
func (c *Checker) Extract(ctx context.Context, rootFile string) (*Document, error) {
	files, err := c.resolver.Resolve(ctx, rootFile)
	if err != nil {
		return nil, err
	}
	return extract.Document(files, c.extractContext()), nil
}

// ExtractSource describes a single in-memory file. Out-of-line module
// declarations are not followed.
func (c *Checker) ExtractSource(ctx context.Context, name string, src []byte) (*Document, error) {
	files, err := c.resolver.ResolveSource(ctx, name, src)
	if err != nil {
		return nil, err
	}
	return extract.Document(files, c.extractContext()), nil
}

func (c *Checker) extractContext() extract.Context {
	return extract.Context{Debug: c.debug, Log: c.log, Printer: c.printer}
}

// Diff compares two documents through their wire form.
func (c *Checker) Diff(before, after *Document, opts DiffOptions) (*Report, error) {
	bt, err := diff.FromDocument(before)
	if err != nil {
		return nil, fmt.Errorf("apicheck: before: %w", err)
	}
	at, err := diff.FromDocument(after)
	if err != nil {
		return nil, fmt.Errorf("apicheck: after: %w", err)
	}
	return c.DiffTrees(bt, at, opts), nil
}

// DiffTrees compares two decoded documents.
func (c *Checker) DiffTrees(before, after *Tree, opts DiffOptions) *Report {
	return diff.Compare(before, after, diff.Options{Strip: opts.Strip, Log: c.log})
}

// Compare extracts two crates and diffs them.
func (c *Checker) Compare(ctx context.Context, beforeRoot, afterRoot string, opts DiffOptions) (*Report, error) {
	before, err := c.Extract(ctx, beforeRoot)
	if err != nil {
		return nil, err
	}
	after, err := c.Extract(ctx, afterRoot)
	if err != nil {
		return nil, err
	}
	return c.Diff(before, after, opts)
}

// Save stores doc as the named snapshot. It reports false when an
// identical snapshot of that name already exists.
func (c *Checker) Save(name, source string, doc *Document) (bool, error) {
	if c.store == nil {
		return false, ErrNoStore
	}
	return c.store.SaveSnapshot(name, source, doc)
}

// Delete removes the named snapshot and reports whether it existed.
func (c *Checker) Delete(name string) (bool, error) {
	if c.store == nil {
		return false, ErrNoStore
	}
	return c.store.DeleteSnapshot(name)
}

// LoadTree reads the named snapshot as a diff input.
func (c *Checker) LoadTree(name string) (*Tree, error) {
	if c.store == nil {
		return nil, ErrNoStore
	}
	snap, err := c.store.LoadSnapshot(name)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, &diff.InputError{Source: "snapshot " + name, Err: os.ErrNotExist}
	}
	data, err := snap.Document()
	if err != nil {
		return nil, err
	}
	return diff.Decode(data, "snapshot "+name)
}

// Encode returns the wire form of doc.
func Encode(doc *Document) ([]byte, error) {
	return doc.Bytes()
}
