// Package resolve loads a crate from its root file by following module
// declarations (`mod name;`) to the files that implement them.
package resolve

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	ignore "github.com/sabhiram/go-gitignore"

	"github.com/jward/apicheck/internal/logging"
	"github.com/jward/apicheck/internal/syntax"
)

// Parser turns one source file into items.
type Parser interface {
	Parse(ctx context.Context, path string, src []byte) (*syntax.File, error)
}

// Cache holds parsed files keyed by content hash.
type Cache = lru.Cache[string, *syntax.File]

// NewCache returns a parse cache holding up to size files.
func NewCache(size int) (*Cache, error) {
	c, err := lru.New[string, *syntax.File](size)
	if err != nil {
		return nil, fmt.Errorf("resolve: create cache: %w", err)
	}
	return c, nil
}

// ModuleError reports a declared module whose file could not be loaded.
type ModuleError struct {
	Module string
	// Decl is the file containing the declaration.
	Decl  string
	Tried []string
	Err   error
}

func (e *ModuleError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("resolve: module %q declared in %s: %v", e.Module, e.Decl, e.Err)
	}
	return fmt.Sprintf("resolve: module %q declared in %s: file not found (tried %s)",
		e.Module, e.Decl, strings.Join(e.Tried, ", "))
}

func (e *ModuleError) Unwrap() error { return e.Err }

// Resolver loads module trees.
type Resolver struct {
	parser  Parser
	ignores []string
	cache   *Cache
	log     *logging.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithIgnore skips module files matching any of the gitignore-style
// patterns, interpreted relative to the crate root's directory.
func WithIgnore(patterns ...string) Option {
	return func(r *Resolver) {
		r.ignores = append(r.ignores, patterns...)
	}
}

// WithCache shares a parse cache across resolutions.
func WithCache(c *Cache) Option {
	return func(r *Resolver) {
		r.cache = c
	}
}

// WithLogger sets the diagnostic logger.
func WithLogger(l *logging.Logger) Option {
	return func(r *Resolver) {
		r.log = l
	}
}

// New creates a Resolver using p to parse files.
func New(p Parser, opts ...Option) *Resolver {
	r := &Resolver{parser: p}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve parses rootFile and every module file reachable from it. Loaded
// module items get their Children and Loaded fields filled in. The result
// holds one entry per file, sorted by path.
func (r *Resolver) Resolve(ctx context.Context, rootFile string) ([]*syntax.File, error) {
	rootFile = normalize(rootFile)
	w := &walker{
		r:       r,
		ctx:     ctx,
		rootDir: filepath.Dir(rootFile),
		seen:    make(map[string]bool),
	}
	if len(r.ignores) > 0 {
		w.ignore = ignore.CompileIgnoreLines(r.ignores...)
	}

	src, err := os.ReadFile(rootFile)
	if err != nil {
		return nil, fmt.Errorf("resolve: read %s: %w", rootFile, err)
	}
	root, err := r.parse(ctx, rootFile, src)
	if err != nil {
		return nil, err
	}
	w.add(root)
	if err := w.walk(root.Path, root.Items, filepath.Dir(rootFile), filepath.Dir(rootFile)); err != nil {
		return nil, err
	}

	sort.Slice(w.files, func(i, j int) bool { return w.files[i].Path < w.files[j].Path })
	return w.files, nil
}

// ResolveSource parses a single in-memory file. Module declarations are
// left unloaded.
func (r *Resolver) ResolveSource(ctx context.Context, name string, src []byte) ([]*syntax.File, error) {
	f, err := r.parse(ctx, normalize(name), src)
	if err != nil {
		return nil, err
	}
	return []*syntax.File{f}, nil
}

// parse returns a private copy of the parsed file, consulting the cache.
func (r *Resolver) parse(ctx context.Context, path string, src []byte) (*syntax.File, error) {
	key := fmt.Sprintf("%x", sha256.Sum256(src))
	if r.cache != nil {
		if cached, ok := r.cache.Get(key); ok {
			r.log.Debugf("cache hit for %s", path)
			f := cached.Clone()
			f.Path = path
			return f, nil
		}
	}
	f, err := r.parser.Parse(ctx, path, src)
	if err != nil {
		return nil, err
	}
	if r.cache != nil {
		r.cache.Add(key, f)
		f = f.Clone()
	}
	return f, nil
}

type walker struct {
	r       *Resolver
	ctx     context.Context
	rootDir string
	ignore  *ignore.GitIgnore
	seen    map[string]bool
	files   []*syntax.File
}

func (w *walker) add(f *syntax.File) {
	w.seen[f.Path] = true
	w.files = append(w.files, f)
}

// walk loads the declared modules among items. dir is the directory that
// owns child module files; base anchors #[path] attributes.
func (w *walker) walk(decl string, items []*syntax.Item, dir, base string) error {
	for _, it := range items {
		if it.Kind != syntax.KindModule {
			continue
		}
		if it.Loaded {
			sub := filepath.Join(dir, it.Name)
			if it.PathAttr != "" {
				sub = filepath.Join(base, it.PathAttr)
			}
			if err := w.walk(decl, it.Children, sub, sub); err != nil {
				return err
			}
			continue
		}
		if err := w.load(decl, it, dir, base); err != nil {
			return err
		}
	}
	return nil
}

func (w *walker) load(decl string, it *syntax.Item, dir, base string) error {
	if err := w.ctx.Err(); err != nil {
		return err
	}

	var tried []string
	if it.PathAttr != "" {
		tried = []string{normalize(filepath.Join(base, it.PathAttr))}
	} else {
		tried = []string{
			normalize(filepath.Join(dir, it.Name+".rs")),
			normalize(filepath.Join(dir, it.Name, "mod.rs")),
		}
	}
	if w.ignored(tried) {
		w.r.log.Infof("skipping ignored module %s", it.Name)
		return nil
	}

	var (
		path string
		src  []byte
	)
	for _, candidate := range tried {
		data, err := os.ReadFile(candidate)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return &ModuleError{Module: it.Name, Decl: decl, Tried: tried, Err: err}
		}
		path, src = candidate, data
		break
	}
	if path == "" {
		return &ModuleError{Module: it.Name, Decl: decl, Tried: tried}
	}
	if w.seen[path] {
		w.r.log.Warnf("module %s: %s is already loaded, skipping", it.Name, path)
		return nil
	}

	f, err := w.r.parse(w.ctx, path, src)
	if err != nil {
		return err
	}
	w.r.log.Infof("loaded module %s from %s", it.Name, path)

	it.Children = f.Items
	it.Attrs = append(it.Attrs, f.Attrs...)
	it.Loaded = true
	w.add(f)

	owned := ownedDir(path)
	if it.PathAttr != "" {
		owned = filepath.Dir(path)
	}
	return w.walk(path, f.Items, owned, filepath.Dir(path))
}

func (w *walker) ignored(paths []string) bool {
	if w.ignore == nil {
		return false
	}
	for _, p := range paths {
		rel, err := filepath.Rel(w.rootDir, p)
		if err != nil {
			rel = p
		}
		if w.ignore.MatchesPath(filepath.ToSlash(rel)) {
			return true
		}
	}
	return false
}

// ownedDir returns the directory holding the children of a non-root module
// file: mod.rs owns its own directory, foo.rs owns foo/. Files reached
// through #[path] always own their own directory.
func ownedDir(path string) string {
	if filepath.Base(path) == "mod.rs" {
		return filepath.Dir(path)
	}
	return strings.TrimSuffix(path, filepath.Ext(path))
}

func normalize(path string) string {
	return filepath.ToSlash(filepath.Clean(path))
}
