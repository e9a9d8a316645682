// Package policy decides whether a diff report fails a check. A policy is
// a Risor script whose final value is truthy when the report should fail.
package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/risor-io/risor"
	"github.com/risor-io/risor/importer"
	"github.com/risor-io/risor/object"

	"github.com/jward/apicheck/internal/diff"
	"github.com/jward/apicheck/internal/logging"
)

// DefaultSource fails on any change.
const DefaultSource = "has_changes"

// Policy is a compiled-on-demand gate script.
type Policy struct {
	source string
	label  string
	dir    string
	fsys   fs.FS
	log    *logging.Logger
}

// Option configures a Policy.
type Option func(*Policy)

// WithFS resolves `import` statements against fsys instead of the policy
// file's directory.
func WithFS(fsys fs.FS) Option {
	return func(p *Policy) {
		p.fsys = fsys
	}
}

// WithLogger receives messages the script writes through log.Info and
// friends.
func WithLogger(l *logging.Logger) Option {
	return func(p *Policy) {
		p.log = l
	}
}

// New returns a policy for inline source.
func New(source string, opts ...Option) *Policy {
	p := &Policy{source: source, label: "<inline>"}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Default returns the has_changes policy.
func Default() *Policy {
	return New(DefaultSource)
}

// Load reads a policy file. Imports resolve next to it.
func Load(path string, opts ...Option) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("policy: loading %s: %w", path, err)
	}
	p := New(string(data), opts...)
	p.label = path
	p.dir = filepath.Dir(path)
	return p, nil
}

// LoadFS reads the policy name.risor from fsys. Imports resolve within
// fsys.
func LoadFS(fsys fs.FS, name string, opts ...Option) (*Policy, error) {
	data, err := fs.ReadFile(fsys, name+".risor")
	if err != nil {
		return nil, fmt.Errorf("policy: loading %s: %w", name, err)
	}
	p := New(string(data), append([]Option{WithFS(fsys)}, opts...)...)
	p.label = name
	return p, nil
}

// Evaluate runs the script against r and reports whether it fails.
func (p *Policy) Evaluate(ctx context.Context, r *diff.Report) (bool, error) {
	globals := Globals(r)
	globals["log"] = mustProxy(&logObject{log: p.log})

	opts := make([]risor.Option, 0, len(globals)+1)
	for name, val := range globals {
		opts = append(opts, risor.WithGlobal(name, val))
	}
	if imp := p.buildImporter(globals); imp != nil {
		opts = append(opts, risor.WithImporter(imp))
	}

	result, err := risor.Eval(ctx, p.source, opts...)
	if err != nil {
		return false, fmt.Errorf("policy: script %s: %w", p.label, err)
	}
	return result.IsTruthy(), nil
}

func (p *Policy) buildImporter(globals map[string]any) importer.Importer {
	names := make([]string, 0, len(globals))
	for name := range globals {
		names = append(names, name)
	}
	if p.fsys != nil {
		return importer.NewFSImporter(importer.FSImporterOptions{
			GlobalNames: names,
			SourceFS:    p.fsys,
			Extensions:  []string{".risor"},
		})
	}
	if p.dir != "" {
		return importer.NewLocalImporter(importer.LocalImporterOptions{
			GlobalNames: names,
			SourceDir:   p.dir,
			Extensions:  []string{".risor"},
		})
	}
	return nil
}

// Globals returns the variables a policy script sees.
func Globals(r *diff.Report) map[string]any {
	changes := make([]any, 0, len(r.Changes))
	for _, c := range r.Changes {
		changes = append(changes, map[string]any{
			"kind":   string(c.Kind),
			"module": c.Module,
			"item":   c.Item,
			"field":  c.Field,
			"key":    c.Key,
			"before": valueText(c.Before),
			"after":  valueText(c.After),
		})
	}
	return map[string]any{
		"modules_added":   r.ModulesAdded,
		"modules_removed": r.ModulesRemoved,
		"modules_changed": r.ModulesChanged,
		"items_added":     r.ItemsAdded,
		"items_removed":   r.ItemsRemoved,
		"items_changed":   r.ItemsChanged,
		"has_changes":     r.HasChanges(),
		"changes":         changes,
	}
}

// valueText flattens a descriptor value to a string: strings as-is,
// anything else as compact JSON.
func valueText(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}

// logObject provides log.Info/Warn/Error methods for policy scripts.
type logObject struct {
	log *logging.Logger
}

func (l *logObject) Info(msg string)  { l.log.Infof("%s", msg) }
func (l *logObject) Warn(msg string)  { l.log.Warnf("%s", msg) }
func (l *logObject) Error(msg string) { l.log.Errorf("%s", msg) }

func mustProxy(v any) object.Object {
	p, err := object.NewProxy(v)
	if err != nil {
		panic(fmt.Sprintf("policy: proxy error: %v", err))
	}
	return p
}
