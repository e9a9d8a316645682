// Package diff compares two extraction documents and counts the modules
// and items that were added, removed or changed.
//
// Modules are matched by path, items by name (impls and use trees by a key
// built from their contents). Matched items are compared over a fixed key
// list per kind and the first differing key decides. Malformed descriptors
// are logged and counted as changed; they never abort a comparison.
package diff

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/go-cmp/cmp"

	"github.com/jward/apicheck/internal/logging"
)

// Options controls a comparison.
type Options struct {
	// Strip drops this many leading "/"-separated segments from module
	// paths before matching.
	Strip int
	Log   *logging.Logger
}

// keyLists holds the keys checked for each kind, in order.
var keyLists = map[string][]string{
	"function": {"output", "extern", "unsafe", "const", "async", "generics", "where", "visibility", "variadic", "inputs", "attrs"},
	"method":   {"output", "extern", "unsafe", "const", "async", "generics", "where", "visibility", "variadic", "inputs", "attrs"},
	"struct":   {"generics", "where", "visibility", "fields", "attrs"},
	"enum":     {"generics", "where", "visibility", "fields", "attrs"},
	"union":    {"generics", "where", "visibility", "fields", "attrs"},
	"trait":    {"typarambounds", "unsafe", "generics", "where", "visibility", "attrs"},
	"impl":     {"impl_type", "trait", "unsafe", "const", "generics", "where", "visibility", "attrs"},
	"type":     {"subtype", "generics", "where", "visibility", "fields", "attrs"},
	"const":    {"subtype", "visibility", "attrs"},
	"static":   {"mutability", "subtype", "visibility", "attrs"},
	"mod":      {"unsafe", "visibility", "attrs"},
}

// fieldKeys are checked for each matched field or variant.
var fieldKeys = []string{"type", "visibility", "fields"}

// Compare diffs two trees. It never fails: anomalies inside items are
// logged and folded into the counters.
func Compare(before, after *Tree, opts Options) *Report {
	c := &comparer{
		strip:        opts.Strip,
		log:          opts.Log,
		report:       &Report{Changes: []Change{}},
		beforeBodies: moduleBodies(before),
		afterBodies:  moduleBodies(after),
	}
	c.modules(before.Modules, after.Modules)
	return c.report
}

type comparer struct {
	strip  int
	log    *logging.Logger
	report *Report

	// Encoded item lists of each tree's module entries. A nested mod whose
	// body is one of these was loaded from its own file.
	beforeBodies map[string]bool
	afterBodies  map[string]bool
}

func moduleBodies(t *Tree) map[string]bool {
	bodies := make(map[string]bool, len(t.Modules))
	for _, m := range t.Modules {
		if key, ok := bodyKey(m.Items); ok {
			bodies[key] = true
		}
	}
	return bodies
}

func bodyKey(items any) (string, bool) {
	list, ok := asList(items)
	if !ok {
		return "", false
	}
	if list == nil {
		list = []any{}
	}
	data, err := json.Marshal(list)
	if err != nil {
		return "", false
	}
	return string(data), true
}

// fileBacked reports whether both sides of a nested mod are bodies that
// the trees also list as module entries. Those are compared once, under
// their file path.
func (c *comparer) fileBacked(before, after any) bool {
	bk, bok := bodyKey(before)
	ak, aok := bodyKey(after)
	return bok && aok && c.beforeBodies[bk] && c.afterBodies[ak]
}

// stripPath drops the first n segments of path. A path with n or fewer
// segments strips to "".
func stripPath(path string, n int) string {
	if n <= 0 {
		return path
	}
	parts := strings.SplitN(path, "/", n+1)
	if len(parts) > n {
		return parts[n]
	}
	return ""
}

func (c *comparer) modules(before, after []Module) {
	bi := newIndex()
	for _, m := range before {
		bi.add(stripPath(m.Path, c.strip), m.Items, c.log)
	}
	ai := newIndex()
	for _, m := range after {
		ai.add(stripPath(m.Path, c.strip), m.Items, c.log)
	}

	for _, key := range bi.keys {
		if !ai.has(key) {
			c.report.record(Change{Kind: ModuleRemoved, Module: key})
		}
	}
	for _, key := range ai.keys {
		if !bi.has(key) {
			c.report.record(Change{Kind: ModuleAdded, Module: key})
		}
	}
	for _, key := range bi.keys {
		if !ai.has(key) {
			continue
		}
		if c.items(key, bi.vals[key].([]any), ai.vals[key].([]any)) {
			c.report.record(Change{Kind: ModuleChanged, Module: key})
		}
	}
}

// items matches two item lists of one scope and reports whether anything
// in the scope was added, removed or changed.
func (c *comparer) items(scope string, before, after []any) bool {
	bi := c.indexItems(scope, before)
	ai := c.indexItems(scope, after)
	dirty := false

	for _, key := range bi.keys {
		if !ai.has(key) {
			c.report.record(Change{Kind: ItemRemoved, Module: scope, Item: key})
			dirty = true
		}
	}
	for _, key := range ai.keys {
		if !bi.has(key) {
			c.report.record(Change{Kind: ItemAdded, Module: scope, Item: key})
			dirty = true
		}
	}
	for _, key := range bi.keys {
		if !ai.has(key) {
			continue
		}
		if ch := c.item(scope, key, bi.vals[key], ai.vals[key]); ch != nil {
			ch.Kind = ItemChanged
			ch.Module = scope
			ch.Item = key
			c.report.record(*ch)
			dirty = true
		}
	}
	return dirty
}

// item compares one matched pair. It returns nil when they are equal, or
// a change naming the first differing key.
func (c *comparer) item(scope, key string, before, after any) *Change {
	b, bok := before.(map[string]any)
	a, aok := after.(map[string]any)
	if !bok || !aok {
		c.log.Warnf("%s: item %s is not an object", scope, key)
		return &Change{}
	}

	bt, bok := b["type"].(string)
	at, aok := a["type"].(string)
	if !bok || !aok {
		c.log.Warnf("%s: item %s has no type", scope, key)
		return &Change{Key: "type"}
	}
	if bt != at {
		return &Change{Key: "type", Before: bt, After: at}
	}

	keys, ok := keyLists[bt]
	if !ok {
		c.log.Warnf("%s: cannot compare %s item %s, treating it as unchanged", scope, bt, key)
		return nil
	}
	if bt != "impl" {
		_, bok := b["name"].(string)
		_, aok := a["name"].(string)
		if !bok || !aok {
			c.log.Warnf("%s: %s item %s has no name", scope, bt, key)
			return &Change{Key: "name"}
		}
	}

	inner := scope + "::" + key
	for _, k := range keys {
		if k == "fields" {
			if c.fields(inner, b[k], a[k]) {
				return &Change{Key: k}
			}
			continue
		}
		if !cmp.Equal(b[k], a[k]) {
			if c.log.Enabled(logging.LevelDebug) {
				c.log.Debugf("%s: %s differs (-before +after):\n%s", inner, k, cmp.Diff(b[k], a[k]))
			}
			return &Change{Key: k, Before: b[k], After: a[k]}
		}
	}

	switch bt {
	case "trait", "impl":
		if c.members(inner, b["items"], a["items"]) {
			return &Change{Key: "items"}
		}
	case "mod":
		if c.fileBacked(b["items"], a["items"]) {
			return nil
		}
		// A nested module counts as a changed module, not a changed item.
		if c.members(inner, b["items"], a["items"]) {
			c.report.record(Change{Kind: ModuleChanged, Module: inner})
		}
	}
	return nil
}

func (c *comparer) members(scope string, before, after any) bool {
	b, bok := asList(before)
	a, aok := asList(after)
	if !bok || !aok {
		c.log.Warnf("%s: items is not an array", scope)
		return true
	}
	return c.items(scope, b, a)
}

// fields compares two field or variant lists and reports whether they
// differ. Every added, removed or changed field is recorded.
func (c *comparer) fields(scope string, before, after any) bool {
	if before == nil && after == nil {
		return false
	}
	b, bok := asList(before)
	a, aok := asList(after)
	if !bok || !aok {
		c.log.Warnf("%s: fields is not an array", scope)
		return true
	}

	bi, bok := c.indexFields(scope, b)
	ai, aok := c.indexFields(scope, a)
	if !bok || !aok {
		return true
	}

	changed := false
	for _, name := range bi.keys {
		if !ai.has(name) {
			c.report.record(Change{Kind: FieldRemoved, Module: scope, Field: name})
			changed = true
		}
	}
	for _, name := range ai.keys {
		if !bi.has(name) {
			c.report.record(Change{Kind: FieldAdded, Module: scope, Field: name})
			changed = true
		}
	}
	for _, name := range bi.keys {
		if !ai.has(name) {
			continue
		}
		bf := bi.vals[name].(map[string]any)
		af := ai.vals[name].(map[string]any)
		for _, k := range fieldKeys {
			if k == "fields" {
				if c.fields(scope+"::"+name, bf[k], af[k]) {
					c.report.record(Change{Kind: FieldChanged, Module: scope, Field: name, Key: k})
					changed = true
					break
				}
				continue
			}
			if !cmp.Equal(bf[k], af[k]) {
				c.report.record(Change{Kind: FieldChanged, Module: scope, Field: name, Key: k, Before: bf[k], After: af[k]})
				changed = true
				break
			}
		}
	}
	return changed
}

func (c *comparer) indexFields(scope string, fields []any) (*index, bool) {
	idx := newIndex()
	for i, f := range fields {
		obj, ok := f.(map[string]any)
		if !ok {
			c.log.Warnf("%s: field %d is not an object", scope, i)
			return nil, false
		}
		name, ok := obj["name"].(string)
		if !ok {
			c.log.Warnf("%s: field %d has no name", scope, i)
			return nil, false
		}
		// Positional fields share a name and are matched by ordinal.
		idx.add(name, obj, nil)
	}
	return idx, true
}

func (c *comparer) indexItems(scope string, items []any) *index {
	idx := newIndex()
	for i, it := range items {
		key, ok := itemKey(it)
		if !ok {
			c.log.Warnf("%s: item %d has no usable key", scope, i)
			key = fmt.Sprintf("<malformed %d>", i)
		}
		idx.add(key, it, c.log)
	}
	return idx
}

// itemKey returns the matching key of an item: its name, or a key built
// from the contents of impls and use trees, which have no name.
func itemKey(it any) (string, bool) {
	obj, ok := it.(map[string]any)
	if !ok {
		return "", false
	}
	switch obj["type"] {
	case "impl":
		implType, ok := obj["impl_type"].(string)
		if !ok {
			return "", false
		}
		if trait, _ := obj["trait"].(string); trait != "" {
			return "impl " + trait + " for " + implType, true
		}
		return "impl " + implType, true
	case "usetree":
		key, ok := useKey(obj)
		if !ok {
			return "", false
		}
		return "use " + key, true
	}
	name, ok := obj["name"].(string)
	if !ok || name == "" {
		return "", false
	}
	return name, true
}

// useKey spells a use tree back out, e.g. a::{b as c, d::*}.
func useKey(obj map[string]any) (string, bool) {
	path, ok := obj["path"].(string)
	if !ok {
		return "", false
	}
	kind, _ := obj["kind"].(string)
	switch kind {
	case "":
		return path, true
	case "*":
		if path == "" {
			return "*", true
		}
		return path + "::*", true
	case "nested":
		list, _ := asList(obj["items"])
		parts := make([]string, 0, len(list))
		for _, sub := range list {
			subObj, ok := sub.(map[string]any)
			if !ok {
				return "", false
			}
			s, ok := useKey(subObj)
			if !ok {
				return "", false
			}
			parts = append(parts, s)
		}
		group := "{" + strings.Join(parts, ", ") + "}"
		if path == "" {
			return group, true
		}
		return path + "::" + group, true
	}
	return path + " as " + kind, true
}

func asList(v any) ([]any, bool) {
	switch l := v.(type) {
	case []any:
		return l, true
	case nil:
		return nil, true
	}
	return nil, false
}

// index is an insertion-ordered map. Repeated keys are kept apart by an
// ordinal suffix, so the second "f" becomes "f #2".
type index struct {
	keys []string
	vals map[string]any
	seen map[string]int
}

func newIndex() *index {
	return &index{vals: make(map[string]any), seen: make(map[string]int)}
}

func (x *index) add(key string, val any, log *logging.Logger) {
	x.seen[key]++
	if n := x.seen[key]; n > 1 {
		log.Warnf("duplicate key %q, matching occurrence %d by position", key, n)
		key = fmt.Sprintf("%s #%d", key, n)
	}
	x.keys = append(x.keys, key)
	x.vals[key] = val
}

func (x *index) has(key string) bool {
	_, ok := x.vals[key]
	return ok
}
