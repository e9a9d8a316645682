// Package apicheck extracts the public API of a Rust crate and reports how
// it changed between two versions.
//
// # Pipeline
//
// apicheck operates in two phases:
//
//  1. Extract: parse the crate root with tree-sitter, follow `mod name;`
//     declarations to their files, and map every public item onto a
//     [Descriptor]. The result is a [Document] with one module entry per
//     source file, written as JSON by the apicheck command.
//
//  2. Diff: match two documents module by module and item by item and
//     count additions, removals and changes in a [Report]. The apidiff
//     command prints the report and exits 1 when anything changed.
//
// # Usage
//
//	c, err := apicheck.New()
//	if err != nil { ... }
//	defer c.Close()
//
//	ctx := context.Background()
//	before, err := c.Extract(ctx, "v1/src/lib.rs")
//	after, err := c.Extract(ctx, "v2/src/lib.rs")
//	r, err := c.Diff(before, after, apicheck.DiffOptions{Strip: 1})
//	if r.HasChanges() { ... }
//
// Documents can also be saved by name in a SQLite database (see [WithDB])
// and compared later without the sources.
//
// # Matching
//
// Modules match by path after dropping [DiffOptions.Strip] leading
// segments. Items match by name; impl blocks match by their trait and self
// type. Each matched item is compared over a fixed list of keys for its
// kind and the first differing key decides that it changed. Types,
// generics and where clauses are compared as rendered text, so two
// spellings of an equivalent type count as a change.
package apicheck
