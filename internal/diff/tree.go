package diff

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"github.com/jward/apicheck/internal/descriptor"
)

// Tree is a decoded extraction document. Items stay generic JSON values so
// malformed descriptors reach the comparator instead of failing the decode.
type Tree struct {
	Modules []Module
}

// Module is one {path, items} entry.
type Module struct {
	Path  string
	Items []any
}

// InputError reports an unreadable or invalid document. It is fatal to a
// diff run.
type InputError struct {
	Source string
	Err    error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("diff: %s: %v", e.Source, e.Err)
}

func (e *InputError) Unwrap() error { return e.Err }

// ReadFile reads and decodes the document at path.
func ReadFile(path string) (*Tree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &InputError{Source: path, Err: err}
	}
	return Decode(data, path)
}

// Read decodes a document from r. source names it in errors.
func Read(r io.Reader, source string) (*Tree, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &InputError{Source: source, Err: err}
	}
	return Decode(data, source)
}

// Decode parses a wire document. Numbers are kept as json.Number.
func Decode(data []byte, source string) (*Tree, error) {
	fail := func(err error) (*Tree, error) {
		return nil, &InputError{Source: source, Err: err}
	}
	if !utf8.Valid(data) {
		return fail(errors.New("invalid UTF-8"))
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return fail(fmt.Errorf("invalid JSON: %w", err))
	}
	if dec.More() {
		return fail(errors.New("invalid JSON: trailing data after document"))
	}

	top, ok := raw.(map[string]any)
	if !ok {
		return fail(errors.New("document is not an object"))
	}
	mods, ok := top["modules"].([]any)
	if !ok {
		return fail(errors.New(`"modules" is missing or not an array`))
	}

	tree := &Tree{Modules: make([]Module, 0, len(mods))}
	for i, m := range mods {
		obj, ok := m.(map[string]any)
		if !ok {
			return fail(fmt.Errorf("modules[%d] is not an object", i))
		}
		path, ok := obj["path"].(string)
		if !ok {
			return fail(fmt.Errorf("modules[%d]: \"path\" is missing or not a string", i))
		}
		var items []any
		switch v := obj["items"].(type) {
		case []any:
			items = v
		case nil:
		default:
			return fail(fmt.Errorf("module %s: \"items\" is not an array", path))
		}
		tree.Modules = append(tree.Modules, Module{Path: path, Items: items})
	}
	return tree, nil
}

// FromDocument converts an in-process document through its wire form, so
// documents and files are compared by the same code.
func FromDocument(doc *descriptor.Document) (*Tree, error) {
	data, err := doc.Bytes()
	if err != nil {
		return nil, err
	}
	return Decode(data, "<document>")
}
