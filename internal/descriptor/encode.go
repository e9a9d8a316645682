package descriptor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// Encode writes doc as indented JSON followed by a newline. HTML characters
// are not escaped, so types such as Vec<u8> stay readable.
func Encode(w io.Writer, doc *Document) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("descriptor: encode: %w", err)
	}
	return nil
}

// Bytes returns the encoded form of doc.
func (doc *Document) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (doc *Document) MarshalJSON() ([]byte, error) {
	modules := doc.Modules
	if modules == nil {
		modules = []*Module{}
	}
	o := &object{}
	o.set("modules", modules)
	return o.MarshalJSON()
}

func (m *Module) MarshalJSON() ([]byte, error) {
	o := &object{}
	o.set("path", m.Path)
	o.set("items", items(m.Items))
	return o.MarshalJSON()
}

// MarshalJSON writes the keys that belong to d.Kind in a fixed order:
// type and name first, kind-specific keys next, visibility and attrs last.
func (d *Descriptor) MarshalJSON() ([]byte, error) {
	o := &object{}
	o.set("type", string(d.Kind))
	o.set("name", d.Name)

	switch d.Kind {
	case KindFunction, KindMethod:
		inputs := d.Inputs
		if inputs == nil {
			inputs = []Input{}
		}
		o.set("inputs", inputs)
		o.set("output", d.Output)
		o.set("variadic", d.Variadic)
		o.set("unsafe", d.Unsafe)
		o.set("const", d.Const)
		o.set("extern", d.Extern)
		o.set("async", d.Async)
		o.set("generics", d.Generics)
		o.set("where", d.Where)
	case KindStruct, KindUnion:
		o.set("fields", fields(d.Fields))
		o.set("generics", d.Generics)
		o.set("where", d.Where)
	case KindEnum:
		variants := d.Variants
		if variants == nil {
			variants = []Variant{}
		}
		o.set("fields", variants)
		o.set("generics", d.Generics)
		o.set("where", d.Where)
	case KindTrait:
		bounds := d.Bounds
		if bounds == nil {
			bounds = []Bound{}
		}
		o.set("typarambounds", bounds)
		o.set("unsafe", d.Unsafe)
		o.set("generics", d.Generics)
		o.set("where", d.Where)
		o.set("items", items(d.Items))
	case KindImpl:
		o.set("impl_type", d.ImplType)
		o.set("trait", d.Trait)
		o.set("unsafe", d.Unsafe)
		o.set("const", d.Const)
		o.set("generics", d.Generics)
		o.set("where", d.Where)
		o.set("items", items(d.Items))
	case KindTypeAlias:
		o.set("subtype", d.Subtype)
		o.set("generics", d.Generics)
		o.set("where", d.Where)
	case KindConst:
		o.set("subtype", d.Subtype)
	case KindStatic:
		o.set("mutability", d.Mutability)
		o.set("subtype", d.Subtype)
	case KindModule:
		o.set("items", items(d.Items))
		o.set("unsafe", d.Unsafe)
	case KindUseTree:
		o.set("path", d.Path)
		o.set("kind", d.TreeKind)
		if d.TreeKind == TreeNested {
			o.set("items", items(d.Items))
		}
	}

	if !d.Nested {
		attrs := d.Attrs
		if attrs == nil {
			attrs = []string{}
		}
		o.set("visibility", d.Visibility)
		o.set("attrs", attrs)
	}
	return o.MarshalJSON()
}

func (f Field) MarshalJSON() ([]byte, error) {
	o := &object{}
	o.set("name", f.Name)
	o.set("type", f.Type)
	o.set("visibility", f.Visibility)
	return o.MarshalJSON()
}

func (v Variant) MarshalJSON() ([]byte, error) {
	o := &object{}
	o.set("name", v.Name)
	o.set("fields", fields(v.Fields))
	o.set("generics", v.Generics)
	o.set("where", v.Where)
	return o.MarshalJSON()
}

// MarshalJSON writes an outlives bound as a bare lifetime string and a
// trait bound as an object.
func (b Bound) MarshalJSON() ([]byte, error) {
	if b.Lifetime != "" {
		return marshal(b.Lifetime)
	}
	o := &object{}
	o.set("bound_generic_params", b.BoundGenericParams)
	o.set("trait_ref", b.TraitRef)
	return o.MarshalJSON()
}

func (in Input) MarshalJSON() ([]byte, error) {
	o := &object{}
	o.set("name", in.Name)
	o.set("type", in.Type)
	return o.MarshalJSON()
}

func items(ds []*Descriptor) []*Descriptor {
	if ds == nil {
		return []*Descriptor{}
	}
	return ds
}

func fields(fs []Field) []Field {
	if fs == nil {
		return []Field{}
	}
	return fs
}

// object is a JSON object that keeps keys in insertion order.
type object struct {
	keys []string
	vals []any
}

func (o *object) set(key string, val any) {
	o.keys = append(o.keys, key)
	o.vals = append(o.vals, val)
}

func (o *object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := marshal(key)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := marshal(o.vals[i])
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", key, err)
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// marshal encodes v without HTML escaping.
func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
