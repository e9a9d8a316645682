// Package extract maps parsed item trees onto descriptors, keeping only the
// declarations that form a crate's public API.
package extract

import (
	"os"
	"strings"

	"github.com/jward/apicheck/internal/descriptor"
	"github.com/jward/apicheck/internal/logging"
	"github.com/jward/apicheck/internal/render"
	"github.com/jward/apicheck/internal/syntax"
)

// Context controls diagnostics. Nothing in it changes the descriptors
// produced.
type Context struct {
	// Debug is the -d repeat count. It sets the level of the default
	// logger when Log is nil.
	Debug   int
	Log     *logging.Logger
	Printer render.Printer
}

// DebugLevel maps a -d repeat count to a log level: silent at zero, then
// info, debug and trace.
func DebugLevel(count int) logging.Level {
	if count <= 0 {
		return logging.LevelError
	}
	return logging.FromVerbosity(logging.LevelWarn, count)
}

// scope is where an item is declared; it decides the visibility filter.
type scope int

const (
	inModule scope = iota
	inTrait
	inInherentImpl
	inTraitImpl
)

type extractor struct {
	p   render.Printer
	log *logging.Logger
}

func newExtractor(ctx Context) *extractor {
	log := ctx.Log
	if log == nil {
		log = logging.New(os.Stderr, "extract", DebugLevel(ctx.Debug))
	}
	return &extractor{p: ctx.Printer, log: log}
}

// Document extracts every file into one module entry, in file order.
func Document(files []*syntax.File, ctx Context) *descriptor.Document {
	e := newExtractor(ctx)
	doc := &descriptor.Document{Modules: make([]*descriptor.Module, 0, len(files))}
	for _, f := range files {
		doc.Modules = append(doc.Modules, e.module(f.Path, f.Items))
	}
	return doc
}

// Module extracts the public items of one module's top-level item list.
func Module(path string, items []*syntax.Item, ctx Context) *descriptor.Module {
	return newExtractor(ctx).module(path, items)
}

func (e *extractor) module(path string, items []*syntax.Item) *descriptor.Module {
	e.log.Infof("extracting module %s (%d items)", path, len(items))
	return &descriptor.Module{Path: path, Items: e.items(items, inModule)}
}

func (e *extractor) items(items []*syntax.Item, sc scope) []*descriptor.Descriptor {
	out := make([]*descriptor.Descriptor, 0, len(items))
	for _, it := range items {
		if d := e.item(it, sc); d != nil {
			out = append(out, d)
		}
	}
	return out
}

// item converts one item, or returns nil when it is filtered out.
func (e *extractor) item(it *syntax.Item, sc scope) *descriptor.Descriptor {
	if !e.keep(it, sc) {
		e.log.Infof("skipping non-public %s %s", it.Kind, it.Name)
		return nil
	}

	var d *descriptor.Descriptor
	switch it.Kind {
	case syntax.KindFunction:
		d = e.function(it, sc)
	case syntax.KindStruct:
		d = e.record(it, descriptor.KindStruct)
	case syntax.KindUnion:
		d = e.record(it, descriptor.KindUnion)
	case syntax.KindEnum:
		d = e.enum(it)
	case syntax.KindTrait:
		d = e.trait(it)
	case syntax.KindImpl:
		d = e.impl(it)
	case syntax.KindTypeAlias:
		d = e.typeAlias(it)
	case syntax.KindConst:
		d = &descriptor.Descriptor{Kind: descriptor.KindConst, Name: it.Name, Subtype: e.p.Render(it.Type)}
	case syntax.KindStatic:
		d = &descriptor.Descriptor{Kind: descriptor.KindStatic, Name: it.Name, Subtype: e.p.Render(it.Type)}
		if it.Mutable {
			d.Mutability = "mut"
		}
	case syntax.KindModule:
		if !it.Loaded {
			e.log.Debugf("skipping unloaded module %s", it.Name)
			return nil
		}
		d = &descriptor.Descriptor{Kind: descriptor.KindModule, Name: it.Name, Items: e.items(it.Children, inModule)}
	case syntax.KindUse:
		if it.Use == nil {
			e.log.Warnf("use declaration without a tree")
			return nil
		}
		d = e.useTree(it.Use, false)
	case syntax.KindMacroCall:
		d = &descriptor.Descriptor{Kind: descriptor.KindMacro, Name: it.Name}
	default:
		e.log.Debugf("skipping unsupported %s %s", it.Kind, it.Name)
		return nil
	}

	d.Visibility = e.visibility(it, sc)
	d.Attrs = e.p.RenderAll(it.Attrs)
	if e.log.Enabled(logging.LevelTrace) {
		e.log.Tracef("%s %q: %+v", d.Kind, d.Name, *d)
	}
	return d
}

// keep applies the visibility filter. Impls are always walked; inherent
// impl members must be public; trait and trait-impl members are governed
// by the trait.
func (e *extractor) keep(it *syntax.Item, sc scope) bool {
	switch sc {
	case inTrait, inTraitImpl:
		return true
	case inInherentImpl:
		return it.Visibility == syntax.Public
	}
	return it.Kind == syntax.KindImpl || it.Visibility == syntax.Public
}

func (e *extractor) visibility(it *syntax.Item, sc scope) string {
	if sc == inTrait || it.Visibility == syntax.Public {
		return descriptor.Public
	}
	return descriptor.NotPublic
}

func (e *extractor) function(it *syntax.Item, sc scope) *descriptor.Descriptor {
	kind := descriptor.KindFunction
	if sc != inModule {
		kind = descriptor.KindMethod
	}
	d := &descriptor.Descriptor{
		Kind:     kind,
		Name:     it.Name,
		Generics: e.p.Render(it.Generics),
		Where:    e.p.Render(it.Where),
		Inputs:   []descriptor.Input{},
	}
	sig := it.Fn
	if sig == nil {
		return d
	}
	for _, param := range sig.Params {
		d.Inputs = append(d.Inputs, descriptor.Input{
			Name: e.p.Render(param.Pattern),
			Type: e.p.Render(param.Type),
		})
	}
	d.Output = e.p.Render(sig.Output)
	d.Variadic = sig.Variadic
	d.Unsafe = sig.Unsafe
	d.Const = sig.Const
	d.Async = sig.Async
	switch sig.Extern {
	case syntax.ExternImplicit:
		d.Extern = "implicit"
	case syntax.ExternExplicit:
		d.Extern = sig.ABI
	}
	return d
}

func (e *extractor) record(it *syntax.Item, kind descriptor.Kind) *descriptor.Descriptor {
	return &descriptor.Descriptor{
		Kind:     kind,
		Name:     it.Name,
		Fields:   e.fields(it.Fields),
		Generics: e.p.Render(it.Generics),
		Where:    e.p.Render(it.Where),
	}
}

func (e *extractor) fields(fl *syntax.FieldList) []descriptor.Field {
	out := []descriptor.Field{}
	if fl == nil {
		return out
	}
	for _, f := range fl.Fields {
		name := f.Name
		if name == "" {
			name = descriptor.AnonField
		}
		vis := descriptor.NotPublic
		if f.Visibility == syntax.Public {
			vis = descriptor.Public
		}
		out = append(out, descriptor.Field{Name: name, Type: e.p.Render(f.Type), Visibility: vis})
	}
	return out
}

// enum reuses the field logic for each variant. Variants carry the enum's
// generics and where clause.
func (e *extractor) enum(it *syntax.Item) *descriptor.Descriptor {
	d := &descriptor.Descriptor{
		Kind:     descriptor.KindEnum,
		Name:     it.Name,
		Generics: e.p.Render(it.Generics),
		Where:    e.p.Render(it.Where),
		Variants: make([]descriptor.Variant, 0, len(it.Variants)),
	}
	for _, v := range it.Variants {
		d.Variants = append(d.Variants, descriptor.Variant{
			Name:     v.Name,
			Fields:   e.fields(v.Fields),
			Generics: d.Generics,
			Where:    d.Where,
		})
	}
	return d
}

func (e *extractor) trait(it *syntax.Item) *descriptor.Descriptor {
	d := &descriptor.Descriptor{
		Kind:     descriptor.KindTrait,
		Name:     it.Name,
		Bounds:   make([]descriptor.Bound, 0, len(it.Bounds)),
		Unsafe:   it.Unsafe,
		Generics: e.p.Render(it.Generics),
		Where:    e.p.Render(it.Where),
		Items:    e.items(it.Children, inTrait),
	}
	for _, b := range it.Bounds {
		if b.Lifetime != "" {
			d.Bounds = append(d.Bounds, descriptor.Bound{Lifetime: b.Lifetime})
			continue
		}
		d.Bounds = append(d.Bounds, descriptor.Bound{
			BoundGenericParams: e.p.Render(b.ForParams),
			TraitRef:           e.p.Render(b.Trait),
		})
	}
	return d
}

func (e *extractor) impl(it *syntax.Item) *descriptor.Descriptor {
	sc := inInherentImpl
	trait := ""
	if it.IsTraitImpl() {
		sc = inTraitImpl
		trait = e.p.Render(it.Trait)
		if it.Negative {
			trait = "!" + trait
		}
	}
	return &descriptor.Descriptor{
		Kind:     descriptor.KindImpl,
		ImplType: e.p.Render(it.Type),
		Trait:    trait,
		Unsafe:   it.Unsafe,
		Const:    it.Const,
		Generics: e.p.Render(it.Generics),
		Where:    e.p.Render(it.Where),
		Items:    e.items(it.Children, sc),
	}
}

// typeAlias renders the aliased type, or the bounds of an associated type
// declared without a default.
func (e *extractor) typeAlias(it *syntax.Item) *descriptor.Descriptor {
	sub := e.p.Render(it.Type)
	if sub == "" && len(it.Bounds) > 0 {
		parts := make([]string, 0, len(it.Bounds))
		for _, b := range it.Bounds {
			switch {
			case b.Lifetime != "":
				parts = append(parts, b.Lifetime)
			case !b.ForParams.Empty():
				parts = append(parts, "for"+e.p.Render(b.ForParams)+" "+e.p.Render(b.Trait))
			default:
				parts = append(parts, e.p.Render(b.Trait))
			}
		}
		sub = strings.Join(parts, " + ")
	}
	return &descriptor.Descriptor{
		Kind:     descriptor.KindTypeAlias,
		Name:     it.Name,
		Subtype:  sub,
		Generics: e.p.Render(it.Generics),
		Where:    e.p.Render(it.Where),
	}
}

// useTree converts a use tree. The name is the identifier the tree binds:
// the alias, else the last path segment.
func (e *extractor) useTree(t *syntax.UseTree, nested bool) *descriptor.Descriptor {
	d := &descriptor.Descriptor{
		Kind:   descriptor.KindUseTree,
		Path:   e.p.Render(t.Path),
		Nested: nested,
	}
	switch t.Kind {
	case syntax.UseGlob:
		d.Name = descriptor.TreeGlob
		d.TreeKind = descriptor.TreeGlob
	case syntax.UseNested:
		d.TreeKind = descriptor.TreeNested
		d.Items = make([]*descriptor.Descriptor, 0, len(t.Nested))
		for _, sub := range t.Nested {
			d.Items = append(d.Items, e.useTree(sub, true))
		}
	default:
		d.TreeKind = t.Alias
		d.Name = t.Alias
		if d.Name == "" && len(t.Path) > 0 {
			d.Name = t.Path[len(t.Path)-1]
		}
	}
	return d
}
