// Package syntax defines the parser-neutral item tree consumed by the
// extractor. Any source parser that can fill these types can feed the rest
// of the pipeline; nothing here knows about tree-sitter.
package syntax

// Kind discriminates item nodes.
type Kind int

const (
	KindUnknown Kind = iota
	KindFunction
	KindStruct
	KindUnion
	KindEnum
	KindTrait
	KindImpl
	KindTypeAlias
	KindConst
	KindStatic
	KindModule
	KindUse
	KindMacroCall
	KindExternCrate
	KindMacroDef
	KindForeignMod
)

var kindNames = [...]string{
	KindUnknown:     "unknown",
	KindFunction:    "function",
	KindStruct:      "struct",
	KindUnion:       "union",
	KindEnum:        "enum",
	KindTrait:       "trait",
	KindImpl:        "impl",
	KindTypeAlias:   "type alias",
	KindConst:       "const",
	KindStatic:      "static",
	KindModule:      "mod",
	KindUse:         "use",
	KindMacroCall:   "macro invocation",
	KindExternCrate: "extern crate",
	KindMacroDef:    "macro definition",
	KindForeignMod:  "extern block",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Visibility is the declared visibility of an item or field.
type Visibility int

const (
	// Inherited means no visibility modifier was written.
	Inherited Visibility = iota
	// Public is a bare `pub`.
	Public
	// Restricted covers pub(crate), pub(super), pub(self) and pub(in path).
	Restricted
)

// Fragment is a syntactic sub-tree flattened to its tokens, in source order
// with comments removed. Rendering a Fragment is the printer's job.
type Fragment []string

// Empty reports whether the fragment holds no tokens.
func (f Fragment) Empty() bool { return len(f) == 0 }

// File is one parsed source file.
type File struct {
	Path string
	// Attrs holds inner attributes and inner doc comments.
	Attrs []Fragment
	Items []*Item
}

// Item is one declaration. Which of the kind-specific fields are populated
// depends on Kind.
type Item struct {
	Kind       Kind
	Name       string
	Visibility Visibility
	Attrs      []Fragment
	Generics   Fragment
	Where      Fragment

	// Function, and methods inside traits and impls.
	Fn *FnSig

	// Struct and union bodies.
	Fields *FieldList
	// Enum variants.
	Variants []*Variant

	// Type is the aliased type for type aliases, the declared type for
	// consts and statics, and the self type for impls.
	Type Fragment
	// Trait is the implemented trait path for trait impls.
	Trait    Fragment
	Negative bool
	// Bounds are supertraits for traits and bounds for associated types.
	Bounds []Bound

	Mutable bool
	Unsafe  bool
	Const   bool

	// Children holds trait, impl and module bodies.
	Children []*Item
	// Loaded is true once a module body is available, either inline or
	// resolved from its file. Declaration-only modules stay false.
	Loaded bool
	// PathAttr is the value of a #[path = "..."] attribute on a module.
	PathAttr string

	Use *UseTree
}

// IsTraitImpl reports whether an impl item implements a trait.
func (it *Item) IsTraitImpl() bool {
	return it.Kind == KindImpl && !it.Trait.Empty()
}

// Clone returns a deep copy of the item's mutable structure. Fragments are
// shared; they are never modified after parsing.
func (it *Item) Clone() *Item {
	if it == nil {
		return nil
	}
	c := *it
	c.Attrs = append([]Fragment(nil), it.Attrs...)
	if it.Children != nil {
		c.Children = make([]*Item, len(it.Children))
		for i, child := range it.Children {
			c.Children[i] = child.Clone()
		}
	}
	return &c
}

// Clone returns a copy of the file whose items can be modified freely.
func (f *File) Clone() *File {
	c := &File{
		Path:  f.Path,
		Attrs: append([]Fragment(nil), f.Attrs...),
		Items: make([]*Item, len(f.Items)),
	}
	for i, it := range f.Items {
		c.Items[i] = it.Clone()
	}
	return c
}

// ExternKind distinguishes how a function's ABI was written.
type ExternKind int

const (
	ExternNone ExternKind = iota
	ExternImplicit
	ExternExplicit
)

// FnSig is a function signature.
type FnSig struct {
	Params   []Param
	Output   Fragment
	Variadic bool
	Unsafe   bool
	Const    bool
	Async    bool
	Extern   ExternKind
	// ABI is the unquoted ABI string when Extern is ExternExplicit.
	ABI string
}

// Param is one function parameter.
type Param struct {
	Pattern Fragment
	Type    Fragment
}

// FieldStyle is the shape of a struct, union or variant body.
type FieldStyle int

const (
	UnitFields FieldStyle = iota
	NamedFields
	TupleFields
)

// FieldList is an ordered field body.
type FieldList struct {
	Style  FieldStyle
	Fields []*Field
}

// Field is a named or positional field. Name is empty for tuple fields.
type Field struct {
	Name       string
	Visibility Visibility
	Type       Fragment
}

// Variant is an enum variant.
type Variant struct {
	Name   string
	Attrs  []Fragment
	Fields *FieldList
}

// Bound is one trait or lifetime bound.
type Bound struct {
	// Lifetime is set for outlives bounds such as 'a.
	Lifetime string
	// ForParams holds a higher-ranked `for<...>` parameter list.
	ForParams Fragment
	Trait     Fragment
}

// UseKind is the shape of a use tree.
type UseKind int

const (
	UseSimple UseKind = iota
	UseNested
	UseGlob
)

// UseTree is a use declaration argument.
type UseTree struct {
	Kind   UseKind
	Path   Fragment
	Alias  string
	Nested []*UseTree
}
