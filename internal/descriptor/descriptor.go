// Package descriptor defines the canonical description of a public API
// declaration and its JSON wire encoding.
//
// A Document is a list of modules, each holding the Descriptors of the
// public items declared at its top level. Descriptors nest: modules, traits
// and impls own their member items, structs own fields and enums own
// variants. Every string-valued type, generic list or where clause is
// rendered text and is compared by equality only.
package descriptor

// Kind is the wire discriminator written to the "type" key.
type Kind string

const (
	KindFunction  Kind = "function"
	KindStruct    Kind = "struct"
	KindEnum      Kind = "enum"
	KindUnion     Kind = "union"
	KindTrait     Kind = "trait"
	KindImpl      Kind = "impl"
	KindMethod    Kind = "method"
	KindTypeAlias Kind = "type"
	KindConst     Kind = "const"
	KindStatic    Kind = "static"
	KindModule    Kind = "mod"
	KindUseTree   Kind = "usetree"
	KindMacro     Kind = "macro"
)

// Visibility strings written to the "visibility" key.
const (
	Public    = "public"
	NotPublic = ""
)

// Use-tree kinds written to the "kind" key, besides an alias name or "".
const (
	TreeNested = "nested"
	TreeGlob   = "*"
)

// AnonField names positional fields.
const AnonField = "<anon>"

// Document is one extraction run.
type Document struct {
	Modules []*Module
}

// Module holds the items declared at the top level of one source file.
type Module struct {
	Path  string
	Items []*Descriptor
}

// Descriptor describes one declaration. Only the fields belonging to Kind
// are encoded; see MarshalJSON for the per-kind key order.
type Descriptor struct {
	Kind       Kind
	Name       string
	Visibility string
	Attrs      []string
	Generics   string
	Where      string

	// function, method
	Inputs   []Input
	Output   string
	Variadic bool
	Unsafe   bool
	Const    bool
	Async    bool
	Extern   string

	// const, static, type
	Subtype    string
	Mutability string

	// struct, union
	Fields []Field
	// enum
	Variants []Variant

	// mod, trait, impl, and nested use trees
	Items []*Descriptor

	// impl
	ImplType string
	Trait    string

	// trait
	Bounds []Bound

	// usetree
	Path     string
	TreeKind string
	// Nested marks a use tree inside a nested group; it carries no
	// visibility or attributes.
	Nested bool
}

// Input is one function parameter.
type Input struct {
	Name string
	Type string
}

// Field is one struct, union or variant field.
type Field struct {
	Name       string
	Type       string
	Visibility string
}

// Variant is one enum variant. Generics and Where repeat the enum's.
type Variant struct {
	Name     string
	Fields   []Field
	Generics string
	Where    string
}

// Bound is a supertrait bound: either an outlives lifetime or a trait
// reference with optional higher-ranked parameters.
type Bound struct {
	Lifetime           string
	BoundGenericParams string
	TraitRef           string
}
