package extract

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/apicheck/internal/descriptor"
	"github.com/jward/apicheck/internal/logging"
	"github.com/jward/apicheck/internal/rustparse"
	"github.com/jward/apicheck/internal/syntax"
)

func extractSource(t *testing.T, src string) []*descriptor.Descriptor {
	t.Helper()
	f, err := rustparse.New().Parse(context.Background(), "lib.rs", []byte(src))
	require.NoError(t, err)
	m := Module(f.Path, f.Items, Context{Log: logging.Discard()})
	require.Equal(t, "lib.rs", m.Path)
	return m.Items
}

func names(ds []*descriptor.Descriptor) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.Name
	}
	return out
}

// =============================================================================
// Functions
// =============================================================================

func TestExtract_PublicFunction(t *testing.T) {
	t.Parallel()
	items := extractSource(t, "pub fn f(x: u32) -> u32 { x }\n")
	require.Len(t, items, 1)

	d := items[0]
	assert.Equal(t, descriptor.KindFunction, d.Kind)
	assert.Equal(t, "f", d.Name)
	assert.Equal(t, []descriptor.Input{{Name: "x", Type: "u32"}}, d.Inputs)
	assert.Equal(t, "u32", d.Output)
	assert.False(t, d.Unsafe)
	assert.False(t, d.Const)
	assert.False(t, d.Variadic)
	assert.False(t, d.Async)
	assert.Equal(t, "", d.Extern)
	assert.Equal(t, descriptor.Public, d.Visibility)
	assert.Empty(t, d.Attrs)
}

func TestExtract_FunctionWithoutReturnType(t *testing.T) {
	t.Parallel()
	items := extractSource(t, "pub fn g() {}\n")
	require.Len(t, items, 1)
	assert.Equal(t, "", items[0].Output)
	assert.NotNil(t, items[0].Inputs)
	assert.Empty(t, items[0].Inputs)
}

func TestExtract_ExternAndModifiers(t *testing.T) {
	t.Parallel()
	items := extractSource(t, `pub extern "C" fn c() {}
pub unsafe extern fn i() {}
pub const fn k() {}
pub async fn a() {}
`)
	require.Len(t, items, 4)
	assert.Equal(t, "C", items[0].Extern)
	assert.Equal(t, "implicit", items[1].Extern)
	assert.True(t, items[1].Unsafe)
	assert.True(t, items[2].Const)
	assert.True(t, items[3].Async)
}

func TestExtract_GenericsAndWhere(t *testing.T) {
	t.Parallel()
	items := extractSource(t, "pub fn f<T: Clone>(t: T) -> T where T: Send { t }\n")
	require.Len(t, items, 1)
	assert.Equal(t, "<T: Clone>", items[0].Generics)
	assert.Equal(t, "where T: Send", items[0].Where)
}

// =============================================================================
// Visibility
// =============================================================================

func TestExtract_DropsNonPublicItems(t *testing.T) {
	t.Parallel()
	items := extractSource(t, `fn private() {}
pub(crate) fn krate() {}
pub(super) struct Up;
pub fn shown() {}
struct Hidden;
`)
	assert.Equal(t, []string{"shown"}, names(items))
}

func TestExtract_AttributesAndDocs(t *testing.T) {
	t.Parallel()
	items := extractSource(t, "/// Adds.\n#[inline]\npub fn add() {}\n")
	require.Len(t, items, 1)
	assert.Equal(t, []string{"/// Adds.", "#[inline]"}, items[0].Attrs)
}

// =============================================================================
// Records and enums
// =============================================================================

func TestExtract_StructFields(t *testing.T) {
	t.Parallel()
	items := extractSource(t, `pub struct Named { pub a: u8, b: String }
pub struct Tuple(pub u8, String);
pub struct Unit;
`)
	require.Len(t, items, 3)

	assert.Equal(t, []descriptor.Field{
		{Name: "a", Type: "u8", Visibility: descriptor.Public},
		{Name: "b", Type: "String", Visibility: descriptor.NotPublic},
	}, items[0].Fields)
	assert.Equal(t, []descriptor.Field{
		{Name: descriptor.AnonField, Type: "u8", Visibility: descriptor.Public},
		{Name: descriptor.AnonField, Type: "String", Visibility: descriptor.NotPublic},
	}, items[1].Fields)
	assert.NotNil(t, items[2].Fields)
	assert.Empty(t, items[2].Fields)
}

func TestExtract_EnumVariantsUseEnumGenerics(t *testing.T) {
	t.Parallel()
	items := extractSource(t, "pub enum E<T> where T: Copy { A(T), B { x: T }, C }\n")
	require.Len(t, items, 1)

	d := items[0]
	assert.Equal(t, descriptor.KindEnum, d.Kind)
	require.Len(t, d.Variants, 3)
	for _, v := range d.Variants {
		assert.Equal(t, "<T>", v.Generics)
		assert.Equal(t, "where T: Copy", v.Where)
	}
	assert.Equal(t, []descriptor.Field{{Name: descriptor.AnonField, Type: "T"}}, d.Variants[0].Fields)
	assert.Equal(t, []descriptor.Field{{Name: "x", Type: "T"}}, d.Variants[1].Fields)
	assert.Empty(t, d.Variants[2].Fields)
}

// =============================================================================
// Traits and impls
// =============================================================================

func TestExtract_Trait(t *testing.T) {
	t.Parallel()
	items := extractSource(t, `pub trait Store: Clone + 'static {
    const N: usize;
    type Out: Send;
    fn get(&self) -> u8;
}
`)
	require.Len(t, items, 1)

	d := items[0]
	assert.Equal(t, descriptor.KindTrait, d.Kind)
	assert.Equal(t, []descriptor.Bound{{TraitRef: "Clone"}, {Lifetime: "'static"}}, d.Bounds)
	require.Len(t, d.Items, 3)

	assert.Equal(t, descriptor.KindConst, d.Items[0].Kind)
	assert.Equal(t, "usize", d.Items[0].Subtype)
	assert.Equal(t, descriptor.KindTypeAlias, d.Items[1].Kind)
	assert.Equal(t, "Send", d.Items[1].Subtype)
	assert.Equal(t, descriptor.KindMethod, d.Items[2].Kind)
	assert.Equal(t, []descriptor.Input{{Name: "self", Type: "&Self"}}, d.Items[2].Inputs)
	for _, m := range d.Items {
		assert.Equal(t, descriptor.Public, m.Visibility, m.Name)
	}
}

func TestExtract_InherentImplKeepsPublicMembers(t *testing.T) {
	t.Parallel()
	items := extractSource(t, `pub struct S;
impl S {
    pub fn a(&self) {}
    fn b(&mut self) {}
    pub(crate) fn c() {}
}
`)
	require.Len(t, items, 2)

	impl := items[1]
	assert.Equal(t, descriptor.KindImpl, impl.Kind)
	assert.Equal(t, "", impl.Name)
	assert.Equal(t, "S", impl.ImplType)
	assert.Equal(t, "", impl.Trait)
	assert.Equal(t, []string{"a"}, names(impl.Items))
	assert.Equal(t, descriptor.KindMethod, impl.Items[0].Kind)
}

func TestExtract_TraitImplKeepsAllMembers(t *testing.T) {
	t.Parallel()
	items := extractSource(t, `impl<T> Clone for W<T> where T: Clone {
    fn clone(&self) -> Self { todo!() }
    fn clone_from(&mut self, other: &Self) {}
}
`)
	require.Len(t, items, 1)

	impl := items[0]
	assert.Equal(t, "Clone", impl.Trait)
	assert.Equal(t, "W<T>", impl.ImplType)
	assert.Equal(t, "<T>", impl.Generics)
	assert.Equal(t, []string{"clone", "clone_from"}, names(impl.Items))
	assert.Equal(t, descriptor.NotPublic, impl.Items[0].Visibility)
	assert.Equal(t, []descriptor.Input{
		{Name: "self", Type: "&mut Self"},
		{Name: "other", Type: "&Self"},
	}, impl.Items[1].Inputs)
}

func TestExtract_NegativeAndUnsafeImpls(t *testing.T) {
	t.Parallel()
	items := extractSource(t, "impl !Send for S {}\nunsafe impl Sync for S {}\n")
	require.Len(t, items, 2)
	assert.Equal(t, "!Send", items[0].Trait)
	assert.True(t, items[1].Unsafe)
}

// =============================================================================
// Modules, use trees, other kinds
// =============================================================================

func TestExtract_Modules(t *testing.T) {
	t.Parallel()
	items := extractSource(t, `pub mod open { pub fn f() {} fn g() {} }
mod closed { pub fn h() {} }
pub mod declared;
`)
	require.Len(t, items, 1)

	m := items[0]
	assert.Equal(t, descriptor.KindModule, m.Kind)
	assert.Equal(t, "open", m.Name)
	assert.Equal(t, []string{"f"}, names(m.Items))
	assert.Equal(t, descriptor.KindFunction, m.Items[0].Kind)
}

func TestExtract_UseTrees(t *testing.T) {
	t.Parallel()
	items := extractSource(t, `pub use foo::bar;
pub use foo::{a, b as c, d::*};
pub use baz::*;
use hidden::x;
`)
	require.Len(t, items, 3)

	simple := items[0]
	assert.Equal(t, "bar", simple.Name)
	assert.Equal(t, "foo::bar", simple.Path)
	assert.Equal(t, "", simple.TreeKind)

	group := items[1]
	assert.Equal(t, "", group.Name)
	assert.Equal(t, "foo", group.Path)
	assert.Equal(t, descriptor.TreeNested, group.TreeKind)
	require.Len(t, group.Items, 3)
	assert.Equal(t, "a", group.Items[0].Name)
	assert.Equal(t, "c", group.Items[1].Name)
	assert.Equal(t, "c", group.Items[1].TreeKind)
	assert.Equal(t, "b", group.Items[1].Path)
	assert.Equal(t, descriptor.TreeGlob, group.Items[2].TreeKind)
	for _, sub := range group.Items {
		assert.True(t, sub.Nested)
	}

	glob := items[2]
	assert.Equal(t, "*", glob.Name)
	assert.Equal(t, "baz", glob.Path)
	assert.False(t, glob.Nested)
}

func TestExtract_ConstStaticAlias(t *testing.T) {
	t.Parallel()
	items := extractSource(t, `pub const C: &str = "c";
pub static mut S: u32 = 0;
pub static R: u8 = 1;
pub type Pair<T> = (T, T);
`)
	require.Len(t, items, 4)
	assert.Equal(t, "&str", items[0].Subtype)
	assert.Equal(t, "mut", items[1].Mutability)
	assert.Equal(t, "", items[2].Mutability)
	assert.Equal(t, "(T, T)", items[3].Subtype)
	assert.Equal(t, "<T>", items[3].Generics)
}

func TestExtract_SkipsUnsupportedKinds(t *testing.T) {
	t.Parallel()
	items := extractSource(t, `pub extern crate core;
macro_rules! m { () => {} }
extern "C" { fn ext(); }
pub fn kept() {}
`)
	assert.Equal(t, []string{"kept"}, names(items))
}

func TestExtract_MacroInImpl(t *testing.T) {
	t.Parallel()
	items := extractSource(t, "impl Tr for S {\n    gen!();\n}\n")
	require.Len(t, items, 1)
	require.Len(t, items[0].Items, 1)
	assert.Equal(t, descriptor.KindMacro, items[0].Items[0].Kind)
	assert.Equal(t, "gen", items[0].Items[0].Name)
}

func TestExtract_LogsSkippedItems(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	items := []*syntax.Item{{Kind: syntax.KindFunction, Name: "hidden", Fn: &syntax.FnSig{}}}
	m := Module("lib.rs", items, Context{Log: logging.New(&buf, "extract", logging.LevelInfo)})

	assert.Empty(t, m.Items)
	assert.Contains(t, buf.String(), "[extract] INFO: skipping non-public function hidden")
}

func TestDocument_OneModulePerFile(t *testing.T) {
	t.Parallel()
	files := []*syntax.File{
		{Path: "src/a.rs", Items: []*syntax.Item{{Kind: syntax.KindConst, Name: "A", Visibility: syntax.Public}}},
		{Path: "src/lib.rs"},
	}
	doc := Document(files, Context{Log: logging.Discard()})
	require.Len(t, doc.Modules, 2)
	assert.Equal(t, "src/a.rs", doc.Modules[0].Path)
	assert.Equal(t, []string{"A"}, names(doc.Modules[0].Items))
	assert.NotNil(t, doc.Modules[1].Items)
}

func TestDebugLevel(t *testing.T) {
	t.Parallel()
	assert.Equal(t, logging.LevelError, DebugLevel(0))
	assert.Equal(t, logging.LevelInfo, DebugLevel(1))
	assert.Equal(t, logging.LevelDebug, DebugLevel(2))
	assert.Equal(t, logging.LevelTrace, DebugLevel(5))
}
